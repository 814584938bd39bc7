package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// messageHandler je to, co subscriber volá pro každou zprávu (Pipeline).
type messageHandler interface {
	Handle(ctx context.Context, plantID string, payload []byte) (string, error)
}

// Jak dlouho čekáme na SUBACK od brokera.
const subscribeTimeout = 10 * time.Second

// Subscriber drží odběr topicu s telemetrií a předává zprávy pipeline.
//
// Subscribe posíláme v OnConnect handleru, ne jednou při startu.
// Paho se po výpadku sám připojí znovu (auto-reconnect) a odběr se tím obnoví.
type Subscriber struct {
	ctx     context.Context // zrušen při shutdownu, zprávy v běhu se opustí
	topic   string
	qos     byte
	handler messageHandler
	logger  *slog.Logger

	// ready dostane výsledek prvního subscribe (startup ho čeká).
	ready chan error
}

// NewSubscriber - konstruktor
func NewSubscriber(ctx context.Context, topic string, qos byte, h messageHandler, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		ctx:     ctx,
		topic:   topic,
		qos:     qos,
		handler: h,
		logger:  logger,
		ready:   make(chan error, 1),
	}
}

// Configure zaregistruje handlery do MQTT options. Volat před mqtt.NewClient.
func (s *Subscriber) Configure(opts *mqtt.ClientOptions) {
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Error("Spojení s MQTT ztraceno", "error", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		s.logger.Warn("Obnovuji spojení s MQTT...")
	})
}

// WaitReady počká na výsledek prvního subscribe.
func (s *Subscriber) WaitReady(timeout time.Duration) error {
	select {
	case err := <-s.ready:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("subscribe na %s nedoběhl do %s", s.topic, timeout)
	}
}

func (s *Subscriber) onConnect(c mqtt.Client) {
	s.logger.Info("Připojeno k MQTT, odebírám", "topic", s.topic, "qos", s.qos)

	token := c.Subscribe(s.topic, s.qos, s.onMessage)
	var err error
	if !token.WaitTimeout(subscribeTimeout) {
		err = fmt.Errorf("subscribe na %s: timeout", s.topic)
	} else {
		err = token.Error()
	}

	if err != nil {
		s.logger.Error("Subscribe selhal", "topic", s.topic, "error", err)
	} else {
		s.logger.Info("Poslouchám na topicu", "topic", s.topic)
	}

	// Neblokující zápis: po reconnectu už výsledek nikdo nečte.
	select {
	case s.ready <- err:
	default:
	}
}

// onMessage je callback pro každou doručenou zprávu.
// Nic zde nesmí shodit proces ani zrušit odběr. Chyby jen logujeme a zprávu zahodíme.
func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()

	plantID, err := ParsePlantTopic(topic)
	if err != nil {
		s.logger.Warn("Ignoruji zprávu se špatným formátem topicu", "topic", topic, "error", err)
		return
	}

	docID, err := s.handler.Handle(s.ctx, plantID, msg.Payload())
	switch {
	case errors.Is(err, ErrInvalidPayload):
		s.logger.Warn("Zpráva odmítnuta", "topic", topic, "plant_id", plantID, "důvod", err)
	case err != nil:
		// Zpráva se považuje za vyřízenou. Případné opětovné doručení
		// od brokera je bezpečné díky idempotentnímu upsertu.
		s.logger.Error("Chyba při ukládání měření", "topic", topic, "plant_id", plantID,
			"op", "upsert", "duplicate", msg.Duplicate(), "error", err)
	default:
		s.logger.Debug("Měření uloženo", "plant_id", plantID, "doc_id", docID)
	}
}
