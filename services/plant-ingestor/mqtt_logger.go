package main

import (
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MqttLogWriter implementuje rozhraní io.Writer.
// Vše, co se do něj zapíše, se odešle do MQTT (logs/<služba>), kde to sebere log collector.
//
// Klient se připojuje až po vytvoření loggeru (logger potřebujeme dřív než MQTT).
// Do té doby, a kdykoliv je spojení dole, writer zprávy do MQTT tiše zahazuje.
type MqttLogWriter struct {
	topic string

	mu     sync.RWMutex
	client mqtt.Client
}

// NewMqttLogWriter vytvoří novou instanci writeru.
// Topic bude např. "logs/plant-ingestor".
func NewMqttLogWriter(serviceName string) *MqttLogWriter {
	return &MqttLogWriter{
		topic: fmt.Sprintf("logs/%s", serviceName),
	}
}

// Attach připojí MQTT klienta. Od této chvíle se logy posílají i do MQTT.
func (w *MqttLogWriter) Attach(client mqtt.Client) {
	w.mu.Lock()
	w.client = client
	w.mu.Unlock()
}

// Write je metoda vyžadovaná rozhraním io.Writer.
// slog ji zavolá pokaždé, když chce něco zalogovat.
func (w *MqttLogWriter) Write(p []byte) (n int, err error) {
	w.mu.RLock()
	client := w.client
	w.mu.RUnlock()

	if client == nil || !client.IsConnectionOpen() {
		return len(p), nil
	}

	// Payload musíme zkopírovat, protože 'p' se může změnit.
	payload := make([]byte, len(p))
	copy(payload, p)

	// Token.Wait() NEVOLÁME, aby logování nezpomalovalo aplikaci (fire-and-forget).
	client.Publish(w.topic, 0, false, payload)

	return len(p), nil
}
