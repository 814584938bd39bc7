package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func main() {
	// 1. Inicializace vlastního loggeru (pouze na stdout, abychom viděli, že collector běží)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := LoadEnvFile(".env"); err != nil {
		logger.Error("Kritická chyba", "error", err)
		os.Exit(1)
	}
	cfg := LoadConfig()
	logger.Info("Startuji Log Collector", "dir", cfg.LogDir, "topic", cfg.LogTopic)

	// 2. Příprava adresáře pro logy
	collector, err := NewCollector(cfg.LogDir, logger)
	if err != nil {
		logger.Error("Kritická chyba", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Připojení k MQTT. Odběr v OnConnect, aby přežil reconnect.
	opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker).SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(cfg.LogTopic, 0, collector.HandleMessage); token.Wait() && token.Error() != nil {
			logger.Error("Subscribe failed", "error", token.Error())
			return
		}
		logger.Info("Poslouchám logy", "topic", cfg.LogTopic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("Spojení s MQTT ztraceno", "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Error("MQTT Connection failed", "error", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	// 4. Wait loop
	<-ctx.Done()
	logger.Info("Ukončuji Log Collector")
}
