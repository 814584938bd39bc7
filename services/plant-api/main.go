package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plant-telemetry/internal/cache"
	"plant-telemetry/internal/plants"
	"plant-telemetry/internal/store"
)

func main() {
	if err := LoadEnvFile(".env"); err != nil {
		slog.Error("Kritická chyba", "error", err)
		os.Exit(1)
	}

	// 1. Načtení konfigurace
	cfg := LoadConfig()

	// 2. Nastavení logování na JSON (standard pro kontejnery)
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	logger.Info("Startuji Plant API", "port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Připojení k úložišti (Postgres). Schéma zakládá ingestor.
	pg, err := store.NewPostgres(ctx, cfg.PostgresURL, plants.KeyFields(cfg.PlantsColl, cfg.SensorColl))
	if err != nil {
		logger.Error("Kritická chyba: Nelze se připojit k DB", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	// 4. Připojení k Valkey (volitelně)
	var current currentReader
	if cfg.ValkeyAddr != "" {
		c, err := cache.Dial(ctx, cfg.ValkeyAddr, 0)
		if err != nil {
			logger.Error("Kritická chyba: Nelze se připojit k Valkey", "error", err)
			os.Exit(1)
		}
		defer c.Close()
		current = c
	}

	// 5. Inicializace komponent (Wiring)
	svc := NewService(pg, cfg.PlantsColl, cfg.SensorColl, current, logger)
	api := NewAPIHandler(svc, logger)

	// 6. Nastavení Routeru
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	// 7. Spuštění HTTP serveru
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           newCorsHandler(mux, cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("HTTP server naslouchá", "address", server.Addr)

	// ListenAndServe je blokující volání - zde program "visí" a obsluhuje requesty.
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server spadl", "error", err)
		os.Exit(1)
	}
	logger.Info("Server ukončen")
}
