package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// newHealthHandler vrací handler pro Docker/K8s healthcheck.
// Dokud není MQTT spojení otevřené, hlásíme 503.
func newHealthHandler(isConnected func() bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if !isConnected() {
			http.Error(w, "MQTT disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// startHealthServer spustí jednoduchý HTTP endpoint a zastaví ho při zrušení ctx.
func startHealthServer(ctx context.Context, port string, h http.Handler, logger *slog.Logger) {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("Health server běží", "port", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Health server spadl", "error", err)
	}
}
