package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"plant-telemetry/internal/store"
)

// APIHandler sdružuje metody pro obsluhu HTTP požadavků.
// Drží referenci na Service (logika) a Logger.
type APIHandler struct {
	svc    *Service
	logger *slog.Logger
}

// NewAPIHandler vytváří novou instanci handleru.
func NewAPIHandler(svc *Service, logger *slog.Logger) *APIHandler {
	return &APIHandler{svc: svc, logger: logger}
}

// RegisterRoutes mapuje URL cesty na konkrétní Go funkce.
// Využíváme nový router v Go 1.22+, který podporuje metody a wildcardy.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	// Seznam rostlin (Dashboard)
	mux.HandleFunc("GET /api/plants", h.handleListPlants)

	// Aktuální měření jedné rostliny. {plantID} je Path Value.
	mux.HandleFunc("GET /api/plants/{plantID}/current", h.handleGetCurrent)

	// Jednoduchý healthcheck pro Docker
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
}

// handleListPlants: GET /api/plants
func (h *APIHandler) handleListPlants(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPlants(r.Context())
	if err != nil {
		h.logger.Error("Chyba při získávání rostlin", "error", err)
		http.Error(w, "Interní chyba serveru", http.StatusInternalServerError)
		return
	}
	writeJSON(w, list, h.logger)
}

// handleGetCurrent: GET /api/plants/{plantID}/current
func (h *APIHandler) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	plantID := r.PathValue("plantID")

	reading, err := h.svc.GetCurrent(r.Context(), plantID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Rostlina nemá žádné aktuální měření", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Chyba při získávání aktuálního měření", "plant_id", plantID, "error", err)
		http.Error(w, "Chyba při načítání dat", http.StatusInternalServerError)
		return
	}
	writeJSON(w, reading, h.logger)
}

func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Chyba při zápisu JSON odpovědi", "error", err)
	}
}

// newCorsHandler obalí router CORS middlewarem, aby frontend z jiné domény
// (např. React appka na localhost:3000) mohl API volat.
func newCorsHandler(next http.Handler, origins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(next)
}
