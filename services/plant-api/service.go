package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"plant-telemetry/internal/plants"
	"plant-telemetry/internal/store"
)

// currentReader čte poslední hodnotu z hot storage (cache.Current).
type currentReader interface {
	Get(ctx context.Context, plantID string) (plants.Reading, bool, error)
}

// Service drží úložiště a cache a obsahuje metody pro získání dat.
type Service struct {
	store      store.Store
	plantsColl string
	sensorColl string
	cache      currentReader // nil = bez Valkey, vše z DB
	logger     *slog.Logger
}

// NewService je konstruktor (Dependency Injection).
func NewService(s store.Store, plantsColl, sensorColl string, c currentReader, logger *slog.Logger) *Service {
	return &Service{store: s, plantsColl: plantsColl, sensorColl: sensorColl, cache: c, logger: logger}
}

// ListPlants vrací seznam rostlin obohacený o aktuální hodnoty z cache.
// Kombinuje záznamy z úložiště (metadata) a Valkey (live value).
func (s *Service) ListPlants(ctx context.Context) ([]PlantDTO, error) {
	docs, err := s.store.List(ctx, s.plantsColl, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("selhal výpis rostlin: %w", err)
	}

	out := make([]PlantDTO, 0, len(docs))
	for _, doc := range docs {
		dto := PlantDTO{Plant: plants.PlantFromDocument(doc)}

		// Chybějící nebo nedostupná cache není chyba, hodnota zůstane nil.
		if s.cache != nil {
			r, ok, err := s.cache.Get(ctx, dto.PlantID)
			if err != nil {
				s.logger.Warn("Chyba čtení z Valkey", "plant_id", dto.PlantID, "error", err)
			} else if ok {
				dto.Current = &r
			}
		}
		out = append(out, dto)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PlantID < out[j].PlantID })
	return out, nil
}

// GetCurrent vrací aktuální měření rostliny. Nejdřív cache, pak úložiště.
// Vrací store.ErrNotFound, pokud rostlina žádné aktuální měření nemá.
func (s *Service) GetCurrent(ctx context.Context, plantID string) (plants.Reading, error) {
	if s.cache != nil {
		r, ok, err := s.cache.Get(ctx, plantID)
		switch {
		case err != nil:
			s.logger.Warn("Chyba čtení z Valkey, čtu z DB", "plant_id", plantID, "error", err)
		case ok:
			return r, nil
		}
	}

	docs, err := s.store.List(ctx, s.sensorColl, store.Filter{
		plants.FieldPlantID:   plantID,
		plants.FieldIsCurrent: true,
	}, 0)
	if err != nil {
		return plants.Reading{}, fmt.Errorf("chyba načítání aktuálního měření: %w", err)
	}
	if len(docs) == 0 {
		return plants.Reading{}, store.ErrNotFound
	}

	// Než vynucení doběhne, může být aktuálních víc. Vyhrává nejnovější timestamp.
	best := plants.ReadingFromDocument(docs[0])
	for _, doc := range docs[1:] {
		if r := plants.ReadingFromDocument(doc); r.Timestamp.After(best.Timestamp) {
			best = r
		}
	}
	return best, nil
}
