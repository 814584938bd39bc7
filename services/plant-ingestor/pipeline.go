package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"plant-telemetry/internal/plants"
	"plant-telemetry/internal/store"
)

// currentCache je volitelné zrcadlo poslední hodnoty (Valkey).
type currentCache interface {
	Set(ctx context.Context, r plants.Reading) error
}

// Pipeline zapouzdřuje zpracování jedné zprávy:
// normalizace -> (registrace rostliny, upsert měření) -> vynucení is_current -> cache.
type Pipeline struct {
	registrar *PlantRegistrar // nil = UPSERT_PLANT_ON_SEEN vypnuto
	upserter  *ReadingUpserter
	cache     currentCache // nil = bez Valkey
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline - konstruktor. registrar i cache mohou být nil.
func NewPipeline(registrar *PlantRegistrar, upserter *ReadingUpserter, cache currentCache, timeout time.Duration, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		registrar: registrar,
		upserter:  upserter,
		cache:     cache,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle zpracuje payload jedné zprávy a vrátí ID uloženého dokumentu.
//
// Chyby:
//   - ErrInvalidPayload: zprávu zahazujeme, volající loguje warning
//   - ostatní: chyba úložiště, zpráva se považuje za vyřízenou (žádný retry v aplikaci)
//
// Selhání registrace rostliny a cache se jen logují a upsert neblokují.
func (p *Pipeline) Handle(ctx context.Context, plantID string, payload []byte) (string, error) {
	reading, err := NormalizePayload(payload, p.now())
	if err != nil {
		return "", err
	}
	reading.PlantID = plantID

	// Celá zpráva má jeden časový limit, aby DB operace nevisely věčně.
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.registrar != nil {
		if outcome, err := p.registrar.EnsurePlant(ctx, plantID); err != nil {
			p.logger.Error("Registrace rostliny selhala", "plant_id", plantID, "op", "ensure_plant", "error", err)
		} else if outcome == store.Created {
			p.logger.Info("Nová rostlina založena", "plant_id", plantID)
		}
	}

	doc, err := p.upserter.Upsert(ctx, reading)
	if err != nil {
		return "", fmt.Errorf("upsert měření pro %s: %w", plantID, err)
	}

	if p.cache != nil {
		// Do cache jde přesně to, co leží v úložišti, ne vstup z normalizeru.
		if err := p.cache.Set(ctx, plants.ReadingFromDocument(doc)); err != nil {
			// Valkey není zdroj pravdy, data máme v úložišti.
			p.logger.Warn("Nelze zapsat aktuální hodnotu do cache", "plant_id", plantID, "error", err)
		}
	}

	return doc.ID, nil
}
