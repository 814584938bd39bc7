package main

import (
	"context"
	"fmt"
	"time"

	"plant-telemetry/internal/plants"
	"plant-telemetry/internal/store"
)

// PlantRegistrar zajišťuje, že pro každou viděnou rostlinu existuje záznam.
type PlantRegistrar struct {
	store      store.Store
	collection string
	now        func() time.Time
}

// NewPlantRegistrar - konstruktor
func NewPlantRegistrar(s store.Store, collection string) *PlantRegistrar {
	return &PlantRegistrar{store: s, collection: collection, now: time.Now}
}

// EnsurePlant založí minimální záznam (name = plantID) pro neznámou rostlinu.
// U známé rostliny jen posune updated_at ("naposledy viděna").
func (r *PlantRegistrar) EnsurePlant(ctx context.Context, plantID string) (store.Outcome, error) {
	now := r.now()

	doc, outcome, err := store.FindOrCreate(ctx, r.store, r.collection, plantID, plants.NewPlantFields(plantID, now))
	if err != nil {
		return 0, err
	}
	if outcome == store.Created {
		return outcome, nil
	}

	touch := store.Fields{plants.FieldUpdatedAt: plants.FormatTime(now)}
	if _, err := r.store.Update(ctx, r.collection, doc.ID, touch); err != nil {
		return outcome, fmt.Errorf("touch rostliny %s: %w", plantID, err)
	}
	return outcome, nil
}
