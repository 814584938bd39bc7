package main

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"plant-telemetry/internal/plants"
	"plant-telemetry/internal/store"
)

// Vše mimo [A-Za-z0-9_-] se z odvozeného klíče vyhazuje,
// aby klíč byl vždy platný identifikátor v úložišti.
var sensorIDStrip = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// MakeSensorDataID odvodí idempotentní klíč měření z ID rostliny a času.
// Příklad: ("plant#1", 2024-01-01T00:00:00Z) -> "sd_plant1_2024-01-01T000000000Z"
func MakeSensorDataID(plantID string, ts time.Time) string {
	raw := fmt.Sprintf("sd_%s_%s", plantID, plants.FormatTime(ts))
	return sensorIDStrip.ReplaceAllString(raw, "")
}

// enforcer je to, co upserter potřebuje od CurrencyEnforceru.
type enforcer interface {
	Enforce(ctx context.Context, plantID, keepID string) EnforceResult
}

// ReadingUpserter ukládá měření idempotentně podle sensor_data_id.
// Opakované doručení stejné zprávy přepíše existující dokument, nevytvoří nový.
type ReadingUpserter struct {
	store      store.Store
	collection string
	enforcer   enforcer
	now        func() time.Time
}

// NewReadingUpserter - konstruktor
func NewReadingUpserter(s store.Store, collection string, e enforcer) *ReadingUpserter {
	return &ReadingUpserter{store: s, collection: collection, enforcer: e, now: time.Now}
}

// Upsert uloží měření a vrátí uložený dokument (i s created_at původního zápisu).
// Pokud r.SensorDataID chybí, klíč se odvodí z rostliny a času měření.
// Před návratem spustí vynucení jediného is_current pro rostlinu.
func (u *ReadingUpserter) Upsert(ctx context.Context, r plants.Reading) (store.Document, error) {
	if r.SensorDataID == "" {
		r.SensorDataID = MakeSensorDataID(r.PlantID, r.Timestamp)
	}

	doc, outcome, err := store.FindOrCreate(ctx, u.store, u.collection, r.SensorDataID, r.NewReadingFields(u.now()))
	if err != nil {
		return store.Document{}, err
	}

	// Existující dokument = opakované doručení nebo oprava hodnot.
	// Přepíšeme měření a znovu ho označíme jako aktuální.
	if outcome == store.Found {
		doc, err = u.store.Update(ctx, u.collection, doc.ID, r.MeasurementFields())
		if err != nil {
			return store.Document{}, fmt.Errorf("update měření %s: %w", r.SensorDataID, err)
		}
	}

	u.enforcer.Enforce(ctx, r.PlantID, doc.ID)
	return doc, nil
}
