// Package store je abstraktní dokumentové úložiště (Persistence Gateway).
// Ingestor i API s ním pracují jen přes rozhraní Store, konkrétní backend
// (Postgres/TimescaleDB nebo paměť) se volí při startu.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound vrací Update, pokud dokument s daným ID neexistuje.
	ErrNotFound = errors.New("document not found")

	// ErrConflict vrací Create, pokud v kolekci už existuje dokument se stejným přirozeným klíčem.
	ErrConflict = errors.New("natural key already exists")
)

// Fields jsou data dokumentu. Hodnoty musí jít serializovat do JSONu.
type Fields map[string]any

// Filter je rovnostní filtr nad poli dokumentu (všechny podmínky platí zároveň).
type Filter map[string]any

// Document je jeden uložený záznam.
// ID je interní identifikátor generovaný úložištěm, ne přirozený klíč.
type Document struct {
	ID         string
	Collection string
	Data       Fields
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store je rozhraní, které konzumují všechny komponenty pipeline.
// Všechny operace je bezpečné zopakovat, úložiště samo nic nededuplikuje
// (kromě unikátního přirozeného klíče).
type Store interface {
	// FindByNaturalKey vrací (doc, true, nil) pokud existuje, (Document{}, false, nil) pokud ne.
	FindByNaturalKey(ctx context.Context, collection, key string) (Document, bool, error)
	Create(ctx context.Context, collection string, fields Fields) (Document, error)
	// Update sloučí fields do existujícího dokumentu (last-write-wins po polích).
	Update(ctx context.Context, collection, id string, fields Fields) (Document, error)
	// List vrací nejvýše limit dokumentů odpovídajících filtru, nejnovější první.
	List(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error)
}

// KeyFields mapuje kolekci na název pole, které je jejím přirozeným klíčem.
// Příklad: {"plants": "plant_id", "plant_sensor_data": "sensor_data_id"}
type KeyFields map[string]string

// naturalKey vytáhne přirozený klíč z polí dokumentu. Kolekce bez klíče vrací "".
func (k KeyFields) naturalKey(collection string, fields Fields) (string, error) {
	field, ok := k[collection]
	if !ok {
		return "", nil
	}
	raw, ok := fields[field]
	if !ok {
		return "", nil
	}
	key, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("pole %q musí být string, je %T", field, raw)
	}
	return key, nil
}

// normalize převede pole na tvar, jaký vrací JSONB (čísla float64, časy stringy).
// Díky tomu se paměťové úložiště chová stejně jako Postgres.
func normalize(fields map[string]any) (Fields, error) {
	if len(fields) == 0 {
		return Fields{}, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("pole nejdou serializovat: %w", err)
	}
	out := Fields{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
