package store

import (
	"context"
	"errors"
	"fmt"
)

// Outcome říká, jakou větví FindOrCreate prošel.
type Outcome int

const (
	Found Outcome = iota + 1
	Created
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Created:
		return "created"
	default:
		return "unknown"
	}
}

// FindOrCreate najde dokument podle přirozeného klíče, nebo ho vytvoří z fields.
// Větev "nenalezeno" se neřeší přes chybu, ale přes bool z FindByNaturalKey.
//
// Pokud mezi lookupem a insertem stihne dokument vytvořit někdo jiný
// (duplicitní doručení zpracované souběžně), Create vrátí ErrConflict
// a my dokument načteme znovu a vrátíme ho jako Found.
func FindOrCreate(ctx context.Context, s Store, collection, key string, fields Fields) (Document, Outcome, error) {
	doc, ok, err := s.FindByNaturalKey(ctx, collection, key)
	if err != nil {
		return Document{}, 0, fmt.Errorf("lookup %s/%s: %w", collection, key, err)
	}
	if ok {
		return doc, Found, nil
	}

	doc, err = s.Create(ctx, collection, fields)
	if err == nil {
		return doc, Created, nil
	}
	if !errors.Is(err, ErrConflict) {
		return Document{}, 0, fmt.Errorf("create %s/%s: %w", collection, key, err)
	}

	doc, ok, err = s.FindByNaturalKey(ctx, collection, key)
	if err != nil {
		return Document{}, 0, fmt.Errorf("lookup po konfliktu %s/%s: %w", collection, key, err)
	}
	if !ok {
		// Konflikt hlásí klíč, který pak není k nalezení. Nemělo by nastat.
		return Document{}, 0, fmt.Errorf("create %s/%s: %w", collection, key, ErrConflict)
	}
	return doc, Found, nil
}
