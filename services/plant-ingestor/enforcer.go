package main

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"plant-telemetry/internal/plants"
	"plant-telemetry/internal/store"
)

// DemotionFailure je jeden neúspěšný pokus o shození is_current.
type DemotionFailure struct {
	DocID string
	Err   error
}

// EnforceResult shrnuje jeden průchod vynucení.
type EnforceResult struct {
	Skipped bool              // vynucení je vypnuté v konfiguraci
	Stale   int               // kolik jiných "aktuálních" měření jsme našli
	Demoted int               // kolik se jich podařilo shodit na false
	Failed  []DemotionFailure // zbytek, dožene to příští průchod
}

// CurrencyEnforcer drží invariant "nejvýše jedno is_current měření na rostlinu".
// Neběží v transakci ani pod zámkem. Souběžné průchody pro stejnou rostlinu
// mohou krátce nechat 0 nebo více aktuálních měření, srovná to další zpráva.
type CurrencyEnforcer struct {
	store       store.Store
	collection  string
	enabled     bool
	pageSize    int
	concurrency int
	logger      *slog.Logger
}

// NewCurrencyEnforcer - konstruktor. enabled=false z něj udělá no-op.
// concurrency < 1 se bere jako 1, errgroup s limitem 0 by první Go zablokoval navždy.
func NewCurrencyEnforcer(s store.Store, collection string, enabled bool, pageSize, concurrency int, logger *slog.Logger) *CurrencyEnforcer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CurrencyEnforcer{
		store:       s,
		collection:  collection,
		enabled:     enabled,
		pageSize:    pageSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Enforce shodí is_current na všech aktuálních měřeních rostliny kromě keepID.
//
// Načítáme jen jednu stránku (pageSize). Rostlina s víc "aktuálními" měřeními,
// než se vejde na stránku, potřebuje víc průchodů. Každá další zpráva jeden přidá.
//
// Chyby se jen logují. Vynucení nikdy neshodí upsert, který ho spustil.
func (e *CurrencyEnforcer) Enforce(ctx context.Context, plantID, keepID string) EnforceResult {
	if !e.enabled {
		return EnforceResult{Skipped: true}
	}

	filter := store.Filter{
		plants.FieldPlantID:   plantID,
		plants.FieldIsCurrent: true,
	}
	current, err := e.store.List(ctx, e.collection, filter, e.pageSize)
	if err != nil {
		e.logger.Error("Nelze načíst aktuální měření", "plant_id", plantID, "op", "enforce.list", "error", err)
		return EnforceResult{}
	}

	var (
		res EnforceResult
		mu  sync.Mutex
		g   errgroup.Group
	)
	g.SetLimit(e.concurrency)

	for _, doc := range current {
		if doc.ID == keepID {
			continue
		}
		res.Stale++

		g.Go(func() error {
			_, err := e.store.Update(ctx, e.collection, doc.ID, store.Fields{plants.FieldIsCurrent: false})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, DemotionFailure{DocID: doc.ID, Err: err})
				return nil // chybu nepropagujeme, ostatní updaty musí doběhnout
			}
			res.Demoted++
			return nil
		})
	}
	_ = g.Wait() // úlohy chybu nikdy nevrací

	for _, f := range res.Failed {
		e.logger.Error("Nepodařilo se shodit is_current", "plant_id", plantID, "doc_id", f.DocID, "op", "enforce.demote", "error", f.Err)
	}
	if res.Stale > 0 {
		e.logger.Debug("Vynucení is_current dokončeno", "plant_id", plantID, "keep", keepID,
			"stale", res.Stale, "demoted", res.Demoted, "failed", len(res.Failed))
	}
	return res
}
