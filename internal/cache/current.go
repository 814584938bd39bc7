// Package cache drží "Hot Storage" pro dashboard: poslední aktuální měření
// každé rostliny ve Valkey (Redis). Zdrojem pravdy zůstává dokumentové úložiště.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"plant-telemetry/internal/plants"
)

// Current ukládá a čte aktuální měření pod klíčem "plant:current:{plant_id}".
type Current struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCurrent obalí existujícího klienta. ttl <= 0 znamená bez expirace.
func NewCurrent(rdb *redis.Client, ttl time.Duration) *Current {
	return &Current{rdb: rdb, ttl: ttl}
}

// Dial připojí klienta k Valkey a ověří spojení.
func Dial(ctx context.Context, addr string, ttl time.Duration) (*Current, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("Valkey není dostupný: %w", err)
	}
	return NewCurrent(rdb, ttl), nil
}

// Close uzavře spojení.
func (c *Current) Close() error {
	return c.rdb.Close()
}

func key(plantID string) string {
	return fmt.Sprintf("plant:current:%s", plantID)
}

// Set přepíše poslední hodnotu rostliny. Vyhrává poslední zápis,
// stejně jako u is_current v úložišti.
func (c *Current) Set(ctx context.Context, r plants.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key(r.PlantID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("chyba update Valkey: %w", err)
	}
	return nil
}

// Get vrací (reading, false, nil), pokud klíč neexistuje nebo vypršel.
func (c *Current) Get(ctx context.Context, plantID string) (plants.Reading, bool, error) {
	raw, err := c.rdb.Get(ctx, key(plantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return plants.Reading{}, false, nil
	}
	if err != nil {
		return plants.Reading{}, false, fmt.Errorf("chyba čtení z Valkey: %w", err)
	}

	var r plants.Reading
	if err := json.Unmarshal(raw, &r); err != nil {
		return plants.Reading{}, false, fmt.Errorf("poškozená hodnota v cache (%s): %w", key(plantID), err)
	}
	return r, true, nil
}
