package store

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openStore vrací prázdné úložiště, které zná předané kolekce.
type openStore func(t *testing.T, keys KeyFields) Store

// testCollections vrací unikátní názvy kolekcí, aby se běhy nad sdílenou
// databází navzájem neviděly.
func testCollections() (plantsColl, readingsColl string, keys KeyFields) {
	suffix := uuid.NewString()[:8]
	plantsColl, readingsColl = "plants_"+suffix, "readings_"+suffix
	return plantsColl, readingsColl, KeyFields{plantsColl: "plant_id", readingsColl: "sensor_data_id"}
}

// runStoreConformance ověří chování, které musí mít každá implementace Store.
func runStoreConformance(t *testing.T, open openStore) {
	t.Run("CreateAndFind", func(t *testing.T) {
		ctx := context.Background()
		plantsColl, _, keys := testCollections()
		s := open(t, keys)

		created, err := s.Create(ctx, plantsColl, Fields{"plant_id": "p1", "name": "p1"})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, plantsColl, created.Collection)
		assert.Equal(t, "p1", created.Data["name"])

		found, ok, err := s.FindByNaturalKey(ctx, plantsColl, "p1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, "p1", found.Data["name"])

		_, ok, err = s.FindByNaturalKey(ctx, plantsColl, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("CreateConflict", func(t *testing.T) {
		ctx := context.Background()
		plantsColl, _, keys := testCollections()
		s := open(t, keys)

		_, err := s.Create(ctx, plantsColl, Fields{"plant_id": "p1"})
		require.NoError(t, err)
		_, err = s.Create(ctx, plantsColl, Fields{"plant_id": "p1"})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("CreateRejectsNonStringKey", func(t *testing.T) {
		plantsColl, _, keys := testCollections()
		s := open(t, keys)

		_, err := s.Create(context.Background(), plantsColl, Fields{"plant_id": 42})
		assert.Error(t, err)
	})

	t.Run("UpdateMergesFields", func(t *testing.T) {
		ctx := context.Background()
		_, readingsColl, keys := testCollections()
		s := open(t, keys)

		doc, err := s.Create(ctx, readingsColl, Fields{"sensor_data_id": "a", "temperature": 20, "is_current": true})
		require.NoError(t, err)

		updated, err := s.Update(ctx, readingsColl, doc.ID, Fields{"temperature": 21.5})
		require.NoError(t, err)
		assert.Equal(t, doc.ID, updated.ID)
		assert.Equal(t, 21.5, updated.Data["temperature"])
		assert.Equal(t, true, updated.Data["is_current"])
		assert.Equal(t, "a", updated.Data["sensor_data_id"])
		assert.True(t, updated.CreatedAt.Equal(doc.CreatedAt))
		assert.False(t, updated.UpdatedAt.Before(doc.UpdatedAt))

		found, ok, err := s.FindByNaturalKey(ctx, readingsColl, "a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, updated.Data, found.Data)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		_, readingsColl, keys := testCollections()
		s := open(t, keys)

		_, err := s.Update(context.Background(), readingsColl, uuid.NewString(), Fields{"x": 1})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdateMovesNaturalKey", func(t *testing.T) {
		ctx := context.Background()
		_, readingsColl, keys := testCollections()
		s := open(t, keys)

		doc, err := s.Create(ctx, readingsColl, Fields{"sensor_data_id": "old"})
		require.NoError(t, err)
		_, err = s.Create(ctx, readingsColl, Fields{"sensor_data_id": "taken"})
		require.NoError(t, err)

		_, err = s.Update(ctx, readingsColl, doc.ID, Fields{"sensor_data_id": "taken"})
		assert.ErrorIs(t, err, ErrConflict)

		_, err = s.Update(ctx, readingsColl, doc.ID, Fields{"sensor_data_id": "new"})
		require.NoError(t, err)

		_, ok, err := s.FindByNaturalKey(ctx, readingsColl, "old")
		require.NoError(t, err)
		assert.False(t, ok)
		found, ok, err := s.FindByNaturalKey(ctx, readingsColl, "new")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, doc.ID, found.ID)
	})

	t.Run("ListFiltersAndLimits", func(t *testing.T) {
		ctx := context.Background()
		plantsColl, readingsColl, keys := testCollections()
		s := open(t, keys)

		for i, c := range []struct {
			plant   string
			current bool
		}{{"p1", true}, {"p1", false}, {"p1", true}, {"p2", true}} {
			_, err := s.Create(ctx, readingsColl, Fields{
				"sensor_data_id": string(rune('a' + i)),
				"plant_id":       c.plant,
				"is_current":     c.current,
			})
			require.NoError(t, err)
		}
		// stejné pole v jiné kolekci se nesmí objevit
		_, err := s.Create(ctx, plantsColl, Fields{"plant_id": "p1"})
		require.NoError(t, err)

		docs, err := s.List(ctx, readingsColl, Filter{"plant_id": "p1", "is_current": true}, 10)
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		docs, err = s.List(ctx, readingsColl, Filter{"plant_id": "p1", "is_current": false}, 0)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "b", docs[0].Data["sensor_data_id"])

		docs, err = s.List(ctx, readingsColl, Filter{"plant_id": "p1", "is_current": true}, 1)
		require.NoError(t, err)
		assert.Len(t, docs, 1)

		// limit 0 = bez limitu
		docs, err = s.List(ctx, readingsColl, nil, 0)
		require.NoError(t, err)
		assert.Len(t, docs, 4)

		docs, err = s.List(ctx, readingsColl, Filter{"plant_id": "nobody"}, 0)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("FindOrCreateUnderConcurrency", func(t *testing.T) {
		ctx := context.Background()
		plantsColl, _, keys := testCollections()
		s := open(t, keys)

		const workers = 8
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			ids      = map[string]bool{}
			outcomes = map[Outcome]int{}
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				doc, outcome, err := FindOrCreate(ctx, s, plantsColl, "p1", Fields{"plant_id": "p1", "name": "p1"})
				assert.NoError(t, err)

				mu.Lock()
				defer mu.Unlock()
				ids[doc.ID] = true
				outcomes[outcome]++
			}()
		}
		wg.Wait()

		assert.Len(t, ids, 1)
		assert.Equal(t, 1, outcomes[Created])
		assert.Equal(t, workers-1, outcomes[Found])
	})
}
