package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory je úložiště v paměti procesu. Používá se pro lokální běh
// (STORE_DRIVER=memory) a v testech. Data se po restartu ztratí.
type Memory struct {
	keys KeyFields
	now  func() time.Time

	// mu chrání obě mapy. Operace jsou krátké, RWMutex stačí.
	mu   sync.RWMutex
	docs map[string]map[string]Document // kolekce -> ID -> dokument
	byNK map[string]map[string]string   // kolekce -> přirozený klíč -> ID
}

// NewMemory vytvoří prázdné paměťové úložiště.
func NewMemory(keys KeyFields) *Memory {
	return &Memory{
		keys: keys,
		now:  time.Now,
		docs: make(map[string]map[string]Document),
		byNK: make(map[string]map[string]string),
	}
}

func (m *Memory) FindByNaturalKey(ctx context.Context, collection, key string) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byNK[collection][key]
	if !ok {
		return Document{}, false, nil
	}
	return copyDoc(m.docs[collection][id]), true, nil
}

func (m *Memory) Create(ctx context.Context, collection string, fields Fields) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	data, err := normalize(fields)
	if err != nil {
		return Document{}, err
	}
	nk, err := m.keys.naturalKey(collection, data)
	if err != nil {
		return Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if nk != "" {
		if _, exists := m.byNK[collection][nk]; exists {
			return Document{}, fmt.Errorf("%s/%s: %w", collection, nk, ErrConflict)
		}
	}

	now := m.now().UTC()
	doc := Document{
		ID:         uuid.NewString(),
		Collection: collection,
		Data:       data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]Document)
		m.byNK[collection] = make(map[string]string)
	}
	m.docs[collection][doc.ID] = doc
	if nk != "" {
		m.byNK[collection][nk] = doc.ID
	}
	return copyDoc(doc), nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields Fields) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	patch, err := normalize(fields)
	if err != nil {
		return Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}

	oldNK, _ := m.keys.naturalKey(collection, doc.Data)
	merged := make(Fields, len(doc.Data)+len(patch))
	for k, v := range doc.Data {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	newNK, err := m.keys.naturalKey(collection, merged)
	if err != nil {
		return Document{}, err
	}
	if newNK != oldNK {
		if other, exists := m.byNK[collection][newNK]; exists && other != id {
			return Document{}, fmt.Errorf("%s/%s: %w", collection, newNK, ErrConflict)
		}
		delete(m.byNK[collection], oldNK)
		if newNK != "" {
			m.byNK[collection][newNK] = id
		}
	}

	doc.Data = merged
	doc.UpdatedAt = m.now().UTC()
	m.docs[collection][id] = doc
	return copyDoc(doc), nil
}

func (m *Memory) List(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want, err := normalize(filter)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	var out []Document
	for _, doc := range m.docs[collection] {
		if matches(doc.Data, want) {
			out = append(out, copyDoc(doc))
		}
	}
	m.mu.RUnlock()

	// Stejné řazení jako Postgres: nejnovější první, při shodě podle ID.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(data, want Fields) bool {
	for k, v := range want {
		got, ok := data[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}

// copyDoc vrací kopii mapy, aby volající nemohl měnit stav úložiště zvenku.
func copyDoc(doc Document) Document {
	data := make(Fields, len(doc.Data))
	for k, v := range doc.Data {
		data[k] = v
	}
	doc.Data = data
	return doc
}
