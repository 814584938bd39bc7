package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"plant-telemetry/internal/plants"
	"plant-telemetry/internal/store"
)

const (
	testPlantsColl = "plants"
	testSensorColl = "plant_sensor_data"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestStore() *store.Memory {
	return store.NewMemory(plants.KeyFields(testPlantsColl, testSensorColl))
}

// fixedClock vrací pokaždé čas o sekundu pozdější.
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// newTestPipeline sestaví pipeline nad paměťovým úložištěm se zapnutým vynucením.
func newTestPipeline(t *testing.T, s store.Store) *Pipeline {
	t.Helper()
	logger := discardLogger()
	enforcer := NewCurrencyEnforcer(s, testSensorColl, true, 100, 4, logger)
	upserter := NewReadingUpserter(s, testSensorColl, enforcer)
	registrar := NewPlantRegistrar(s, testPlantsColl)
	return NewPipeline(registrar, upserter, nil, 5*time.Second, logger)
}

func currentReadings(t *testing.T, s store.Store, plantID string) []store.Document {
	t.Helper()
	docs, err := s.List(context.Background(), testSensorColl, store.Filter{
		plants.FieldPlantID:   plantID,
		plants.FieldIsCurrent: true,
	}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return docs
}

func allReadings(t *testing.T, s store.Store, plantID string) []store.Document {
	t.Helper()
	docs, err := s.List(context.Background(), testSensorColl, store.Filter{plants.FieldPlantID: plantID}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return docs
}

// faultyStore obalí úložiště a umí selhat u vybraných operací.
type faultyStore struct {
	store.Store

	mu          sync.Mutex
	failUpdates map[string]bool // ID dokumentů, jejichž Update selže
	failCreate  bool
	failList    bool
	failFind    map[string]bool // kolekce, kde lookup selže
}

var errInjected = errors.New("injected failure")

func (f *faultyStore) Update(ctx context.Context, collection, id string, fields store.Fields) (store.Document, error) {
	f.mu.Lock()
	fail := f.failUpdates[id]
	f.mu.Unlock()
	if fail {
		return store.Document{}, errInjected
	}
	return f.Store.Update(ctx, collection, id, fields)
}

func (f *faultyStore) Create(ctx context.Context, collection string, fields store.Fields) (store.Document, error) {
	if f.failCreate {
		return store.Document{}, errInjected
	}
	return f.Store.Create(ctx, collection, fields)
}

func (f *faultyStore) List(ctx context.Context, collection string, filter store.Filter, limit int) ([]store.Document, error) {
	if f.failList {
		return nil, errInjected
	}
	return f.Store.List(ctx, collection, filter, limit)
}

func (f *faultyStore) FindByNaturalKey(ctx context.Context, collection, key string) (store.Document, bool, error) {
	if f.failFind[collection] {
		return store.Document{}, false, errInjected
	}
	return f.Store.FindByNaturalKey(ctx, collection, key)
}

// --- MQTT fakes ---

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	payload []byte
}

// fakeClient implementuje jen to, co používáme. Zbytek rozhraní je nil a spadl by.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	connected    bool
	subscribeErr error
	subscribed   []string
	published    []published
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Subscribe(topic string, qos byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, topic)
	return fakeToken{err: c.subscribeErr}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte)})
	return fakeToken{}
}
