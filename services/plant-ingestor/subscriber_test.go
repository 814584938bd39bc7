package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handledCall struct {
	plantID string
	payload string
}

type recordingHandler struct {
	mu    sync.Mutex
	calls []handledCall
	err   error
}

func (h *recordingHandler) Handle(_ context.Context, plantID string, payload []byte) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, handledCall{plantID: plantID, payload: string(payload)})
	return "doc", h.err
}

func TestSubscriberHandsOffPlantIDAndPayload(t *testing.T) {
	h := &recordingHandler{}
	s := NewSubscriber(context.Background(), "plants/+/telemetry", 1, h, discardLogger())

	s.onMessage(nil, fakeMessage{topic: "plants/greenhouse-12/telemetry", payload: []byte(`{"x":1}`)})

	require.Len(t, h.calls, 1)
	assert.Equal(t, handledCall{plantID: "greenhouse-12", payload: `{"x":1}`}, h.calls[0])
}

func TestSubscriberDropsMalformedTopic(t *testing.T) {
	h := &recordingHandler{}
	s := NewSubscriber(context.Background(), "plants/+/telemetry", 1, h, discardLogger())

	s.onMessage(nil, fakeMessage{topic: "plants//telemetry", payload: []byte(`{}`)})
	s.onMessage(nil, fakeMessage{topic: "garbage", payload: []byte(`{}`)})

	assert.Empty(t, h.calls)
}

func TestSubscriberSurvivesHandlerErrors(t *testing.T) {
	for _, err := range []error{ErrInvalidPayload, errors.New("db down")} {
		h := &recordingHandler{err: err}
		s := NewSubscriber(context.Background(), "plants/+/telemetry", 1, h, discardLogger())

		assert.NotPanics(t, func() {
			s.onMessage(nil, fakeMessage{topic: "plants/p1/telemetry", payload: []byte(`{}`)})
			s.onMessage(nil, fakeMessage{topic: "plants/p1/telemetry", payload: []byte(`{}`)})
		})
		assert.Len(t, h.calls, 2)
	}
}

func TestSubscriberEndToEndWithPipeline(t *testing.T) {
	st := newTestStore()
	s := NewSubscriber(context.Background(), "plants/+/telemetry", 1, newTestPipeline(t, st), discardLogger())

	payload := []byte(`{"timestamp":"2024-01-01T00:00:00Z","temperature":20,"light":10,"humidity":30}`)
	// at-least-once: broker zprávu doručí dvakrát
	s.onMessage(nil, fakeMessage{topic: "plants/p1/telemetry", payload: payload})
	s.onMessage(nil, fakeMessage{topic: "plants/p1/telemetry", payload: payload})

	assert.Len(t, allReadings(t, st, "p1"), 1)
	assert.Len(t, currentReadings(t, st, "p1"), 1)
}

func TestSubscriberSubscribesOnEveryConnect(t *testing.T) {
	client := &fakeClient{connected: true}
	s := NewSubscriber(context.Background(), "plants/+/telemetry", 1, &recordingHandler{}, discardLogger())

	s.onConnect(client)
	require.NoError(t, s.WaitReady(time.Second))

	// reconnect: odběr se obnoví, ready kanál už nikdo nečte a nesmí blokovat
	s.onConnect(client)
	assert.Equal(t, []string{"plants/+/telemetry", "plants/+/telemetry"}, client.subscribed)
}

func TestSubscriberReportsSubscribeFailure(t *testing.T) {
	client := &fakeClient{connected: true, subscribeErr: errors.New("not authorized")}
	s := NewSubscriber(context.Background(), "plants/+/telemetry", 1, &recordingHandler{}, discardLogger())

	s.onConnect(client)
	assert.EqualError(t, s.WaitReady(time.Second), "not authorized")
}

func TestSubscriberWaitReadyTimeout(t *testing.T) {
	s := NewSubscriber(context.Background(), "plants/+/telemetry", 1, &recordingHandler{}, discardLogger())
	assert.Error(t, s.WaitReady(10*time.Millisecond))
}
