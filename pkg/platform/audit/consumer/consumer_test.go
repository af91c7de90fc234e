package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "swasthya/pkg/platform/audit"
)

type fakeStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]audit.Event
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: make(map[uuid.UUID]audit.Event)}
}

func (s *fakeStore) AppendWithID(_ context.Context, eventID uuid.UUID, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, exists := s.events[eventID]; exists {
		return nil
	}
	s.events[eventID] = event
	return nil
}

func newMaterializer(store Store) *Materializer {
	return &Materializer{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func recordFor(t *testing.T, p payload) *kgo.Record {
	t.Helper()
	value, err := json.Marshal(p)
	require.NoError(t, err)
	return &kgo.Record{Key: []byte(p.Action), Value: value}
}

func TestMaterialize_WritesEvent(t *testing.T) {
	store := newFakeStore()
	m := newMaterializer(store)

	eventID := uuid.New()
	occurred := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	record := recordFor(t, payload{
		ID:        eventID.String(),
		Timestamp: occurred.Format(time.RFC3339Nano),
		Actor:     "donor@example.com",
		Subject:   "req-1",
		Action:    string(audit.EventRequestAccepted),
		RequestID: "req-abc",
	})

	require.NoError(t, m.materialize(context.Background(), record))

	event, ok := store.events[eventID]
	require.True(t, ok)
	assert.Equal(t, "donor@example.com", event.Actor)
	assert.Equal(t, string(audit.EventRequestAccepted), event.Action)
	assert.Equal(t, "req-abc", event.RequestID)
	assert.True(t, event.Timestamp.Equal(occurred))
}

// Malformed records commit and move on; replaying them can never succeed.
func TestMaterialize_MalformedPayloadSkipped(t *testing.T) {
	store := newFakeStore()
	m := newMaterializer(store)

	record := &kgo.Record{Key: []byte("request_created"), Value: []byte("{not json")}
	require.NoError(t, m.materialize(context.Background(), record))
	assert.Empty(t, store.events)
}

func TestMaterialize_MissingEventIDSkipped(t *testing.T) {
	store := newFakeStore()
	m := newMaterializer(store)

	record := recordFor(t, payload{
		Actor:  "donor@example.com",
		Action: string(audit.EventRequestCreated),
	})
	require.NoError(t, m.materialize(context.Background(), record))
	assert.Empty(t, store.events)
}

// A store failure must surface so the fetch is not committed and replays.
func TestMaterialize_StoreFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.err = fmt.Errorf("connection refused")
	m := newMaterializer(store)

	record := recordFor(t, payload{
		ID:     uuid.New().String(),
		Action: string(audit.EventRequestCreated),
	})
	require.Error(t, m.materialize(context.Background(), record))
}

func TestMaterialize_BadTimestampFallsBackToNow(t *testing.T) {
	store := newFakeStore()
	m := newMaterializer(store)

	eventID := uuid.New()
	before := time.Now()
	record := recordFor(t, payload{
		ID:        eventID.String(),
		Timestamp: "yesterday-ish",
		Action:    string(audit.EventRequestReaped),
	})
	require.NoError(t, m.materialize(context.Background(), record))

	event, ok := store.events[eventID]
	require.True(t, ok)
	assert.False(t, event.Timestamp.Before(before))
}
