//go:build integration

package consumer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "swasthya/pkg/platform/audit"
	"swasthya/pkg/platform/audit/kafka"
	auditpostgres "swasthya/pkg/platform/audit/store/postgres"
	auditworker "swasthya/pkg/platform/audit/worker"
	"swasthya/pkg/testutil/containers"
)

// End to end: an event appended to the outbox travels through the relay to
// Kafka, is consumed by the materializer, and becomes queryable from the
// audit_events table.
func TestMaterializer_OutboxToQueryableEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg := containers.Postgres(t)
	rp := containers.Redpanda(t)
	require.NoError(t, pg.Truncate(ctx))

	suffix := time.Now().UnixNano()
	topic := fmt.Sprintf("audit-events-%d", suffix)
	group := fmt.Sprintf("materializer-%d", suffix)
	require.NoError(t, rp.CreateTopic(ctx, topic))

	store := auditpostgres.New(pg.DB)
	producer, err := kafka.NewProducer([]string{rp.Broker}, topic)
	require.NoError(t, err)
	defer producer.Close()

	relay := auditworker.NewRelay(store, producer, testLogger())
	go relay.Run(ctx)

	materializer, err := NewMaterializer([]string{rp.Broker}, topic, group, store, testLogger())
	require.NoError(t, err)
	defer materializer.Close()
	go materializer.Run(ctx)

	require.NoError(t, store.Append(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		Actor:     "donor@example.com",
		Subject:   "req-77",
		Action:    string(audit.EventRequestAccepted),
		RequestID: "req-xyz",
	}))

	require.Eventually(t, func() bool {
		events, err := store.ListByActor(ctx, "donor@example.com")
		return err == nil && len(events) == 1
	}, 30*time.Second, 250*time.Millisecond, "event never materialized")

	events, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventRequestAccepted), events[0].Action)
	assert.Equal(t, "req-xyz", events[0].RequestID)
}

// Replayed deliveries collapse onto one row.
func TestAppendWithID_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pg := containers.Postgres(t)
	require.NoError(t, pg.Truncate(ctx))

	store := auditpostgres.New(pg.DB)
	eventID := uuid.New()
	event := audit.Event{
		Timestamp: time.Now().UTC(),
		Actor:     "pharmacist@example.com",
		Subject:   "rx-5",
		Action:    string(audit.EventPrescriptionConfirmed),
	}

	require.NoError(t, store.AppendWithID(ctx, eventID, event))
	require.NoError(t, store.AppendWithID(ctx, eventID, event))

	events, err := store.ListByActor(ctx, "pharmacist@example.com")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
