package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "swasthya/pkg/platform/audit"
)

// Store is the materialization target. AppendWithID must be idempotent on the
// event ID because the relay delivers at least once.
type Store interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Materializer consumes the audit topic and writes events into the queryable
// audit_events table. The outbox is the write path and Kafka the durable log;
// this worker closes the loop so ListByActor and ListRecent see history.
type Materializer struct {
	client *kgo.Client
	store  Store
	logger *slog.Logger
}

// NewMaterializer joins the consumer group on the audit topic.
func NewMaterializer(brokers []string, topic, group string, store Store, logger *slog.Logger) (*Materializer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Materializer{client: client, store: store, logger: logger}, nil
}

// payload mirrors the outbox JSON the relay publishes. The event ID travels
// in the payload; the record key carries the event type.
type payload struct {
	ID        string `json:"ID"`
	Timestamp string `json:"Timestamp"`
	Actor     string `json:"Actor"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Detail    string `json:"Detail"`
	RequestID string `json:"RequestID"`
}

// Run polls until the context is cancelled. Offsets are committed only after
// the whole fetch has been materialized; a store failure replays the fetch,
// which the idempotent insert absorbs.
func (m *Materializer) Run(ctx context.Context) error {
	for {
		fetches := m.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			m.logger.WarnContext(ctx, "audit fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		failed := false
		fetches.EachRecord(func(record *kgo.Record) {
			if failed {
				return
			}
			if err := m.materialize(ctx, record); err != nil {
				m.logger.WarnContext(ctx, "audit materialization failed", "error", err)
				failed = true
			}
		})
		if failed {
			continue
		}
		if err := m.client.CommitUncommittedOffsets(ctx); err != nil {
			m.logger.WarnContext(ctx, "audit offset commit failed", "error", err)
		}
	}
}

// materialize writes one record into the store. Malformed records are logged
// and dropped; they would fail identically on every replay.
func (m *Materializer) materialize(ctx context.Context, record *kgo.Record) error {
	var p payload
	if err := json.Unmarshal(record.Value, &p); err != nil {
		m.logger.Warn("skipping malformed audit payload",
			"key", string(record.Key),
			"error", err,
		)
		return nil
	}

	eventID, err := uuid.Parse(p.ID)
	if err != nil {
		m.logger.Warn("skipping audit payload without event id",
			"action", p.Action,
			"error", err,
		)
		return nil
	}

	event := audit.Event{
		Actor:     p.Actor,
		Subject:   p.Subject,
		Action:    p.Action,
		Detail:    p.Detail,
		RequestID: p.RequestID,
	}
	if ts, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
		event.Timestamp = ts
	} else {
		event.Timestamp = time.Now()
	}

	if err := m.store.AppendWithID(ctx, eventID, event); err != nil {
		return fmt.Errorf("materialize audit event %s: %w", eventID, err)
	}
	return nil
}

func (m *Materializer) Close() {
	m.client.Close()
}
