package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	audit "swasthya/pkg/platform/audit"
	txcontext "swasthya/pkg/platform/tx"

	"github.com/google/uuid"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table inside the caller's transaction
// and relayed to Kafka by the outbox relay. The consumer-side materializer
// writes them back into audit_events for querying.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure relayed to Kafka. Field names match
// audit.Event so the consumer can deserialize without a mapping layer.
type outboxPayload struct {
	ID        string `json:"ID"`
	Timestamp string `json:"Timestamp"`
	Actor     string `json:"Actor"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Detail    string `json:"Detail,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table. If the context carries a
// transaction the insert rides it, so the event commits atomically with the
// state change it describes.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	payload := outboxPayload{
		ID:        eventID.String(),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Actor:     event.Actor,
		Subject:   event.Subject,
		Action:    event.Action,
		Detail:    event.Detail,
		RequestID: event.RequestID,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		"audit",
		event.Subject,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// AppendWithID inserts an audit event into the audit_events table with a
// specific ID. Used by the Kafka materializer to land consumed events.
// Idempotent via ON CONFLICT DO NOTHING, so at-least-once delivery is safe.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	query := `
		INSERT INTO audit_events (id, actor, subject, action, detail, request_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		eventID,
		event.Actor,
		event.Subject,
		event.Action,
		event.Detail,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByActor returns events emitted for a specific actor, newest first.
func (s *Store) ListByActor(ctx context.Context, actor string) ([]audit.Event, error) {
	query := `
		SELECT actor, subject, action, detail, request_id, occurred_at
		FROM audit_events
		WHERE actor = $1
		ORDER BY occurred_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, actor)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT actor, subject, action, detail, request_id, occurred_at
		FROM audit_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var event audit.Event
		err := rows.Scan(
			&event.Actor,
			&event.Subject,
			&event.Action,
			&event.Detail,
			&event.RequestID,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}

// OutboxEntry is a pending outbox row awaiting relay to Kafka.
type OutboxEntry struct {
	ID        uuid.UUID
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// FetchUnpublished returns up to limit outbox entries that have not been
// relayed yet, oldest first.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `
		SELECT id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		if err := rows.Scan(&entry.ID, &entry.EventType, &entry.Payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps an outbox entry as relayed.
func (s *Store) MarkPublished(ctx context.Context, entryID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = $2 WHERE id = $1`,
		entryID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("mark outbox entry published: %w", err)
	}
	return nil
}
