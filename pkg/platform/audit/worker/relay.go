package worker

import (
	"context"
	"log/slog"
	"time"

	"swasthya/pkg/platform/audit/store/postgres"
)

// Sink is where the relay delivers outbox payloads. Satisfied by kafka.Producer.
type Sink interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Relay polls the outbox table and delivers pending entries to the sink.
// Delivery is at-least-once: an entry is marked published only after the
// sink acks, so a crash between the two replays the entry.
type Relay struct {
	store    *postgres.Store
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewRelay(store *postgres.Store, sink Sink, logger *slog.Logger) *Relay {
	return &Relay{
		store:    store,
		sink:     sink,
		logger:   logger,
		interval: 2 * time.Second,
		batch:    100,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil {
				r.logger.WarnContext(ctx, "outbox sweep failed", "error", err)
			}
		}
	}
}

func (r *Relay) sweep(ctx context.Context) error {
	entries, err := r.store.FetchUnpublished(ctx, r.batch)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := r.sink.Publish(ctx, entry.EventType, entry.Payload); err != nil {
			// Stop the batch; remaining entries stay pending for the next sweep.
			return err
		}
		if err := r.store.MarkPublished(ctx, entry.ID); err != nil {
			return err
		}
	}
	return nil
}
