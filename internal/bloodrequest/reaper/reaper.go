package reaper

import (
	"context"
	"log/slog"
	"time"

	"swasthya/internal/bloodrequest/metrics"
	"swasthya/pkg/platform/audit"
)

// Store is the slice of the request store the reaper sweeps.
type Store interface {
	DeleteExpiredOpen(ctx context.Context, cutoff time.Time) (int, error)
}

// AuditPublisher records reap sweeps.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Reaper deletes requests that sat open past their TTL. A request that was
// accepted at any point is out of reach: the delete itself is conditional on
// status still being open, so an accept racing the sweep either wins and the
// request survives, or the sweep wins and the accept reports not found.
type Reaper struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    AuditPublisher
}

type Option func(*Reaper)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reaper) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reaper) {
		r.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Reaper) {
		r.audit = publisher
	}
}

// New constructs a Reaper sweeping at the given interval with the given TTL.
func New(store Store, ttl, interval time.Duration, opts ...Option) *Reaper {
	r := &Reaper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sweeps until the context is cancelled. Sweep failures are logged, not
// fatal: one bad sweep must not take the server down.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.WarnContext(ctx, "expiry sweep failed", "error", err)
			}
		}
	}
}

// Sweep deletes all still-open requests created before now-TTL and returns
// how many went.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.ttl)
	reaped, err := r.store.DeleteExpiredOpen(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if reaped == 0 {
		return 0, nil
	}

	if r.metrics != nil {
		r.metrics.RequestsReaped.Add(float64(reaped))
	}
	if r.audit != nil {
		err := r.audit.Emit(ctx, audit.Event{
			Actor:   "system",
			Subject: "expiry-sweep",
			Action:  string(audit.EventRequestReaped),
			Detail:  cutoff.Format(time.RFC3339),
		})
		if err != nil {
			r.logger.WarnContext(ctx, "audit emit failed", "error", err)
		}
	}
	r.logger.InfoContext(ctx, "expired open requests reaped",
		"count", reaped,
		"cutoff", cutoff,
	)
	return reaped, nil
}
