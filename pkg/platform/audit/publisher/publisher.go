package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "swasthya/pkg/platform/audit"
)

// ErrBufferFull is returned when the async buffer cannot accept more events.
var ErrBufferFull = errors.New("audit buffer full")

// lister is the optional read side a store may expose for querying.
type lister interface {
	ListByActor(ctx context.Context, actor string) ([]audit.Event, error)
}

// Publisher emits audit events to a store. In sync mode Append happens on the
// caller's goroutine; with WithAsyncBuffer events go through a buffered
// channel drained by a background goroutine. When the buffer is full the
// event is dropped rather than blocking the request path.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer chan audit.Event
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async mode with the given channel capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = make(chan audit.Event, size)
	}
}

// WithLogger sets the logger used to report dropped or failed events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an audit event. A zero Timestamp is stamped with the current
// time. In async mode a full buffer drops the event and returns ErrBufferFull.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.WarnContext(ctx, "audit event dropped",
			"action", event.Action,
			"subject", event.Subject,
		)
		return ErrBufferFull
	}
}

// List returns events for an actor when the underlying store supports reads.
func (p *Publisher) List(ctx context.Context, actor string) ([]audit.Event, error) {
	l, ok := p.store.(lister)
	if !ok {
		return nil, errors.New("audit store does not support listing")
	}
	return l.ListByActor(ctx, actor)
}

// Close stops the background goroutine, draining any buffered events first.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.buffer:
			p.append(event)
		case <-p.done:
			for {
				select {
				case event := <-p.buffer:
					p.append(event)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) append(event audit.Event) {
	if err := p.store.Append(context.Background(), event); err != nil {
		p.logger.Warn("audit append failed",
			"action", event.Action,
			"subject", event.Subject,
			"error", err,
		)
	}
}
