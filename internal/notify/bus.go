package notify

import (
	"log/slog"
	"sync"

	"swasthya/internal/notify/metrics"
)

// Notification is the payload pushed to a patient when a prescription is
// resolved. Field names are part of the client contract.
type Notification struct {
	PrescriptionID string   `json:"prescriptionId"`
	AllPresent     bool     `json:"allPresent"`
	Medicines      []string `json:"medicines,omitempty"`
	Message        string   `json:"message"`
}

// subscriberBuffer is how many undelivered notifications one subscription can
// hold before new ones are dropped for it.
const subscriberBuffer = 16

// Subscription is one live listener for an identity. Receive from C; Close
// when the transport goes away. After Close no further deliveries happen, but
// notifications already buffered on C stay readable.
type Subscription struct {
	C chan Notification

	bus      *Bus
	identity string
	id       uint64
	// Label carries transport detail (device, user agent) for logs only.
	Label string
}

// Close deregisters the subscription.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.identity, s.id)
}

// Bus is an in-process, identity-keyed fan-out with at-most-once, best-effort
// delivery. Publishing to an identity nobody listens on is a silent no-op;
// a subscriber whose buffer is full misses that notification. There is no
// queueing, persistence, or replay: authoritative state is always the polled
// store, notifications only accelerate UX.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*Subscription
	nextID uint64

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Bus)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// NewBus constructs an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[string]map[uint64]*Subscription),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a listener for the exact identity string used elsewhere
// as the patient identity. The caller owns the returned subscription and must
// Close it.
func (b *Bus) Subscribe(identity string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		C:        make(chan Notification, subscriberBuffer),
		bus:      b,
		identity: identity,
		id:       b.nextID,
	}
	if b.subs[identity] == nil {
		b.subs[identity] = make(map[uint64]*Subscription)
	}
	b.subs[identity][sub.id] = sub

	if b.metrics != nil {
		b.metrics.Subscribers.Inc()
	}
	return sub
}

// Publish delivers the notification to every live subscription for identity.
// It never blocks: a subscriber that cannot keep up loses this notification.
func (b *Bus) Publish(identity string, notification Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.Published.Inc()
	}

	for _, sub := range b.subs[identity] {
		select {
		case sub.C <- notification:
			if b.metrics != nil {
				b.metrics.Delivered.Inc()
			}
		default:
			if b.metrics != nil {
				b.metrics.Dropped.Inc()
			}
			b.logger.Warn("notification dropped for slow subscriber",
				"identity", identity,
				"prescription_id", notification.PrescriptionID,
			)
		}
	}
}

// SubscriberCount reports live subscriptions for an identity.
func (b *Bus) SubscriberCount(identity string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[identity])
}

func (b *Bus) unsubscribe(identity string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[identity]
	if !ok {
		return
	}
	if _, ok := subs[id]; !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.subs, identity)
	}
	if b.metrics != nil {
		b.metrics.Subscribers.Dec()
	}
}
