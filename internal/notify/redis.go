package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	platformredis "swasthya/internal/platform/redis"
)

const channelPrefix = "notify:"

// RedisBus extends the local bus across server instances with Redis Pub/Sub.
// Publish goes out as `PUBLISH notify:<identity>`; one background goroutine
// pattern-subscribes `notify:*` and fans every inbound message into the local
// bus, so subscribers on any instance see publishes from any instance.
// Delivery semantics stay at-most-once: Redis Pub/Sub itself keeps nothing
// for absent subscribers.
type RedisBus struct {
	local  *Bus
	client *platformredis.Client
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisBus wires a local bus to the Redis fabric and starts the inbound
// fan-in goroutine. Call Close to stop it.
func NewRedisBus(local *Bus, client *platformredis.Client, logger *slog.Logger) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBus{
		local:  local,
		client: client,
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go b.receive(ctx)
	return b
}

// Subscribe registers on the local bus; cross-instance publishes arrive via
// the fan-in goroutine.
func (b *RedisBus) Subscribe(identity string) *Subscription {
	return b.local.Subscribe(identity)
}

// Publish sends through Redis so every instance, this one included, delivers
// via its fan-in goroutine. Failures degrade to local-only delivery rather
// than surfacing to the caller.
func (b *RedisBus) Publish(identity string, notification Notification) {
	payload, err := json.Marshal(notification)
	if err != nil {
		b.logger.Warn("notification marshal failed", "identity", identity, "error", err)
		return
	}
	if err := b.client.Publish(context.Background(), channelPrefix+identity, payload).Err(); err != nil {
		b.logger.Warn("redis publish failed, delivering locally only",
			"identity", identity,
			"error", err,
		)
		b.local.Publish(identity, notification)
	}
}

// Close stops the fan-in goroutine and waits for it to exit.
func (b *RedisBus) Close() {
	b.cancel()
	<-b.done
}

func (b *RedisBus) receive(ctx context.Context) {
	defer close(b.done)

	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			identity := strings.TrimPrefix(msg.Channel, channelPrefix)
			var notification Notification
			if err := json.Unmarshal([]byte(msg.Payload), &notification); err != nil {
				b.logger.Warn("notification unmarshal failed",
					"channel", msg.Channel,
					"error", err,
				)
				continue
			}
			b.local.Publish(identity, notification)
		}
	}
}
