//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// RedpandaContainer wraps a testcontainers Redpanda instance for exercising
// the audit outbox relay against a real Kafka API.
type RedpandaContainer struct {
	Container testcontainers.Container
	Broker    string
	Admin     *kadm.Client
}

// NewRedpandaContainer starts a Redpanda container.
func NewRedpandaContainer(t *testing.T) *RedpandaContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcredpanda.Run(ctx, "redpandadata/redpanda:v24.2.4")
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}

	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get redpanda broker address: %v", err)
	}

	client, err := kgo.NewClient(kgo.SeedBrokers(broker))
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to build kafka admin client: %v", err)
	}

	return &RedpandaContainer{
		Container: container,
		Broker:    broker,
		Admin:     kadm.NewClient(client),
	}
}

// CreateTopic creates a fresh single-partition topic. Tests use a unique
// topic per run instead of deleting records between them.
func (r *RedpandaContainer) CreateTopic(ctx context.Context, topic string) error {
	_, err := r.Admin.CreateTopic(ctx, 1, 1, nil, topic)
	return err
}
