//go:build integration

// Package containers manages shared test containers for integration tests.
//
// Containers are expensive to start, so each kind is started at most once per
// test binary and shared across suites. Ryuk reaps them when the binary exits;
// tests are responsible for isolating their own data (truncate, flush, fresh
// topics) between runs.
package containers

import (
	"sync"
	"testing"
)

var (
	postgresOnce sync.Once
	postgresInst *PostgresContainer

	redisOnce sync.Once
	redisInst *RedisContainer

	redpandaOnce sync.Once
	redpandaInst *RedpandaContainer
)

// Postgres returns the shared Postgres container, starting it on first use.
func Postgres(t *testing.T) *PostgresContainer {
	t.Helper()
	postgresOnce.Do(func() {
		postgresInst = NewPostgresContainer(t)
	})
	if postgresInst == nil {
		t.Fatal("postgres container failed to start earlier in this binary")
	}
	return postgresInst
}

// Redis returns the shared Redis container, starting it on first use.
func Redis(t *testing.T) *RedisContainer {
	t.Helper()
	redisOnce.Do(func() {
		redisInst = NewRedisContainer(t)
	})
	if redisInst == nil {
		t.Fatal("redis container failed to start earlier in this binary")
	}
	return redisInst
}

// Redpanda returns the shared Redpanda container, starting it on first use.
func Redpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	redpandaOnce.Do(func() {
		redpandaInst = NewRedpandaContainer(t)
	})
	if redpandaInst == nil {
		t.Fatal("redpanda container failed to start earlier in this binary")
	}
	return redpandaInst
}
