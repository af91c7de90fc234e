package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. Values come from the
// environment so main stays lean; every knob has a development default.
type Config struct {
	Addr string

	// PostgresURL is empty in development; stores fall back to in-memory.
	PostgresURL string

	Redis RedisConfig
	Kafka KafkaConfig

	JWTSigningKey string

	// RequestTTL is how long an open blood request may sit before the reaper
	// removes it. Accepted and completed requests are exempt.
	RequestTTL time.Duration
	// SweepInterval is how often the reaper scans for expired open requests.
	SweepInterval time.Duration
}

// RedisConfig holds connection tuning for the shared notification fabric.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds audit publishing settings. Empty brokers disable Kafka;
// audit events then stop at the local store. Group names the consumer group
// the materializer joins to write events back into audit_events.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Group   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:          getEnv("SWASTHYA_ADDR", ":8080"),
		PostgresURL:   os.Getenv("SWASTHYA_POSTGRES_URL"),
		JWTSigningKey: getEnv("SWASTHYA_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		RequestTTL:    getDuration("SWASTHYA_REQUEST_TTL", 24*time.Hour),
		SweepInterval: getDuration("SWASTHYA_SWEEP_INTERVAL", 5*time.Minute),
		Redis: RedisConfig{
			URL:          os.Getenv("SWASTHYA_REDIS_URL"),
			PoolSize:     getInt("SWASTHYA_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("SWASTHYA_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("SWASTHYA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("SWASTHYA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("SWASTHYA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: getEnv("SWASTHYA_AUDIT_TOPIC", "swasthya.audit"),
			Group: getEnv("SWASTHYA_AUDIT_GROUP", "swasthya-audit-materializer"),
		},
	}
	if brokers := os.Getenv("SWASTHYA_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
