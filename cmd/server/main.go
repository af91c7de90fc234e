package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	requesthandler "swasthya/internal/bloodrequest/handler"
	requestmetrics "swasthya/internal/bloodrequest/metrics"
	"swasthya/internal/bloodrequest/reaper"
	requestservice "swasthya/internal/bloodrequest/service"
	requeststore "swasthya/internal/bloodrequest/store"
	"swasthya/internal/donation/recorder"
	donationstore "swasthya/internal/donation/store"
	"swasthya/internal/notify"
	notifymetrics "swasthya/internal/notify/metrics"
	"swasthya/internal/platform/config"
	"swasthya/internal/platform/httpserver"
	"swasthya/internal/platform/logger"
	platformmetrics "swasthya/internal/platform/metrics"
	"swasthya/internal/platform/middleware"
	platformpostgres "swasthya/internal/platform/postgres"
	platformredis "swasthya/internal/platform/redis"
	prescriptionhandler "swasthya/internal/prescription/handler"
	prescriptionmetrics "swasthya/internal/prescription/metrics"
	prescriptionservice "swasthya/internal/prescription/service"
	prescriptionstore "swasthya/internal/prescription/store"
	profilehandler "swasthya/internal/profile/handler"
	profilestore "swasthya/internal/profile/store"
	"swasthya/internal/token"
	"swasthya/internal/transport/http/shared"
	"swasthya/pkg/platform/audit"
	auditconsumer "swasthya/pkg/platform/audit/consumer"
	auditkafka "swasthya/pkg/platform/audit/kafka"
	"swasthya/pkg/platform/audit/publisher"
	auditmemory "swasthya/pkg/platform/audit/store/memory"
	auditpostgres "swasthya/pkg/platform/audit/store/postgres"
	auditworker "swasthya/pkg/platform/audit/worker"
	"swasthya/pkg/platform/tx"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages; nothing here makes decisions beyond
// which implementation of each port to plug in.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. An empty Postgres URL means in-memory everything: single
	// instance, nothing survives a restart, fine for development.
	db, err := platformpostgres.Open(cfg.PostgresURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	var (
		requests     requestStore
		donations    donationStore
		profiles     profileStore
		auditStore   audit.Store
		runner       tx.Runner = tx.PassthroughRunner{}
		auditOutbox  *auditpostgres.Store
		prescription prescriptionservice.Store
	)
	if db != nil {
		requests = requeststore.NewPostgres(db)
		donations = donationstore.NewPostgres(db)
		profiles = profilestore.NewPostgres(db)
		auditOutbox = auditpostgres.New(db)
		auditStore = auditOutbox
		runner = tx.NewSQLRunner(db)

		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		prescription = prescriptionstore.NewPostgres(pool)

		log.Info("using postgres storage")
	} else {
		requests = requeststore.NewInMemory()
		donations = donationstore.NewInMemory()
		profiles = profilestore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		prescription = prescriptionstore.NewInMemory()
		log.Warn("postgres not configured, using in-memory storage")
	}

	auditPub := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(256),
		publisher.WithLogger(log),
	)
	defer auditPub.Close()

	// Notifications. With Redis configured the bus spans instances; without
	// it subscribers only hear publishes from their own process.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	localBus := notify.NewBus(
		notify.WithLogger(log),
		notify.WithMetrics(notifymetrics.New()),
	)
	var bus interface {
		Subscribe(identity string) *notify.Subscription
		Publish(identity string, notification notify.Notification)
	} = localBus
	if redisClient != nil {
		defer redisClient.Close()
		redisBus := notify.NewRedisBus(localBus, redisClient, log)
		defer redisBus.Close()
		bus = redisBus
		log.Info("notification bus spanning instances via redis")
	}

	validator := token.NewJWTService(cfg.JWTSigningKey, "swasthya")

	rec := recorder.New(donations, profiles, recorder.WithLogger(log))

	requestMetrics := requestmetrics.New()
	requestSvc, err := requestservice.New(requests, rec,
		requestservice.WithLogger(log),
		requestservice.WithMetrics(requestMetrics),
		requestservice.WithAuditPublisher(auditPub),
		requestservice.WithTxRunner(runner),
	)
	if err != nil {
		return err
	}

	prescriptionSvc, err := prescriptionservice.New(prescription,
		prescriptionservice.WithLogger(log),
		prescriptionservice.WithMetrics(prescriptionmetrics.New()),
		prescriptionservice.WithNotifier(bus),
		prescriptionservice.WithAuditPublisher(auditPub),
	)
	if err != nil {
		return err
	}

	httpMetrics := platformmetrics.New()

	router := chi.NewRouter()
	router.Use(
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		platformmetrics.Latency(httpMetrics),
	)

	// JSON APIs get a request timeout; the notification stream stays outside
	// the group because it holds its connection open.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		requesthandler.New(requestSvc, log, validator).Register(r)
		prescriptionhandler.New(prescriptionSvc, log, validator).Register(r)
		profilehandler.New(profiles, donations, log, validator).Register(r)
	})
	notify.NewHandler(bus, log, validator).Register(router)

	router.Get("/healthz", healthz(db, redisClient))
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	sweeper := reaper.New(requests, cfg.RequestTTL, cfg.SweepInterval,
		reaper.WithLogger(log),
		reaper.WithMetrics(requestMetrics),
		reaper.WithAuditPublisher(auditPub),
	)
	g.Go(func() error {
		return ignoreCancel(sweeper.Run(ctx))
	})

	// The outbox relay needs both the outbox table and a broker to deliver to.
	// The materializer consumes the same topic back into audit_events so the
	// query side has data.
	if auditOutbox != nil && len(cfg.Kafka.Brokers) > 0 {
		producer, err := auditkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer producer.Close()
		relay := auditworker.NewRelay(auditOutbox, producer, log)
		g.Go(func() error {
			return ignoreCancel(relay.Run(ctx))
		})

		materializer, err := auditconsumer.NewMaterializer(
			cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Group, auditOutbox, log)
		if err != nil {
			return err
		}
		defer materializer.Close()
		g.Go(func() error {
			return ignoreCancel(materializer.Run(ctx))
		})
		log.Info("audit relay publishing", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.Group)
	}

	return ignoreCancel(g.Wait())
}

// requestStore is the union of what the lifecycle service and the reaper need.
type requestStore interface {
	requestservice.Store
	reaper.Store
}

// profileStore is the union of what the recorder writes and the handler reads.
type profileStore interface {
	recorder.ProfileStore
	profilehandler.Store
}

// donationStore is the union of what the recorder writes and the profile
// handler reads.
type donationStore interface {
	recorder.DonationStore
	profilehandler.DonationStore
}

func healthz(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "postgres": err.Error()})
				return
			}
			status["postgres"] = "ok"
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "redis": err.Error()})
				return
			}
			status["redis"] = "ok"
		}
		shared.WriteJSON(w, http.StatusOK, status)
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
