package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"github.com/InteriMed/Medishift-sub005/internal/notify"
	"github.com/InteriMed/Medishift-sub005/internal/platform/config"
	"github.com/InteriMed/Medishift-sub005/internal/platform/kafka"
	"github.com/InteriMed/Medishift-sub005/internal/platform/metrics"
	"github.com/InteriMed/Medishift-sub005/internal/platform/redis"
	"github.com/InteriMed/Medishift-sub005/internal/remote"
	"github.com/InteriMed/Medishift-sub005/internal/risk"
	"github.com/InteriMed/Medishift-sub005/internal/saga"
	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/consumer"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/fallback"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/publisher"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/relay"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/store/memory"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/audit/store/postgres"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/tx"
)

const remoteRetryDelay = 200 * time.Millisecond

// auditService bundles the store behind the dispatcher sink with the ring
// that catches rejected events.
type auditService struct {
	store     audit.Store
	publisher *publisher.Publisher
	ring      *fallback.Ring
	db        *sql.DB
}

func (a *auditService) replay(ctx context.Context) (int, error) {
	return a.ring.Replay(ctx, a.store)
}

func (a *auditService) close() {
	a.publisher.Close()
	if a.db != nil {
		_ = a.db.Close()
	}
}

func newProducer(cfg config.KafkaConfig, log *slog.Logger) (*kafka.Producer, error) {
	if len(cfg.Brokers) == 0 {
		log.Info("no kafka brokers configured; audit relay and notifications stay in process")
		return nil, nil
	}
	return kafka.NewProducer(cfg.Brokers)
}

// newAudit picks the postgres outbox when a database is configured and
// starts the relay and materializer on g. Without a database events stay in
// memory.
func newAudit(ctx context.Context, g *errgroup.Group, cfg *config.Config, producer *kafka.Producer, m *metrics.Metrics, log *slog.Logger) (*auditService, error) {
	svc := &auditService{ring: fallback.NewRing(cfg.Audit.FallbackCapacity)}

	if cfg.Database.URL == "" {
		svc.store = memory.NewInMemoryStore()
	} else {
		db, err := sql.Open("pgx", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open audit database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		store := postgres.New(db)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate audit database: %w", err)
		}
		svc.db = db
		svc.store = store

		if producer == nil {
			log.Warn("audit outbox has no relay; listings stay empty until kafka is configured")
		} else if err := startAuditPipeline(ctx, g, cfg, db, store, producer, log); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	svc.publisher = publisher.NewPublisher(svc.store,
		publisher.WithLogger(log),
		publisher.WithAsyncBuffer(cfg.Audit.AsyncBuffer),
		publisher.WithFallback(svc.ring),
		publisher.WithFailureCounter(m),
	)
	return svc, nil
}

func startAuditPipeline(ctx context.Context, g *errgroup.Group, cfg *config.Config, db *sql.DB, store *postgres.Store, producer *kafka.Producer, log *slog.Logger) error {
	if cfg.Kafka.EnsureTopics {
		topics := append(relay.Topics(), cfg.Kafka.NotifyTopic)
		if err := kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.Partitions, cfg.Kafka.Replication, topics...); err != nil {
			return fmt.Errorf("ensure kafka topics: %w", err)
		}
	}

	runTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return tx.Run(ctx, db, fn)
	}
	r := relay.New(store, producer, runTx,
		relay.WithLogger(log),
		relay.WithBatchSize(cfg.Audit.RelayBatchSize),
		relay.WithInterval(cfg.Audit.RelayInterval),
	)
	g.Go(func() error { return r.Run(ctx) })

	c, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.AuditGroupID, relay.Topics(), log)
	if err != nil {
		return err
	}
	materializer := consumer.NewMaterializer(store, log)
	router := consumer.NewRouter(log, nil)
	for _, topic := range relay.Topics() {
		router.Register(topic, materializer)
	}
	g.Go(func() error {
		defer c.Close()
		return c.Run(ctx, router)
	})
	return nil
}

// newSagaRunner journals intents in sqlite when a path is configured.
func newSagaRunner(cfg config.SagaConfig, m *metrics.Metrics, log *slog.Logger) (*saga.Runner, func(), error) {
	opts := []saga.Option{saga.WithLogger(log), saga.WithMetrics(m)}
	if cfg.SQLitePath == "" {
		return saga.NewRunner(saga.NewInMemoryStore(), opts...), func() {}, nil
	}
	db, err := saga.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return saga.NewRunner(saga.NewSQLiteStore(db), opts...), func() { _ = db.Close() }, nil
}

// newBlocklist shares blocks across replicas through redis when configured.
func newBlocklist(ctx context.Context, g *errgroup.Group, cfg config.RedisConfig, log *slog.Logger) (risk.Blocklist, error) {
	client, err := redis.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return risk.NewMemoryBlocklist(), nil
	}
	bl := risk.NewRedisBlocklist(client.Client, log)
	g.Go(func() error {
		bl.Listen(ctx)
		return client.Close()
	})
	return bl, nil
}

func newRemoteClient(cfg config.RemoteConfig, m *metrics.Metrics, log *slog.Logger) *remote.Client {
	transport := remote.NewHTTPTransport(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})
	return remote.NewClient(transport, remote.Settings{
		RatePerSecond:      cfg.RatePerSecond,
		Burst:              cfg.Burst,
		RetryAttempts:      cfg.RetryAttempts,
		RetryDelay:         remoteRetryDelay,
		AttemptTimeout:     cfg.Timeout,
		BreakerFailures:    cfg.CBFailures,
		BreakerTimeout:     cfg.CBTimeout,
		BreakerMaxRequests: cfg.CBMaxRequests,
		BreakerInterval:    cfg.CBInterval,
	}, remote.WithLogger(log), remote.WithMetrics(m))
}

func newNotifier(cfg config.KafkaConfig, producer *kafka.Producer, m *metrics.Metrics, log *slog.Logger) notify.Notifier {
	if producer == nil {
		return notify.NewRecorder()
	}
	return notify.NewKafkaNotifier(producer, cfg.NotifyTopic, notify.WithLogger(log), notify.WithCounter(m))
}
