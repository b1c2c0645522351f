package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	jwttoken "github.com/InteriMed/Medishift-sub005/internal/jwt_token"
	"github.com/InteriMed/Medishift-sub005/internal/platform/config"
	"github.com/InteriMed/Medishift-sub005/internal/platform/httpserver"
	"github.com/InteriMed/Medishift-sub005/internal/platform/logger"
	"github.com/InteriMed/Medishift-sub005/internal/platform/metrics"
	httptransport "github.com/InteriMed/Medishift-sub005/internal/transport/http"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/serial"
)

const serviceName = "medishift-actions"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run wires every module into one dispatcher and serves it until ctx ends.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	g, ctx := errgroup.WithContext(ctx)

	wf := workforce.NewInMemoryStore()
	if cfg.Workforce.SeedPath != "" {
		seed, err := workforce.LoadSeed(cfg.Workforce.SeedPath)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, wf); err != nil {
			return err
		}
		log.Info("workforce seed loaded", "principals", len(seed.Principals), "facilities", len(seed.Facilities))
	}

	producer, err := newProducer(cfg.Kafka, log)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
	}

	auditSvc, err := newAudit(ctx, g, cfg, producer, m, log)
	if err != nil {
		return err
	}
	defer auditSvc.close()

	runner, closeSagas, err := newSagaRunner(cfg.Saga, m, log)
	if err != nil {
		return err
	}
	defer closeSagas()

	blocks, err := newBlocklist(ctx, g, cfg.Redis, log)
	if err != nil {
		return err
	}

	locker := serial.New(serial.WithTimeout(cfg.Dispatch.SerialTimeout))
	rc := newRemoteClient(cfg.Remote, m, log)
	notifier := newNotifier(cfg.Kafka, producer, m, log)

	registry := actions.NewRegistry()
	if err := registry.Register(definitions(catalogDeps{
		workforce: wf,
		audit:     auditSvc.store,
		runner:    runner,
		blocks:    blocks,
		remote:    rc,
		notifier:  notifier,
		locker:    locker,
		cfg:       cfg,
		logger:    log,
	})...); err != nil {
		return err
	}

	// Every saga kind is registered by now; finish what a crash left behind.
	resumed, err := runner.ResumePending(ctx)
	if err != nil {
		log.Warn("resume pending intents", "error", err, "resumed", resumed)
	} else if resumed > 0 {
		log.Info("resumed pending intents", "count", resumed)
	}

	resolver := access.NewResolver(wf, access.WithLogger(log), access.WithCounter(m))
	dispatcher := actions.NewDispatcher(registry, resolver, auditSvc.publisher,
		actions.WithLogger(log),
		actions.WithMetrics(m),
		actions.WithTracer(otel.Tracer(serviceName)),
		actions.WithSyncHighRisk(cfg.Audit.SyncHighRisk),
	)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer)
	handler := httptransport.NewActionHandler(dispatcher, registry, log)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		Validator:   jwttoken.NewJWTServiceAdapter(jwtService),
		Blocks:      blocks,
		Gatherer:    reg,
		AdminToken:  cfg.Server.AdminToken,
		ReplayAudit: auditSvc.replay,
		Logger:      log,
	})

	log.Info("action catalog ready", "actions", len(registry.IDs()))

	srv := httpserver.New(cfg.Server, router)
	g.Go(func() error {
		return httpserver.Run(ctx, srv, log)
	})
	return g.Wait()
}
