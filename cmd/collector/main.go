package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/backfield/gridiron/internal/auth"
	"github.com/backfield/gridiron/internal/blaze"
	config "github.com/backfield/gridiron/internal/config/collector"
	"github.com/backfield/gridiron/internal/obs"
	"github.com/backfield/gridiron/internal/repository/ea"
	kafkaRepo "github.com/backfield/gridiron/internal/repository/kafka"
	pg "github.com/backfield/gridiron/internal/repository/postgres"
	rediscache "github.com/backfield/gridiron/internal/repository/redis"
	"github.com/backfield/gridiron/internal/services/collector"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	// init
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := flag.String("config", "", "path to the collector yaml config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	// run_id correlates lines across restarts of the same deployment.
	l = l.With(zap.String("run_id", uuid.NewString()))
	zap.ReplaceGlobals(l)

	ids := blaze.NewIdentifiers(cfg.Madden.Year, cfg.Madden.Platform)
	strategy := blaze.PickStrategy(cfg.Madden.Year%100, ids.Platform)

	l.Info("starting collector",
		zap.String("blaze_id", strategy.BlazeID),
		zap.Duration("poll", cfg.Collect.Poll),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// credential material
	tokenStore := auth.TokenFileStore{Path: cfg.Auth.TokensPath}
	rec, err := tokenStore.Load()
	if err != nil {
		l.Fatal("load token record", zap.String("path", cfg.Auth.TokensPath), zap.Error(err))
	}
	oauth := ea.NewOAuthClient(ea.OAuthConfig{Timeout: cfg.EA.Timeout}, l)
	tokens := auth.NewTokenLifecycle(auth.TokenConfig{SafetyMargin: cfg.Auth.SafetyMargin}, rec, oauth, tokenStore, l)

	wal := ea.NewWALClient(ea.WALConfig{
		BaseURL:     cfg.EA.WALBase,
		BlazeHeader: ids.BlazeHeader(),
		ProductName: ids.ProductName(),
		Timeout:     cfg.EA.Timeout,
		InsecureTLS: cfg.EA.InsecureTLS,
	}, l)
	ticketStore := auth.SessionContextFile{Path: cfg.Auth.SessionContextPath}
	pool := auth.NewTicketPool(auth.PoolConfig{
		MaxBackups:   cfg.Auth.MaxBackups,
		MintCooldown: cfg.Auth.MintCooldown,
	}, tokens, wal, ticketStore, l)
	seedTicket(pool, ticketStore, l)

	bundles, err := bundleSource(cfg, l)
	if err != nil {
		l.Fatal("bundle source", zap.Error(err))
	}

	process := ea.NewProcessClient(ea.ProcessConfig{
		BaseURL:     cfg.EA.WALBase,
		BlazeID:     strategy.BlazeID,
		AppKey:      strategy.AppKey,
		Cookie:      cfg.EA.Cookie,
		Timeout:     cfg.EA.Timeout,
		InsecureTLS: cfg.EA.InsecureTLS,
	}, l)

	// sinks
	pipe := collector.NewPipeline(l)

	var db *pg.DB
	if cfg.DB.Enable {
		db, err = pg.New(ctx, cfg.DB.AsPostgresConfig())
		if err != nil {
			l.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		pipe.AddStorage("postgres", pg.NewAuctionRepo(db, cfg.DB.BatchSize))
	}

	if cfg.Redis.Enable {
		cache := rediscache.NewRecentCache(cfg.Redis.AsCacheConfig())
		if err := cache.Ping(ctx); err != nil {
			l.Fatal("redis connect", zap.Error(err))
		}
		defer func() { _ = cache.Close() }()
		pipe.AddPublisher("redis", cache)
	}

	if cfg.Kafka.Enable {
		if err := kafkaRepo.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkaRepo.TopicSpec{Name: cfg.Kafka.Topic}, l); err != nil {
			l.Warn("kafka topic bootstrap", zap.Error(err))
		}
		kafkaProd := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(l)
		defer func() { _ = kafkaProd.Close() }()
		pipe.AddPublisher("kafka", kafkaRepo.NewAuctionEventsKafka(kafkaProd))
	}

	if pipe.SinkCount() == 0 {
		l.Warn("no sinks enabled, fetched pages go nowhere")
	}

	// run metrics server
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		if db == nil {
			return nil
		}
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	// wiring
	fetch := collector.NewFetcher(strategy, deviceID(cfg), pool, tokens, bundles, process, l)
	runner := collector.New(l, fetch, pipe, pool, &cfg.Collect)

	// run
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("collector started", zap.Int("sinks", pipe.SinkCount()))

	// loop
	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}

func deviceID(cfg *config.Config) string {
	if cfg.Auth.DeviceID != "" {
		return cfg.Auth.DeviceID
	}
	return ea.MachineKey
}

// seedTicket installs the ticket persisted by a previous run, when present.
// The context file is shared with the capture tooling, so a missing or
// partial file is not an error.
func seedTicket(pool *auth.TicketPool, store auth.SessionContextFile, l *zap.Logger) {
	sctx, err := store.Load()
	if err != nil {
		l.Warn("session context unreadable", zap.Error(err))
		return
	}
	ticket, _ := sctx["session_ticket"].(string)
	if ticket == "" {
		return
	}
	seeded := auth.SessionTicket{Ticket: ticket, GeneratedAt: time.Now()}
	if id, ok := sctx["blaze_id"].(float64); ok {
		seeded.BlazeID = int64(id)
	}
	if id, ok := sctx["persona_id"].(float64); ok {
		seeded.PersonaID = int64(id)
	}
	pool.Seed(seeded)
	l.Info("seeded session ticket", zap.Int64("blaze_id", seeded.BlazeID))
}

func bundleSource(cfg *config.Config, l *zap.Logger) (collector.BundleSource, error) {
	if !cfg.Auth.UseAuthPool {
		return collector.NewComputedBundles(deviceID(cfg)), nil
	}
	poolFile := auth.BundlePoolFile{Path: cfg.Auth.AuthPoolPath}
	entries, err := poolFile.Load()
	if err != nil {
		return nil, err
	}
	return collector.NewPooledBundles(auth.NewBundleRotor(entries, poolFile, l)), nil
}
