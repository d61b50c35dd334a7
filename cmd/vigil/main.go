// Package main is the entry point for the Vigil alerting engine.
// It initializes all components and starts the HTTP server, the event
// processor and the engine's escalation and cleanup loops.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vigil/internal/api"
	"vigil/internal/banner"
	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/engine"
	"vigil/internal/ingest"
	"vigil/internal/notification"
	"vigil/internal/processor"
	"vigil/internal/queue"
	kafkaqueue "vigil/internal/queue/kafka"
	memoryqueue "vigil/internal/queue/memory"
	"vigil/internal/store"
	memorystor "vigil/internal/store/memory"
	postgresstor "vigil/internal/store/postgres"
	redisstor "vigil/internal/store/redis"
)

// memoryQueueSize bounds the in-memory ingestion queue.
const memoryQueueSize = 10000

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	banner.Print()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logger)
	logger.Info("configuration loaded",
		"path", *configPath,
		"storageMode", cfg.Storage.Mode,
		"escalationPolicies", len(cfg.EscalationPolicies),
	)

	// Create context that listens for shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, cleanup, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Start the engine's escalation and cleanup loops
	go func() {
		if err := deps.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("engine error", "error", err)
			cancel()
		}
	}()

	// Start processor in background
	go func() {
		if err := deps.processor.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("processor error", "error", err)
			cancel()
		}
	}()

	// Start HTTP server
	go func() {
		if err := deps.server.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	logger.Info("Vigil started",
		"address", cfg.Server.Address(),
		"storageMode", cfg.Storage.Mode,
		"version", banner.Version,
	)

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown: stop intake first, then let in-flight
	// notifications finish.
	timeout := shutdownTimeout(cfg, deps.engine.ListEscalationPolicies())
	logger.Info("draining in-flight work", "timeout", timeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := deps.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := deps.processor.Stop(); err != nil {
		logger.Error("processor shutdown error", "error", err)
	}

	if err := deps.engine.Shutdown(shutdownCtx); err != nil {
		logger.Error("engine shutdown error", "error", err)
	}

	logger.Info("Vigil stopped")
}

// shutdownTimeout covers the slowest possible dispatch under the current
// policies: every pair of the widest level exhausting its retries. Dispatches
// run concurrently, so one budget covers all of them.
func shutdownTimeout(cfg *config.Config, policies []*domain.EscalationPolicy) time.Duration {
	budget := cfg.Notification.DispatchBudget(policies)
	if cfg.Server.WriteTimeout > budget {
		return cfg.Server.WriteTimeout
	}
	return budget
}

// dependencies holds all initialized service dependencies.
type dependencies struct {
	engine    *engine.Engine
	server    *api.Server
	processor *processor.Service
}

// initDependencies creates and wires all service dependencies based on config.
// Returns the dependencies and a cleanup function.
func initDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, func(), error) {
	var (
		rules        store.RuleStore
		archive      store.Archive
		producer     queue.Producer
		consumer     queue.Consumer
		notifyQueue  queue.Producer
		cleanupFuncs []func()
	)

	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}

	if cfg.Storage.UseMemory() {
		logger.Info("initializing in-memory storage")

		memRules := memorystor.NewRuleStore()
		rules = memRules
		cleanupFuncs = append(cleanupFuncs, func() { _ = memRules.Close() })

		archive = memorystor.NewArchive(0, 0)

		memQueue := memoryqueue.NewQueue(memoryQueueSize, logger)
		producer = memQueue
		consumer = memQueue
		cleanupFuncs = append(cleanupFuncs, func() { _ = memQueue.Close() })
	} else {
		logger.Info("initializing production storage (Kafka, Redis, PostgreSQL)")

		db, err := postgresstor.NewDB(ctx, &cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		cleanupFuncs = append(cleanupFuncs, db.Close)

		if err := db.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		logger.Info("database migrations completed")
		archive = postgresstor.NewArchive(db)

		redisRules, err := redisstor.NewRuleStore(&cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		rules = redisRules
		cleanupFuncs = append(cleanupFuncs, func() { _ = redisRules.Close() })

		kafkaProducer := kafkaqueue.NewProducer(&cfg.Kafka)
		producer = kafkaProducer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaProducer.Close() })

		kafkaConsumer := kafkaqueue.NewConsumer(&cfg.Kafka, logger)
		consumer = kafkaConsumer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaConsumer.Close() })

		notificationProducer := kafkaqueue.NewNotificationProducer(&cfg.Kafka)
		notifyQueue = notificationProducer
		cleanupFuncs = append(cleanupFuncs, func() { _ = notificationProducer.Close() })
	}

	senders, err := notification.NewSenders(cfg.Notification, notifyQueue, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	eng, err := engine.New(ctx, engine.Dependencies{
		Config:  cfg,
		Alerts:  memorystor.NewAlertStore(),
		Groups:  memorystor.NewGroupStore(),
		Rules:   rules,
		Archive: archive,
		Senders: senders,
		Logger:  logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	ingestService := ingest.NewService(producer, logger)
	processorService := processor.NewService(consumer, eng, logger)

	server := api.NewServer(api.ServerDeps{
		Config:                 &cfg.Server,
		Logger:                 logger,
		Health:                 eng,
		AlertHandler:           api.NewAlertHandler(eng, logger),
		IngestHandler:          api.NewIngestHandler(ingestService, logger),
		SuppressionRuleHandler: api.NewSuppressionRuleHandler(eng, logger),
		EscalationHandler:      api.NewEscalationPolicyHandler(eng, logger),
	})

	return &dependencies{
		engine:    eng,
		server:    server,
		processor: processorService,
	}, cleanup, nil
}

// initLogger creates and configures the application logger.
func initLogger(cfg config.LoggerConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
