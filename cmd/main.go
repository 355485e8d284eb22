package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"community-moderation/pkg/clients/content"
	"community-moderation/pkg/clients/directory"
	"community-moderation/pkg/clients/identity"
	"community-moderation/pkg/events"
	"community-moderation/pkg/httpServer"
	moderationRepository "community-moderation/pkg/repositories/moderation"
	actionsService "community-moderation/pkg/services/actions"
	appealsService "community-moderation/pkg/services/appeals"
	bansService "community-moderation/pkg/services/bans"
	reportsService "community-moderation/pkg/services/reports"
	"community-moderation/pkg/workers"
	reversalsWorker "community-moderation/pkg/workers/reversals"
	sweeperWorker "community-moderation/pkg/workers/sweeper"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() (err error) {
	// Tools
	config := loadConfig()
	if config == nil {
		fmt.Println("failed to load configuration")
		return
	}

	logLevel := slog.LevelInfo
	if level, ok := logLevels[config.System.LogLevel]; ok {
		logLevel = level
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// Metrics
	dbRequestsCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Metrics.Namespace,
			Subsystem: config.Metrics.DbSubsystem,
			Name:      "db_requests_count",
			Help:      "Db requests count",
		},
		[]string{"method", "error"},
	)

	dbRequestsDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Metrics.Namespace,
			Subsystem: config.Metrics.DbSubsystem,
			Name:      "db_requests_duration",
			Help:      "Db requests duration",
		},
		[]string{"method", "error"},
	)

	clientRequestsCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Metrics.Namespace,
			Subsystem: config.Metrics.ClientsSubsystem,
			Name:      "client_requests_count",
			Help:      "Collaborator requests count",
		},
		[]string{"method", "error"},
	)

	clientRequestsDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Metrics.Namespace,
			Subsystem: config.Metrics.ClientsSubsystem,
			Name:      "client_requests_duration",
			Help:      "Collaborator requests duration",
		},
		[]string{"method", "error"},
	)

	workerRunsCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Metrics.Namespace,
			Subsystem: config.Metrics.WorkersSubsystem,
			Name:      "worker_runs_count",
			Help:      "Worker runs count",
		},
		[]string{"method", "error"},
	)

	workerRunsDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Metrics.Namespace,
			Subsystem: config.Metrics.WorkersSubsystem,
			Name:      "worker_runs_duration",
			Help:      "Worker runs duration",
		},
		[]string{"method", "error"},
	)

	prometheus.MustRegister(
		dbRequestsCount,
		dbRequestsDuration,
		clientRequestsCount,
		clientRequestsDuration,
		workerRunsCount,
		workerRunsDuration,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres
	connPool, err := connectPostgres(ctx, config, logger)
	if err != nil {
		logger.Error("failed to connect to Postgres", slog.String("error", err.Error()))
		return
	}

	// Database
	moderationRepo := moderationRepository.NewRepository(connPool)
	if err = moderationRepo.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure database schema", slog.String("error", err.Error()))
		return
	}
	moderationRepo = moderationRepository.NewCache(moderationRepo)
	moderationRepo = moderationRepository.NewMetrics(dbRequestsCount, dbRequestsDuration, moderationRepo)

	// Clients
	identityClient := identity.NewClient(config.Collaborators.IdentityBaseURL)

	directoryClient := directory.NewClient(config.Collaborators.DirectoryBaseURL)
	directoryClient = directory.NewMetrics(clientRequestsCount, clientRequestsDuration, directoryClient)

	contentClient := content.NewClient(config.Collaborators.ContentBaseURL)

	emitter := events.NewEmitter(config.Collaborators.EventsWebhookURL, logger)

	// Services
	reportsSvc := reportsService.NewService(moderationRepo, directoryClient, contentClient, emitter, config.Moderation.ReportCooldown, logger)
	bansSvc := bansService.NewService(moderationRepo, directoryClient, emitter, logger)
	actionsSvc := actionsService.NewService(moderationRepo, contentClient, emitter, logger)
	appealsSvc := appealsService.NewService(moderationRepo, bansSvc, actionsSvc, emitter, logger)

	// Workers
	sweeper := sweeperWorker.NewWorker(moderationRepo, config.Moderation.SweepInterval, logger)
	sweeper = sweeperWorker.NewMetrics(workerRunsCount, workerRunsDuration, sweeper)

	reversals := reversalsWorker.NewWorker(moderationRepo, emitter, config.Moderation.ReversalRetryInterval, logger)
	reversals = reversalsWorker.NewMetrics(workerRunsCount, workerRunsDuration, reversals)

	w := workers.NewWorkers(sweeper, reversals, logger)
	if err = w.Start(ctx); err != nil {
		logger.Error("failed to start workers", slog.String("error", err.Error()))
		return
	}

	// HTTP Server
	app := fiber.New()
	server := httpServer.New(
		app,
		reportsSvc,
		actionsSvc,
		bansSvc,
		appealsSvc,
		identityClient,
		config.Metrics.Namespace,
		config.Metrics.ServerSubsystem,
		logger,
	)
	if server == nil {
		return fmt.Errorf("failed to create HTTP server handler")
	}

	server.RegisterRoutes()

	go func() {
		if err := app.Listen(":" + config.System.Port); err != nil {
			logger.Error("error starting server", slog.String("err", err.Error()))
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	<-signalChan

	cancel()

	err = app.ShutdownWithTimeout(time.Second * 5)
	if err != nil {
		logger.Error("server shut down error", slog.String("err", err.Error()))
		return err
	}

	connPool.Close()

	return err
}
