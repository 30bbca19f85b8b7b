package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/aggregation"
	"github.com/garyjia/workflow-engine/internal/config"
	httpserver "github.com/garyjia/workflow-engine/internal/interfaces/http"
	"github.com/garyjia/workflow-engine/internal/notification"
	"github.com/garyjia/workflow-engine/internal/repository"
	"github.com/garyjia/workflow-engine/internal/worker"
	"github.com/garyjia/workflow-engine/internal/workflow"
	"github.com/garyjia/workflow-engine/pkg/database"
	"github.com/garyjia/workflow-engine/pkg/utils"
)

func main() {
	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting approval workflow engine",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	templateRepo := repository.NewTemplateRepository(db.DB, logger)
	instanceRepo := repository.NewInstanceRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)
	delegationRepo := repository.NewDelegationRepository(db.DB, logger)
	outboxRepo := repository.NewOutboxRepository(db.DB, logger)

	engine := workflow.NewEngine(
		db,
		templateRepo,
		instanceRepo,
		historyRepo,
		delegationRepo,
		outboxRepo,
		workflow.Policy{
			MaxResubmits: cfg.Workflow.MaxResubmits,
			MaxAppeals:   cfg.Workflow.MaxAppeals,
		},
		logger,
	)

	inbox := aggregation.NewView(instanceRepo, nil, logger)

	notifier := notification.NewLogNotifier(logger)
	dispatcher := worker.NewOutboxDispatcher(
		outboxRepo,
		notifier,
		cfg.Outbox.PollInterval,
		cfg.Outbox.BatchSize,
		logger,
	)

	workerManager := worker.NewManager(logger)
	workerManager.Register(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, engine, inbox, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	workerManager.StopAll()
	logger.Info("Shutdown complete")
}
