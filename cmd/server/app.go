package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidra/vidra-api/internal/callback"
	"github.com/vidra/vidra-api/internal/config"
	"github.com/vidra/vidra-api/internal/download"
	"github.com/vidra/vidra-api/internal/platform/postgres"
	"github.com/vidra/vidra-api/internal/platform/ytdlp"
	"github.com/vidra/vidra-api/internal/service"
	"github.com/vidra/vidra-api/internal/storage"
	"github.com/vidra/vidra-api/internal/store"
	"github.com/vidra/vidra-api/internal/task"
)

// application holds the shared application dependencies to simplify
// wiring and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore store.TaskStore

	downloadService *download.Service
	dispatcher      *storage.Dispatcher
	notifier        *callback.Notifier
	taskService     *service.TaskService

	runner  *task.Runner
	janitor *task.Janitor
}

// newApplication creates an application instance with all dependencies
// initialized. The database connection must already be established.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.taskStore = postgres.NewTaskStore(db)

	extractor, err := ytdlp.New(ctx, logger.With("component", "ytdlp"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media extractor: %w", err)
	}

	app.downloadService, err = download.NewService(extractor, cfg.Download, logger.With("component", "download"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize download service: %w", err)
	}

	app.dispatcher = storage.NewDispatcher(cfg.Storage, logger.With("component", "storage"))
	app.notifier = callback.NewNotifier(cfg.Callback, logger.With("component", "callback"))

	factory, err := task.NewDownloadFactory(task.DownloadDeps{
		Store:                  app.taskStore,
		Downloader:             app.downloadService,
		Uploader:               app.dispatcher,
		Notifier:               app.notifier,
		Logger:                 logger.With("component", "task"),
		DeleteLocalAfterUpload: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create download task factory: %w", err)
	}

	app.runner = task.NewRunner(app.taskStore, factory, task.RunnerConfig{
		WorkerCount: cfg.Worker.Count,
		QueueSize:   cfg.Worker.QueueSize,
		MaxAttempts: cfg.Worker.MaxAttempts,
		RetryDelay:  time.Duration(cfg.Worker.RetryDelaySeconds) * time.Second,
	}, logger.With("component", "runner"))

	if err := app.runner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	app.janitor = task.NewJanitor(cfg.Cleanup, cfg.Download.Dir, logger.With("component", "janitor"))
	app.janitor.Start()

	app.taskService = service.NewTaskService(
		db,
		app.taskStore,
		func(tx *sql.Tx) store.TaskStore { return postgres.NewTaskStore(tx) },
		app.runner,
		app.downloadService,
		logger.With("component", "task_service"),
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.janitor != nil {
		app.janitor.Stop()
	}
	if app.runner != nil {
		app.runner.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
