package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drawing-interpreter/internal/common/config"
	"drawing-interpreter/internal/common/logging"
	"drawing-interpreter/internal/common/middleware"
	"drawing-interpreter/internal/interpreter/handlers"
	"drawing-interpreter/internal/interpreter/history"
	"drawing-interpreter/internal/interpreter/mapper"
	"drawing-interpreter/internal/interpreter/session"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// ============================================================
// Interpreter Service
// ============================================================

func main() {
	cfg, err := config.Load(os.Getenv("INTERP_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("interpreter service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// ============================================================
	// Session History
	// ============================================================

	store, closeStore, err := openStore(cfg.History)
	if err != nil {
		return err
	}
	defer closeStore()

	var archive session.Archive
	if cfg.History.ArchiveDir != "" {
		archive = history.NewFileArchive(cfg.History.ArchiveDir)
	}

	// ============================================================
	// Pipeline
	// ============================================================

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	orch, err := session.NewOrchestrator(
		session.Config{
			Tuning:                cfg.Tuning,
			Workers:               cfg.Pipeline.Workers,
			ProcessUnmappedLayers: cfg.Pipeline.ProcessUnmappedLayers,
		},
		session.Deps{
			Store:   store,
			Archive: archive,
			Metrics: session.NewMetrics(reg),
			Logger:  log.Named("session"),
		},
	)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
		AppName:      "Drawing Interpreter",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(log.Named("http")))

	// ============================================================
	// Routes
	// ============================================================

	handlers.New(orch, mapper.NewRenderer(0), log.Named("handlers")).Register(app)
	app.Get("/metrics", handlers.Metrics(reg))

	// ============================================================
	// Server Start
	// ============================================================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting interpreter service",
			zap.String("addr", addr),
			zap.String("env", cfg.Server.Environment),
			zap.String("history", cfg.History.Driver))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	}
}

func openStore(cfg config.HistoryConfig) (history.Store, func(), error) {
	if cfg.Driver != config.HistorySQLite {
		return history.NewMemoryStore(cfg.Capacity), func() {}, nil
	}

	db, err := history.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open history db: %w", err)
	}
	store := history.NewSQLiteStore(db)
	if err := store.Init(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("init history db: %w", err)
	}
	return store, func() { store.Close() }, nil
}
