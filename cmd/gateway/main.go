package main

import (
	"fmt"
	"os"
	"time"

	"drawing-interpreter/internal/common/config"
	"drawing-interpreter/internal/common/logging"
	"drawing-interpreter/internal/common/middleware"
	"drawing-interpreter/internal/gateway/handlers"
	"drawing-interpreter/internal/gateway/proxy"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/zap"
)

// ============================================================
// API Gateway
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

	app := newApp(cfg, log)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info("starting api gateway",
		zap.String("addr", addr),
		zap.String("env", cfg.Server.Environment),
		zap.String("interpreter", cfg.Server.InterpreterURL))

	if err := app.Listen(addr); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}

func newApp(cfg *config.Config, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
		AppName:      "API Gateway",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.CORS(cfg.Server.AllowOrigins))
	app.Use(middleware.Logger(log.Named("http")))

	// ============================================================
	// Health Check Routes
	// ============================================================

	health := handlers.NewHealth(cfg.Server.InterpreterURL, log.Named("health"))
	app.Get("/health/live", health.LivenessProbe)
	app.Get("/health/ready", health.ReadinessProbe)
	app.Get("/health/startup", health.StartupProbe)

	// ============================================================
	// API Routes
	// ============================================================

	api := app.Group("/api/v1")

	api.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Drawing Interpreter API v1",
			"status":  "ok",
		})
	})

	// ============================================================
	// Interpreter Routes (Proxy)
	// ============================================================

	p := proxy.New(cfg.Server.InterpreterURL, nil, log.Named("proxy"))
	api.Post("/interpret", p.To("/interpret"))
	api.Post("/interpret/svg", p.To("/interpret/svg"))
	api.Post("/interpret/stream", p.To("/interpret/stream"))
	api.Post("/render", p.To("/render"))
	api.Get("/sessions", p.To("/sessions"))
	api.Get("/sessions/:id", func(c fiber.Ctx) error {
		return p.Forward(c, "/sessions/"+c.Params("id"))
	})

	return app
}
