// Package handlers exposes the interpreter over HTTP.
package handlers

import (
	"drawing-interpreter/internal/interpreter/mapper"
	"drawing-interpreter/internal/interpreter/session"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handler struct {
	orch     *session.Orchestrator
	renderer *mapper.Renderer
	log      *zap.Logger
}

func New(orch *session.Orchestrator, renderer *mapper.Renderer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if renderer == nil {
		renderer = mapper.NewRenderer(0)
	}
	return &Handler{orch: orch, renderer: renderer, log: log}
}

// Register mounts every route on r.
func (h *Handler) Register(r fiber.Router) {
	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)

	r.Post("/interpret", h.Interpret)
	r.Post("/interpret/svg", h.InterpretSVG)
	r.Post("/interpret/stream", h.InterpretStream)
	r.Post("/render", h.Render)

	r.Get("/sessions", h.ListSessions)
	r.Get("/sessions/:id", h.GetSession)
}

// Metrics serves the Prometheus exposition format for g.
func Metrics(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

func errorJSON(c fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
