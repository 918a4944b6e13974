package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ============================================================
// Health Check Handlers
// ============================================================

// Health answers the gateway probes. Readiness follows the upstream's own
// readiness endpoint.
type Health struct {
	upstream string
	client   *http.Client
	log      *zap.Logger
}

func NewHealth(upstreamURL string, log *zap.Logger) *Health {
	if log == nil {
		log = zap.NewNop()
	}
	return &Health{
		upstream: strings.TrimRight(upstreamURL, "/") + "/health/ready",
		client:   &http.Client{Timeout: 2 * time.Second},
		log:      log,
	}
}

// LivenessProbe reports that the process is serving.
func (h *Health) LivenessProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}

// ReadinessProbe reports ready only while the interpreter is ready.
func (h *Health) ReadinessProbe(c fiber.Ctx) error {
	req, err := http.NewRequestWithContext(c.Context(), http.MethodGet, h.upstream, nil)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error"})
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Warn("interpreter not reachable", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "interpreter": "unreachable"})
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "interpreter": resp.Status})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

// StartupProbe reports that startup finished.
func (h *Health) StartupProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "started"})
}
