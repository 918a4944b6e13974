package handlers

import (
	"errors"
	"strconv"

	"drawing-interpreter/internal/interpreter/history"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const defaultSessionLimit = 50

// ============================================================
// Session History Handlers
// ============================================================

// ListSessions returns the newest sessions first; ?limit=0 returns all.
func (h *Handler) ListSessions(c fiber.Ctx) error {
	limit := defaultSessionLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return errorJSON(c, fiber.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	sessions, err := h.orch.History().List(c.Context(), limit)
	if err != nil {
		h.log.Error("list sessions failed", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to list sessions")
	}
	return c.JSON(fiber.Map{"sessions": sessions, "count": len(sessions)})
}

func (h *Handler) GetSession(c fiber.Ctx) error {
	rec, err := h.orch.History().Get(c.Context(), c.Params("id"))
	if errors.Is(err, history.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "session not found")
	}
	if err != nil {
		h.log.Error("get session failed", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load session")
	}
	return c.JSON(rec)
}

// ============================================================
// Health Check Handlers
// ============================================================

func (h *Handler) Live(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}

// Ready reports whether the session history answers.
func (h *Handler) Ready(c fiber.Ctx) error {
	if _, err := h.orch.History().List(c.Context(), 1); err != nil {
		h.log.Warn("readiness check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
