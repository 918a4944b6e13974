package handlers

import (
	"encoding/json"

	"drawing-interpreter/internal/interpreter/models"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ============================================================
// Render Handler
// ============================================================

// Render draws an interpretation result as SVG.
func (h *Handler) Render(c fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "body required")
	}

	var result models.DrawingInterpretationResult
	if err := json.Unmarshal(c.Body(), &result); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid JSON payload")
	}

	svg, err := h.renderer.Render(&result)
	if err != nil {
		h.log.Error("render failed", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}

	c.Set(fiber.HeaderContentType, "image/svg+xml")
	return c.SendString(svg)
}
