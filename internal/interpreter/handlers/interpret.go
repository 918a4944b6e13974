package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"drawing-interpreter/internal/interpreter/models"
	"drawing-interpreter/internal/interpreter/parser"
	"drawing-interpreter/internal/interpreter/session"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// streamTimeout bounds a streamed run, which outlives its request context.
const streamTimeout = 5 * time.Minute

// ============================================================
// Interpret Handlers
// ============================================================

// Interpret runs the pipeline over a JSON sheet.
func (h *Handler) Interpret(c fiber.Ctx) error {
	sheet, err := decodeSheet(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	return h.run(c, sheet)
}

// InterpretSVG runs the pipeline over an SVG sheet uploaded as the "file"
// field of a multipart form. A "sheet_name" field overrides the name.
func (h *Handler) InterpretSVG(c fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "file required in multipart/form-data")
	}

	f, err := file.Open()
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to open file")
	}
	defer f.Close()

	sheet, err := parser.ParseSVG(f, file.Filename)
	if err != nil {
		h.log.Warn("svg import failed", zap.String("file", file.Filename), zap.Error(err))
		return errorJSON(c, fiber.StatusUnprocessableEntity, err.Error())
	}
	if name := c.FormValue("sheet_name"); name != "" {
		sheet.SheetName = name
	}
	return h.run(c, sheet)
}

func (h *Handler) run(c fiber.Ctx, sheet models.DrawingSheetInput) error {
	result, err := h.orch.Interpret(c.Context(), sheet, session.RunOptions{
		ProcessUnmappedLayers: unmapped(c),
	})
	return c.Status(statusOf(err)).JSON(result)
}

// InterpretStream answers with newline-delimited JSON: every observer event
// as it happens, then {"kind":"result","result":...}.
func (h *Handler) InterpretStream(c fiber.Ctx) error {
	sheet, err := decodeSheet(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	opts := session.RunOptions{ProcessUnmappedLayers: unmapped(c)}

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	return c.SendStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithTimeout(context.Background(), streamTimeout)
		defer cancel()

		stream := session.NewStream(256)
		opts.Observer = stream
		done := make(chan *models.DrawingInterpretationResult, 1)
		go func() {
			defer stream.Close()
			result, _ := h.orch.Interpret(ctx, sheet, opts)
			done <- result
		}()

		enc := json.NewEncoder(w)
		for e := range stream.Events() {
			if err := enc.Encode(e); err != nil {
				cancel()
				continue
			}
			if err := w.Flush(); err != nil {
				// client went away
				cancel()
			}
		}

		result := <-done
		if dropped := stream.Dropped(); dropped > 0 {
			h.log.Warn("stream dropped events", zap.String("session_id", result.SessionID), zap.Int64("dropped", dropped))
		}
		_ = enc.Encode(fiber.Map{"kind": "result", "result": result})
		_ = w.Flush()
	})
}

func decodeSheet(c fiber.Ctx) (models.DrawingSheetInput, error) {
	var sheet models.DrawingSheetInput
	if len(c.Body()) == 0 {
		return sheet, errors.New("body required")
	}
	if err := json.Unmarshal(c.Body(), &sheet); err != nil {
		return sheet, errors.New("invalid JSON payload: " + err.Error())
	}
	return sheet, nil
}

func unmapped(c fiber.Ctx) bool {
	v, _ := strconv.ParseBool(c.Query("unmapped"))
	return v
}

func statusOf(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, session.ErrCancelled):
		return fiber.StatusRequestTimeout
	}
	return fiber.StatusInternalServerError
}
