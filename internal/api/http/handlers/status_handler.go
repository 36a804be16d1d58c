package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carias-rh/lx-toolbox/internal/auth"
	"github.com/carias-rh/lx-toolbox/internal/observability"
	"github.com/carias-rh/lx-toolbox/internal/service"
	apperrors "github.com/carias-rh/lx-toolbox/pkg/util"
)

// Loop is the part of the assignment service the status API needs.
type Loop interface {
	Status() service.LoopStatus
	Wake()
}

// StatusHandler exposes the running assignment loop.
type StatusHandler struct {
	loop    Loop
	metrics *observability.Metrics
}

// NewStatusHandler returns a new handler instance.
func NewStatusHandler(loop Loop, metrics *observability.Metrics) *StatusHandler {
	return &StatusHandler{loop: loop, metrics: metrics}
}

// Status returns the loop state, last run summary and counters.
func (h *StatusHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"loop":     h.loop.Status(),
		"counters": h.metrics.Teams(),
	})
}

// Wake interrupts the loop's sleep so the next cycle starts immediately.
func (h *StatusHandler) Wake(c *fiber.Ctx) error {
	team := c.Params("team")
	if team != h.loop.Status().Team {
		return apperrors.NewNotFound("team", map[string]any{"team": team})
	}
	h.loop.Wake()

	by := ""
	if principal, ok := auth.PrincipalFromContext(c); ok {
		by = principal.Subject
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"team":   team,
		"status": "waking",
		"by":     by,
	})
}
