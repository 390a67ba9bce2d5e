package handlers

import (
	"github.com/gofiber/fiber/v2"

	"brickstock/internal/services"
)

type DashboardHandler struct {
	Inv *services.InventoryService
}

// Home renders the HTML dashboard: per-state piece counts and the stored sets.
func (h *DashboardHandler) Home(c *fiber.Ctx) error {
	summary, err := h.Inv.Summary()
	if err != nil {
		return err
	}
	sets, err := h.Inv.ListSets()
	if err != nil {
		return err
	}
	return c.Render("dashboard", fiber.Map{
		"Summary": summary,
		"Sets":    sets,
	})
}
