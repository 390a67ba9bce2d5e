package handlers

import (
	"github.com/gofiber/fiber/v2"

	"brickstock/internal/domain"
	applog "brickstock/internal/log"
	"brickstock/internal/services"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

// List handles GET /api/v1/inventory?state=OWNED_FREE
func (h *InventoryHandler) List(c *fiber.Ctx) error {
	items, err := h.Inv.ListInventory(c.Query("state"))
	if err != nil {
		return respondError(c, "inventory.list", err)
	}
	return c.JSON(fiber.Map{"items": items, "count": len(items)})
}

type updateStateRequest struct {
	PartNo  string `json:"part_no"`
	ColorID int    `json:"color_id"`
	State   string `json:"state"`
}

// UpdateState handles PATCH /api/v1/inventory: move one part/color key
// through the state machine (e.g. unlock parts after disassembly).
func (h *InventoryHandler) UpdateState(c *fiber.Ctx) error {
	var req updateStateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "body must be JSON"})
	}
	item, err := h.Inv.UpdateState(req.PartNo, req.ColorID, domain.PartState(req.State))
	if err != nil {
		return respondError(c, "inventory.update", err)
	}
	applog.Audit(c, "inventory.update", map[string]any{
		"part_no": item.PartNo, "color_id": item.ColorID, "state": item.State,
	})
	return c.JSON(fiber.Map{"ok": true, "item": item})
}
