package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "brickstock/internal/log"
	"brickstock/internal/services"
	"brickstock/internal/validate"
)

type SetsHandler struct {
	Inv *services.InventoryService
}

type createSetRequest struct {
	SetNo         string `json:"set_no"`
	Assembled     bool   `json:"assembled"`
	OverrideState bool   `json:"override_state"`
	IncludeSpares bool   `json:"include_spares"`
}

// Create handles POST /api/v1/sets: fetch the set from the catalog and fold
// its parts into the inventory.
func (h *SetsHandler) Create(c *fiber.Ctx) error {
	var req createSetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "body must be JSON"})
	}
	set, err := h.Inv.AddSet(c.Context(), req.SetNo, services.AddSetOptions{
		Assembled:     req.Assembled,
		OverrideState: req.OverrideState,
		IncludeSpares: req.IncludeSpares,
	})
	if err != nil {
		return respondError(c, "sets.create", err)
	}
	applog.Audit(c, "sets.create", map[string]any{"set_no": set.SetNo, "assembled": set.Assembled})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "set": set})
}

// Get handles GET /api/v1/sets/:set_no.
func (h *SetsHandler) Get(c *fiber.Ctx) error {
	set, err := h.Inv.GetSet(c.Params("set_no"))
	if err != nil {
		return respondError(c, "sets.get", err)
	}
	return c.JSON(set)
}

// List handles GET /api/v1/sets.
func (h *SetsHandler) List(c *fiber.Ctx) error {
	sets, err := h.Inv.ListSets()
	if err != nil {
		return respondError(c, "sets.list", err)
	}
	return c.JSON(fiber.Map{"sets": sets, "count": len(sets)})
}

// Search handles GET /api/v1/sets/search?q=...&limit=...
func (h *SetsHandler) Search(c *fiber.Ctx) error {
	limit := validate.Limit(c.Query("limit"), 20, 50)
	results, err := h.Inv.SearchSets(c.Context(), c.Query("q"), limit)
	if err != nil {
		return respondError(c, "sets.search", err)
	}
	return c.JSON(fiber.Map{"results": results, "count": len(results)})
}
