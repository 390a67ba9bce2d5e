package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "brickstock/internal/log"
	"brickstock/internal/services"
)

type CatalogHandler struct {
	Inv *services.InventoryService
}

// ClearCache handles POST /api/v1/catalog/cache/clear — an ops escape hatch
// when provider data changed inside a TTL window.
func (h *CatalogHandler) ClearCache(c *fiber.Ctx) error {
	h.Inv.ClearCatalogCache()
	applog.Info(c, "catalog.cache.clear", nil)
	return c.JSON(fiber.Map{"ok": true})
}
