package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"brickstock/internal/catalog"
	"brickstock/internal/domain"
	applog "brickstock/internal/log"
)

// respondError is the single place domain and catalog errors become HTTP
// statuses. Unclassified errors are logged with context and surfaced as a
// generic failure; their text never reaches the caller.
func respondError(c *fiber.Ctx, action string, err error) error {
	var iie *domain.InvalidInputError
	if errors.As(err, &iie) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": iie.Reason, "field": iie.Field,
		})
	}
	var snf *domain.SetNotFoundError
	if errors.As(err, &snf) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "set not found", "set_no": snf.SetNo})
	}
	var pnf *domain.PartNotFoundError
	if errors.As(err, &pnf) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "part not in inventory"})
	}
	var ist *domain.InvalidStateTransitionError
	if errors.As(err, &ist) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "illegal state transition", "from": ist.From, "to": ist.To,
		})
	}
	var rle *catalog.RateLimitError
	if errors.As(err, &rle) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "catalog is throttling us, retry later"})
	}
	var toe *catalog.TimeoutError
	if errors.As(err, &toe) {
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "catalog did not answer, retry later"})
	}
	var ae *catalog.AuthError
	var apiErr *catalog.APIError
	if errors.As(err, &ae) || errors.As(err, &apiErr) {
		// Auth failures are our configuration problem, not the caller's.
		applog.Error(c, action+".catalog", err, nil)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "catalog unavailable, retry later"})
	}

	applog.Error(c, action, err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
