package main

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"

	"brickstock/internal/catalog"
	"brickstock/internal/config"
	"brickstock/internal/http/handlers"
	applog "brickstock/internal/log"
	"brickstock/internal/repos"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	// One signed client and one catalog service for the whole process;
	// both are safe for concurrent use.
	oauthClient, err := catalog.NewOAuthClient(catalog.Credentials{
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		Token:          cfg.Token,
		TokenSecret:    cfg.TokenSecret,
	}, cfg.HTTPTimeout)
	if err != nil {
		log.Fatalf("catalog credentials: %v", err)
	}
	bricklink := catalog.NewBricklink(oauthClient, cfg.CatalogBaseURL, catalog.Options{
		MetadataTTL:  cfg.MetadataTTL,
		InventoryTTL: cfg.InventoryTTL,
		CacheSize:    cfg.CacheSize,
	})

	engine := html.New("./web/templates", ".html")

	app := fiber.New(fiber.Config{
		Views: engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Log and answer with a friendly message; never leak internals.
			applog.Error(c, "server.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal error",
			})
		},
	})
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
	}))

	// ---------- Routes ----------
	deps := handlers.NewDeps(db, cfg, bricklink)

	app.Get("/", deps.DashboardHandler.Home)

	api := app.Group("/api/v1")

	// Set additions hit the upstream catalog; throttle them harder.
	addLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|sets"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Warn(c, "rate.sets.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
	api.Post("/sets", addLimiter, deps.SetsHandler.Create)
	api.Get("/sets", deps.SetsHandler.List)
	api.Get("/sets/search", deps.SetsHandler.Search)
	api.Get("/sets/:set_no", deps.SetsHandler.Get)

	api.Get("/inventory", deps.InventoryHandler.List)
	api.Patch("/inventory", deps.InventoryHandler.UpdateState)

	api.Post("/catalog/cache/clear", deps.CatalogHandler.ClearCache)

	// Health reports liveness plus catalog reachability.
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true, "catalog": deps.Inv.CatalogHealth(c.Context())})
	})

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	})

	log.Fatal(app.Listen(":" + cfg.Port))
}
