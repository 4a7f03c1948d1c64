package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"panaudit/internal/store"
)

// New builds the HTTP API around a store.
func New(st *store.Store) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "panaudit",
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	h := &handlers{store: st}

	app.Get("/", h.Root)
	app.Get("/health", h.Health)

	api := app.Group("/api/v1")
	api.Post("/audits", h.CreateAudit)
	api.Post("/audits/", h.CreateAudit)
	api.Get("/audits", h.ListAudits)
	api.Get("/audits/:id", h.GetAudit)
	api.Get("/audits/:id/analysis", h.GetAnalysis)

	return app
}
