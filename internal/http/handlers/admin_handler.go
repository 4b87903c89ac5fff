package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "shopindex/internal/log"
	"shopindex/internal/services"
)

type AdminHandler struct {
	Indexer  *services.Indexer
	Pipeline *services.Pipeline
}

// POST /admin/catalogs/:catalog/reindex
func (h *AdminHandler) Reindex(c *fiber.Ctx) error {
	name, ok := catalogParam(c)
	if !ok {
		return badRequest(c, "catalog")
	}
	stats, err := h.Indexer.Build(c.UserContext(), name)
	if err != nil {
		return fail(c, "admin.reindex.fail", err)
	}
	applog.Audit(c, "admin.reindex", map[string]any{"catalog": name, "indexed": stats.Indexed, "skipped": stats.Skipped})
	return c.JSON(fiber.Map{"catalog": name, "index": stats})
}

// POST /admin/catalogs/:catalog/process?fresh=true
func (h *AdminHandler) Process(c *fiber.Ctx) error {
	name, ok := catalogParam(c)
	if !ok {
		return badRequest(c, "catalog")
	}
	if h.Pipeline == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "pipeline not configured"})
	}
	out := h.Pipeline.Process(c.UserContext(), services.Target{Name: name, Fresh: c.QueryBool("fresh")})
	if out.Err != nil {
		return fail(c, "admin.process.fail", out.Err)
	}
	applog.Audit(c, "admin.process", map[string]any{
		"catalog": name, "records_loaded": out.Load.Inserted, "duplicates_skipped": out.Load.Skipped(),
		"indexed": out.Index.Indexed,
	})
	return c.JSON(out)
}
