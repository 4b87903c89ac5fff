package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"shopindex/internal/domain"
	applog "shopindex/internal/log"
	"shopindex/internal/services"
	"shopindex/internal/validate"
)

type SearchHandler struct {
	Catalog *services.CatalogService
}

// GET /api/v1/catalogs/:catalog/search?q=
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	name, ok := catalogParam(c)
	if !ok {
		return badRequest(c, "catalog")
	}
	var p validate.SearchParams
	if err := c.QueryParser(&p); err != nil {
		return badRequest(c, "query")
	}
	p.Q = strings.TrimSpace(p.Q)
	if err := validate.Struct(p); err != nil {
		applog.Security(c, "validation.fail", map[string]any{"field": "q", "value": p.Q})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := h.Catalog.Search(c.UserContext(), name, p.Q, p.Page, p.PageSize)
	if err != nil {
		return fail(c, "api.search.fail", err)
	}
	if res.Degraded {
		applog.Info(c, "search.degraded", map[string]any{"catalog": name, "q": p.Q})
	}
	return c.JSON(res)
}

// GET /api/v1/catalogs/:catalog/filter?field=price&op=lt&value=10
func (h *SearchHandler) Filter(c *fiber.Ctx) error {
	name, ok := catalogParam(c)
	if !ok {
		return badRequest(c, "catalog")
	}
	var p validate.FilterParams
	if err := c.QueryParser(&p); err != nil {
		return badRequest(c, "query")
	}
	if err := p.Check(); err != nil {
		applog.Security(c, "validation.fail", map[string]any{"field": p.Field, "op": p.Op})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	f := domain.FieldFilter{Field: p.Field, Op: domain.FilterOp(p.Op)}
	if p.Value != nil {
		f.Value = *p.Value
	}
	res, err := h.Catalog.Filter(c.UserContext(), name, f, p.Page, p.PageSize)
	if err != nil {
		return fail(c, "api.filter.fail", err)
	}
	return c.JSON(res)
}
