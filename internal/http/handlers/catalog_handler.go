package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "shopindex/internal/log"
	"shopindex/internal/services"
	"shopindex/internal/validate"
)

type CatalogHandler struct {
	Catalog *services.CatalogService
}

func catalogParam(c *fiber.Ctx) (string, bool) {
	name, ok := validate.Catalog(c.Params("catalog"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "catalog"})
	}
	return name, ok
}

// GET /
func (h *CatalogHandler) Home(c *fiber.Ctx) error {
	cats, err := h.Catalog.Catalogs(c.UserContext())
	if err != nil {
		return failPage(c, "catalogs.list.fail", err)
	}
	return render(c, "home", fiber.Map{"Catalogs": cats})
}

// GET /catalog/:catalog
func (h *CatalogHandler) Browse(c *fiber.Ctx) error {
	name, ok := catalogParam(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Catalog not found"})
	}
	page := validate.Page(c.Query("page"))
	data := fiber.Map{"Catalog": name, "Page": page}

	q, ok := validate.Q(c.Query("q"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "q"})
		data["Err"] = "Enter a valid search"
		data["Items"] = []any{}
		return c.Status(fiber.StatusBadRequest).Render("catalog", data)
	}
	data["Q"] = q

	if q == "" {
		p, err := h.Catalog.ListProducts(c.UserContext(), name, page, 24)
		if err != nil {
			return failPage(c, "catalog.browse.fail", err)
		}
		data["Items"], data["Total"] = p.Items, p.Total
		data["HasNext"] = page*p.PageSize < p.Total
	} else {
		res, err := h.Catalog.Search(c.UserContext(), name, q, page, 24)
		if err != nil {
			return failPage(c, "catalog.search.fail", err)
		}
		data["Items"], data["Total"], data["Degraded"] = res.Items, res.Total, res.Degraded
		data["HasNext"] = uint64(page*res.PageSize) < res.Total
	}
	if page > 1 {
		data["Prev"] = page - 1
	}
	data["Next"] = page + 1
	return render(c, "catalog", data)
}

// GET /api/v1/catalogs
func (h *CatalogHandler) List(c *fiber.Ctx) error {
	cats, err := h.Catalog.Catalogs(c.UserContext())
	if err != nil {
		return fail(c, "api.catalogs.fail", err)
	}
	if cats == nil {
		cats = []string{}
	}
	return c.JSON(fiber.Map{"catalogs": cats})
}

// GET /api/v1/catalogs/:catalog/analytics
func (h *CatalogHandler) Analytics(c *fiber.Ctx) error {
	name, ok := catalogParam(c)
	if !ok {
		return badRequest(c, "catalog")
	}
	a, err := h.Catalog.Analytics(c.UserContext(), name)
	if err != nil {
		return fail(c, "api.analytics.fail", err)
	}
	return c.JSON(a)
}

// GET /api/v1/catalogs/:catalog/runs
func (h *CatalogHandler) Runs(c *fiber.Ctx) error {
	name, ok := catalogParam(c)
	if !ok {
		return badRequest(c, "catalog")
	}
	runs, err := h.Catalog.LoadRuns(c.UserContext(), name, c.QueryInt("limit", 20))
	if err != nil {
		return fail(c, "api.runs.fail", err)
	}
	return c.JSON(fiber.Map{"catalog": name, "runs": runs})
}
