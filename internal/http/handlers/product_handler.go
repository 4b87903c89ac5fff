package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "shopindex/internal/log"
	"shopindex/internal/services"
	"shopindex/internal/validate"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

// GET /api/v1/catalogs/:catalog/products
func (h *ProductHandler) List(c *fiber.Ctx) error {
	name, ok := catalogParam(c)
	if !ok {
		return badRequest(c, "catalog")
	}
	p, err := h.Catalog.ListProducts(c.UserContext(), name,
		validate.Page(c.Query("page")), validate.PageSize(c.Query("page_size")))
	if err != nil {
		return fail(c, "api.products.fail", err)
	}
	return c.JSON(p)
}

// GET /api/v1/catalogs/:catalog/products/:id
func (h *ProductHandler) Get(c *fiber.Ctx) error {
	name, ok := catalogParam(c)
	if !ok {
		return badRequest(c, "catalog")
	}
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id")
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), name, id)
	if err != nil {
		return fail(c, "api.product.fail", err)
	}
	return c.JSON(p)
}

// GET /catalog/:catalog/product/:id
func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	name, ok := catalogParam(c)
	id, idOK := validate.ID(c.Params("id"))
	if !ok || !idOK {
		applog.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "This item is no longer available"})
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), name, id)
	if err != nil {
		return failPage(c, "product.detail.fail", err)
	}
	return render(c, "product", fiber.Map{"Catalog": name, "P": p, "Raw": string(p.Product)})
}

// GET /api/v1/catalogs/:catalog/crawls
func (h *ProductHandler) Crawls(c *fiber.Ctx) error {
	name, ok := catalogParam(c)
	if !ok {
		return badRequest(c, "catalog")
	}
	var p validate.CrawlParams
	if err := c.QueryParser(&p); err != nil {
		return badRequest(c, "query")
	}
	if err := validate.Struct(p); err != nil {
		applog.Security(c, "validation.fail", map[string]any{"error": err.Error()})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	recs, err := h.Catalog.Crawls(c.UserContext(), name, p.URL, p.Limit)
	if err != nil {
		return fail(c, "api.crawls.fail", err)
	}
	return c.JSON(fiber.Map{"catalog": name, "crawls": recs})
}
