package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	html "github.com/gofiber/template/html/v2"

	"shopindex/internal/domain"
	applog "shopindex/internal/log"
	"shopindex/internal/search"
)

// NewViews loads the html templates with the helpers they use.
func NewViews(dir string) *html.Engine {
	engine := html.New(dir, ".html")
	engine.AddFunc("deref", func(f *float64) float64 {
		if f == nil {
			return 0
		}
		return *f
	})
	engine.AddFunc("derefInt", func(n *int64) int64 {
		if n == nil {
			return 0
		}
		return *n
	})
	return engine
}

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if rid, ok := c.Locals("requestid").(string); ok {
		data["RequestID"] = rid
	}
	return c.Render(tmpl, data)
}

// status maps a service error onto an HTTP status and a message that is
// safe to show. Unknown errors are logged and reported as 500.
func status(c *fiber.Ctx, action string, err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrCatalogNotFound):
		return fiber.StatusNotFound, "catalog not found"
	case errors.Is(err, domain.ErrProductNotFound):
		return fiber.StatusNotFound, "product not found"
	case errors.Is(err, domain.ErrInvalidCatalog):
		return fiber.StatusBadRequest, "invalid catalog"
	case errors.Is(err, domain.ErrInvalidFilter):
		return fiber.StatusBadRequest, "invalid filter"
	case errors.Is(err, search.ErrInvalidQuery):
		return fiber.StatusBadRequest, "invalid search query"
	case errors.Is(err, domain.ErrStoreUnavailable):
		applog.Error(c, action, err, nil)
		return fiber.StatusServiceUnavailable, "store unavailable, retry soon"
	}
	applog.Error(c, action, err, nil)
	return fiber.StatusInternalServerError, "something went wrong"
}

func fail(c *fiber.Ctx, action string, err error) error {
	code, msg := status(c, action, err)
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func failPage(c *fiber.Ctx, action string, err error) error {
	code, msg := status(c, action, err)
	return c.Status(code).Render("notfound", fiber.Map{"Message": msg})
}

func badRequest(c *fiber.Ctx, field string) error {
	applog.Security(c, "validation.fail", map[string]any{"field": field})
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid " + field})
}
