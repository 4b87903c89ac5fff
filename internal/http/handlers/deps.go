package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"shopindex/internal/config"
	applog "shopindex/internal/log"
	"shopindex/internal/repos"
	"shopindex/internal/search"
	"shopindex/internal/services"
)

type Deps struct {
	CatalogHandler *CatalogHandler
	ProductHandler *ProductHandler
	SearchHandler  *SearchHandler
	AdminHandler   *AdminHandler
	AdminTokenHash string
}

func NewDeps(stores *repos.Stores, readers *search.Readers, pipeline *services.Pipeline, cfg config.Config) *Deps {
	catalogSvc := services.NewCatalogService(stores, readers)
	indexer := services.NewIndexer(stores, readers, search.DefaultSchema(), cfg.IndexBatchSize)
	if pipeline != nil && pipeline.Indexer != nil {
		indexer = pipeline.Indexer
	}

	return &Deps{
		CatalogHandler: &CatalogHandler{Catalog: catalogSvc},
		ProductHandler: &ProductHandler{Catalog: catalogSvc},
		SearchHandler:  &SearchHandler{Catalog: catalogSvc},
		AdminHandler:   &AdminHandler{Indexer: indexer, Pipeline: pipeline},
		AdminTokenHash: cfg.AdminTokenHash,
	}
}

// Mount registers the public pages, the JSON API and the admin routes.
func Mount(app *fiber.App, d *Deps) {
	app.Get("/", d.CatalogHandler.Home)
	app.Get("/catalog/:catalog", d.CatalogHandler.Browse)
	app.Get("/catalog/:catalog/product/:id", d.ProductHandler.Detail)

	api := app.Group("/api/v1")
	searchLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|search"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.search.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
	api.Get("/catalogs", d.CatalogHandler.List)
	cat := api.Group("/catalogs/:catalog")
	cat.Get("/products", d.ProductHandler.List)
	cat.Get("/products/:id", d.ProductHandler.Get)
	cat.Get("/search", searchLimiter, d.SearchHandler.Search)
	cat.Get("/filter", d.SearchHandler.Filter)
	cat.Get("/analytics", d.CatalogHandler.Analytics)
	cat.Get("/crawls", d.ProductHandler.Crawls)
	cat.Get("/runs", d.CatalogHandler.Runs)

	admin := app.Group("/admin", RequireAdmin(d.AdminTokenHash))
	admin.Post("/catalogs/:catalog/reindex", d.AdminHandler.Reindex)
	admin.Post("/catalogs/:catalog/process", d.AdminHandler.Process)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
}
