package services

import (
	"context"
	"fmt"
	"time"

	"shopindex/internal/domain"
	applog "shopindex/internal/log"
	"shopindex/internal/repos"
	"shopindex/internal/search"
)

type IndexStats struct {
	Rows    int `json:"rows"`
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Partial int `json:"partial"`
}

// Indexer rebuilds a catalog's search index from its extracted relation.
type Indexer struct {
	Stores    *repos.Stores
	Readers   *search.Readers
	Schema    *search.Schema
	BatchSize int
}

func NewIndexer(stores *repos.Stores, readers *search.Readers, schema *search.Schema, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Indexer{Stores: stores, Readers: readers, Schema: schema, BatchSize: batchSize}
}

// Build indexes every stored record into a new index and swaps it in. Rows
// that cannot be decoded are logged and skipped; any store error, or a
// cancelled context, leaves the previous index in place.
func (ix *Indexer) Build(ctx context.Context, catalog string) (IndexStats, error) {
	var stats IndexStats
	st, err := ix.Stores.Open(ctx, catalog)
	if err != nil {
		return stats, err
	}
	products := repos.NewProductRepo(st)

	w, err := search.NewWriter(ix.Readers.Root(), catalog, ix.Schema)
	if err != nil {
		return stats, err
	}
	started := time.Now()

	after := ""
	for {
		if err := ctx.Err(); err != nil {
			_ = w.Cancel()
			return stats, err
		}
		rows, err := products.After(ctx, after, ix.BatchSize)
		if err != nil {
			_ = w.Cancel()
			applog.Error(nil, "index.read.fail", err, map[string]any{"catalog": catalog, "after": after})
			return stats, fmt.Errorf("read %s after %q: %w", catalog, after, err)
		}
		if len(rows) == 0 {
			break
		}
		docs := make([]search.Document, 0, len(rows))
		for _, row := range rows {
			stats.Rows++
			doc, err := documentFor(row)
			if err != nil {
				stats.Skipped++
				applog.Error(nil, "index.row.skip", err, map[string]any{"catalog": catalog, "product_group_id": row.ProductGroupID})
				continue
			}
			if doc.Partial {
				stats.Partial++
				applog.Info(nil, "index.row.partial", map[string]any{"catalog": catalog, "product_group_id": row.ProductGroupID})
			}
			docs = append(docs, doc)
		}
		if err := w.Add(docs); err != nil {
			_ = w.Cancel()
			return stats, err
		}
		after = rows[len(rows)-1].ProductGroupID
	}

	if err := w.Commit(); err != nil {
		return stats, err
	}
	stats.Indexed = w.Count()
	ix.Readers.Invalidate(catalog)
	applog.Audit(nil, "index.done", map[string]any{
		"catalog": catalog, "rows": stats.Rows, "indexed": stats.Indexed,
		"skipped": stats.Skipped, "partial": stats.Partial,
		"elapsed_ms": time.Since(started).Milliseconds(),
	})
	return stats, nil
}

func documentFor(row domain.ExtractedProduct) (search.Document, error) {
	pg, err := domain.DecodeProductGroup([]byte(row.ExtractedProduct))
	if err != nil {
		return search.Document{}, fmt.Errorf("decode: %w", err)
	}
	if pg.Catalog == "" {
		pg.Catalog = row.Catalog.String
	}
	return search.BuildDocument(pg, row.ProductGroupID)
}
