package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"shopindex/internal/columnar"
	"shopindex/internal/domain"
	applog "shopindex/internal/log"
	"shopindex/internal/repos"
)

// CrawlLoader appends crawl parquet files to a catalog's crawls relation.
type CrawlLoader struct {
	Stores *repos.Stores
}

func NewCrawlLoader(stores *repos.Stores) *CrawlLoader {
	return &CrawlLoader{Stores: stores}
}

// Load inserts every crawl record whose (product_url, crawl_timestamp) pair
// is not stored yet. Unreadable files are logged and skipped.
func (l *CrawlLoader) Load(ctx context.Context, files []string, catalog string) (domain.LoadStats, error) {
	var stats domain.LoadStats
	stats.Files = len(files)
	var repo *repos.CrawlRepo

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		recs, read, err := readCrawls(path, catalog)
		if err != nil {
			stats.FilesFailed++
			applog.Error(nil, "crawls.file.fail", err, map[string]any{"catalog": catalog, "file": path})
			continue
		}
		if repo == nil {
			st, err := l.Stores.Create(catalog)
			if err != nil {
				return stats, err
			}
			repo = repos.NewCrawlRepo(st)
			if err := repo.EnsureTable(ctx); err != nil {
				return stats, err
			}
		}
		n, err := repo.Insert(ctx, recs)
		if err != nil {
			return stats, fmt.Errorf("insert crawls from %s: %w", path, err)
		}
		stats.FilesProcessed++
		stats.Rows += read
		stats.MissingKey += read - len(recs)
		stats.Inserted += n
		stats.Duplicates += len(recs) - n
		applog.Info(nil, "crawls.file", map[string]any{"catalog": catalog, "file": path, "rows": read, "inserted": n})
	}
	if repo == nil {
		return stats, domain.ErrNoUsableFiles
	}
	applog.Audit(nil, "crawls.done", map[string]any{
		"catalog": catalog, "records_loaded": stats.Inserted, "duplicates_skipped": stats.Skipped(),
	})
	return stats, nil
}

// readCrawls returns the file's usable records and the number of rows read.
func readCrawls(path, catalog string) ([]domain.CrawlRecord, int, error) {
	f, err := columnar.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	if !f.HasColumn("product_url") || !f.HasColumn("crawl_timestamp") {
		return nil, 0, fmt.Errorf("%w: %s has no product_url/crawl_timestamp", domain.ErrWrongSchema, path)
	}

	var out []domain.CrawlRecord
	read := 0
	err = f.Each(func(row map[string]any) error {
		read++
		rec := domain.CrawlRecord{
			CrawlID:        uuid.NewString(),
			Catalog:        str(row["catalog"]),
			ProductURL:     str(row["product_url"]),
			CrawlURL:       str(row["crawl_url"]),
			PageContent:    raw(row["page_content"]),
			CrawlTimestamp: int64Of(row["crawl_timestamp"]),
			CrawlSource:    str(row["crawl_source"]),
			APISource:      str(row["api_source"]),
			OctogenCatalog: str(row["octogen_catalog"]),
		}
		if rec.Catalog == "" {
			rec.Catalog = catalog
		}
		if rec.ProductURL == "" {
			return nil
		}
		out = append(out, rec)
		return nil
	})
	return out, read, err
}

// raw is str without trimming, for payloads kept byte for byte.
func raw(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	return keyString(v)
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return keyString(v)
}

func int64Of(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case float64:
		return int64(x)
	}
	return 0
}
