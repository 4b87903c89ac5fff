package repos

import (
	"context"
	"fmt"

	"shopindex/internal/domain"
)

type CrawlRepo struct{ st *Store }

func NewCrawlRepo(st *Store) *CrawlRepo { return &CrawlRepo{st: st} }

func (r *CrawlRepo) EnsureTable(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
  crawl_id TEXT PRIMARY KEY,
  catalog TEXT,
  product_url TEXT NOT NULL,
  crawl_url TEXT,
  page_content TEXT,
  crawl_timestamp %s NOT NULL,
  crawl_source TEXT,
  api_source TEXT,
  octogen_catalog TEXT
)`, r.st.crawlsTable(), r.st.d.intType()),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s(product_url, crawl_timestamp)`,
			quote("idx_"+r.st.table+"_crawls_url_ts"), r.st.crawlsTable()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(crawl_timestamp)`,
			quote("idx_"+r.st.table+"_crawls_ts"), r.st.crawlsTable()),
	}
	for _, s := range stmts {
		if _, err := r.st.DB.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("create crawls table: %w", err)
		}
	}
	return nil
}

// Insert appends crawl records, skipping any whose (product_url,
// crawl_timestamp) is already stored. It returns how many were new.
func (r *CrawlRepo) Insert(ctx context.Context, recs []domain.CrawlRecord) (int, error) {
	tx, err := r.st.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, `
INSERT INTO `+r.st.crawlsTable()+`(crawl_id, catalog, product_url, crawl_url, page_content,
  crawl_timestamp, crawl_source, api_source, octogen_catalog)
VALUES (:crawl_id, :catalog, :product_url, :crawl_url, :page_content,
  :crawl_timestamp, :crawl_source, :api_source, :octogen_catalog)
ON CONFLICT (product_url, crawl_timestamp) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare crawl insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range recs {
		res, err := stmt.ExecContext(ctx, rec)
		if err != nil {
			return 0, fmt.Errorf("insert crawl %s@%d: %w", rec.ProductURL, rec.CrawlTimestamp, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// List returns crawls, newest first, optionally for one product URL.
func (r *CrawlRepo) List(ctx context.Context, productURL string, limit int) ([]domain.CrawlRecord, error) {
	ok, err := r.st.tableExists(ctx, r.st.table+"_crawls")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	q := `SELECT crawl_id, COALESCE(catalog,'') AS catalog, product_url, COALESCE(crawl_url,'') AS crawl_url,
  COALESCE(page_content,'') AS page_content, crawl_timestamp, COALESCE(crawl_source,'') AS crawl_source,
  COALESCE(api_source,'') AS api_source, COALESCE(octogen_catalog,'') AS octogen_catalog
FROM ` + r.st.crawlsTable()
	var args []any
	if productURL != "" {
		q += ` WHERE product_url = ?`
		args = append(args, productURL)
	}
	q += ` ORDER BY crawl_timestamp DESC LIMIT ?`
	args = append(args, limit)

	var out []domain.CrawlRecord
	err = r.st.DB.SelectContext(ctx, &out, r.st.DB.Rebind(q), args...)
	return out, err
}
