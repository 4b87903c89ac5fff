package services

import (
	"context"
	"errors"
	"fmt"

	"shopindex/internal/domain"
	applog "shopindex/internal/log"
	"shopindex/internal/repos"
	"shopindex/internal/search"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
)

// CatalogService answers read queries over loaded catalogs. It never
// mutates a store or an index.
type CatalogService struct {
	Stores  *repos.Stores
	Readers *search.Readers
}

func NewCatalogService(stores *repos.Stores, readers *search.Readers) *CatalogService {
	return &CatalogService{Stores: stores, Readers: readers}
}

func paging(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize, (page - 1) * pageSize
}

func (s *CatalogService) Catalogs(ctx context.Context) ([]string, error) {
	return s.Stores.Catalogs(ctx)
}

func (s *CatalogService) products(ctx context.Context, catalog string) (*repos.ProductRepo, error) {
	st, err := s.Stores.Open(ctx, catalog)
	if err != nil {
		return nil, err
	}
	return repos.NewProductRepo(st), nil
}

// views drops rows whose stored record is not valid JSON.
func views(catalog string, rows []domain.ExtractedProduct) []domain.ProductView {
	out := make([]domain.ProductView, 0, len(rows))
	for _, r := range rows {
		v, ok := r.View()
		if !ok {
			applog.Error(nil, "catalog.row.invalid", errors.New("stored record is not valid JSON"),
				map[string]any{"catalog": catalog, "product_group_id": r.ProductGroupID})
			continue
		}
		out = append(out, v)
	}
	return out
}

func (s *CatalogService) ListProducts(ctx context.Context, catalog string, page, pageSize int) (domain.Page, error) {
	page, pageSize, offset := paging(page, pageSize)
	prods, err := s.products(ctx, catalog)
	if err != nil {
		return domain.Page{}, err
	}
	total, err := prods.Count(ctx)
	if err != nil {
		return domain.Page{}, err
	}
	rows, err := prods.List(ctx, pageSize, offset)
	if err != nil {
		return domain.Page{}, err
	}
	return domain.Page{Items: views(catalog, rows), Page: page, PageSize: pageSize, Total: total}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, catalog, id string) (domain.ProductView, error) {
	prods, err := s.products(ctx, catalog)
	if err != nil {
		return domain.ProductView{}, err
	}
	row, err := prods.Get(ctx, id)
	if repos.IsNotFound(err) {
		return domain.ProductView{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	if err != nil {
		return domain.ProductView{}, err
	}
	v, ok := row.View()
	if !ok {
		return domain.ProductView{}, fmt.Errorf("stored record %s is not valid JSON", id)
	}
	return v, nil
}

// Search asks the index for matching ids and returns their stored records in
// hit order. If any stored record fails validation the result is empty and
// marked degraded.
func (s *CatalogService) Search(ctx context.Context, catalog, q string, page, pageSize int) (domain.SearchResult, error) {
	page, pageSize, offset := paging(page, pageSize)
	out := domain.SearchResult{Query: q, Page: page, PageSize: pageSize, Items: []domain.ProductView{}}

	prods, err := s.products(ctx, catalog)
	if err != nil {
		return out, err
	}
	r, err := s.Readers.Get(catalog)
	if err != nil {
		return out, err
	}
	res, err := r.Search(q, offset, pageSize)
	if err != nil {
		return out, err
	}
	out.Total = res.Total
	if len(res.Hits) == 0 {
		return out, nil
	}

	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	rows, err := prods.ByIDs(ctx, ids)
	if err != nil {
		return out, err
	}
	byID := make(map[string]domain.ExtractedProduct, len(rows))
	for _, row := range rows {
		byID[row.ProductGroupID] = row
	}
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			applog.Info(nil, "search.hit.missing", map[string]any{"catalog": catalog, "product_group_id": id})
			continue
		}
		v, ok := row.View()
		if !ok {
			applog.Error(nil, "search.degraded", errors.New("stored record is not valid JSON"),
				map[string]any{"catalog": catalog, "product_group_id": id})
			out.Items = []domain.ProductView{}
			out.Degraded = true
			return out, nil
		}
		out.Items = append(out.Items, v)
	}
	return out, nil
}

func (s *CatalogService) Filter(ctx context.Context, catalog string, f domain.FieldFilter, page, pageSize int) (domain.Page, error) {
	page, pageSize, offset := paging(page, pageSize)
	prods, err := s.products(ctx, catalog)
	if err != nil {
		return domain.Page{}, err
	}
	rows, total, err := prods.Filter(ctx, f, pageSize, offset)
	if err != nil {
		return domain.Page{}, err
	}
	return domain.Page{Items: views(catalog, rows), Page: page, PageSize: pageSize, Total: total}, nil
}

func (s *CatalogService) Analytics(ctx context.Context, catalog string) (domain.Analytics, error) {
	prods, err := s.products(ctx, catalog)
	if err != nil {
		return domain.Analytics{}, err
	}
	return prods.Analytics(ctx)
}

// Crawls lists crawl records, newest first, optionally for one product URL.
func (s *CatalogService) Crawls(ctx context.Context, catalog, productURL string, limit int) ([]domain.CrawlRecord, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	st, err := s.Stores.Open(ctx, catalog)
	if err != nil {
		return nil, err
	}
	recs, err := repos.NewCrawlRepo(st).List(ctx, productURL, limit)
	if recs == nil && err == nil {
		recs = []domain.CrawlRecord{}
	}
	return recs, err
}

func (s *CatalogService) LoadRuns(ctx context.Context, catalog string, limit int) ([]domain.LoadRun, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = 20
	}
	st, err := s.Stores.Open(ctx, catalog)
	if err != nil {
		return nil, err
	}
	return repos.NewRunRepo(st.DB).List(ctx, catalog, limit)
}
