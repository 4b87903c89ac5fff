package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ExtractedProduct is one row of the extracted relation: the raw record plus
// scalar columns precomputed from it. The scalars are a query cache only.
type ExtractedProduct struct {
	ProductGroupID   string          `db:"product_group_id" json:"product_group_id"`
	Catalog          sql.NullString  `db:"catalog" json:"-"`
	ExtractedProduct string          `db:"extracted_product" json:"-"`
	ProductID        sql.NullString  `db:"product_id" json:"-"`
	BrandName        sql.NullString  `db:"brand_name" json:"-"`
	Name             sql.NullString  `db:"name" json:"-"`
	Description      sql.NullString  `db:"description" json:"-"`
	ProductImage     sql.NullString  `db:"product_image" json:"-"`
	Price            sql.NullFloat64 `db:"price" json:"-"`
	OriginalPrice    sql.NullFloat64 `db:"original_price" json:"-"`
	Rating           sql.NullFloat64 `db:"rating" json:"-"`
	RatingCount      sql.NullInt64   `db:"rating_count" json:"-"`
}

// ProductView is what the read API hands out for one extracted row.
type ProductView struct {
	ProductGroupID string          `json:"product_group_id"`
	Name           string          `json:"name,omitempty"`
	BrandName      string          `json:"brand_name,omitempty"`
	Description    string          `json:"description,omitempty"`
	Image          string          `json:"product_image,omitempty"`
	Price          *float64        `json:"price,omitempty"`
	OriginalPrice  *float64        `json:"original_price,omitempty"`
	Rating         *float64        `json:"rating,omitempty"`
	RatingCount    *int64          `json:"rating_count,omitempty"`
	Product        json.RawMessage `json:"product"`
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// View converts the row, rejecting records whose blob is not valid JSON.
func (e ExtractedProduct) View() (ProductView, bool) {
	if !json.Valid([]byte(e.ExtractedProduct)) {
		return ProductView{}, false
	}
	v := ProductView{
		ProductGroupID: e.ProductGroupID,
		Name:           e.Name.String,
		BrandName:      e.BrandName.String,
		Description:    e.Description.String,
		Image:          e.ProductImage.String,
		Price:          nullFloat(e.Price),
		OriginalPrice:  nullFloat(e.OriginalPrice),
		Rating:         nullFloat(e.Rating),
		Product:        json.RawMessage(e.ExtractedProduct),
	}
	if e.RatingCount.Valid {
		c := e.RatingCount.Int64
		v.RatingCount = &c
	}
	return v, true
}

// LoadStats reports one load run. Inserted and Skipped() form the
// (records_loaded, duplicates_skipped) pair; the split counters say why
// rows were skipped.
type LoadStats struct {
	Files          int `json:"files"`
	FilesProcessed int `json:"files_processed"`
	FilesFailed    int `json:"files_failed"`
	Rows           int `json:"rows"`
	Inserted       int `json:"inserted"`
	Duplicates     int `json:"duplicates"`
	MissingKey     int `json:"missing_key"`
	Malformed      int `json:"malformed"`
}

// Skipped is rows read minus rows inserted, whatever the reason.
func (s LoadStats) Skipped() int { return s.Rows - s.Inserted }

func (s *LoadStats) Add(o LoadStats) {
	s.Rows += o.Rows
	s.Inserted += o.Inserted
	s.Duplicates += o.Duplicates
	s.MissingKey += o.MissingKey
	s.Malformed += o.Malformed
}

type LoadRun struct {
	ID             string         `db:"id" json:"id"`
	Catalog        string         `db:"catalog" json:"catalog"`
	Kind           string         `db:"kind" json:"kind"`
	Source         sql.NullString `db:"source" json:"-"`
	StartedAt      time.Time      `db:"started_at" json:"started_at"`
	FinishedAt     sql.NullTime   `db:"finished_at" json:"-"`
	FilesProcessed int            `db:"files_processed" json:"files_processed"`
	FilesFailed    int            `db:"files_failed" json:"files_failed"`
	Inserted       int            `db:"inserted" json:"inserted"`
	Duplicates     int            `db:"duplicates" json:"duplicates"`
	MissingKey     int            `db:"missing_key" json:"missing_key"`
	Malformed      int            `db:"malformed" json:"malformed"`
}

type FilterOp string

const (
	OpEq      FilterOp = "eq"
	OpNe      FilterOp = "ne"
	OpLt      FilterOp = "lt"
	OpLte     FilterOp = "lte"
	OpGt      FilterOp = "gt"
	OpGte     FilterOp = "gte"
	OpIsNull  FilterOp = "is_null"
	OpNotNull FilterOp = "not_null"
)

// FieldFilter is a predicate on one extracted column.
type FieldFilter struct {
	Field string
	Op    FilterOp
	Value float64
}

type Page struct {
	Items    []ProductView `json:"items"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int           `json:"total"`
}

type SearchResult struct {
	Query    string        `json:"query"`
	Items    []ProductView `json:"items"`
	Total    uint64        `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	// Degraded is set when the index answered but the stored records could
	// not be validated; Items is empty in that case.
	Degraded bool `json:"degraded,omitempty"`
}

type BucketCount struct {
	Label string   `db:"label" json:"label"`
	Low   *float64 `db:"-" json:"low,omitempty"`
	High  *float64 `db:"-" json:"high,omitempty"`
	Count int      `db:"count" json:"count"`
}

type Analytics struct {
	Catalog        string         `json:"catalog"`
	Products       int            `json:"products"`
	DistinctBrands int            `json:"distinct_brands"`
	MinPrice       *float64       `json:"min_price,omitempty"`
	AvgPrice       *float64       `json:"avg_price,omitempty"`
	MaxPrice       *float64       `json:"max_price,omitempty"`
	AvgRating      *float64       `json:"avg_rating,omitempty"`
	Discounted     int            `json:"discounted"`
	PriceQuartiles []BucketCount  `json:"price_quartiles"`
	TopBrands      []BucketCount  `json:"top_brands"`
	TopCategories  []BucketCount  `json:"top_categories"`
	Ratings        []BucketCount  `json:"ratings"`
	Coverage       map[string]int `json:"coverage"`
}
