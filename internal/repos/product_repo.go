package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"shopindex/internal/domain"
)

// StagedRow is one record ready to be merged: the semantic key and the
// serialized product group.
type StagedRow struct {
	ProductGroupID   string
	ExtractedProduct string
}

const stageTable = "stage_products"

const productCols = `product_group_id, catalog, extracted_product, product_id, brand_name, name,
  description, product_image, price, original_price, rating, rating_count`

// filterColumns are the extracted columns a filter may name, with whether
// they accept numeric comparisons.
var filterColumns = map[string]bool{
	"price":          true,
	"original_price": true,
	"rating":         true,
	"rating_count":   true,
	"brand_name":     false,
	"name":           false,
	"description":    false,
	"product_image":  false,
	"product_id":     false,
}

var filterOps = map[domain.FilterOp]string{
	domain.OpEq:  "=",
	domain.OpNe:  "<>",
	domain.OpLt:  "<",
	domain.OpLte: "<=",
	domain.OpGt:  ">",
	domain.OpGte: ">=",
}

type ProductRepo struct{ st *Store }

func NewProductRepo(st *Store) *ProductRepo { return &ProductRepo{st: st} }

// EnsureTables creates the raw and extracted relations if missing.
func (r *ProductRepo) EnsureTables(ctx context.Context) error {
	d := r.st.d
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
  product_group_id TEXT NOT NULL,
  extracted_product TEXT NOT NULL
)`, r.st.rawTable()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
  product_group_id TEXT NOT NULL,
  catalog TEXT,
  extracted_product TEXT NOT NULL,
  product_id TEXT,
  brand_name TEXT,
  name TEXT,
  description TEXT,
  product_image TEXT,
  price %[2]s,
  original_price %[2]s,
  rating %[2]s,
  rating_count %[3]s
)`, r.st.extractedTable(), d.realType(), d.intType()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(product_group_id)`,
			quote("idx_"+r.st.table+"_pgid"), r.st.rawTable()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(product_group_id)`,
			quote("idx_"+r.st.table+"_extracted_pgid"), r.st.extractedTable()),
	}
	for _, s := range stmts {
		if _, err := r.st.DB.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("create product tables: %w", err)
		}
	}
	return nil
}

// DropTables removes both product relations.
func (r *ProductRepo) DropTables(ctx context.Context) error {
	for _, t := range []string{r.st.extractedTable(), r.st.rawTable()} {
		if _, err := r.st.DB.ExecContext(ctx, `DROP TABLE IF EXISTS `+t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return nil
}

// Merge stages rows in a temp table and inserts, per key, the row with the
// smallest serialization, skipping keys already present. It runs in one
// transaction and returns the number of new keys.
func (r *ProductRepo) Merge(ctx context.Context, rows []StagedRow) (int, error) {
	tx, err := r.st.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+stageTable); err != nil {
		return 0, fmt.Errorf("drop stage table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE `+stageTable+`(
  product_group_id TEXT NOT NULL,
  extracted_product TEXT NOT NULL
)`); err != nil {
		return 0, fmt.Errorf("create stage table: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO `+stageTable+`(product_group_id, extracted_product) VALUES (?, ?)`))
	if err != nil {
		return 0, fmt.Errorf("prepare stage insert: %w", err)
	}
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.ProductGroupID, row.ExtractedProduct); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("stage row %s: %w", row.ProductGroupID, err)
		}
	}
	stmt.Close()

	firstPerKey := fmt.Sprintf(`SELECT product_group_id, extracted_product FROM (
  SELECT s.product_group_id, s.extracted_product,
    ROW_NUMBER() OVER (PARTITION BY s.product_group_id ORDER BY %s) AS rn
  FROM %s s
) t
WHERE t.rn = 1`, r.st.d.binaryOrder("s.extracted_product"), stageTable)

	var exprs []string
	for _, c := range extractedColumns(r.st.d, "t.extracted_product") {
		exprs = append(exprs, c.Expr)
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %[1]s(%[2]s)
SELECT t.product_group_id, %[3]s, t.extracted_product, %[4]s
FROM (%[5]s) t
WHERE NOT EXISTS (SELECT 1 FROM %[1]s m WHERE m.product_group_id = t.product_group_id)`,
		r.st.extractedTable(), productCols, sqlString(r.st.Catalog), strings.Join(exprs, ",\n  "), firstPerKey))
	if err != nil {
		return 0, fmt.Errorf("merge extracted: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %[1]s(product_group_id, extracted_product)
SELECT t.product_group_id, t.extracted_product
FROM (%[2]s) t
WHERE NOT EXISTS (SELECT 1 FROM %[1]s m WHERE m.product_group_id = t.product_group_id)`,
		r.st.rawTable(), firstPerKey)); err != nil {
		return 0, fmt.Errorf("merge raw: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DROP TABLE `+stageTable); err != nil {
		return 0, fmt.Errorf("drop stage table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(inserted), nil
}

// sqlString renders a literal. Catalog names are validated, so this only
// ever sees [a-z0-9_-].
func sqlString(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

func (r *ProductRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.st.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+r.st.extractedTable())
	return n, err
}

func (r *ProductRepo) RawCount(ctx context.Context) (int, error) {
	var n int
	err := r.st.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+r.st.rawTable())
	return n, err
}

func (r *ProductRepo) List(ctx context.Context, limit, offset int) ([]domain.ExtractedProduct, error) {
	var out []domain.ExtractedProduct
	err := r.st.DB.SelectContext(ctx, &out, r.st.DB.Rebind(`
SELECT `+productCols+`
FROM `+r.st.extractedTable()+`
ORDER BY product_group_id
LIMIT ? OFFSET ?`), limit, offset)
	return out, err
}

// Get returns the row for a product group id; sql.ErrNoRows when absent.
func (r *ProductRepo) Get(ctx context.Context, id string) (domain.ExtractedProduct, error) {
	var e domain.ExtractedProduct
	err := r.st.DB.GetContext(ctx, &e, r.st.DB.Rebind(`
SELECT `+productCols+`
FROM `+r.st.extractedTable()+`
WHERE product_group_id = ?`), id)
	return e, err
}

// ByIDs fetches rows for the given ids. Order is unspecified.
func (r *ProductRepo) ByIDs(ctx context.Context, ids []string) ([]domain.ExtractedProduct, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT `+productCols+` FROM `+r.st.extractedTable()+` WHERE product_group_id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var out []domain.ExtractedProduct
	err = r.st.DB.SelectContext(ctx, &out, r.st.DB.Rebind(q), args...)
	return out, err
}

// After is the keyset page following afterID, ordered by product group id.
func (r *ProductRepo) After(ctx context.Context, afterID string, limit int) ([]domain.ExtractedProduct, error) {
	var out []domain.ExtractedProduct
	err := r.st.DB.SelectContext(ctx, &out, r.st.DB.Rebind(`
SELECT `+productCols+`
FROM `+r.st.extractedTable()+`
WHERE `+r.st.d.binaryOrder("product_group_id")+` > ?
ORDER BY `+r.st.d.binaryOrder("product_group_id")+`
LIMIT ?`), afterID, limit)
	return out, err
}

// Filter evaluates one predicate on an extracted column and returns a page
// of matches plus the total match count.
func (r *ProductRepo) Filter(ctx context.Context, f domain.FieldFilter, limit, offset int) ([]domain.ExtractedProduct, int, error) {
	numeric, ok := filterColumns[f.Field]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown field %q", domain.ErrInvalidFilter, f.Field)
	}
	var where string
	var args []any
	switch f.Op {
	case domain.OpIsNull:
		where = f.Field + " IS NULL"
	case domain.OpNotNull:
		where = f.Field + " IS NOT NULL"
	default:
		op, ok := filterOps[f.Op]
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown op %q", domain.ErrInvalidFilter, f.Op)
		}
		if !numeric {
			return nil, 0, fmt.Errorf("%w: %s only supports null checks", domain.ErrInvalidFilter, f.Field)
		}
		where = f.Field + " " + op + " ?"
		args = append(args, f.Value)
	}

	var total int
	if err := r.st.DB.GetContext(ctx, &total, r.st.DB.Rebind(
		`SELECT COUNT(*) FROM `+r.st.extractedTable()+` WHERE `+where), args...); err != nil {
		return nil, 0, err
	}
	var out []domain.ExtractedProduct
	err := r.st.DB.SelectContext(ctx, &out, r.st.DB.Rebind(`
SELECT `+productCols+`
FROM `+r.st.extractedTable()+`
WHERE `+where+`
ORDER BY product_group_id
LIMIT ? OFFSET ?`), append(args, limit, offset)...)
	return out, total, err
}

// Analytics aggregates the extracted relation.
func (r *ProductRepo) Analytics(ctx context.Context) (domain.Analytics, error) {
	t := r.st.extractedTable()
	a := domain.Analytics{Catalog: r.st.Catalog}

	var sums struct {
		Products   int             `db:"products"`
		Brands     int             `db:"brands"`
		MinPrice   sql.NullFloat64 `db:"min_price"`
		AvgPrice   sql.NullFloat64 `db:"avg_price"`
		MaxPrice   sql.NullFloat64 `db:"max_price"`
		AvgRating  sql.NullFloat64 `db:"avg_rating"`
		Discounted int             `db:"discounted"`
		WithName   int             `db:"with_name"`
		WithBrand  int             `db:"with_brand"`
		WithDesc   int             `db:"with_description"`
		WithImage  int             `db:"with_image"`
		WithPrice  int             `db:"with_price"`
		WithRating int             `db:"with_rating"`
	}
	if err := r.st.DB.GetContext(ctx, &sums, `
SELECT
  COUNT(*) AS products,
  COUNT(DISTINCT brand_name) AS brands,
  MIN(price) AS min_price,
  AVG(price) AS avg_price,
  MAX(price) AS max_price,
  AVG(rating) AS avg_rating,
  COALESCE(SUM(CASE WHEN original_price > price THEN 1 ELSE 0 END), 0) AS discounted,
  COUNT(name) AS with_name,
  COUNT(brand_name) AS with_brand,
  COUNT(description) AS with_description,
  COUNT(product_image) AS with_image,
  COUNT(price) AS with_price,
  COUNT(rating) AS with_rating
FROM `+t); err != nil {
		return a, fmt.Errorf("analytics totals: %w", err)
	}
	a.Products = sums.Products
	a.DistinctBrands = sums.Brands
	a.MinPrice = nullFloat(sums.MinPrice)
	a.AvgPrice = nullFloat(sums.AvgPrice)
	a.MaxPrice = nullFloat(sums.MaxPrice)
	a.AvgRating = nullFloat(sums.AvgRating)
	a.Discounted = sums.Discounted
	a.Coverage = map[string]int{
		"name": sums.WithName, "brand_name": sums.WithBrand, "description": sums.WithDesc,
		"product_image": sums.WithImage, "price": sums.WithPrice, "rating": sums.WithRating,
	}

	var quartiles []struct {
		Bucket int             `db:"bucket"`
		Low    sql.NullFloat64 `db:"low"`
		High   sql.NullFloat64 `db:"high"`
		Count  int             `db:"count"`
	}
	if err := r.st.DB.SelectContext(ctx, &quartiles, `
SELECT bucket, MIN(price) AS low, MAX(price) AS high, COUNT(*) AS count
FROM (SELECT price, NTILE(4) OVER (ORDER BY price) AS bucket FROM `+t+` WHERE price IS NOT NULL) q
GROUP BY bucket
ORDER BY bucket`); err != nil {
		return a, fmt.Errorf("analytics quartiles: %w", err)
	}
	for _, q := range quartiles {
		a.PriceQuartiles = append(a.PriceQuartiles, domain.BucketCount{
			Label: fmt.Sprintf("Q%d", q.Bucket), Low: nullFloat(q.Low), High: nullFloat(q.High), Count: q.Count,
		})
	}

	if err := r.st.DB.SelectContext(ctx, &a.TopBrands, `
SELECT brand_name AS label, COUNT(*) AS count
FROM `+t+`
WHERE brand_name IS NOT NULL
GROUP BY brand_name
ORDER BY count DESC, brand_name
LIMIT 10`); err != nil {
		return a, fmt.Errorf("analytics brands: %w", err)
	}

	if err := r.st.DB.SelectContext(ctx, &a.Ratings, `
SELECT label, COUNT(*) AS count FROM (
  SELECT CASE
    WHEN rating < 2 THEN '1'
    WHEN rating < 3 THEN '2'
    WHEN rating < 4 THEN '3'
    WHEN rating < 5 THEN '4'
    ELSE '5' END AS label
  FROM `+t+`
  WHERE rating IS NOT NULL
) r
GROUP BY label
ORDER BY label`); err != nil {
		return a, fmt.Errorf("analytics ratings: %w", err)
	}

	cats, err := r.TopCategories(ctx, 10)
	if err != nil {
		return a, err
	}
	a.TopCategories = cats
	return a, nil
}

// TopCategories counts products by their first category.
func (r *ProductRepo) TopCategories(ctx context.Context, limit int) ([]domain.BucketCount, error) {
	d := r.st.d
	expr := "COALESCE(" + d.jsonScalar("extracted_product", at("categories", 0, "name")) + ", " +
		d.jsonScalar("extracted_product", at("categories", 0)) + ")"
	var out []domain.BucketCount
	err := r.st.DB.SelectContext(ctx, &out, r.st.DB.Rebind(`
SELECT label, COUNT(*) AS count FROM (
  SELECT `+expr+` AS label FROM `+r.st.extractedTable()+`
) c
WHERE label IS NOT NULL
GROUP BY label
ORDER BY count DESC, label
LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}
	return out, nil
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// IsNotFound reports a missing row.
func IsNotFound(err error) bool { return errors.Is(err, sql.ErrNoRows) }
