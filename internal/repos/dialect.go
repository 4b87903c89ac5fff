package repos

import (
	"fmt"
	"strconv"
	"strings"
)

// jsonPath is a path into a JSON document: string keys and int indexes.
type jsonPath []any

func at(parts ...any) jsonPath { return parts }

// dialect renders the engine-specific bits: JSON extraction with casts that
// never fail, column types, and byte-wise ordering.
type dialect interface {
	driver() string
	// jsonScalar yields the value at path as text when it is a string or
	// number, NULL otherwise.
	jsonScalar(col string, path jsonPath) string
	// jsonNumber yields a float when the value is a number or a numeric
	// string, NULL otherwise.
	jsonNumber(col string, path jsonPath) string
	jsonInt(col string, path jsonPath) string
	realType() string
	intType() string
	timeType() string
	binaryOrder(col string) string
	tableExistsQuery() string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "sqlite", "sqlmock":
		return sqliteDialect{}, nil
	case "pgx", "postgres":
		return postgresDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

type sqliteDialect struct{}

func (sqliteDialect) driver() string { return "sqlite" }

func (sqliteDialect) path(path jsonPath) string {
	var b strings.Builder
	b.WriteString("'$")
	for _, part := range path {
		switch v := part.(type) {
		case int:
			b.WriteString("[" + strconv.Itoa(v) + "]")
		case string:
			b.WriteString("." + v)
		}
	}
	b.WriteString("'")
	return b.String()
}

func (d sqliteDialect) jsonScalar(col string, path jsonPath) string {
	jp := d.path(path)
	return fmt.Sprintf("(CASE WHEN json_type(%[1]s, %[2]s) IN ('text','integer','real') THEN CAST(json_extract(%[1]s, %[2]s) AS TEXT) END)", col, jp)
}

func (d sqliteDialect) jsonNumber(col string, path jsonPath) string {
	jp := d.path(path)
	return fmt.Sprintf(`(CASE WHEN json_type(%[1]s, %[2]s) IN ('integer','real','text')
  THEN safe_real(json_extract(%[1]s, %[2]s)) END)`, col, jp)
}

func (d sqliteDialect) jsonInt(col string, path jsonPath) string {
	n := d.jsonNumber(col, path)
	return fmt.Sprintf("(CASE WHEN abs(%[1]s) < %[2]s THEN CAST(%[1]s AS INTEGER) END)", n, maxBigint)
}

// maxBigint bounds values cast to a 64-bit integer column.
const maxBigint = "9.2e18"

func (sqliteDialect) realType() string              { return "REAL" }
func (sqliteDialect) intType() string               { return "INTEGER" }
func (sqliteDialect) timeType() string              { return "TIMESTAMP" }
func (sqliteDialect) binaryOrder(col string) string { return col }
func (sqliteDialect) tableExistsQuery() string {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
}

type postgresDialect struct{}

func (postgresDialect) driver() string { return "pgx" }

func (postgresDialect) path(path jsonPath) string {
	parts := make([]string, 0, len(path))
	for _, part := range path {
		switch v := part.(type) {
		case int:
			parts = append(parts, strconv.Itoa(v))
		case string:
			parts = append(parts, v)
		}
	}
	return "'{" + strings.Join(parts, ",") + "}'"
}

func (d postgresDialect) jsonScalar(col string, path jsonPath) string {
	jp := d.path(path)
	return fmt.Sprintf("(CASE WHEN jsonb_typeof(%[1]s::jsonb #> %[2]s) IN ('string','number') THEN %[1]s::jsonb #>> %[2]s END)", col, jp)
}

// jsonNumber goes through numeric, which holds any JSON number exactly, and
// only casts to double precision inside its range.
func (d postgresDialect) jsonNumber(col string, path jsonPath) string {
	jp := d.path(path)
	num := fmt.Sprintf(`(CASE jsonb_typeof(%[1]s::jsonb #> %[2]s)
  WHEN 'number' THEN (%[1]s::jsonb #>> %[2]s)::numeric
  WHEN 'string' THEN CASE WHEN trim(%[1]s::jsonb #>> %[2]s) ~ '^[-+]{0,1}([0-9]+\.{0,1}[0-9]*|\.[0-9]+)([eE][-+]{0,1}[0-9]{1,4}){0,1}$'
    THEN trim(%[1]s::jsonb #>> %[2]s)::numeric END
END)`, col, jp)
	return fmt.Sprintf("(CASE WHEN abs(%[1]s) < 1e300 AND (%[1]s = 0 OR abs(%[1]s) > 1e-300) THEN (%[1]s)::double precision END)", num)
}

func (d postgresDialect) jsonInt(col string, path jsonPath) string {
	n := d.jsonNumber(col, path)
	return fmt.Sprintf("(CASE WHEN abs(%[1]s) < %[2]s THEN floor(%[1]s)::bigint END)", n, maxBigint)
}

func (postgresDialect) realType() string              { return "DOUBLE PRECISION" }
func (postgresDialect) intType() string               { return "BIGINT" }
func (postgresDialect) timeType() string              { return "TIMESTAMPTZ" }
func (postgresDialect) binaryOrder(col string) string { return col + ` COLLATE "C"` }
func (postgresDialect) tableExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`
}

// quote renders an identifier. Catalog names are validated before they get
// here, so quoting only guards keywords and leading digits.
func quote(ident string) string { return `"` + ident + `"` }

// extractedColumns are the scalar columns computed from the raw record, in
// table order, with their path expressions.
func extractedColumns(d dialect, col string) []struct{ Name, Expr string } {
	coalesce := func(exprs ...string) string { return "COALESCE(" + strings.Join(exprs, ", ") + ")" }
	return []struct{ Name, Expr string }{
		{"product_id", d.jsonScalar(col, at("id"))},
		{"brand_name", coalesce(d.jsonScalar(col, at("brand", "name")), d.jsonScalar(col, at("brand")))},
		{"name", d.jsonScalar(col, at("name"))},
		{"description", d.jsonScalar(col, at("description"))},
		{"product_image", coalesce(d.jsonScalar(col, at("image")), d.jsonScalar(col, at("image", "url")), d.jsonScalar(col, at("image", 0, "url")))},
		{"price", coalesce(
			d.jsonNumber(col, at("hasVariant", 0, "offers", 0, "priceSpecification", "price")),
			d.jsonNumber(col, at("hasVariant", 0, "offers", 0, "price")),
		)},
		{"original_price", d.jsonNumber(col, at("hasVariant", 0, "offers", 0, "priceSpecification", "originalPrice"))},
		{"rating", d.jsonNumber(col, at("review", 0, "reviewRating", "ratingValue"))},
		{"rating_count", d.jsonInt(col, at("review", 0, "reviewRating", "ratingCount"))},
	}
}
