package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	reCatalog = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)
	// query-string syntax: terms, field:value, ranges, phrases, +/- and wildcards
	reQ = regexp.MustCompile(`^[\p{L}\p{N} _'"\-.,:<>=*+~()/&@#$%]{1,200}$`)
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	_ = val.RegisterValidation("catalog", func(fl validator.FieldLevel) bool {
		return reCatalog.MatchString(fl.Field().String())
	})
	_ = val.RegisterValidation("query", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || reQ.MatchString(s)
	})
	return val
}

// Struct runs the tag rules on a request parameter struct.
func Struct(s any) error {
	if err := v.Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return fmt.Errorf("invalid %s", strings.ToLower(ve[0].Field()))
		}
		return err
	}
	return nil
}

// Catalog validates a catalog name as used in paths and store names.
func Catalog(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reCatalog.MatchString(s)
}

// Q validates a search query: trims, enforces allowed characters and max length.
// An empty query is valid and matches everything.
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	if len(s) > 200 {
		return "", false
	}
	return s, reQ.MatchString(s)
}

// ID validates a product group id: printable, at most 256 bytes.
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 256 {
		return "", false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return "", false
		}
	}
	return s, true
}

// Page parses a 1-based page number; anything invalid is page 1.
func Page(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	if n > 10000 {
		return 10000
	}
	return n
}

// PageSize clamps a page size to 1..100, defaulting to 12.
func PageSize(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 12
	}
	if n > 100 {
		return 100
	}
	return n
}

// SearchParams are the query parameters of a search request.
type SearchParams struct {
	Q        string `query:"q" validate:"max=200,query"`
	Page     int    `query:"page" validate:"omitempty,min=1,max=10000"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// FilterParams are the query parameters of a field filter request.
type FilterParams struct {
	Field    string   `query:"field" validate:"required,oneof=price original_price rating rating_count brand_name name description product_image product_id"`
	Op       string   `query:"op" validate:"required,oneof=eq ne lt lte gt gte is_null not_null"`
	Value    *float64 `query:"value"`
	Page     int      `query:"page" validate:"omitempty,min=1,max=10000"`
	PageSize int      `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// Check validates the tags and that comparisons carry a value.
func (p FilterParams) Check() error {
	if err := Struct(p); err != nil {
		return err
	}
	if p.Op != "is_null" && p.Op != "not_null" && p.Value == nil {
		return fmt.Errorf("invalid value")
	}
	return nil
}

// CrawlParams filter the crawl listing.
type CrawlParams struct {
	URL   string `query:"url" validate:"omitempty,url,max=2048"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=100"`
}
