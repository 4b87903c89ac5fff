// Package search turns product groups into flat search documents and keeps
// one bleve index per catalog.
package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
)

type Kind int

const (
	// KindText is stored and analyzed with English stemming.
	KindText Kind = iota + 1
	// KindIdentifier is stored verbatim as a single term.
	KindIdentifier
	// KindKeywordList is a comma-joined list matched per entry, ignoring case.
	KindKeywordList
	KindNumeric
	KindDateTime
	// KindStored is kept for display only.
	KindStored
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindIdentifier:
		return "identifier"
	case KindKeywordList:
		return "keyword_list"
	case KindNumeric:
		return "numeric"
	case KindDateTime:
		return "datetime"
	case KindStored:
		return "stored"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Field struct {
	Name string
	Kind Kind
}

const (
	commaTokenizer      = "comma"
	keywordListAnalyzer = "keyword_list"
)

// DefaultFields is the index layout for product groups.
var DefaultFields = []Field{
	{"id", KindIdentifier},
	{"productGroupID", KindIdentifier},
	{"url", KindIdentifier},
	{"gtin", KindIdentifier},
	{"catalog", KindIdentifier},
	{"primary_product_id", KindIdentifier},
	{"language_code", KindIdentifier},
	{"availability", KindIdentifier},
	{"currency", KindIdentifier},

	{"name", KindText},
	{"description", KindText},
	{"extra_text", KindText},
	{"brand_name", KindText},

	{"tags", KindKeywordList},
	{"variesBy", KindKeywordList},
	{"sizes", KindKeywordList},
	{"materials", KindKeywordList},
	{"patterns", KindKeywordList},
	{"colors", KindKeywordList},
	{"color_families", KindKeywordList},
	{"categories", KindKeywordList},
	{"seller_names", KindKeywordList},
	{"genders", KindKeywordList},
	{"age_groups", KindKeywordList},

	{"price", KindNumeric},
	{"original_price", KindNumeric},
	{"rating", KindNumeric},
	{"review_count", KindNumeric},
	{"available_quantity", KindNumeric},
	{"offer_count", KindNumeric},
	{"low_price", KindNumeric},
	{"high_price", KindNumeric},
	{"variant_count", KindNumeric},

	{"available_time", KindDateTime},

	{"image_url", KindStored},
	{"image_urls", KindStored},
	{"brand_logo", KindStored},
}

// Schema is the validated field table the index is built from.
type Schema struct {
	fields []Field
	kinds  map[string]Kind
}

// NewSchema checks a field table: names must be unique and non-empty, kinds
// known, and productGroupID present as an identifier.
func NewSchema(fields []Field) (*Schema, error) {
	s := &Schema{kinds: make(map[string]Kind, len(fields))}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("search schema: empty field name")
		}
		if f.Kind < KindText || f.Kind > KindStored {
			return nil, fmt.Errorf("search schema: field %q has unknown kind %d", f.Name, int(f.Kind))
		}
		if _, dup := s.kinds[f.Name]; dup {
			return nil, fmt.Errorf("search schema: duplicate field %q", f.Name)
		}
		s.kinds[f.Name] = f.Kind
		s.fields = append(s.fields, f)
	}
	if s.kinds["productGroupID"] != KindIdentifier {
		return nil, fmt.Errorf("search schema: productGroupID must be an identifier field")
	}
	return s, nil
}

// DefaultSchema is NewSchema(DefaultFields); the table is static so a
// failure is a programming error.
func DefaultSchema() *Schema {
	s, err := NewSchema(DefaultFields)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Fields() []Field { return append([]Field(nil), s.fields...) }

func (s *Schema) Kind(name string) (Kind, bool) {
	k, ok := s.kinds[name]
	return k, ok
}

// Project keeps the document fields the schema knows.
func (s *Schema) Project(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := s.kinds[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Mapping builds the bleve index mapping. Only text fields feed the
// composite default field, so bare query terms search text.
func (s *Schema) Mapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomTokenizer(commaTokenizer, map[string]interface{}{
		"type":   regexp.Name,
		"regexp": `[^,]+`,
	}); err != nil {
		return nil, err
	}
	if err := im.AddCustomAnalyzer(keywordListAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     commaTokenizer,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, err
	}

	dm := bleve.NewDocumentStaticMapping()
	for _, f := range s.fields {
		var fm *mapping.FieldMapping
		switch f.Kind {
		case KindText:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = en.AnalyzerName
			fm.IncludeInAll = true
		case KindIdentifier:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = keyword.Name
			fm.IncludeInAll = false
		case KindKeywordList:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = keywordListAnalyzer
			fm.IncludeInAll = false
		case KindNumeric:
			fm = bleve.NewNumericFieldMapping()
			fm.IncludeInAll = false
		case KindDateTime:
			fm = bleve.NewDateTimeFieldMapping()
			fm.IncludeInAll = false
		case KindStored:
			fm = bleve.NewTextFieldMapping()
			fm.Index = false
			fm.IncludeInAll = false
		}
		fm.Store = true
		dm.AddFieldMappingsAt(f.Name, fm)
	}
	im.DefaultMapping = dm
	im.DefaultAnalyzer = en.AnalyzerName
	if err := im.Validate(); err != nil {
		return nil, fmt.Errorf("search mapping: %w", err)
	}
	return im, nil
}
