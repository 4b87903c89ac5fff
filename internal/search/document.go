package search

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"

	"shopindex/internal/domain"
)

// Document is the flat, index-ready form of one product group. Empty values
// are never present in Fields.
type Document struct {
	ID     string
	Fields map[string]any
	// Partial is set when offer resolution failed part way; the scalars
	// resolved before the failure are kept.
	Partial bool
}

// OfferSummary is what the three offer shapes are normalized into.
type OfferSummary struct {
	Count     int
	Low       *float64
	High      *float64
	Currency  string
	Sellers   []string
	FromPrice bool // filled from price_info rather than offers
}

// offerCollector visits one Offers value and accumulates the summary.
type offerCollector struct{ s *OfferSummary }

func (c offerCollector) price(v float64) {
	if c.s.Low == nil || v < *c.s.Low {
		x := v
		c.s.Low = &x
	}
	if c.s.High == nil || v > *c.s.High {
		x := v
		c.s.High = &x
	}
}

func (c offerCollector) VisitList(offers []domain.Offer) {
	for _, o := range offers {
		if p, ok := o.EffectivePrice(); ok {
			c.s.Count++
			c.price(p)
		}
		if c.s.Currency == "" {
			c.s.Currency = o.Currency()
		}
		if n := o.SellerName(); n != "" {
			c.s.Sellers = append(c.s.Sellers, n)
		}
	}
}

func (c offerCollector) VisitAggregate(a domain.AggregateOffer) {
	if n, ok := a.OfferCount.Int64(); ok {
		c.s.Count = int(n)
	}
	if v, ok := a.LowPrice.Float64(); ok {
		c.s.Low = &v
	}
	if v, ok := a.HighPrice.Float64(); ok {
		c.s.High = &v
	}
	c.s.Currency = a.PriceCurrency
	if a.Seller != nil && strings.TrimSpace(a.Seller.Name) != "" {
		c.s.Sellers = append(c.s.Sellers, strings.TrimSpace(a.Seller.Name))
	}
}

func (c offerCollector) VisitSingle(o domain.Offer) {
	c.s.Count = 1
	if p, ok := o.EffectivePrice(); ok {
		c.s.Low, c.s.High = &p, &p
	}
	c.s.Currency = o.Currency()
	if n := o.SellerName(); n != "" {
		c.s.Sellers = append(c.s.Sellers, n)
	}
}

// ResolveOffers normalizes the group's offers. Groups without offers of
// their own pool the single and list offers of their variants. When no
// price comes out of the offers, price_info is used. A panic while visiting
// keeps what was resolved so far and reports partial.
func ResolveOffers(pg *domain.ProductGroup) (s OfferSummary, partial bool) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				partial = true
			}
		}()
		c := offerCollector{s: &s}
		if pg.Offers != nil && pg.Offers.Kind != domain.OfferKindNone {
			pg.Offers.Visit(c)
			return
		}
		var pooled []domain.Offer
		for _, v := range pg.HasVariant {
			if v.Offers == nil {
				continue
			}
			switch v.Offers.Kind {
			case domain.OfferKindSingle:
				pooled = append(pooled, *v.Offers.Single)
			case domain.OfferKindList:
				pooled = append(pooled, v.Offers.List.Offers...)
			}
		}
		if len(pooled) > 0 {
			c.VisitList(pooled)
		}
	}()

	if s.Low == nil && pg.PriceInfo != nil {
		if v, ok := pg.PriceInfo.Price.Float64(); ok {
			s.Low, s.High = &v, &v
			s.FromPrice = true
		}
		if s.Currency == "" {
			s.Currency = pg.PriceInfo.CurrencyCode
		}
	}
	return s, partial
}

// keywordList joins values for a keyword-list field: trimmed, commas
// removed from entries, duplicates dropped ignoring case.
func keywordList(values []string) string {
	folder := cases.Fold()
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(strings.ReplaceAll(v, ",", " "))
		if v == "" {
			continue
		}
		k := folder.String(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return strings.Join(out, ",")
}

// SynthesizeID derives a stable id from a record's id and url.
func SynthesizeID(id, url string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(id))
	h.Write([]byte{'|'})
	h.Write([]byte(url))
	return "pg-" + hex.EncodeToString(h.Sum(nil))
}

type docFields map[string]any

func (d docFields) str(k, v string) {
	if v = strings.TrimSpace(v); v != "" {
		d[k] = v
	}
}

func (d docFields) list(k string, vs []string) {
	if s := keywordList(vs); s != "" {
		d[k] = s
	}
}

func (d docFields) num(k string, n domain.Number) {
	if v, ok := n.Float64(); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
		d[k] = v
	}
}

func (d docFields) ptr(k string, v *float64) {
	if v != nil {
		d[k] = *v
	}
}

// BuildDocument flattens a product group into a search document. fallbackID
// is used when the record has no productGroupID of its own; with neither, an
// id is synthesized from id and url.
func BuildDocument(pg *domain.ProductGroup, fallbackID string) (Document, error) {
	if pg == nil {
		return Document{}, fmt.Errorf("nil product group")
	}
	f := docFields{}

	id := strings.TrimSpace(pg.ProductGroupID.String())
	if id == "" {
		id = strings.TrimSpace(fallbackID)
	}
	if id == "" {
		id = SynthesizeID(pg.ID.String(), pg.URL)
	}
	f["productGroupID"] = id

	f.str("id", pg.ID.String())
	f.list("variesBy", pg.VariesBy)
	f.str("url", pg.URL)
	f.str("gtin", pg.GTIN.String())
	f.str("catalog", pg.Catalog)
	f.str("primary_product_id", pg.PrimaryProductID.String())
	f.str("language_code", pg.LanguageCode)
	f.str("availability", string(pg.Availability))

	f.str("name", pg.Name)
	f.str("description", pg.Description)
	f.str("extra_text", pg.ExtraText)
	if pg.Brand != nil {
		f.str("brand_name", pg.Brand.Name)
		f.str("brand_logo", pg.Brand.Logo)
	}

	f.list("tags", pg.Tags)
	f.list("sizes", pg.Sizes)
	f.list("materials", pg.Materials)
	f.list("patterns", pg.Patterns)
	var cats []string
	for _, c := range pg.Categories {
		cats = append(cats, c.Name)
	}
	f.list("categories", cats)
	if pg.ColorInfo != nil {
		var labels []string
		for _, c := range pg.ColorInfo.Colors {
			labels = append(labels, c.Label)
		}
		f.list("colors", labels)
		f.list("color_families", pg.ColorInfo.ColorFamilies)
	}
	if pg.Audience != nil {
		f.list("genders", pg.Audience.Genders)
		f.list("age_groups", pg.Audience.AgeGroups)
	}

	offers, partial := ResolveOffers(pg)
	if offers.Count > 0 {
		f["offer_count"] = float64(offers.Count)
	}
	f.ptr("low_price", offers.Low)
	f.ptr("high_price", offers.High)
	f.str("currency", offers.Currency)
	f.list("seller_names", offers.Sellers)

	if pg.PriceInfo != nil {
		f.num("price", pg.PriceInfo.Price)
		f.num("original_price", pg.PriceInfo.OriginalPrice)
	}
	if _, ok := f["price"]; !ok {
		f.ptr("price", offers.Low)
	}

	if pg.Rating != nil {
		f.num("rating", pg.Rating.AverageRating)
		f.num("review_count", pg.Rating.RatingCount)
	}
	if _, ok := f["review_count"]; !ok && len(pg.Review) > 0 {
		f["review_count"] = float64(len(pg.Review))
	}
	f.num("available_quantity", pg.AvailableQuantity)
	if len(pg.HasVariant) > 0 {
		f["variant_count"] = float64(len(pg.HasVariant))
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(pg.AvailableTime)); err == nil {
		f["available_time"] = t
	}

	switch {
	case pg.Image != nil && pg.Image.URL != "":
		f.str("image_url", pg.Image.URL)
	case len(pg.Images) > 0:
		f.str("image_url", pg.Images[0].URL)
	}
	var urls []string
	for _, im := range pg.Images {
		if u := strings.TrimSpace(im.URL); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) > 0 {
		f["image_urls"] = urls
	}

	return Document{ID: id, Fields: f, Partial: partial}, nil
}
