package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopindex/internal/domain"
)

func TestOffers_DecodeShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind domain.OfferKind
	}{
		{"single", `{"@type":"Offer","price":9.99,"priceCurrency":"USD"}`, domain.OfferKindSingle},
		{"aggregate by type", `{"@type":"AggregateOffer","priceCurrency":"USD"}`, domain.OfferKindAggregate},
		{"aggregate by fields", `{"lowPrice":"5","highPrice":20,"offerCount":7}`, domain.OfferKindAggregate},
		{"wrapper", `{"offers":[{"price":1},{"price":2}],"url":"https://x"}`, domain.OfferKindList},
		{"bare array", `[{"price":1}]`, domain.OfferKindList},
		{"string", `"n/a"`, domain.OfferKindNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var o domain.Offers
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &o))
			assert.Equal(t, tc.kind, o.Kind)
		})
	}
}

func TestOffers_RoundTripKeepsShape(t *testing.T) {
	for _, raw := range []string{
		`[{"price":1}]`,
		`{"offers":[{"price":1}]}`,
		`{"@type":"AggregateOffer","lowPrice":5}`,
	} {
		var o domain.Offers
		require.NoError(t, json.Unmarshal([]byte(raw), &o))
		out, err := json.Marshal(o)
		require.NoError(t, err)
		var back domain.Offers
		require.NoError(t, json.Unmarshal(out, &back))
		assert.Equal(t, o.Kind, back.Kind, raw)
	}
}

func TestNumber_Lenient(t *testing.T) {
	var v struct {
		A domain.Number `json:"a"`
		B domain.Number `json:"b"`
		C domain.Number `json:"c"`
		D domain.Number `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":1.5,"b":" 2.25 ","c":"free","d":null}`), &v))

	a, ok := v.A.Float64()
	assert.True(t, ok)
	assert.Equal(t, 1.5, a)
	b, ok := v.B.Float64()
	assert.True(t, ok)
	assert.Equal(t, 2.25, b)
	assert.False(t, v.C.Valid)
	assert.False(t, v.D.Valid)
}

func TestParseNumber_WholeStringOnly(t *testing.T) {
	for _, s := range []string{"5-10", "1.2.3", "10e", "--3", "e", "NaN", "Inf", "1e400", "0x1p3", "1_000", ""} {
		_, ok := domain.ParseNumber(s)
		assert.False(t, ok, s)
	}
	f, ok := domain.ParseNumber(" -3e2 ")
	require.True(t, ok)
	assert.Equal(t, -300.0, f)

	var v struct {
		P domain.Number `json:"p"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"p":"5-10"}`), &v))
	assert.False(t, v.P.Valid)
}

type kindRecorder struct{ got []string }

func (r *kindRecorder) VisitSingle(o domain.Offer)             { r.got = append(r.got, "single") }
func (r *kindRecorder) VisitAggregate(a domain.AggregateOffer) { r.got = append(r.got, "aggregate") }
func (r *kindRecorder) VisitList(offers []domain.Offer)        { r.got = append(r.got, "list") }

func TestOffers_ConstructorsVisitAndEncode(t *testing.T) {
	single := domain.SingleOffer(domain.Offer{Price: domain.NewNumber(9)})
	agg := domain.AggregateOffers(domain.AggregateOffer{LowPrice: domain.NewNumber(5)})
	list := domain.ListOffers(domain.Offer{Price: domain.NewNumber(1)}, domain.Offer{Price: domain.NewNumber(2)})

	rec := &kindRecorder{}
	for _, o := range []*domain.Offers{single, agg, list, nil} {
		o.Visit(rec)
	}
	assert.Equal(t, []string{"single", "aggregate", "list"}, rec.got)

	b, err := json.Marshal(agg)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"@type":"AggregateOffer"`)

	b, err = json.Marshal(list)
	require.NoError(t, err)
	var back domain.Offers
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, domain.OfferKindList, back.Kind)
	assert.Len(t, back.List.Offers, 2)
}

func TestProductGroup_DecodeAliasesAndVariants(t *testing.T) {
	raw := `{
		"id": 123,
		"productGroupID": "pg-1",
		"url": "https://shop.example/p/1",
		"name": "Trail Runner",
		"brand": "Acme",
		"categories": ["Shoes", {"name": "Running", "url": "https://shop.example/c/run"}],
		"aggregateRating": {"ratingValue": "4.5", "ratingCount": 12},
		"reviews": [{"author": "sam", "reviewRating": {"ratingValue": 5}}],
		"addtional_attributes": {"vendor": {"text": ["v1"]}},
		"tags": "sale",
		"color_info": {"color_families": ["Blue"], "colors": ["Navy", {"label": "Sky", "swatch_url": "https://s"}]},
		"availability": "https://schema.org/InStock",
		"variesBy": ["https://schema.org/size"],
		"hasVariant": [{"id": "v1", "offers": [{"priceSpecification": {"price": "19.5"}}]}]
	}`
	g, err := domain.DecodeProductGroup([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, domain.FlexString("123"), g.ID)
	assert.Equal(t, domain.FlexString("pg-1"), g.ProductGroupID)
	require.NotNil(t, g.Brand)
	assert.Equal(t, "Acme", g.Brand.Name)
	require.Len(t, g.Categories, 2)
	assert.Equal(t, "Shoes", g.Categories[0].Name)
	require.NotNil(t, g.Rating)
	avg, _ := g.Rating.AverageRating.Float64()
	assert.Equal(t, 4.5, avg)
	require.Len(t, g.Review, 1)
	assert.Equal(t, "sam", g.Review[0].Author.Name)
	assert.Equal(t, []string{"v1"}, []string(g.AdditionalAttributes["vendor"].Text))
	assert.Equal(t, domain.StringList{"sale"}, g.Tags)
	require.Len(t, g.ColorInfo.Colors, 2)
	assert.Equal(t, "Navy", g.ColorInfo.Colors[0].Label)
	assert.Equal(t, domain.InStock, g.Availability)
	require.Len(t, g.HasVariant, 1)
	require.NotNil(t, g.HasVariant[0].Offers)
	p, ok := g.HasVariant[0].Offers.List.Offers[0].EffectivePrice()
	assert.True(t, ok)
	assert.Equal(t, 19.5, p)
}

func TestRating_OutOfRangeDiscarded(t *testing.T) {
	var r domain.Rating
	require.NoError(t, json.Unmarshal([]byte(`{"ratingValue": 9, "ratingCount": 3}`), &r))
	assert.False(t, r.AverageRating.Valid)
	assert.True(t, r.RatingCount.Valid)
}

func TestProductGroup_IdentityByURL(t *testing.T) {
	a := &domain.ProductGroup{Product: domain.Product{URL: "https://x/1"}, ProductGroupID: "a"}
	b := &domain.ProductGroup{Product: domain.Product{URL: "https://x/1"}, ProductGroupID: "b"}
	c := &domain.ProductGroup{ProductGroupID: "a"}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, c.Equal(c))
	_, ok := c.Key()
	assert.False(t, ok)
}

func TestParseAvailability(t *testing.T) {
	assert.Equal(t, domain.OutOfStock, domain.ParseAvailability("OUT_OF_STOCK"))
	assert.Equal(t, domain.Preorder, domain.ParseAvailability("http://schema.org/PreOrder"))
	assert.Equal(t, domain.Backorder, domain.ParseAvailability("BackOrder"))
	assert.Equal(t, domain.AvailabilityUnspecified, domain.ParseAvailability("maybe"))
	assert.Equal(t, domain.Availability(""), domain.ParseAvailability(""))
}

func TestLoadStats_Skipped(t *testing.T) {
	s := domain.LoadStats{Rows: 10, Inserted: 6, Duplicates: 2, MissingKey: 1, Malformed: 1}
	assert.Equal(t, 4, s.Skipped())
}
