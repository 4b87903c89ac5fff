package search_test

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopindex/internal/domain"
	"shopindex/internal/search"
)

func decode(t *testing.T, raw string) *domain.ProductGroup {
	t.Helper()
	pg, err := domain.DecodeProductGroup([]byte(raw))
	require.NoError(t, err)
	return pg
}

func TestResolveOffers_Shapes(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		count     int
		low, high float64
		currency  string
	}{
		{
			name:  "list",
			raw:   `{"offers":{"offers":[{"price":10,"priceCurrency":"USD"},{"price":15},{"price":12}]}}`,
			count: 3, low: 10, high: 15, currency: "USD",
		},
		{
			name:  "aggregate",
			raw:   `{"offers":{"@type":"AggregateOffer","lowPrice":5,"highPrice":20,"offerCount":7,"priceCurrency":"EUR"}}`,
			count: 7, low: 5, high: 20, currency: "EUR",
		},
		{
			name:  "single",
			raw:   `{"offers":{"@type":"Offer","price":9.99,"priceCurrency":"USD"}}`,
			count: 1, low: 9.99, high: 9.99, currency: "USD",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := search.BuildDocument(decode(t, tc.raw), "g")
			require.NoError(t, err)
			assert.Equal(t, float64(tc.count), doc.Fields["offer_count"])
			assert.Equal(t, tc.low, doc.Fields["low_price"])
			assert.Equal(t, tc.high, doc.Fields["high_price"])
			assert.Equal(t, tc.currency, doc.Fields["currency"])
			assert.False(t, doc.Partial)
		})
	}
}

func TestResolveOffers_ListSkipsUnpricedAndCollectsSellers(t *testing.T) {
	pg := decode(t, `{"offers":[
		{"price":"n/a","seller":{"name":"Shop A"}},
		{"priceSpecification":{"price":"4.5","priceCurrency":"GBP"},"seller":"Shop B"}
	]}`)
	s, partial := search.ResolveOffers(pg)
	assert.False(t, partial)
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 4.5, *s.Low)
	assert.Equal(t, "GBP", s.Currency)
	assert.Equal(t, []string{"Shop A", "Shop B"}, s.Sellers)
}

func TestResolveOffers_PoolsVariantsThenFallsBackToPriceInfo(t *testing.T) {
	pooled := decode(t, `{"hasVariant":[{"offers":{"price":8}},{"offers":[{"price":3},{"price":6}]}]}`)
	s, _ := search.ResolveOffers(pooled)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 3.0, *s.Low)
	assert.Equal(t, 8.0, *s.High)

	fallback := decode(t, `{"price_info":{"price":"11","currency_code":"CAD"}}`)
	s, _ = search.ResolveOffers(fallback)
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, 11.0, *s.Low)
	assert.Equal(t, "CAD", s.Currency)
	assert.True(t, s.FromPrice)
}

func TestBuildDocument_BrokenOffersKeepPartial(t *testing.T) {
	pg := &domain.ProductGroup{
		Product: domain.Product{
			Name:      "Lamp",
			Offers:    &domain.Offers{Kind: domain.OfferKindSingle},
			PriceInfo: &domain.PriceInfo{Price: domain.NewNumber(7)},
		},
		ProductGroupID: "g7",
	}
	doc, err := search.BuildDocument(pg, "")
	require.NoError(t, err)
	assert.True(t, doc.Partial)
	assert.Equal(t, "Lamp", doc.Fields["name"])
	assert.Equal(t, 7.0, doc.Fields["low_price"])
}

func TestBuildDocument_IdentityAndOmissions(t *testing.T) {
	pg := decode(t, `{"id":"p1","url":"https://x/p1","name":"  ","tags":["Sale","sale","New, Arrival"],"color_info":{"colors":["Navy"]}}`)

	doc, err := search.BuildDocument(pg, "")
	require.NoError(t, err)
	assert.Equal(t, search.SynthesizeID("p1", "https://x/p1"), doc.ID)
	assert.Equal(t, doc.ID, doc.Fields["productGroupID"])
	assert.NotContains(t, doc.Fields, "name")
	assert.NotContains(t, doc.Fields, "offer_count")
	assert.Equal(t, "Sale,New  Arrival", doc.Fields["tags"])
	assert.Equal(t, "Navy", doc.Fields["colors"])

	doc, err = search.BuildDocument(pg, "row-key")
	require.NoError(t, err)
	assert.Equal(t, "row-key", doc.ID)
}

func TestNewSchema_Validation(t *testing.T) {
	_, err := search.NewSchema([]search.Field{{"productGroupID", search.KindIdentifier}, {"name", search.KindText}, {"name", search.KindText}})
	assert.Error(t, err)
	_, err = search.NewSchema([]search.Field{{"productGroupID", search.KindIdentifier}, {"x", search.Kind(99)}})
	assert.Error(t, err)
	_, err = search.NewSchema([]search.Field{{"name", search.KindText}})
	assert.Error(t, err)

	s, err := search.NewSchema(search.DefaultFields)
	require.NoError(t, err)
	k, ok := s.Kind("tags")
	assert.True(t, ok)
	assert.Equal(t, search.KindKeywordList, k)
}

func buildIndex(t *testing.T, root string, schema *search.Schema, raws ...string) {
	t.Helper()
	w, err := search.NewWriter(root, "shoes", schema)
	require.NoError(t, err)
	var docs []search.Document
	for _, raw := range raws {
		d, err := search.BuildDocument(decode(t, raw), "")
		require.NoError(t, err)
		docs = append(docs, d)
	}
	require.NoError(t, w.Add(docs))
	require.NoError(t, w.Commit())
}

func TestWriterReader_SearchFieldsAndRanges(t *testing.T) {
	root := t.TempDir()
	buildIndex(t, root, search.DefaultSchema(),
		`{"productGroupID":"g1","name":"Trail running shoes","tags":["Outdoor","Sale"],"offers":{"price":120}}`,
		`{"productGroupID":"g2","name":"Leather boots","tags":["winter"],"offers":{"price":80}}`,
		`{"productGroupID":"g3","name":"Running socks","offers":{"price":9}}`,
	)

	r, err := search.OpenReader(root, "shoes")
	require.NoError(t, err)
	defer r.Close()

	res, err := r.Search("run", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Total, "stemmed match on running")

	res, err = r.Search("tags:sale", 0, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Total)
	assert.Equal(t, "g1", res.Hits[0].ID)
	assert.Equal(t, "Trail running shoes", res.Hits[0].Fields["name"])

	res, err = r.Search("low_price:<100", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Total)

	res, err = r.Search("", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
	assert.Len(t, res.Hits, 1)

	_, err = r.Search("low_price:>abc", 0, 10)
	assert.True(t, errors.Is(err, search.ErrInvalidQuery))
}

func TestWriter_CancelLeavesNothingAndCommitReplaces(t *testing.T) {
	root := t.TempDir()
	_, err := search.OpenReader(root, "shoes")
	assert.True(t, errors.Is(err, domain.ErrCatalogNotFound))

	w, err := search.NewWriter(root, "shoes", search.DefaultSchema())
	require.NoError(t, err)
	require.NoError(t, w.Cancel())
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)

	buildIndex(t, root, search.DefaultSchema(), `{"productGroupID":"a"}`, `{"productGroupID":"b"}`)
	buildIndex(t, root, search.DefaultSchema(), `{"productGroupID":"c"}`)

	r, err := search.OpenReader(root, "shoes")
	require.NoError(t, err)
	defer r.Close()
	n, err := r.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	entries, err = os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSchema_ProjectDropsUnknownFields(t *testing.T) {
	s, err := search.NewSchema([]search.Field{{"productGroupID", search.KindIdentifier}, {"name", search.KindText}})
	require.NoError(t, err)
	out := s.Project(map[string]any{"productGroupID": "g", "name": "n", "price": 1.0})
	assert.Equal(t, map[string]any{"productGroupID": "g", "name": "n"}, out)
}

func TestReaders_PickUpCommitsWithoutInvalidate(t *testing.T) {
	root := t.TempDir()
	readers := search.NewReaders(root)
	defer readers.Close()

	buildIndex(t, root, search.DefaultSchema(), `{"productGroupID":"a","name":"Red boots"}`)
	r, err := readers.Get("shoes")
	require.NoError(t, err)
	res, err := r.Search("boots", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)

	// a second writer, as a separate indexing process would
	buildIndex(t, root, search.DefaultSchema(),
		`{"productGroupID":"a","name":"Red boots"}`,
		`{"productGroupID":"b","name":"Blue boots"}`)
	r2, err := readers.Get("shoes")
	require.NoError(t, err)
	res, err = r2.Search("boots", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Total)

	same, err := readers.Get("shoes")
	require.NoError(t, err)
	assert.Same(t, r2, same, "unchanged commit keeps the cached reader")
}

func TestBuildDocument_VariesByAndImageURLs(t *testing.T) {
	raw := `{"productGroupID":"g1","name":"Tee","variesBy":["Color","size"],"images":["https://img/1.jpg",{"url":"https://img/2.jpg"}]}`
	doc, err := search.BuildDocument(decode(t, raw), "")
	require.NoError(t, err)
	assert.Equal(t, "Color,size", doc.Fields["variesBy"])
	assert.Equal(t, []string{"https://img/1.jpg", "https://img/2.jpg"}, doc.Fields["image_urls"])
	assert.Equal(t, "https://img/1.jpg", doc.Fields["image_url"])

	root := t.TempDir()
	buildIndex(t, root, search.DefaultSchema(), raw, `{"productGroupID":"g2","name":"Mug"}`)
	r, err := search.OpenReader(root, "shoes")
	require.NoError(t, err)
	defer r.Close()

	res, err := r.Search("variesBy:color", 0, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Total)
	assert.Equal(t, "g1", res.Hits[0].ID)
	assert.NotNil(t, res.Hits[0].Fields["image_urls"])
}
