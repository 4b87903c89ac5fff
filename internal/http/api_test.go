package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopindex/internal/domain"
)

func TestAPI_CatalogsAndProducts(t *testing.T) {
	ta := newTestApp(t)

	code, body := do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs", nil))
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"catalogs":["shoes"]}`, body)

	code, body = do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/products?page=1&page_size=2", nil))
	require.Equal(t, http.StatusOK, code)
	var page domain.Page
	decodeJSON(t, body, &page)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)

	code, body = do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/products/g2", nil))
	require.Equal(t, http.StatusOK, code)
	var p domain.ProductView
	decodeJSON(t, body, &p)
	assert.Equal(t, "Zeta", p.BrandName)
	require.NotNil(t, p.Price)
	assert.Equal(t, 80.0, *p.Price)

	code, _ = do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/products/missing", nil))
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/ghost/products", nil))
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_SearchReturnsStoredRecordsInHitOrder(t *testing.T) {
	ta := newTestApp(t)

	code, body := do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/search?q=running", nil))
	require.Equal(t, http.StatusOK, code, body)
	var res domain.SearchResult
	decodeJSON(t, body, &res)
	assert.Equal(t, uint64(1), res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "g1", res.Items[0].ProductGroupID)
	assert.False(t, res.Degraded)

	code, body = do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/search?q=low_price:%3C100", nil))
	require.Equal(t, http.StatusOK, code, body)
	decodeJSON(t, body, &res)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "g2", res.Items[0].ProductGroupID)

	code, _ = do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/ghost/search?q=boots", nil))
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_FilterAnalyticsRunsCrawls(t *testing.T) {
	ta := newTestApp(t)

	code, body := do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/filter?field=price&op=gte&value=100", nil))
	require.Equal(t, http.StatusOK, code, body)
	var page domain.Page
	decodeJSON(t, body, &page)
	assert.Equal(t, 1, page.Total)

	code, body = do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/filter?field=price&op=is_null", nil))
	require.Equal(t, http.StatusOK, code, body)
	decodeJSON(t, body, &page)
	assert.Equal(t, 1, page.Total)

	code, body = do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/analytics", nil))
	require.Equal(t, http.StatusOK, code, body)
	var a domain.Analytics
	decodeJSON(t, body, &a)
	assert.Equal(t, 3, a.Products)
	assert.Equal(t, 2, a.DistinctBrands)

	code, body = do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/runs", nil))
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"inserted":3`)

	code, body = do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/crawls", nil))
	require.Equal(t, http.StatusOK, code, body)
	assert.JSONEq(t, `{"catalog":"shoes","crawls":[]}`, body)
}

func TestPages_HomeAndBrowse(t *testing.T) {
	ta := newTestApp(t)

	code, body := do(t, ta.app, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `href="/catalog/shoes"`)

	code, body = do(t, ta.app, httptest.NewRequest("GET", "/catalog/shoes?q=boots", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Leather boots")
	assert.NotContains(t, body, "Trail running shoe")

	code, _ = do(t, ta.app, httptest.NewRequest("GET", "/catalog/ghost", nil))
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, ta.app, httptest.NewRequest("GET", "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, code)
}
