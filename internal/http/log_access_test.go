package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// every request leaves an access entry with its request id
func TestAccessLogging(t *testing.T) {
	ta := newTestApp(t)

	entries := captureLogs(t, func() {
		do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/products/g1", nil))
	})
	e, ok := findAction(entries, "http.access")
	require.True(t, ok, "expected http.access entry, got %+v", entries)
	assert.Equal(t, 200, e.Status)
}

func TestValidationFailureIsSecurityLogged(t *testing.T) {
	ta := newTestApp(t)

	entries := captureLogs(t, func() {
		do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/filter?field=secret&op=eq&value=1", nil))
	})
	e, ok := findAction(entries, "validation.fail")
	require.True(t, ok)
	assert.Equal(t, "warning", e.Level)
	assert.Equal(t, "secret", e.Fields["field"])
}

func TestServerErrorsAreLoggedNotLeaked(t *testing.T) {
	ta := newTestApp(t)

	// product table vanishes underneath the service
	st, err := ta.stores.Open(context.Background(), "shoes")
	require.NoError(t, err)
	_, err = st.DB.Exec(`ALTER TABLE "shoes_extracted" RENAME COLUMN name TO name_gone`)
	require.NoError(t, err)

	var code int
	var body string
	entries := captureLogs(t, func() {
		code, body = do(t, ta.app, httptest.NewRequest("GET", "/api/v1/catalogs/shoes/products", nil))
	})
	assert.Equal(t, 500, code)
	assert.JSONEq(t, `{"error":"something went wrong"}`, body)
	e, ok := findAction(entries, "api.products.fail")
	require.True(t, ok)
	assert.Equal(t, "error", e.Level)
}
