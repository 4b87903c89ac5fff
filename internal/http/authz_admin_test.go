package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"shopindex/internal/http/handlers"
)

// admin routes require the configured token
func TestAdminGuardRequiresToken(t *testing.T) {
	ta := newTestApp(t)

	var code int
	entries := captureLogs(t, func() {
		code, _ = do(t, ta.app, httptest.NewRequest("POST", "/admin/catalogs/shoes/reindex", nil))
	})
	if code != http.StatusForbidden {
		t.Fatalf("anonymous expected 403, got %d", code)
	}
	e, ok := findAction(entries, "access.denied.admin")
	if !ok {
		t.Fatalf("expected access.denied.admin log, got %+v", entries)
	}
	assert.Equal(t, "warning", e.Level)

	wrong := httptest.NewRequest("POST", "/admin/catalogs/shoes/reindex", nil)
	wrong.Header.Set(handlers.AdminTokenHeader, "guess")
	if code, _ := do(t, ta.app, wrong); code != http.StatusForbidden {
		t.Fatalf("wrong token expected 403, got %d", code)
	}

	var body string
	entries = captureLogs(t, func() {
		ok := httptest.NewRequest("POST", "/admin/catalogs/shoes/reindex", nil)
		ok.Header.Set(handlers.AdminTokenHeader, adminToken)
		code, body = do(t, ta.app, ok)
	})
	if code != http.StatusOK {
		t.Fatalf("admin expected 200, got %d body=%s", code, body)
	}
	assert.Contains(t, body, `"indexed":3`)
	if _, ok := findAction(entries, "admin.reindex"); !ok {
		t.Fatalf("expected admin.reindex audit log")
	}

	missing := httptest.NewRequest("POST", "/admin/catalogs/ghost/reindex", nil)
	missing.Header.Set(handlers.AdminTokenHeader, adminToken)
	if code, _ := do(t, ta.app, missing); code != http.StatusNotFound {
		t.Fatalf("unknown catalog expected 404, got %d", code)
	}
}

func TestAdminGuardWithoutHashRefusesAll(t *testing.T) {
	app := fiber.New()
	app.Post("/admin/x", handlers.RequireAdmin(""), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	req := httptest.NewRequest("POST", "/admin/x", nil)
	req.Header.Set(handlers.AdminTokenHeader, "anything")
	if code, _ := do(t, app, req); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}
