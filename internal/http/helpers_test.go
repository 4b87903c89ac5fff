package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"shopindex/internal/config"
	"shopindex/internal/http/handlers"
	applog "shopindex/internal/log"
	"shopindex/internal/repos"
	"shopindex/internal/search"
	"shopindex/internal/services"
)

const adminToken = "letmein-reindex"

type record struct {
	ProductGroupID   string `parquet:"product_group_id"`
	ExtractedProduct string `parquet:"extracted_product"`
}

var fixtureRecords = []record{
	{"g1", `{"productGroupID":"g1","name":"Trail running shoe","brand":{"name":"Acme"},"offers":{"price":120},"hasVariant":[{"offers":[{"priceSpecification":{"price":120}}]}]}`},
	{"g2", `{"productGroupID":"g2","name":"Leather boots","brand":"Zeta","offers":{"price":80},"hasVariant":[{"offers":[{"priceSpecification":{"price":80}}]}]}`},
	{"xss-1", `{"productGroupID":"xss-1","name":"<script>alert(1)</script>","description":"<b>desc</b>"}`},
}

type testApp struct {
	app    *fiber.App
	stores *repos.Stores
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	stores := repos.NewStores("sqlite", "", filepath.Join(dir, "data"))
	readers := search.NewReaders(filepath.Join(dir, "index"))
	t.Cleanup(func() {
		readers.Close()
		_ = stores.Close()
	})

	file := filepath.Join(dir, "part-0.parquet")
	if err := parquet.WriteFile(file, fixtureRecords); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := services.NewLoader(stores).Load(ctx, []string{file}, "shoes"); err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	indexer := services.NewIndexer(stores, readers, search.DefaultSchema(), 100)
	if _, err := indexer.Build(ctx, "shoes"); err != nil {
		t.Fatalf("index fixture: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	cfg := config.Config{AdminTokenHash: string(hash), IndexBatchSize: 100}
	deps := handlers.NewDeps(stores, readers, &services.Pipeline{Indexer: indexer}, cfg)
	app := handlers.NewApp(deps, handlers.NewViews("../../web/templates"), "")
	return testApp{app: app, stores: stores}
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s: %v", req.Method, req.URL, err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func decodeJSON(t *testing.T, body string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(body), v); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
}

type logEntry struct {
	Action string         `json:"action"`
	Level  string         `json:"level"`
	Fields map[string]any `json:"fields"`
	Status int            `json:"status"`
}

type lockedBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf lockedBuf
	applog.SetOutput(&buf, logrus.InfoLevel)
	defer applog.SetOutput(os.Stdout, logrus.InfoLevel)

	fn()

	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.b.String()), "\n") {
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findAction(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
