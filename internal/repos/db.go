package repos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"shopindex/internal/domain"
)

var reCatalog = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// TableName is the base table name of a catalog's relations: the catalog
// name itself. Names ending in a relation suffix are refused, since on a
// shared database "x_extracted" would land on catalog x's tables.
func TableName(catalog string) (string, error) {
	if !reCatalog.MatchString(catalog) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidCatalog, catalog)
	}
	for _, suffix := range []string{"_extracted", "_crawls"} {
		if strings.HasSuffix(catalog, suffix) {
			return "", fmt.Errorf("%w: %q ends in reserved %q", domain.ErrInvalidCatalog, catalog, suffix)
		}
	}
	return catalog, nil
}

// OpenDB opens and pings a database and makes sure the bookkeeping tables
// exist.
func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// temp staging tables live on one connection, and sqlite has a
		// single writer anyway
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if err := ensureSchema(db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB, driver string) error {
	d, err := dialectFor(driver)
	if err != nil {
		return err
	}
	_, err = db.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS load_runs(
  id TEXT PRIMARY KEY,
  catalog TEXT NOT NULL,
  kind TEXT NOT NULL,
  source TEXT,
  started_at %[1]s NOT NULL,
  finished_at %[1]s,
  files_processed %[2]s NOT NULL DEFAULT 0,
  files_failed %[2]s NOT NULL DEFAULT 0,
  inserted %[2]s NOT NULL DEFAULT 0,
  duplicates %[2]s NOT NULL DEFAULT 0,
  missing_key %[2]s NOT NULL DEFAULT 0,
  malformed %[2]s NOT NULL DEFAULT 0
)`, d.timeType(), d.intType()))
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_load_runs_catalog ON load_runs(catalog, started_at)`)
	return err
}

// Store is one catalog's relational store: the raw relation, the extracted
// relation and the crawls relation share the catalog's table name prefix.
type Store struct {
	DB      *sqlx.DB
	Catalog string
	d       dialect
	table   string
}

// NewStore wraps an open database for one catalog.
func NewStore(db *sqlx.DB, catalog string) (*Store, error) {
	table, err := TableName(catalog)
	if err != nil {
		return nil, err
	}
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	return &Store{DB: db, Catalog: catalog, d: d, table: table}, nil
}

func (s *Store) rawTable() string       { return quote(s.table) }
func (s *Store) extractedTable() string { return quote(s.table + "_extracted") }
func (s *Store) crawlsTable() string    { return quote(s.table + "_crawls") }

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.DB.GetContext(ctx, &n, s.DB.Rebind(s.d.tableExistsQuery()), name); err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasProducts reports whether the extracted relation has been created.
func (s *Store) HasProducts(ctx context.Context) (bool, error) {
	return s.tableExists(ctx, s.table+"_extracted")
}

// Stores hands out per-catalog stores. With sqlite every catalog gets its own
// file <dataDir>/<catalog>_catalog.db; with postgres all catalogs share one
// database and are told apart by table prefix.
type Stores struct {
	driver  string
	dsn     string
	dataDir string

	mu   sync.Mutex
	open map[string]*sqlx.DB
}

func NewStores(driver, dsn, dataDir string) *Stores {
	return &Stores{driver: driver, dsn: dsn, dataDir: dataDir, open: map[string]*sqlx.DB{}}
}

func (s *Stores) Driver() string { return s.driver }

func (s *Stores) path(catalog string) string {
	return filepath.Join(s.dataDir, catalog+"_catalog.db")
}

// Create opens the catalog's store, creating the database file if needed.
func (s *Stores) Create(catalog string) (*Store, error) {
	if _, err := TableName(catalog); err != nil {
		return nil, err
	}
	if s.driver == "sqlite" {
		if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := s.db(catalog)
	if err != nil {
		return nil, err
	}
	return NewStore(db, catalog)
}

// Open opens an existing catalog store for reading. A catalog that was never
// loaded is domain.ErrCatalogNotFound.
func (s *Stores) Open(ctx context.Context, catalog string) (*Store, error) {
	if _, err := TableName(catalog); err != nil {
		return nil, err
	}
	if s.driver == "sqlite" {
		if _, err := os.Stat(s.path(catalog)); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCatalogNotFound, catalog)
		}
	}
	db, err := s.db(catalog)
	if err != nil {
		return nil, err
	}
	st, err := NewStore(db, catalog)
	if err != nil {
		return nil, err
	}
	ok, err := st.HasProducts(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCatalogNotFound, catalog)
	}
	return st, nil
}

func (s *Stores) db(catalog string) (*sqlx.DB, error) {
	key := catalog
	dsn := s.dsn
	if s.driver == "sqlite" {
		dsn = "file:" + s.path(catalog) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	} else {
		key = ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.open[key]; ok {
		return db, nil
	}
	db, err := OpenDB(s.driver, dsn)
	if err != nil {
		return nil, err
	}
	s.open[key] = db
	return db, nil
}

// Catalogs lists catalogs that have a store.
func (s *Stores) Catalogs(ctx context.Context) ([]string, error) {
	if s.driver == "sqlite" {
		matches, err := filepath.Glob(filepath.Join(s.dataDir, "*_catalog.db"))
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			name := strings.TrimSuffix(filepath.Base(m), "_catalog.db")
			if reCatalog.MatchString(name) {
				out = append(out, name)
			}
		}
		sort.Strings(out)
		return out, nil
	}
	db, err := s.db("")
	if err != nil {
		return nil, err
	}
	var out []string
	err = db.SelectContext(ctx, &out, `
SELECT DISTINCT catalog FROM load_runs
WHERE kind = 'products' AND finished_at IS NOT NULL
ORDER BY catalog`)
	return out, err
}

func (s *Stores) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for k, db := range s.open {
		errs = append(errs, db.Close())
		delete(s.open, k)
	}
	return errors.Join(errs...)
}
