package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopindex/internal/columnar"
	"shopindex/internal/domain"
	applog "shopindex/internal/log"
	"shopindex/internal/repos"
	"shopindex/internal/snapshot"
)

// Loader merges snapshot files into a catalog's relational store.
type Loader struct {
	Stores *repos.Stores
	// Fresh drops the product relations before the first usable file.
	Fresh bool
}

func NewLoader(stores *repos.Stores) *Loader {
	return &Loader{Stores: stores}
}

// LoadDir loads the latest snapshot found in dir.
func (l *Loader) LoadDir(ctx context.Context, dir, catalog string) (domain.LoadStats, error) {
	snap, err := snapshot.Latest(dir)
	if err != nil {
		return domain.LoadStats{}, err
	}
	files, err := snapshot.Files(snap)
	if err != nil {
		return domain.LoadStats{}, err
	}
	return l.load(ctx, files, catalog, snap)
}

// Load merges files, in the given order, into the catalog. Per-file failures
// are logged and counted; a batch in which no file could be used returns
// domain.ErrNoUsableFiles and leaves the store untouched.
func (l *Loader) Load(ctx context.Context, files []string, catalog string) (domain.LoadStats, error) {
	return l.load(ctx, files, catalog, "")
}

type loadState struct {
	catalog string
	source  string
	nested  *bool
	st      *repos.Store
	runID   string
	stats   domain.LoadStats
}

func (l *Loader) load(ctx context.Context, files []string, catalog, source string) (domain.LoadStats, error) {
	if _, err := repos.TableName(catalog); err != nil {
		return domain.LoadStats{}, err
	}
	s := &loadState{catalog: catalog, source: source}
	s.stats.Files = len(files)
	started := time.Now()

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return l.finish(ctx, s, err)
		}
		rows, fs, err := readFile(path, s)
		if err != nil {
			s.stats.FilesFailed++
			applog.Error(nil, "load.file.fail", err, map[string]any{"catalog": catalog, "file": path})
			continue
		}
		if s.st == nil {
			if err := l.begin(ctx, s); err != nil {
				return s.stats, err
			}
		}
		inserted, err := repos.NewProductRepo(s.st).Merge(ctx, rows)
		if err != nil {
			return l.finish(ctx, s, fmt.Errorf("merge %s: %w", path, err))
		}
		fs.Inserted = inserted
		fs.Duplicates = len(rows) - inserted
		s.stats.Add(fs)
		s.stats.FilesProcessed++
		applog.Info(nil, "load.file", map[string]any{
			"catalog": catalog, "file": path, "rows": fs.Rows, "inserted": inserted,
			"duplicates": fs.Duplicates, "missing_key": fs.MissingKey, "malformed": fs.Malformed,
		})
	}

	if s.st == nil {
		applog.Error(nil, "load.no_usable_files", domain.ErrNoUsableFiles, map[string]any{"catalog": catalog, "files": len(files)})
		return s.stats, domain.ErrNoUsableFiles
	}
	stats, err := l.finish(ctx, s, nil)
	if err == nil {
		applog.Audit(nil, "load.done", map[string]any{
			"catalog": catalog, "run_id": s.runID, "records_loaded": stats.Inserted,
			"duplicates_skipped": stats.Skipped(), "files_failed": stats.FilesFailed,
			"elapsed_ms": time.Since(started).Milliseconds(),
		})
	}
	return stats, err
}

// begin opens the store and prepares the relations at the first usable file.
func (l *Loader) begin(ctx context.Context, s *loadState) error {
	st, err := l.Stores.Create(s.catalog)
	if err != nil {
		return err
	}
	pr := repos.NewProductRepo(st)
	if l.Fresh {
		if err := pr.DropTables(ctx); err != nil {
			return err
		}
	}
	if err := pr.EnsureTables(ctx); err != nil {
		return err
	}
	s.st = st
	s.runID = uuid.NewString()
	run := domain.LoadRun{
		ID:        s.runID,
		Catalog:   s.catalog,
		Kind:      "products",
		Source:    sql.NullString{String: s.source, Valid: s.source != ""},
		StartedAt: time.Now().UTC(),
	}
	if err := repos.NewRunRepo(st.DB).Start(ctx, run); err != nil {
		applog.Error(nil, "load.run.start.fail", err, map[string]any{"catalog": s.catalog})
		s.runID = ""
	}
	return nil
}

func (l *Loader) finish(ctx context.Context, s *loadState, cause error) (domain.LoadStats, error) {
	if s.runID != "" {
		if err := repos.NewRunRepo(s.st.DB).Finish(context.WithoutCancel(ctx), s.runID, s.stats); err != nil {
			applog.Error(nil, "load.run.finish.fail", err, map[string]any{"catalog": s.catalog, "run_id": s.runID})
		}
	}
	return s.stats, cause
}

// readFile turns one parquet file into staged rows. The first readable file
// fixes the batch layout; a later file with the other layout is rejected.
func readFile(path string, s *loadState) ([]repos.StagedRow, domain.LoadStats, error) {
	var fs domain.LoadStats
	f, err := columnar.Open(path)
	if err != nil {
		return nil, fs, err
	}
	defer f.Close()

	nested := f.Nested()
	if s.nested == nil {
		s.nested = &nested
		applog.Info(nil, "load.layout", map[string]any{"catalog": s.catalog, "file": path, "nested": nested})
	} else if *s.nested != nested {
		return nil, fs, fmt.Errorf("%w: %s", domain.ErrWrongSchema, path)
	}

	rows := make([]repos.StagedRow, 0, f.NumRows())
	err = f.Each(func(row map[string]any) error {
		fs.Rows++
		var (
			r  repos.StagedRow
			ok bool
		)
		if nested {
			r, ok = nestedRow(row, &fs)
		} else {
			r, ok = flattenedRow(row, &fs)
		}
		if ok {
			rows = append(rows, r)
		}
		return nil
	})
	if err != nil {
		return nil, domain.LoadStats{}, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, fs, nil
}

// flattenedRow serializes the whole row, keys sorted, as the record.
func flattenedRow(row map[string]any, fs *domain.LoadStats) (repos.StagedRow, bool) {
	key := keyString(row["productGroupID"])
	if key == "" {
		fs.MissingKey++
		return repos.StagedRow{}, false
	}
	b, err := json.Marshal(row)
	if err != nil {
		fs.Malformed++
		return repos.StagedRow{}, false
	}
	return repos.StagedRow{ProductGroupID: key, ExtractedProduct: string(b)}, true
}

func nestedRow(row map[string]any, fs *domain.LoadStats) (repos.StagedRow, bool) {
	var blob string
	switch v := row[columnar.RecordColumn].(type) {
	case string:
		blob = v
	case []byte:
		blob = string(v)
	case nil:
		fs.Malformed++
		return repos.StagedRow{}, false
	default:
		b, err := json.Marshal(v)
		if err != nil {
			fs.Malformed++
			return repos.StagedRow{}, false
		}
		blob = string(b)
	}

	var head struct {
		ProductGroupID domain.FlexString `json:"productGroupID"`
	}
	if !json.Valid([]byte(blob)) || json.Unmarshal([]byte(blob), &head) != nil {
		fs.Malformed++
		return repos.StagedRow{}, false
	}
	key := strings.TrimSpace(head.ProductGroupID.String())
	if key == "" {
		key = keyString(row["product_group_id"])
	}
	if key == "" {
		fs.MissingKey++
		return repos.StagedRow{}, false
	}
	return repos.StagedRow{ProductGroupID: key, ExtractedProduct: blob}, true
}

func keyString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case []byte:
		return strings.TrimSpace(string(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}
