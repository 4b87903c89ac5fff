package search

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"

	"shopindex/internal/domain"
)

// ErrInvalidQuery wraps query-string parse failures.
var ErrInvalidQuery = errors.New("invalid search query")

const generationFile = "GENERATION"

// Dir is where a catalog's committed index lives.
func Dir(root, catalog string) string {
	return filepath.Join(root, "catalog="+catalog)
}

// Writer builds a fresh index in a staging directory. Nothing is visible at
// Dir(root, catalog) until Commit; Cancel throws the staging build away.
type Writer struct {
	root    string
	catalog string
	staging string
	schema  *Schema
	idx     bleve.Index
	count   int
	done    bool
}

func NewWriter(root, catalog string, schema *Schema) (*Writer, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	m, err := schema.Mapping()
	if err != nil {
		return nil, err
	}
	staging := filepath.Join(root, ".staging-"+catalog+"-"+uuid.NewString())
	idx, err := bleve.New(staging, m)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Writer{root: root, catalog: catalog, staging: staging, schema: schema, idx: idx}, nil
}

// Add indexes one batch of documents.
func (w *Writer) Add(docs []Document) error {
	if w.done {
		return errors.New("index writer already closed")
	}
	b := w.idx.NewBatch()
	for _, d := range docs {
		if err := b.Index(d.ID, w.schema.Project(d.Fields)); err != nil {
			return fmt.Errorf("index %s: %w", d.ID, err)
		}
	}
	if err := w.idx.Batch(b); err != nil {
		return err
	}
	w.count += len(docs)
	return nil
}

func (w *Writer) Count() int { return w.count }

// Commit closes the staging index and swaps it into place.
func (w *Writer) Commit() error {
	if w.done {
		return errors.New("index writer already closed")
	}
	w.done = true
	if err := w.idx.Close(); err != nil {
		_ = os.RemoveAll(w.staging)
		return err
	}
	// the marker moves with the directory, so readers in other processes
	// can tell a new commit from the one they have open
	if err := os.WriteFile(filepath.Join(w.staging, generationFile), []byte(uuid.NewString()), 0o644); err != nil {
		_ = os.RemoveAll(w.staging)
		return fmt.Errorf("write index generation: %w", err)
	}
	final := Dir(w.root, w.catalog)
	var old string
	if _, err := os.Stat(final); err == nil {
		old = filepath.Join(w.root, ".old-"+w.catalog+"-"+uuid.NewString())
		if err := os.Rename(final, old); err != nil {
			_ = os.RemoveAll(w.staging)
			return fmt.Errorf("retire old index: %w", err)
		}
	}
	if err := os.Rename(w.staging, final); err != nil {
		if old != "" {
			_ = os.Rename(old, final)
		}
		_ = os.RemoveAll(w.staging)
		return fmt.Errorf("commit index: %w", err)
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}
	return nil
}

// Cancel discards the staging index. Calling it after Commit is a no-op.
func (w *Writer) Cancel() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.idx.Close()
	return os.RemoveAll(w.staging)
}

type Hit struct {
	ID     string
	Score  float64
	Fields map[string]any
}

type Result struct {
	Total uint64
	Hits  []Hit
}

// Reader searches one committed catalog index.
type Reader struct {
	idx bleve.Index
	gen string
}

// generation names the commit currently at Dir(root, catalog); empty when
// there is none.
func generation(root, catalog string) string {
	b, err := os.ReadFile(filepath.Join(Dir(root, catalog), generationFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// OpenReader opens a committed index; a catalog never indexed is
// domain.ErrCatalogNotFound.
func OpenReader(root, catalog string) (*Reader, error) {
	dir := Dir(root, catalog)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no index for %s", domain.ErrCatalogNotFound, catalog)
	}
	gen := generation(root, catalog)
	idx, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", catalog, err)
	}
	return &Reader{idx: idx, gen: gen}, nil
}

// Search runs a query string: bare terms hit the text fields, field:value
// and numeric ranges such as price:>10 address single fields. An empty
// query matches everything.
func (r *Reader) Search(q string, from, size int) (Result, error) {
	var qq query.Query
	if strings.TrimSpace(q) == "" {
		qq = bleve.NewMatchAllQuery()
	} else {
		sq := bleve.NewQueryStringQuery(q)
		if _, err := sq.Parse(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		qq = sq
	}
	req := bleve.NewSearchRequestOptions(qq, size, from, false)
	req.Fields = []string{"*"}
	res, err := r.idx.Search(req)
	if err != nil {
		return Result{}, err
	}
	out := Result{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		out.Hits = append(out.Hits, Hit{ID: h.ID, Score: h.Score, Fields: h.Fields})
	}
	return out, nil
}

func (r *Reader) DocCount() (uint64, error) { return r.idx.DocCount() }

func (r *Reader) Close() error { return r.idx.Close() }

// Readers caches open readers per catalog. A cached reader is replaced as
// soon as another commit, from this process or any other, is in place;
// Invalidate drops it eagerly.
type Readers struct {
	root string
	mu   sync.Mutex
	open map[string]*Reader
}

func NewReaders(root string) *Readers {
	return &Readers{root: root, open: map[string]*Reader{}}
}

func (rs *Readers) Root() string { return rs.root }

func (rs *Readers) Get(catalog string) (*Reader, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.open[catalog]
	if ok && r.gen == generation(rs.root, catalog) {
		return r, nil
	}
	if ok {
		_ = r.Close()
		delete(rs.open, catalog)
	}
	r, err := OpenReader(rs.root, catalog)
	if err != nil {
		return nil, err
	}
	rs.open[catalog] = r
	return r, nil
}

func (rs *Readers) Invalidate(catalog string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if r, ok := rs.open[catalog]; ok {
		_ = r.Close()
		delete(rs.open, catalog)
	}
}

func (rs *Readers) Close() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for k, r := range rs.open {
		_ = r.Close()
		delete(rs.open, k)
	}
}
