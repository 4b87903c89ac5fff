// Package columnar reads parquet snapshot files row by row.
package columnar

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// RecordColumn is the column that carries one serialized product group per
// row in nested snapshots.
const RecordColumn = "extracted_product"

const readBatch = 256

type leaf struct {
	path     []string
	repeated bool
}

type File struct {
	Path    string
	Columns []string

	f      *os.File
	pf     *parquet.File
	leaves []leaf
}

// Open reads the footer and schema of a parquet file.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	out := &File{Path: path, f: f, pf: pf}
	schema := pf.Schema()
	for _, field := range schema.Fields() {
		out.Columns = append(out.Columns, field.Name())
	}
	for _, p := range schema.Columns() {
		lc, ok := schema.Lookup(p...)
		out.leaves = append(out.leaves, leaf{
			path:     collapseListPath(p),
			repeated: ok && lc.MaxRepetitionLevel > 0,
		})
	}
	return out, nil
}

func (f *File) Close() error { return f.f.Close() }

func (f *File) NumRows() int64 { return f.pf.NumRows() }

func (f *File) HasColumn(name string) bool {
	for _, c := range f.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Nested reports whether the file carries pre-serialized records.
func (f *File) Nested() bool { return f.HasColumn(RecordColumn) }

// Each calls fn for every row, rebuilt as a map keyed by top-level column.
// Group columns become nested maps and repeated leaves become slices. Lists
// of groups are flattened per leaf, so reconstruction is lossy for them.
func (f *File) Each(fn func(row map[string]any) error) error {
	buf := make([]parquet.Row, readBatch)
	for _, rg := range f.pf.RowGroups() {
		if err := f.eachInGroup(rg, buf, fn); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) eachInGroup(rg parquet.RowGroup, buf []parquet.Row, fn func(map[string]any) error) error {
	rows := rg.Rows()
	defer rows.Close()
	for {
		n, err := rows.ReadRows(buf)
		for i := 0; i < n; i++ {
			if ferr := fn(f.assemble(buf[i])); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read rows %s: %w", f.Path, err)
		}
		if n == 0 {
			return nil
		}
	}
}

func (f *File) assemble(row parquet.Row) map[string]any {
	out := make(map[string]any, len(f.Columns))
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(f.leaves) {
			continue
		}
		lf := f.leaves[col]
		if lf.repeated {
			if v.IsNull() {
				// empty list: make sure the key exists
				ensureSlice(out, lf.path)
				continue
			}
			appendAt(out, lf.path, goValue(v))
			continue
		}
		if v.IsNull() {
			setAt(out, lf.path, nil)
			continue
		}
		setAt(out, lf.path, goValue(v))
	}
	return out
}

func goValue(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}
	return v.String()
}

// collapseListPath drops the list/element wrapper segments of the standard
// LIST encoding.
func collapseListPath(p []string) []string {
	out := make([]string, 0, len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == "list" && i+1 < len(p) && (p[i+1] == "element" || p[i+1] == "item") {
			i++
			continue
		}
		out = append(out, p[i])
	}
	return out
}

func parent(m map[string]any, path []string) map[string]any {
	cur := m
	for _, k := range path[:len(path)-1] {
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[k] = next
		}
		cur = next
	}
	return cur
}

func setAt(m map[string]any, path []string, v any) {
	if len(path) == 0 {
		return
	}
	p := parent(m, path)
	k := path[len(path)-1]
	if _, exists := p[k]; exists && v == nil {
		return
	}
	p[k] = v
}

func ensureSlice(m map[string]any, path []string) {
	if len(path) == 0 {
		return
	}
	p := parent(m, path)
	k := path[len(path)-1]
	if _, ok := p[k]; !ok {
		p[k] = []any{}
	}
}

func appendAt(m map[string]any, path []string, v any) {
	if len(path) == 0 {
		return
	}
	p := parent(m, path)
	k := path[len(path)-1]
	s, _ := p[k].([]any)
	p[k] = append(s, v)
}
