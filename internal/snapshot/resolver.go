package snapshot

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"shopindex/internal/domain"
)

const snapshotPrefix = "snapshot="

// Snapshot directories are named snapshot=YYYY-MM-DD-HH-MM-SS; zero padding
// makes lexicographic order chronological.
var reSnapshot = regexp.MustCompile(`^snapshot=\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}$`)

// IsSnapshotDir reports whether the base name of dir is a snapshot name.
func IsSnapshotDir(dir string) bool {
	return reSnapshot.MatchString(filepath.Base(filepath.Clean(dir)))
}

// Latest returns dir when it is itself a snapshot, otherwise its most recent
// snapshot subdirectory.
func Latest(dir string) (string, error) {
	if IsSnapshotDir(dir) {
		return dir, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w in %s", domain.ErrNoSnapshotFound, dir)
		}
		return "", fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && reSnapshot.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w in %s", domain.ErrNoSnapshotFound, dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

// Timestamp extracts the timestamp part of a snapshot directory name.
func Timestamp(dir string) string {
	return strings.TrimPrefix(filepath.Base(filepath.Clean(dir)), snapshotPrefix)
}

// Files lists the parquet files under dir, recursively, in lexicographic
// path order. The loader's duplicate tie-break is deterministic for a fixed
// order, so callers must not reorder the result.
func Files(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".parquet") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

// CatalogDir is where an exported catalog lives under a bucket root:
// <root>/<customer>/catalog=<name>.
func CatalogDir(root, customer, catalog string) string {
	if customer == "" {
		return filepath.Join(root, "catalog="+catalog)
	}
	return filepath.Join(root, customer, "catalog="+catalog)
}

// DiscoverCatalogs lists catalog names exported under root/customer.
func DiscoverCatalogs(root, customer string) ([]string, error) {
	base := root
	if customer != "" {
		base = filepath.Join(root, customer)
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", base, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "catalog=") {
			if name := strings.TrimPrefix(e.Name(), "catalog="); name != "" {
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
