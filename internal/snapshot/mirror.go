package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	applog "shopindex/internal/log"
)

const copyAttempts = 3

// Mirror copies the latest snapshot of a catalog from an exported bucket
// (mounted as a directory) into a local download directory, keeping the
// bucket's relative layout. Files already present with the same size are
// not copied again.
type Mirror struct {
	BucketDir   string
	DownloadDir string
	Customer    string
	Workers     int
	Limiter     *rate.Limiter
}

func NewMirror(bucketDir, downloadDir, customer string, workers int, perSecond float64) *Mirror {
	if workers <= 0 {
		workers = 4
	}
	var lim *rate.Limiter
	if perSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(perSecond), workers)
	}
	return &Mirror{BucketDir: bucketDir, DownloadDir: downloadDir, Customer: customer, Workers: workers, Limiter: lim}
}

// Fetch mirrors the newest snapshot of catalog and returns the local
// snapshot directory.
func (m *Mirror) Fetch(ctx context.Context, catalog string) (string, error) {
	src, err := Latest(CatalogDir(m.BucketDir, m.Customer, catalog))
	if err != nil {
		return "", err
	}
	files, err := Files(src)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(m.BucketDir, src)
	if err != nil {
		return "", fmt.Errorf("relative snapshot path: %w", err)
	}
	dst := filepath.Join(m.DownloadDir, rel)

	applog.Info(nil, "mirror.start", map[string]any{"catalog": catalog, "snapshot": Timestamp(src), "files": len(files)})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.Workers)
	copied := make([]bool, len(files))
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			r, err := filepath.Rel(src, f)
			if err != nil {
				return err
			}
			did, err := m.copyWithRetry(gctx, f, filepath.Join(dst, r))
			copied[i] = did
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	n := 0
	for _, c := range copied {
		if c {
			n++
		}
	}
	applog.Info(nil, "mirror.done", map[string]any{"catalog": catalog, "copied": n, "up_to_date": len(files) - n})
	return dst, nil
}

func (m *Mirror) copyWithRetry(ctx context.Context, src, dst string) (bool, error) {
	si, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	if di, err := os.Stat(dst); err == nil && di.Size() == si.Size() {
		return false, nil
	}
	var lastErr error
	for attempt := 1; attempt <= copyAttempts; attempt++ {
		if m.Limiter != nil {
			if err := m.Limiter.Wait(ctx); err != nil {
				return false, err
			}
		}
		if lastErr = copyFile(src, dst); lastErr == nil {
			return true, nil
		}
		applog.Error(nil, "mirror.copy.retry", lastErr, map[string]any{"file": src, "attempt": attempt})
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}
	return false, fmt.Errorf("copy %s: %w", src, lastErr)
}

// copyFile writes through a temp file so a half-copied file never looks
// complete to the size check.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
