package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"shopindex/internal/domain"
	applog "shopindex/internal/log"
	"shopindex/internal/snapshot"
)

// Pipeline runs fetch, load and index for one catalog at a time.
type Pipeline struct {
	// Mirror is optional; without it snapshots are read from DownloadDir.
	Mirror      *snapshot.Mirror
	DownloadDir string
	Customer    string
	Loader      *Loader
	Indexer     *Indexer
}

type Target struct {
	Name  string
	Fresh bool
}

type Outcome struct {
	Catalog string           `json:"catalog"`
	Load    domain.LoadStats `json:"load"`
	Index   IndexStats       `json:"index"`
	Err     error            `json:"-"`
}

// Process loads the latest snapshot of one catalog and rebuilds its index.
// The index is only rebuilt after a successful load.
func (p *Pipeline) Process(ctx context.Context, t Target) Outcome {
	out := Outcome{Catalog: t.Name}

	dir := snapshot.CatalogDir(p.DownloadDir, p.Customer, t.Name)
	if p.Mirror != nil {
		d, err := p.Mirror.Fetch(ctx, t.Name)
		if err != nil {
			applog.Error(nil, "pipeline.fetch.fail", err, map[string]any{"catalog": t.Name})
			out.Err = err
			return out
		}
		dir = d
	}

	l := *p.Loader
	l.Fresh = t.Fresh
	out.Load, out.Err = l.LoadDir(ctx, dir, t.Name)
	if out.Err != nil {
		applog.Error(nil, "pipeline.load.fail", out.Err, map[string]any{"catalog": t.Name, "dir": dir})
		return out
	}
	out.Index, out.Err = p.Indexer.Build(ctx, t.Name)
	if out.Err != nil {
		applog.Error(nil, "pipeline.index.fail", out.Err, map[string]any{"catalog": t.Name})
	}
	return out
}

// ProcessAll processes catalogs concurrently, at most parallel at a time.
// One catalog failing does not stop the others; outcomes keep input order.
func (p *Pipeline) ProcessAll(ctx context.Context, targets []Target, parallel int) []Outcome {
	if parallel <= 0 {
		parallel = 1
	}
	out := make([]Outcome, len(targets))
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			out[i] = p.Process(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
