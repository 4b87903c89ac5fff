package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"shopindex/internal/config"
	"shopindex/internal/http/handlers"
	applog "shopindex/internal/log"
	"shopindex/internal/repos"
	"shopindex/internal/search"
	"shopindex/internal/services"
	"shopindex/internal/snapshot"
)

const usage = `usage: shopindex <command> [flags]

commands:
  serve                          run the HTTP server
  load    -catalog NAME [-fresh] [-dir DIR | FILE...]
  crawls  -catalog NAME FILE...
  index   -catalog NAME
  process [-parallel N] [-fresh] [NAME...]
  fetch   NAME...
`

type app struct {
	cfg      config.Config
	stores   *repos.Stores
	readers  *search.Readers
	mirror   *snapshot.Mirror
	loader   *services.Loader
	indexer  *services.Indexer
	pipeline *services.Pipeline
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	applog.Init(applog.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	a := newApp(cfg)
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "serve":
		err = a.serve()
	case "load":
		err = a.load(ctx, args)
	case "crawls":
		err = a.crawls(ctx, args)
	case "index":
		err = a.index(ctx, args)
	case "process":
		err = a.process(ctx, args)
	case "fetch":
		err = a.fetch(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		applog.Error(nil, "cmd."+cmd+".fail", err, nil)
		a.close()
		os.Exit(1)
	}
}

func newApp(cfg config.Config) *app {
	a := &app{cfg: cfg}
	a.stores = repos.NewStores(cfg.DBDriver, cfg.DBDSN, cfg.DataDir)
	a.readers = search.NewReaders(cfg.IndexDir)
	if cfg.BucketDir != "" {
		a.mirror = snapshot.NewMirror(cfg.BucketDir, cfg.DownloadDir, cfg.CustomerName, cfg.Workers, cfg.DownloadRate)
	}
	a.loader = services.NewLoader(a.stores)
	a.indexer = services.NewIndexer(a.stores, a.readers, search.DefaultSchema(), cfg.IndexBatchSize)
	a.pipeline = &services.Pipeline{
		Mirror:      a.mirror,
		DownloadDir: cfg.DownloadDir,
		Customer:    cfg.CustomerName,
		Loader:      a.loader,
		Indexer:     a.indexer,
	}
	return a
}

func (a *app) close() {
	a.readers.Close()
	_ = a.stores.Close()
}

func (a *app) serve() error {
	deps := handlers.NewDeps(a.stores, a.readers, a.pipeline, a.cfg)
	srv := handlers.NewApp(deps, handlers.NewViews(a.cfg.TemplatesDir), "./web/static")
	if a.cfg.AdminTokenHash == "" {
		applog.Info(nil, "admin.disabled", map[string]any{"reason": "ADMIN_TOKEN_HASH not set"})
	}
	applog.Info(nil, "server.start", map[string]any{"port": a.cfg.Port})
	return srv.Listen(":" + a.cfg.Port)
}

func (a *app) load(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	catalog := fs.String("catalog", "", "catalog name")
	dir := fs.String("dir", "", "snapshot directory or its parent; defaults to the download tree")
	fresh := fs.Bool("fresh", false, "drop the catalog's relations first")
	_ = fs.Parse(args)
	if *catalog == "" {
		return fmt.Errorf("load: -catalog is required")
	}

	l := *a.loader
	l.Fresh = *fresh
	var stats any
	var err error
	if files := fs.Args(); len(files) > 0 {
		stats, err = l.Load(ctx, files, *catalog)
	} else {
		d := *dir
		if d == "" {
			d = snapshot.CatalogDir(a.cfg.DownloadDir, a.cfg.CustomerName, *catalog)
		}
		stats, err = l.LoadDir(ctx, d, *catalog)
	}
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func (a *app) crawls(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("crawls", flag.ExitOnError)
	catalog := fs.String("catalog", "", "catalog name")
	_ = fs.Parse(args)
	if *catalog == "" || fs.NArg() == 0 {
		return fmt.Errorf("crawls: -catalog and at least one file are required")
	}
	stats, err := services.NewCrawlLoader(a.stores).Load(ctx, fs.Args(), *catalog)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func (a *app) index(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	catalog := fs.String("catalog", "", "catalog name")
	_ = fs.Parse(args)
	if *catalog == "" {
		return fmt.Errorf("index: -catalog is required")
	}
	stats, err := a.indexer.Build(ctx, *catalog)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func (a *app) process(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	parallel := fs.Int("parallel", 1, "catalogs processed at once")
	fresh := fs.Bool("fresh", false, "drop each catalog's relations first")
	_ = fs.Parse(args)

	targets, err := a.targets(fs.Args(), *fresh)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("process: no catalogs given, listed or discovered")
	}
	outcomes := a.pipeline.ProcessAll(ctx, targets, *parallel)

	failed := 0
	report := make([]map[string]any, 0, len(outcomes))
	for _, o := range outcomes {
		r := map[string]any{"catalog": o.Catalog, "load": o.Load, "index": o.Index}
		if o.Err != nil {
			failed++
			r["error"] = o.Err.Error()
		}
		report = append(report, r)
	}
	if err := printJSON(report); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("process: %d of %d catalogs failed", failed, len(outcomes))
	}
	return nil
}

// targets resolves catalogs from the command line, then CATALOGS_FILE,
// then whatever the bucket (or download tree) exports.
func (a *app) targets(names []string, fresh bool) ([]services.Target, error) {
	var out []services.Target
	if len(names) > 0 {
		for _, n := range names {
			out = append(out, services.Target{Name: n, Fresh: fresh})
		}
		return out, nil
	}
	if a.cfg.CatalogsFile != "" {
		list, err := config.LoadCatalogs(a.cfg.CatalogsFile)
		if err != nil {
			return nil, err
		}
		for _, c := range list.Catalogs {
			out = append(out, services.Target{Name: c.Name, Fresh: fresh || c.Fresh})
		}
		return out, nil
	}
	root := a.cfg.DownloadDir
	if a.mirror != nil {
		root = a.cfg.BucketDir
	}
	found, err := snapshot.DiscoverCatalogs(root, a.cfg.CustomerName)
	if err != nil {
		return nil, err
	}
	for _, n := range found {
		out = append(out, services.Target{Name: n, Fresh: fresh})
	}
	return out, nil
}

func (a *app) fetch(ctx context.Context, args []string) error {
	if a.mirror == nil {
		return fmt.Errorf("fetch: BUCKET_DIR is not set")
	}
	if len(args) == 0 {
		return fmt.Errorf("fetch: name at least one catalog")
	}
	dirs := map[string]string{}
	for _, name := range args {
		dir, err := a.mirror.Fetch(ctx, name)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", name, err)
		}
		dirs[name] = dir
	}
	return printJSON(dirs)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
