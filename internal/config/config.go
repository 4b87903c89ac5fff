package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	applog "shopindex/internal/log"
)

type Config struct {
	Port           string  `env:"PORT" envDefault:"8080"`
	DBDriver       string  `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN          string  `env:"DB_DSN"`
	DataDir        string  `env:"DATA_DIR" envDefault:"./data"`
	IndexDir       string  `env:"INDEX_DIR" envDefault:"./data/index"`
	DownloadDir    string  `env:"DOWNLOAD_DIR" envDefault:"./data/download"`
	BucketDir      string  `env:"BUCKET_DIR"`
	CustomerName   string  `env:"CUSTOMER_NAME"`
	IndexBatchSize int     `env:"INDEX_BATCH_SIZE" envDefault:"1000"`
	Workers        int     `env:"DOWNLOAD_WORKERS" envDefault:"4"`
	DownloadRate   float64 `env:"DOWNLOAD_RATE" envDefault:"20"`
	LogFile        string  `env:"LOG_FILE"`
	LogLevel       string  `env:"LOG_LEVEL" envDefault:"info"`
	AdminTokenHash string  `env:"ADMIN_TOKEN_HASH"`
	TemplatesDir   string  `env:"TEMPLATES_DIR" envDefault:"./web/templates"`
	CatalogsFile   string  `env:"CATALOGS_FILE"`
}

// CatalogList is the optional yaml file naming the catalogs "process" walks
// when none are given on the command line.
type CatalogList struct {
	Catalogs []CatalogEntry `yaml:"catalogs"`
}

type CatalogEntry struct {
	Name  string `yaml:"name"`
	Fresh bool   `yaml:"fresh"`
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "pgx" {
		return Config{}, fmt.Errorf("DB_DRIVER must be sqlite or pgx, got %q", cfg.DBDriver)
	}
	if cfg.DBDriver == "pgx" && cfg.DBDSN == "" {
		return Config{}, fmt.Errorf("DB_DSN is required for the pgx driver")
	}
	if cfg.IndexBatchSize <= 0 {
		cfg.IndexBatchSize = 1000
	}
	applog.Info(nil, "config.loaded", map[string]any{
		"port": cfg.Port, "db_driver": cfg.DBDriver, "data_dir": cfg.DataDir,
		"index_dir": cfg.IndexDir, "log_file": cfg.LogFile,
	})
	return cfg, nil
}

// LoadCatalogs reads the catalogs yaml file.
func LoadCatalogs(path string) (CatalogList, error) {
	var out CatalogList
	b, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read catalogs file: %w", err)
	}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("parse catalogs file: %w", err)
	}
	return out, nil
}
