package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration, shared by the monitor and
// archiver binaries.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Feed
	GitHubToken      string        `env:"GITHUB_TOKEN"`
	GitHubAPIURL     string        `env:"GITHUB_API_URL"` // override for tests and the simulator
	FetchMaxPages    int           `env:"FETCH_MAX_PAGES" envDefault:"5"`
	FetchMaxRecords  int           `env:"FETCH_MAX_RECORDS" envDefault:"1000"`
	FetchPageTimeout time.Duration `env:"FETCH_PAGE_TIMEOUT" envDefault:"10s"`
	FetchRateLimit   float64       `env:"FETCH_RATE_LIMIT" envDefault:"10"` // feed requests per second
	QuotaFloor       int           `env:"QUOTA_FLOOR" envDefault:"50"`

	// Ingestion
	FetchInterval time.Duration `env:"FETCH_INTERVAL" envDefault:"1s"`
	DedupWindow   time.Duration `env:"DEDUP_WINDOW" envDefault:"30m"`
	GapBuffer     time.Duration `env:"GAP_BUFFER" envDefault:"1s"`
	Retention     time.Duration `env:"RETENTION" envDefault:"24h"`

	// Snapshots
	SnapshotInterval  time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"1m"`
	SnapshotWindow    time.Duration `env:"SNAPSHOT_WINDOW" envDefault:"10m"`
	SnapshotRetention time.Duration `env:"SNAPSHOT_RETENTION" envDefault:"15m"`

	// Storage
	RedisAddr   string `env:"REDIS_ADDR,required"`
	PostgresURL string `env:"POSTGRES_URL"` // required by the archiver only

	// Archive pipeline
	ArchiveEnabled   bool   `env:"ARCHIVE_ENABLED" envDefault:"false"`
	ArchiveStream    string `env:"ARCHIVE_STREAM" envDefault:"events_archive"`
	ArchiveBatchSize int    `env:"ARCHIVE_BATCH_SIZE" envDefault:"500"`

	// Servers
	APIServerAddr   string `env:"API_SERVER_ADDR" envDefault:":8080"`
	AdminServerAddr string `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
