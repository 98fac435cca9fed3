// Package config loads service configuration from the environment, with an
// optional .env file for local development and an optional YAML file that
// overrides the chain registry.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/tvl_service/internal/app/domain/tvl"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Cache    CacheConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Limits   LimitsConfig

	// ChainsFile optionally points at a YAML file overriding the chain
	// registry. Resolved into Chains during Load.
	ChainsFile string `env:"CHAINS_CONFIG"`
	Chains     []string
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT,default=60s"`
}

// UpstreamConfig points at the TVL provider.
type UpstreamConfig struct {
	BaseURL string        `env:"TVL_UPSTREAM_URL,default=https://tvl-defillama-service-1094890588015.us-central1.run.app"`
	Timeout time.Duration `env:"TVL_UPSTREAM_TIMEOUT,default=10s"`
	Workers int           `env:"TVL_FETCH_WORKERS,default=5"`
}

// CacheConfig controls snapshot caching and background refresh.
type CacheConfig struct {
	TTL         time.Duration `env:"TVL_CACHE_TTL,default=1h"`
	RefreshSpec string        `env:"TVL_REFRESH_SPEC,default=@every 1h"`
	RedisAddr   string        `env:"REDIS_ADDR"`
	RedisDB     int           `env:"REDIS_DB,default=0"`
}

// DatabaseConfig controls the optional PostgreSQL archive.
type DatabaseConfig struct {
	DSN             string `env:"DATABASE_DSN"`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME,default=300"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=text"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=tvlserver"`
}

// LimitsConfig controls per-client rate limiting. Zero RPS disables it.
type LimitsConfig struct {
	RPS   int `env:"RATE_LIMIT_RPS,default=0"`
	Burst int `env:"RATE_LIMIT_BURST,default=20"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if cfg.Upstream.Workers <= 0 {
		cfg.Upstream.Workers = 5
	}

	chains, err := loadChains(cfg.ChainsFile)
	if err != nil {
		return nil, err
	}
	cfg.Chains = chains

	return &cfg, nil
}

// chainsFile is the YAML shape for a chain registry override.
type chainsFile struct {
	Chains []string `yaml:"chains"`
}

func loadChains(path string) ([]string, error) {
	if path == "" {
		return append([]string(nil), tvl.DefaultChains...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chains config: %w", err)
	}

	var parsed chainsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse chains config: %w", err)
	}
	if len(parsed.Chains) == 0 {
		return nil, fmt.Errorf("chains config %s lists no chains", path)
	}
	return parsed.Chains, nil
}
