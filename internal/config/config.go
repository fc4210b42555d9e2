package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Sweep    SweepConfig
	Watch    WatchConfig
	Log      LogConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port     int
	MaxConns int // 0 means unlimited
}

type StorageConfig struct {
	Driver  string // "sqlite" or "postgres"
	DataDir string
}

type PostgresConfig struct {
	URL string
}

// RedisConfig enables the shared change feed and filter cache when URL is
// set.
type RedisConfig struct {
	URL string
}

type SweepConfig struct {
	Schedule string
}

type WatchConfig struct {
	Concurrency int
}

type LogConfig struct {
	Level string
}

type AuthConfig struct {
	Token string // usually read from the secret store
	User  string // default user for CLI requests
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Storage: StorageConfig{
			Driver:  DriverSQLite,
			DataDir: defaultDataDir(),
		},
		Sweep: SweepConfig{
			Schedule: "@every 1h",
		},
		Watch: WatchConfig{
			Concurrency: 8,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory and environment variables, in that order.
//
// On macOS the backend is UserDefaults (domain: com.jobboard.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/jobboard/config.json.
//
// Values in .env never replace variables already set in the environment.
// Environment variables (JOBBOARD_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), ".env")
}

func loadWith(b ConfigBackend, envFile string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	for _, s := range specs {
		if s.check == nil {
			continue
		}
		if err := s.check(s.extract(c)); err != nil {
			return fmt.Errorf("invalid %s: %w", s.key, err)
		}
	}
	if c.Storage.Driver == DriverPostgres && c.Postgres.URL == "" {
		return fmt.Errorf("missing required config: postgres.url. " +
			"Set it via environment variable JOBBOARD_POSTGRES_URL when storage.driver is postgres")
	}
	return nil
}
