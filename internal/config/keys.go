package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
	check   func(v any) error // optional
}

func atLeast(min int) func(v any) error {
	return func(v any) error {
		if v.(int) < min {
			return fmt.Errorf("%d is below %d", v, min)
		}
		return nil
	}
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "JOBBOARD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
		check:   atLeast(1),
	},
	{
		key: "server.max_conns", typ: kInt, env: "JOBBOARD_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
		check:   atLeast(0),
	},
	{
		key: "storage.driver", typ: kString, env: "JOBBOARD_STORAGE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Storage.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Driver },
		check: func(v any) error {
			if d := v.(string); d != DriverSQLite && d != DriverPostgres {
				return fmt.Errorf("%q: want %q or %q", d, DriverSQLite, DriverPostgres)
			}
			return nil
		},
	},
	{
		key: "storage.data_dir", typ: kString, env: "JOBBOARD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "postgres.url", typ: kString, env: "JOBBOARD_POSTGRES_URL",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Postgres.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Postgres.URL },
	},
	{
		key: "redis.url", typ: kString, env: "JOBBOARD_REDIS_URL",
		apply:   func(cfg *Config, v any) { cfg.Redis.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.URL },
	},
	{
		key: "sweep.schedule", typ: kString, env: "JOBBOARD_SWEEP_SCHEDULE",
		apply:   func(cfg *Config, v any) { cfg.Sweep.Schedule = v.(string) },
		extract: func(cfg Config) any { return cfg.Sweep.Schedule },
		check: func(v any) error {
			_, err := cron.ParseStandard(v.(string))
			return err
		},
	},
	{
		key: "watch.concurrency", typ: kInt, env: "JOBBOARD_WATCH_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Watch.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Watch.Concurrency },
		check:   atLeast(1),
	},
	{
		key: "log.level", typ: kString, env: "JOBBOARD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
		check: func(v any) error {
			var l slog.Level
			return l.UnmarshalText([]byte(v.(string)))
		},
	},
	{
		key: "auth.token", typ: kString, env: "JOBBOARD_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Auth.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.Token },
	},
	{
		key: "auth.user", typ: kString, env: "JOBBOARD_USER",
		apply:   func(cfg *Config, v any) { cfg.Auth.User = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.User },
	},
}

var errUnknownKey = errors.New("unknown config key")

func lookupSpec(key string) (keySpec, error) {
	for _, s := range specs {
		if s.key == key {
			return s, nil
		}
	}
	return keySpec{}, fmt.Errorf("%w: %q", errUnknownKey, key)
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
