package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "LARDER_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "LARDER_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LARDER_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "github.base_url", typ: kString, env: "LARDER_GITHUB_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.GitHub.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.GitHub.BaseURL },
	},
	{
		key: "github.token", typ: kString, env: "LARDER_GITHUB_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.GitHub.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.GitHub.Token },
	},
	{
		key: "github.requests_per_second", typ: kFloat, env: "LARDER_GITHUB_REQUESTS_PER_SECOND",
		apply:   func(cfg *Config, v any) { cfg.GitHub.RequestsPerSecond = v.(float64) },
		extract: func(cfg Config) any { return cfg.GitHub.RequestsPerSecond },
	},
	{
		key: "posts.base_url", typ: kString, env: "LARDER_POSTS_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Posts.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Posts.BaseURL },
	},
	{
		key: "catalog.url", typ: kString, env: "LARDER_CATALOG_URL",
		apply:   func(cfg *Config, v any) { cfg.Catalog.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.URL },
	},
	{
		key: "cache.stale_time", typ: kDuration, env: "LARDER_CACHE_STALE_TIME",
		apply:   func(cfg *Config, v any) { cfg.Cache.StaleTime = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.StaleTime },
	},
	{
		key: "cache.gc_time", typ: kDuration, env: "LARDER_CACHE_GC_TIME",
		apply:   func(cfg *Config, v any) { cfg.Cache.GCTime = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.GCTime },
	},
	{
		key: "recommend.limit", typ: kInt, env: "LARDER_RECOMMEND_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Recommend.Limit = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.Limit },
	},
	{
		key: "log.level", typ: kString, env: "LARDER_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "LARDER_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

// parse converts raw into the value type of s.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			slog.Warn("could not parse config key, using default", "key", s.key, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
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
		v, err := s.parse(raw)
		if err != nil {
			slog.Warn("could not parse env var, using default", "env", s.env, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
