// Package config loads larder settings from defaults, a JSON config file,
// a .env file and LARDER_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	GitHub    GitHubConfig
	Posts     PostsConfig
	Catalog   CatalogConfig
	Cache     CacheConfig
	Recommend RecommendConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

type GitHubConfig struct {
	BaseURL           string
	Token             string
	RequestsPerSecond float64
}

type PostsConfig struct {
	BaseURL string
}

type CatalogConfig struct {
	URL string
}

type CacheConfig struct {
	// StaleTime is how long a remote result is served without refetching.
	StaleTime time.Duration
	// GCTime is how long an unused result is kept before it is dropped.
	GCTime time.Duration
}

type RecommendConfig struct {
	Limit int
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json, pretty
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		GitHub: GitHubConfig{
			BaseURL:           "https://api.github.com",
			RequestsPerSecond: 5,
		},
		Posts: PostsConfig{
			BaseURL: "https://jsonplaceholder.typicode.com",
		},
		Cache: CacheConfig{
			StaleTime: time.Minute,
			GCTime:    5 * time.Minute,
		},
		Recommend: RecommendConfig{
			Limit: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration. A .env file in the working directory is loaded
// into the environment first; variables already set are not overwritten.
//
// Non-secret keys live in a JSON file at $XDG_CONFIG_HOME/larder/config.json.
// Secrets (the API token and the GitHub token) come from the environment or
// from $XDG_DATA_HOME/larder/secrets.json. The API token is generated and
// stored there on first load.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return loadWith(newFileBackend(configFilePath()), newFileSecrets(secretsFilePath()))
}

// secretStore abstracts secret persistence for testing.
type secretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	for _, s := range specs {
		if !s.secret || s.extract(cfg) != "" {
			continue
		}
		if v, err := secrets.Get(s.key); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	if cfg.Server.APIToken == "" {
		token := uuid.NewString()
		if err := secrets.Set("server.api_token", token); err != nil {
			return Config{}, fmt.Errorf("storing generated API token: %w", err)
		}
		cfg.Server.APIToken = token
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.GitHub.RequestsPerSecond < 0 {
		return fmt.Errorf("github.requests_per_second must not be negative")
	}
	if c.Cache.StaleTime < 0 || c.Cache.GCTime < 0 {
		return fmt.Errorf("cache durations must not be negative")
	}
	switch c.Log.Format {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("log.format %q must be text, json or pretty", c.Log.Format)
	}
	return nil
}
