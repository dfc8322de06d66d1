package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/siherrmann/homegraph/model"
)

type ServerConfig struct {
	Address                string  `toml:"address"`
	RateLimit              float64 `toml:"rate_limit"`
	RateBurst              int     `toml:"rate_burst"`
	ShutdownTimeoutSeconds int     `toml:"shutdown_timeout_seconds"`
}

type RegistryConfig struct {
	// Snapshot is a YAML or JSON registry snapshot file.
	Snapshot string `toml:"snapshot"`
	// Database reads the registry from postgres instead of Snapshot.
	Database bool `toml:"database"`
}

type AutomationConfig struct {
	Dir        string `toml:"dir"`
	Watch      bool   `toml:"watch"`
	DebounceMS int    `toml:"debounce_ms"`
}

type QueryConfig struct {
	DefaultDepth int `toml:"default_depth"`
	SearchLimit  int `toml:"search_limit"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Registry   RegistryConfig   `toml:"registry"`
	Automation AutomationConfig `toml:"automation"`
	Query      QueryConfig      `toml:"query"`
	Log        LogConfig        `toml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:                ":8099",
			RateLimit:              20,
			RateBurst:              40,
			ShutdownTimeoutSeconds: 10,
		},
		Automation: AutomationConfig{
			Watch:      true,
			DebounceMS: 500,
		},
		Query: QueryConfig{
			DefaultDepth: model.DefaultDepth,
			SearchLimit:  model.DefaultSearchLimit,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides settings from HOMEGRAPH_* variables. A .env file in
// the working directory is loaded first if present.
func (c *Config) ApplyEnv() error {
	_ = godotenv.Load()

	if v := os.Getenv("HOMEGRAPH_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("HOMEGRAPH_SNAPSHOT"); v != "" {
		c.Registry.Snapshot = v
	}
	if v := os.Getenv("HOMEGRAPH_CONFIG_DIR"); v != "" {
		c.Automation.Dir = v
	}
	if v := os.Getenv("HOMEGRAPH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	bools := []struct {
		name   string
		target *bool
	}{
		{"HOMEGRAPH_DATABASE", &c.Registry.Database},
		{"HOMEGRAPH_WATCH", &c.Automation.Watch},
	}
	for _, b := range bools {
		v := os.Getenv(b.name)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", b.name, v, err)
		}
		*b.target = parsed
	}

	ints := []struct {
		name   string
		target *int
	}{
		{"HOMEGRAPH_DEFAULT_DEPTH", &c.Query.DefaultDepth},
		{"HOMEGRAPH_SEARCH_LIMIT", &c.Query.SearchLimit},
	}
	for _, i := range ints {
		v := os.Getenv(i.name)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", i.name, v, err)
		}
		*i.target = parsed
	}

	return nil
}

// Validate checks the settings needed to serve queries.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address is empty")
	}
	if c.Registry.Snapshot == "" && !c.Registry.Database {
		return fmt.Errorf("no registry source: set registry.snapshot or registry.database")
	}
	if c.Query.DefaultDepth < model.MinDepth || c.Query.DefaultDepth > model.MaxDepth {
		return fmt.Errorf("query.default_depth %d is outside [%d, %d]", c.Query.DefaultDepth, model.MinDepth, model.MaxDepth)
	}
	if c.Query.SearchLimit <= 0 {
		return fmt.Errorf("query.search_limit must be positive")
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst <= 0 {
		return fmt.Errorf("server rate limit and burst must be positive")
	}
	return nil
}

// Debounce returns the automation reload debounce.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Automation.DebounceMS) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown timeout of the server.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
