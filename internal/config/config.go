// Package config loads murmur's client configuration from ~/.murmur/config.yaml
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"

	envPrefix = "MURMUR_"
)

var ErrInvalidConfig = errors.New("invalid config")

// StorageConfig selects where the session token is persisted.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "file" | "sqlite"
	Path   string `yaml:"path"`
}

// CacheConfig controls the HTTP response cache for GET requests.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // empty means in-memory
}

type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the root client configuration.
type Config struct {
	ServerURL string          `yaml:"server_url"`
	Timeout   time.Duration   `yaml:"timeout"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Home returns the murmur state directory, ~/.murmur unless MURMUR_HOME is set.
func Home() string {
	if env := os.Getenv(envPrefix + "HOME"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".murmur"
	}
	return filepath.Join(home, ".murmur")
}

// DefaultPath is the config file location used when --config is not given.
func DefaultPath() string {
	return filepath.Join(Home(), "config.yaml")
}

// Default returns a Config populated with defaults rooted at Home().
func Default() *Config {
	home := Home()
	return &Config{
		ServerURL: "http://127.0.0.1:8000/api/",
		Timeout:   30 * time.Second,
		Storage: StorageConfig{
			Driver: DriverFile,
			Path:   home,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
	}
}

// Load reads the config file at path over the defaults.
// A missing file yields Default() with no error; missing keys keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)

	return cfg, nil
}

// ApplyEnv overrides fields from MURMUR_* variables using lookup, normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envPrefix + "SERVER_URL"); ok && v != "" {
		c.ServerURL = v
	}
	if v, ok := lookup(envPrefix + "TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %sTIMEOUT: %v", ErrInvalidConfig, envPrefix, err)
		}
		c.Timeout = d
	}
	if v, ok := lookup(envPrefix + "STORAGE_DRIVER"); ok && v != "" {
		c.Storage.Driver = v
	}
	if v, ok := lookup(envPrefix + "STORAGE_PATH"); ok && v != "" {
		c.Storage.Path = expandHome(v)
	}
	if v, ok := lookup(envPrefix + "CACHE_DIR"); ok {
		c.Cache.Dir = expandHome(v)
	}

	for name, dst := range map[string]*bool{
		"CACHE_ENABLED":     &c.Cache.Enabled,
		"TELEMETRY_ENABLED": &c.Telemetry.Enabled,
	} {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, envPrefix, name, err)
		}
		*dst = b
	}

	return nil
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: server_url %q must be an absolute URL", ErrInvalidConfig, c.ServerURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("%w: storage.driver %q must be %q or %q", ErrInvalidConfig, c.Storage.Driver, DriverFile, DriverSQLite)
	}
	return nil
}

// SQLitePath is the database file used by the sqlite storage driver.
func (c *Config) SQLitePath() string {
	if strings.HasSuffix(c.Storage.Path, ".db") {
		return c.Storage.Path
	}
	return filepath.Join(c.Storage.Path, "murmur.db")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
