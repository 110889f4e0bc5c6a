// Package config provides configuration loading and structs for the Osusume server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/vector"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Catalog CatalogConfig `yaml:"catalog"`
	Storage StorageConfig `yaml:"storage"`
	Engine  EngineConfig  `yaml:"engine"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CatalogConfig locates the movie catalog and controls hot reload.
type CatalogConfig struct {
	Path string `yaml:"path"`
	// Format overrides detection from the file extension: csv, tsv, xlsx or sqlite.
	Format     string `yaml:"format"`
	Watch      *bool  `yaml:"watch"`
	DebounceMS int    `yaml:"debounce_ms"`
}

// WatchOrDefault returns whether to reload on file changes; defaults to true when unset.
func (c *CatalogConfig) WatchOrDefault() bool {
	if c.Watch != nil {
		return *c.Watch
	}
	return true
}

// StorageConfig holds the path of the SQLite catalog store used by `import`.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EngineConfig holds recommendation defaults.
type EngineConfig struct {
	DefaultStrategy  string  `yaml:"default_strategy"`
	DefaultLimit     int     `yaml:"default_limit"`
	MaxLimit         int     `yaml:"max_limit"`
	GenreLimit       int     `yaml:"genre_limit"`
	DefaultMinRating float64 `yaml:"default_min_rating"`
	StopWords        bool    `yaml:"stop_words"`
	// CacheSize is the number of similar-title answers cached per catalog
	// generation. Unset means DefaultCacheSize; 0 disables the cache.
	CacheSize        *int    `yaml:"cache_size"`
	Suggestions      int     `yaml:"suggestions"`
}

// DefaultCacheSize is the result cache size used when engine.cache_size is unset.
const DefaultCacheSize = 256

// CacheEntries returns the configured result cache size.
func (c *EngineConfig) CacheEntries() int {
	if c.CacheSize == nil {
		return DefaultCacheSize
	}
	return *c.CacheSize
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Catalog.Path = expandPath(cfg.Catalog.Path, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if c.Catalog.DebounceMS < 0 {
		return fmt.Errorf("invalid config: catalog.debounce_ms must not be negative")
	}
	if _, err := vector.ParseStrategy(c.Engine.DefaultStrategy); err != nil {
		return fmt.Errorf("invalid config: engine.default_strategy: %w", err)
	}
	if err := models.ValidateMinRating(c.Engine.DefaultMinRating); err != nil {
		return fmt.Errorf("invalid config: engine.default_min_rating: %w", err)
	}
	if c.Engine.CacheSize != nil && *c.Engine.CacheSize < 0 {
		return fmt.Errorf("invalid config: engine.cache_size must not be negative")
	}
	if c.Engine.DefaultLimit > c.Engine.MaxLimit {
		return fmt.Errorf("invalid config: engine.default_limit %d exceeds max_limit %d", c.Engine.DefaultLimit, c.Engine.MaxLimit)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
