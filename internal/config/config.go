package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	API         APIConfig     `toml:"api"`
	Storage     StorageConfig `toml:"storage"`
	Cache       CacheConfig   `toml:"cache"`
	Display     DisplayConfig `toml:"display"`
	MCP         MCPConfig     `toml:"mcp"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// APIConfig points at the remote portfolio API.
type APIConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses the request timeout, falling back to 30s.
func (c *APIConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// StorageConfig selects and configures the persisted client-state backend.
// Backend is "badger" (default), "redis" or "memory".
type StorageConfig struct {
	Backend string       `toml:"backend"`
	Badger  BadgerConfig `toml:"badger"`
	Redis   RedisConfig  `toml:"redis"`
}

// BadgerConfig contains BadgerDB-specific settings.
type BadgerConfig struct {
	Path string `toml:"path"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// CacheConfig holds the selection cache freshness windows.
type CacheConfig struct {
	HistoryTTL   string `toml:"history_ttl"`
	PositionsTTL string `toml:"positions_ttl"`
}

// GetHistoryTTL parses the value-history TTL, falling back to 30m.
func (c *CacheConfig) GetHistoryTTL() time.Duration {
	return parseDuration(c.HistoryTTL, 30*time.Minute)
}

// GetPositionsTTL parses the positions TTL, falling back to 30m.
func (c *CacheConfig) GetPositionsTTL() time.Duration {
	return parseDuration(c.PositionsTTL, 30*time.Minute)
}

// DisplayConfig holds presentation settings.
type DisplayConfig struct {
	Currency string `toml:"currency"`
}

// MCPConfig toggles the MCP tool endpoint.
type MCPConfig struct {
	Enabled bool `toml:"enabled"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	config.Environment = normalizeEnvironment(config.Environment)
	config.Storage.Backend = strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	config.Display.Currency = strings.ToUpper(strings.TrimSpace(config.Display.Currency))

	return config, nil
}

// applyEnvOverrides applies FOLIO_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIO_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("FOLIO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FOLIO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if url := os.Getenv("FOLIO_API_URL"); url != "" {
		config.API.URL = url
	}
	if timeout := os.Getenv("FOLIO_API_TIMEOUT"); timeout != "" {
		config.API.Timeout = timeout
	}
	if backend := os.Getenv("FOLIO_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if badgerPath := os.Getenv("FOLIO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if addr := os.Getenv("FOLIO_REDIS_ADDR"); addr != "" {
		config.Storage.Redis.Addr = addr
	}
	if pw := os.Getenv("FOLIO_REDIS_PASSWORD"); pw != "" {
		config.Storage.Redis.Password = pw
	}
	if db := os.Getenv("FOLIO_REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			config.Storage.Redis.DB = n
		}
	}
	if ttl := os.Getenv("FOLIO_CACHE_HISTORY_TTL"); ttl != "" {
		config.Cache.HistoryTTL = ttl
	}
	if ttl := os.Getenv("FOLIO_CACHE_POSITIONS_TTL"); ttl != "" {
		config.Cache.PositionsTTL = ttl
	}
	if cur := os.Getenv("FOLIO_DISPLAY_CURRENCY"); cur != "" {
		config.Display.Currency = cur
	}
	if enabled := os.Getenv("FOLIO_MCP_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.MCP.Enabled = b
		}
	}
	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("FOLIO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "prod"
}

// Validate returns the configuration problems found, if any.
func (c *Config) Validate() []string {
	var issues []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.API.URL) == "" {
		issues = append(issues, "api.url is required")
	}
	switch c.Storage.Backend {
	case "badger":
		if c.Storage.Badger.Path == "" {
			issues = append(issues, "storage.badger.path is required for the badger backend")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			issues = append(issues, "storage.redis.addr is required for the redis backend")
		}
	case "memory":
	default:
		issues = append(issues, fmt.Sprintf("storage.backend %q is not one of badger, redis, memory", c.Storage.Backend))
	}
	for name, raw := range map[string]string{
		"api.timeout":         c.API.Timeout,
		"cache.history_ttl":   c.Cache.HistoryTTL,
		"cache.positions_ttl": c.Cache.PositionsTTL,
	} {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			issues = append(issues, fmt.Sprintf("%s %q is not a positive duration", name, raw))
		}
	}
	return issues
}

// normalizeEnvironment maps "development" to "dev" and "production" to "prod".
func normalizeEnvironment(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development":
		return "dev"
	case "production":
		return "prod"
	default:
		return env
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
