package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Server.Port != 4280 {
		t.Errorf("expected default port 4280, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host localhost, got %s", cfg.Server.Host)
	}
	if cfg.Storage.Backend != "badger" {
		t.Errorf("expected default backend badger, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.Badger.Path != "./data/folio" {
		t.Errorf("expected default badger path ./data/folio, got %s", cfg.Storage.Badger.Path)
	}
	if cfg.Cache.GetHistoryTTL() != 30*time.Minute {
		t.Errorf("expected default history TTL 30m, got %s", cfg.Cache.GetHistoryTTL())
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
	if issues := cfg.Validate(); len(issues) != 0 {
		t.Errorf("expected default config to validate, got %v", issues)
	}
}

func TestLoadFromFiles_NoFiles(t *testing.T) {
	cfg, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("LoadFromFiles with no files should not error: %v", err)
	}
	if cfg.Server.Port != 4280 {
		t.Errorf("expected default port 4280, got %d", cfg.Server.Port)
	}
}

func TestLoadFromFiles_ValidTOML(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "test.toml")

	content := `
environment = "development"

[server]
port = 9090
host = "0.0.0.0"

[api]
url = "http://api.local:8000"
timeout = "5s"

[storage]
backend = "Redis"

[storage.redis]
addr = "cache:6379"
db = 2
prefix = "test:"

[cache]
history_ttl = "10m"

[display]
currency = "usd"

[logging]
level = "debug"
format = "json"
`
	if err := os.WriteFile(tomlPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFiles(tomlPath)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}

	if cfg.Environment != "dev" {
		t.Errorf("expected normalized environment dev, got %s", cfg.Environment)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.API.URL != "http://api.local:8000" {
		t.Errorf("expected api url from file, got %s", cfg.API.URL)
	}
	if cfg.API.GetTimeout() != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.API.GetTimeout())
	}
	if cfg.Storage.Backend != "redis" {
		t.Errorf("expected backend redis, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.Redis.Addr != "cache:6379" || cfg.Storage.Redis.DB != 2 || cfg.Storage.Redis.Prefix != "test:" {
		t.Errorf("unexpected redis config %+v", cfg.Storage.Redis)
	}
	if cfg.Cache.GetHistoryTTL() != 10*time.Minute {
		t.Errorf("expected history TTL 10m, got %s", cfg.Cache.GetHistoryTTL())
	}
	if cfg.Cache.GetPositionsTTL() != 30*time.Minute {
		t.Errorf("expected default positions TTL 30m, got %s", cfg.Cache.GetPositionsTTL())
	}
	if cfg.Display.Currency != "USD" {
		t.Errorf("expected currency USD, got %s", cfg.Display.Currency)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFiles_MultipleFiles(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.toml")
	if err := os.WriteFile(base, []byte("[server]\nport = 3000\nhost = \"base-host\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	override := filepath.Join(dir, "override.toml")
	if err := os.WriteFile(override, []byte("[server]\nport = 4000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFiles(base, override)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("expected port 4000 from override, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "base-host" {
		t.Errorf("expected host base-host from base file, got %s", cfg.Server.Host)
	}
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/path.toml")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadFromFiles_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "invalid.toml")

	if err := os.WriteFile(tomlPath, []byte("this is not valid {{toml"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFromFiles(tomlPath)
	if err == nil {
		t.Error("expected error for invalid TOML, got nil")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	t.Setenv("FOLIO_SERVER_PORT", "9999")
	t.Setenv("FOLIO_SERVER_HOST", "env-host")
	t.Setenv("FOLIO_API_URL", "http://env-api:8000")
	t.Setenv("FOLIO_STORAGE_BACKEND", "memory")
	t.Setenv("FOLIO_BADGER_PATH", "/env/path")
	t.Setenv("FOLIO_REDIS_DB", "3")
	t.Setenv("FOLIO_CACHE_HISTORY_TTL", "1h")
	t.Setenv("FOLIO_MCP_ENABLED", "false")
	t.Setenv("FOLIO_LOG_LEVEL", "error")

	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9999 {
		t.Errorf("expected env port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "env-host" {
		t.Errorf("expected env host env-host, got %s", cfg.Server.Host)
	}
	if cfg.API.URL != "http://env-api:8000" {
		t.Errorf("expected env api url, got %s", cfg.API.URL)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("expected env backend memory, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.Badger.Path != "/env/path" {
		t.Errorf("expected env badger path /env/path, got %s", cfg.Storage.Badger.Path)
	}
	if cfg.Storage.Redis.DB != 3 {
		t.Errorf("expected env redis db 3, got %d", cfg.Storage.Redis.DB)
	}
	if cfg.Cache.GetHistoryTTL() != time.Hour {
		t.Errorf("expected env history TTL 1h, got %s", cfg.Cache.GetHistoryTTL())
	}
	if cfg.MCP.Enabled {
		t.Error("expected MCP disabled from env")
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("expected env log level error, got %s", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_InvalidPort(t *testing.T) {
	cfg := NewDefaultConfig()

	t.Setenv("FOLIO_SERVER_PORT", "not-a-number")

	applyEnvOverrides(cfg)

	if cfg.Server.Port != 4280 {
		t.Errorf("expected default port 4280 for invalid env, got %d", cfg.Server.Port)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	ApplyFlagOverrides(cfg, 7777, "flag-host")

	if cfg.Server.Port != 7777 {
		t.Errorf("expected flag port 7777, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "flag-host" {
		t.Errorf("expected flag host flag-host, got %s", cfg.Server.Host)
	}

	ApplyFlagOverrides(cfg, 0, "")
	if cfg.Server.Port != 7777 || cfg.Server.Host != "flag-host" {
		t.Errorf("zero flags must not override, got %d %s", cfg.Server.Port, cfg.Server.Host)
	}
}

func TestGetTimeout_InvalidFallsBack(t *testing.T) {
	api := APIConfig{Timeout: "soon"}
	if api.GetTimeout() != 30*time.Second {
		t.Errorf("expected fallback 30s, got %s", api.GetTimeout())
	}
	c := CacheConfig{HistoryTTL: "-5m"}
	if c.GetHistoryTTL() != 30*time.Minute {
		t.Errorf("expected fallback 30m for negative TTL, got %s", c.GetHistoryTTL())
	}
}

func TestValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Server.Port = 0
	cfg.API.URL = ""
	cfg.Storage.Backend = "s3"
	cfg.Cache.HistoryTTL = "forever"

	issues := cfg.Validate()
	joined := strings.Join(issues, "\n")
	for _, want := range []string{"server.port", "api.url", "storage.backend", "cache.history_ttl"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected an issue mentioning %s, got %v", want, issues)
		}
	}

	cfg = NewDefaultConfig()
	cfg.Storage.Backend = "redis"
	cfg.Storage.Redis.Addr = ""
	if issues := cfg.Validate(); len(issues) != 1 {
		t.Errorf("expected one redis issue, got %v", issues)
	}
}

func TestIsProduction(t *testing.T) {
	cfg := NewDefaultConfig()
	if !cfg.IsProduction() {
		t.Error("expected default environment to be production")
	}
	cfg.Environment = "dev"
	if cfg.IsProduction() {
		t.Error("expected dev not to be production")
	}
}
