package config

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "prod",
		Server: ServerConfig{
			Port: 4280,
			Host: "localhost",
		},
		API: APIConfig{
			URL:     "http://localhost:8000",
			Timeout: "30s",
		},
		Storage: StorageConfig{
			Backend: "badger",
			Badger: BadgerConfig{
				Path: "./data/folio",
			},
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "folio:",
			},
		},
		Cache: CacheConfig{
			HistoryTTL:   "30m",
			PositionsTTL: "30m",
		},
		Display: DisplayConfig{
			Currency: "EUR",
		},
		MCP: MCPConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Outputs:    []string{"console", "file"},
			FilePath:   "./logs/folio.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}
