package config

import "time"

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	paths := GetDefaultStoragePaths()
	return &Config{
		Version: "1.0",
		Database: DatabaseConfig{
			Path: paths.DatabasePath,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			SessionTTL:      Duration(30 * 24 * time.Hour),
			ShutdownTimeout: Duration(30 * time.Second),
			BodyLimit:       1 << 20,
		},
		Orchestrator: OrchestratorConfig{
			InvocationTimeout:  Duration(60 * time.Second),
			MaxRetries:         2,
			RetryDelay:         Duration(time.Second),
			DefaultTemperature: 0.3,
			MaxConcurrency:     0,
			DefaultModel:       "openai/gpt-4o-mini",
			SiteName:           "gauntlet",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Export: ExportConfig{
			Directory: paths.ExportPath,
		},
	}
}
