package config

import "time"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:              "~/.config/listkeeper",
			SQLiteFile:        "listkeeper.db",
			SQLiteJournalMode: "wal",
		},
		Sync: SyncConfig{
			SourceFile:     "",
			SourceName:     "backend",
			Interval:       15 * time.Minute,
			InitialBackoff: 30 * time.Second,
			MaxBackoff:     30 * time.Minute,
			Timeout:        30 * time.Second,
		},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8722,
			RequestTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
		Seed: SeedConfig{
			List:    "sensitive",
			Domains: []string{},
		},
	}
}
