package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "/usr/local/var/osusume/data/top100_clean.csv"
	}
	if cfg.Catalog.DebounceMS == 0 {
		cfg.Catalog.DebounceMS = 500
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/osusume/data/db/catalog.db"
	}
	if cfg.Engine.DefaultStrategy == "" {
		cfg.Engine.DefaultStrategy = "tfidf"
	}
	if cfg.Engine.DefaultLimit == 0 {
		cfg.Engine.DefaultLimit = 5
	}
	if cfg.Engine.MaxLimit == 0 {
		cfg.Engine.MaxLimit = 100
	}
	if cfg.Engine.GenreLimit == 0 {
		cfg.Engine.GenreLimit = 5
	}
	if cfg.Engine.Suggestions == 0 {
		cfg.Engine.Suggestions = 3
	}
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
