package config

import (
	"os"
	"strconv"
)

// ApplyEnvOverrides overrides cfg fields from TADORU_* environment variables.
// A .env file in the working directory is honored when the caller loads it
// (cmd/tadoru does this via godotenv before config loading).
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TADORU_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TADORU_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TADORU_STATE_DIR"); v != "" {
		cfg.Storage.StateDir = v
	}
	if v := os.Getenv("TADORU_EMBED_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("TADORU_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("TADORU_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = debug
		}
	}
}
