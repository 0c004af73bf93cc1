// Package config provides configuration loading and structs for the tadoru server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate for configurations that cannot be served
// (bad chunking parameters, bad ports, etc.). Fatal at startup.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Search    SearchConfig    `yaml:"search"`
}

// ServerConfig holds HTTP server settings. CORSOrigins lists the origins
// allowed by the CORS middleware; the capture agent runs in a browser.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// StorageConfig holds the state directory. The vector index file and the
// chunk database live side by side in StateDir and are loaded as a pair.
type StorageConfig struct {
	StateDir string `yaml:"state_dir"`
}

// VectorIndexPath returns the path of the vector index file inside StateDir.
func (s *StorageConfig) VectorIndexPath() string {
	return filepath.Join(s.StateDir, "index.bin")
}

// DatabasePath returns the path of the chunk metadata database inside StateDir.
func (s *StorageConfig) DatabasePath() string {
	return filepath.Join(s.StateDir, "chunks.db")
}

// EmbeddingConfig holds settings for the external embedding backend.
type EmbeddingConfig struct {
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	Dimensions    int    `yaml:"dimensions"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
	CacheSize     int    `yaml:"cache_size"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// IndexingConfig holds chunking and revisit settings.
type IndexingConfig struct {
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	Strategy          string `yaml:"strategy"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
	ReplaceRevisits   *bool  `yaml:"replace_revisits"`
	SaveOnIndex       *bool  `yaml:"save_on_index"`
	SaveIntervalSecs  int    `yaml:"save_interval_secs"`
}

// ReplaceRevisitsOrDefault returns whether re-captures of a URL replace its
// existing chunks; defaults to true when unset. False restores the legacy
// append-forever behavior.
func (i *IndexingConfig) ReplaceRevisitsOrDefault() bool {
	if i.ReplaceRevisits != nil {
		return *i.ReplaceRevisits
	}
	return true
}

// SaveOnIndexOrDefault returns whether the vector index is saved synchronously
// after each indexed capture; defaults to true when unset.
func (i *IndexingConfig) SaveOnIndexOrDefault() bool {
	if i.SaveOnIndex != nil {
		return *i.SaveOnIndex
	}
	return true
}

// SearchConfig holds search settings.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// Load reads and parses the config file at path, applies environment
// overrides and defaults, expands paths, and validates the result.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnvOverrides(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.StateDir = expandPath(cfg.Storage.StateDir, configDir)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with environment overrides and defaults applied,
// for running without a config file.
func Default() (*Config, error) {
	var cfg Config
	ApplyEnvOverrides(&cfg)
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that cfg can be served. All failures wrap ErrInvalid.
func Validate(cfg *Config) error {
	if cfg.Indexing.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalid, cfg.Indexing.ChunkSize)
	}
	if cfg.Indexing.ChunkOverlap < 0 || cfg.Indexing.ChunkOverlap >= cfg.Indexing.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalid, cfg.Indexing.ChunkOverlap)
	}
	switch cfg.Indexing.Strategy {
	case "window", "sentence":
	default:
		return fmt.Errorf("%w: unknown chunking strategy %q (supported: window, sentence)", ErrInvalid, cfg.Indexing.Strategy)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive, got %d", ErrInvalid, cfg.Embedding.Dimensions)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: port must be in (0, 65535], got %d", ErrInvalid, cfg.Server.Port)
	}
	if cfg.Search.DefaultTopK <= 0 || cfg.Search.DefaultTopK > cfg.Search.MaxTopK {
		return fmt.Errorf("%w: default_top_k must be in (0, max_top_k], got %d", ErrInvalid, cfg.Search.DefaultTopK)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
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
