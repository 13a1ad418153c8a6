// Package config provides configuration loading and structs for the multirag server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Domains    []DomainConfig   `yaml:"domains"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Routing    RoutingConfig    `yaml:"routing"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the root directory for per-domain state. Each domain
// keeps chunks.db (SQLite), vectors.idx (binary vector index), and
// keywords.bleve (keyword index) under BasePath/<domain>/.
type StorageConfig struct {
	BasePath string `yaml:"base_path"`
}

// DomainConfig declares one knowledge domain. The registry is populated from
// this list at startup and never mutated by background scans.
type DomainConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// DataPath is an optional directory of raw documents for the watcher.
	DataPath string `yaml:"data_path,omitempty"`
}

// EmbeddingConfig selects and configures the embedding provider.
// Provider is one of "hash" (deterministic, no model required), "onnx"
// (local model, requires CGO), or "ollama" (HTTP).
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	ModelPath   string `yaml:"model_path,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	Model       string `yaml:"model,omitempty"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"`
	CacheSize   int    `yaml:"cache_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Timeout returns the per-call embedding timeout.
func (e *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// GenerationConfig selects and configures the generative provider.
// Provider is "ollama" or "none"; "none" runs the pipeline in the degraded
// retrieval-only mode instead of crashing on a missing model.
type GenerationConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Model       string  `yaml:"model,omitempty"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// Timeout returns the per-call generation timeout.
func (g *GenerationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// RoutingConfig holds domain routing settings. Signal is "centroid" or
// "keyword". Queries whose top score normalizes below ConfidenceThreshold are
// hedged across the top HedgeCandidates domains.
type RoutingConfig struct {
	Signal              string  `yaml:"signal"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	HedgeCandidates     int     `yaml:"hedge_candidates"`
}

// RetrievalConfig holds retrieval settings. TopK is clamped to MaxLimit by
// ApplyDefaults so a misconfigured depth cannot scan the whole index.
type RetrievalConfig struct {
	TopK     int `yaml:"top_k"`
	MaxLimit int `yaml:"max_limit"`
	// ContextBudget is the maximum prompt context size in runes.
	ContextBudget int `yaml:"context_budget"`
}

// IngestConfig holds chunking and batching settings.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	BatchSize    int `yaml:"batch_size"`
}

// WatchConfig holds settings for re-ingesting domain data directories.
type WatchConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Extensions []string `yaml:"extensions"`
	Recursive  *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
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

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.BasePath = expandPath(cfg.Storage.BasePath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Domains {
		if cfg.Domains[i].DataPath != "" {
			cfg.Domains[i].DataPath = expandPath(cfg.Domains[i].DataPath, configDir)
		}
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

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
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
