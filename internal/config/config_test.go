package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults: %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Embedding.Provider != "hash" {
		t.Errorf("embedding provider default = %q, want hash", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("dimensions default = %d", cfg.Embedding.Dimensions)
	}
	if cfg.Generation.Provider != "none" {
		t.Errorf("generation provider default = %q, want none", cfg.Generation.Provider)
	}
	if cfg.Routing.Signal != "centroid" || cfg.Routing.ConfidenceThreshold != 0.5 || cfg.Routing.HedgeCandidates != 2 {
		t.Errorf("routing defaults: %+v", cfg.Routing)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.ContextBudget != 6000 {
		t.Errorf("retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Ingest.ChunkSize != 800 || cfg.Ingest.ChunkOverlap != 100 || cfg.Ingest.BatchSize != 32 {
		t.Errorf("ingest defaults: %+v", cfg.Ingest)
	}
	if cfg.Embedding.Timeout() != 30*time.Second {
		t.Errorf("embedding timeout = %v", cfg.Embedding.Timeout())
	}
	if cfg.Generation.Timeout() != 120*time.Second {
		t.Errorf("generation timeout = %v", cfg.Generation.Timeout())
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Embedding.Provider = "ollama"
	cfg.Ingest.ChunkSize = 200
	ApplyDefaults(cfg)
	if cfg.Server.Port != 9999 {
		t.Errorf("explicit port overwritten: %d", cfg.Server.Port)
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("explicit provider overwritten: %q", cfg.Embedding.Provider)
	}
	if cfg.Ingest.ChunkSize != 200 {
		t.Errorf("explicit chunk size overwritten: %d", cfg.Ingest.ChunkSize)
	}
}

func TestApplyDefaultsClampsTopK(t *testing.T) {
	cfg := &Config{}
	cfg.Retrieval.TopK = 500
	ApplyDefaults(cfg)
	if cfg.Retrieval.MaxLimit != 50 {
		t.Fatalf("max_limit default = %d, want 50", cfg.Retrieval.MaxLimit)
	}
	if cfg.Retrieval.TopK != 50 {
		t.Errorf("top_k = %d, want clamped to max_limit 50", cfg.Retrieval.TopK)
	}

	cfg = &Config{}
	cfg.Retrieval.TopK = 20
	cfg.Retrieval.MaxLimit = 10
	ApplyDefaults(cfg)
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("top_k = %d, want clamped to explicit max_limit 10", cfg.Retrieval.TopK)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  port: 9090
storage:
  base_path: ./data
domains:
  - name: legal
    description: statutes and case law
    data_path: ./docs/legal
  - name: code
embedding:
  provider: hash
  dimensions: 128
routing:
  signal: keyword
  confidence_threshold: 0.6
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not loaded")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("host default not applied: %q", cfg.Server.Host)
	}
	if len(cfg.Domains) != 2 || cfg.Domains[0].Name != "legal" || cfg.Domains[1].Name != "code" {
		t.Fatalf("domains = %+v", cfg.Domains)
	}
	if cfg.Routing.Signal != "keyword" || cfg.Routing.ConfidenceThreshold != 0.6 {
		t.Errorf("routing = %+v", cfg.Routing)
	}
	// ./-relative paths resolve against the config directory.
	if cfg.Storage.BasePath != filepath.Join(dir, "data") {
		t.Errorf("base_path = %q", cfg.Storage.BasePath)
	}
	if cfg.Domains[0].DataPath != filepath.Join(dir, "docs/legal") {
		t.Errorf("data_path = %q", cfg.Domains[0].DataPath)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Domains = []DomainConfig{{Name: "finance", Description: "filings"}}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Domains) != 1 || loaded.Domains[0].Name != "finance" {
		t.Errorf("domains = %+v", loaded.Domains)
	}
}
