// Package config loads CLI configuration: defaults, then a TOML file, then
// environment variables (env wins).
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Embedding EmbeddingConfig `toml:"embedding"`
	Chunker   ChunkerConfig   `toml:"chunker"`
	Index     IndexConfig     `toml:"index"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Observer  ObserverConfig  `toml:"observer"`
}

type EmbeddingConfig struct {
	Provider   string `toml:"provider"` // gemini | openaicompat
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
}

type ChunkerConfig struct {
	WindowTokens  int `toml:"window_tokens"`
	OverlapTokens int `toml:"overlap_tokens"`
}

type IndexConfig struct {
	Backend      string `toml:"backend"` // memory | sqlite | postgres
	SnapshotPath string `toml:"snapshot_path"`
	SQLitePath   string `toml:"sqlite_path"`
	PostgresURL  string `toml:"postgres_url"`
}

type RetrievalConfig struct {
	TopK int `toml:"top_k"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Embedding: EmbeddingConfig{Provider: "gemini", Model: "gemini-embedding-001", Dimensions: 768},
		Chunker:   ChunkerConfig{WindowTokens: 512, OverlapTokens: 50},
		Index:     IndexConfig{Backend: "memory", SnapshotPath: "docsift.snapshot.json", SQLitePath: "docsift.db"},
		Retrieval: RetrievalConfig{TopK: 5},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "docsift.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("DOCSIFT_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("DOCSIFT_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("DOCSIFT_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("DOCSIFT_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("DOCSIFT_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("DOCSIFT_INDEX_BACKEND"); v != "" {
		cfg.Index.Backend = v
	}
	if v := os.Getenv("DOCSIFT_POSTGRES_URL"); v != "" {
		cfg.Index.PostgresURL = v
	}
	if v := os.Getenv("DOCSIFT_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}
