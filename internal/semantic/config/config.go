// Package config loads and validates the dirindex configuration record.
// YAML and TOML files are supported, selected by extension; environment
// variables override the file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
)

// QdrantConfig names the vector store.
type QdrantConfig struct {
	Endpoint   string `yaml:"endpoint" toml:"endpoint"`
	Collection string `yaml:"collection" toml:"collection"`
	APIKey     string `yaml:"api_key" toml:"api_key"`
}

// StorageConfig holds both store locations.
type StorageConfig struct {
	SQLitePath string       `yaml:"sqlite_path" toml:"sqlite_path"`
	Qdrant     QdrantConfig `yaml:"qdrant" toml:"qdrant"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider" toml:"provider"`
	Model    string `yaml:"model" toml:"model"`
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	APIKey   string `yaml:"api_key" toml:"api_key"`
}

// IndexingConfig tunes the pipeline and scanner.
type IndexingConfig struct {
	ChunkSize        int      `yaml:"chunk_size" toml:"chunk_size"`
	Overlap          int      `yaml:"overlap" toml:"overlap"`
	MaxFileSize      int64    `yaml:"max_file_size" toml:"max_file_size"`
	IgnorePatterns   []string `yaml:"ignore_patterns" toml:"ignore_patterns"`
	Concurrency      int      `yaml:"concurrency" toml:"concurrency"`
	RespectGitignore bool     `yaml:"respect_gitignore" toml:"respect_gitignore"`
}

// MonitoringConfig carries operational knobs. FileWatching is recognized so
// a config that enables it fails loudly instead of being silently ignored.
type MonitoringConfig struct {
	BatchSize    int  `yaml:"batch_size" toml:"batch_size"`
	FileWatching bool `yaml:"file_watching" toml:"file_watching"`
}

// Config is the full configuration record.
type Config struct {
	Storage    StorageConfig    `yaml:"storage" toml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding" toml:"embedding"`
	Indexing   IndexingConfig   `yaml:"indexing" toml:"indexing"`
	Monitoring MonitoringConfig `yaml:"monitoring" toml:"monitoring"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			SQLitePath: defaultSQLitePath(),
			Qdrant: QdrantConfig{
				Endpoint:   "http://localhost:6334",
				Collection: "dirindex",
			},
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			Endpoint: "http://localhost:11434",
		},
		Indexing: IndexingConfig{
			ChunkSize:   1000,
			Overlap:     200,
			MaxFileSize: 10 * 1024 * 1024,
			IgnorePatterns: []string{
				".*", "node_modules", "__pycache__", "*.pyc", "target", "dist", "build",
			},
			Concurrency:      4,
			RespectGitignore: true,
		},
		Monitoring: MonitoringConfig{
			BatchSize: 32,
		},
	}
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "dirindex.db"
	}
	return filepath.Join(home, ".dirindex", "metadata.db")
}

// Load reads the configuration from path, falling back to defaults when
// path is empty or the file does not exist, then applies environment
// overrides and validates. With an empty path the default locations
// .dirindex/config.yaml and .dirindex/config.toml are tried in order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{
			filepath.Join(".dirindex", "config.yaml"),
			filepath.Join(".dirindex", "config.toml"),
		} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, &LoadError{Path: path, Err: err}
			}
		} else {
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return &LoadError{Path: path, Err: err}
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return &LoadError{Path: path, Err: err}
		}
	default:
		return &LoadError{Path: path, Err: errUnknownFormat}
	}
	return nil
}

// applyEnv layers environment variables over the loaded file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("QDRANT_ENDPOINT"); v != "" {
		cfg.Storage.Qdrant.Endpoint = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.Storage.Qdrant.APIKey = v
	}
	if v := os.Getenv("DIRINDEX_COLLECTION"); v != "" {
		cfg.Storage.Qdrant.Collection = v
	}
	if v := os.Getenv("DIRINDEX_DATA_DIR"); v != "" {
		cfg.Storage.SQLitePath = filepath.Join(v, "metadata.db")
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" && cfg.Embedding.Provider != "openai" {
		cfg.Embedding.Endpoint = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
}

// Validate enforces the cross-field constraints the loaders cannot express.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "ollama":
	case "openai":
		if c.Embedding.APIKey == "" {
			return &ValidationError{Field: "embedding.api_key",
				Reason: "required when embedding.provider is openai (set OPENAI_API_KEY)"}
		}
	case "":
		return &ValidationError{Field: "embedding.provider", Reason: "must be set"}
	default:
		return &ValidationError{Field: "embedding.provider",
			Reason: "must be 'ollama' or 'openai', got '" + c.Embedding.Provider + "'"}
	}
	if c.Embedding.Model == "" {
		return &ValidationError{Field: "embedding.model", Reason: "must be set"}
	}
	if c.Indexing.ChunkSize < 1 {
		return &ValidationError{Field: "indexing.chunk_size", Reason: "must be positive"}
	}
	if c.Indexing.Overlap < 0 || c.Indexing.Overlap >= c.Indexing.ChunkSize {
		return &ValidationError{Field: "indexing.overlap",
			Reason: "must satisfy 0 <= overlap < chunk_size"}
	}
	if c.Monitoring.FileWatching {
		return &ValidationError{Field: "monitoring.file_watching",
			Reason: "file watching is not supported; set it to false"}
	}
	return nil
}
