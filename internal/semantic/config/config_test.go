package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("default provider: %s", cfg.Embedding.Provider)
	}
	if cfg.Indexing.ChunkSize != 1000 || cfg.Indexing.Overlap != 200 {
		t.Errorf("default chunking: %d/%d", cfg.Indexing.ChunkSize, cfg.Indexing.Overlap)
	}
	if cfg.Indexing.MaxFileSize != 10*1024*1024 {
		t.Errorf("default max file size: %d", cfg.Indexing.MaxFileSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
storage:
  sqlite_path: /tmp/test.db
  qdrant:
    endpoint: http://qdrant:6334
    collection: mycol
embedding:
  provider: ollama
  model: mxbai-embed-large
indexing:
  chunk_size: 500
  overlap: 50
  concurrency: 8
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.SQLitePath != "/tmp/test.db" {
		t.Errorf("sqlite_path: %s", cfg.Storage.SQLitePath)
	}
	if cfg.Storage.Qdrant.Collection != "mycol" {
		t.Errorf("collection: %s", cfg.Storage.Qdrant.Collection)
	}
	if cfg.Embedding.Model != "mxbai-embed-large" {
		t.Errorf("model: %s", cfg.Embedding.Model)
	}
	if cfg.Indexing.ChunkSize != 500 || cfg.Indexing.Concurrency != 8 {
		t.Errorf("indexing: %+v", cfg.Indexing)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[storage.qdrant]
endpoint = "http://qdrant:6334"
collection = "tomlcol"

[embedding]
provider = "ollama"
model = "all-minilm"

[indexing]
chunk_size = 256
overlap = 32
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Qdrant.Collection != "tomlcol" {
		t.Errorf("collection: %s", cfg.Storage.Qdrant.Collection)
	}
	if cfg.Embedding.Model != "all-minilm" || cfg.Indexing.ChunkSize != 256 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("expected defaults, got %+v", cfg.Embedding)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QDRANT_ENDPOINT", "http://override:6334")
	t.Setenv("QDRANT_API_KEY", "qkey")
	t.Setenv("DIRINDEX_COLLECTION", "envcol")
	t.Setenv("OLLAMA_ENDPOINT", "http://ollama-host:11434")
	t.Setenv("DIRINDEX_DATA_DIR", "/data/dirindex")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Qdrant.Endpoint != "http://override:6334" {
		t.Errorf("qdrant endpoint: %s", cfg.Storage.Qdrant.Endpoint)
	}
	if cfg.Storage.Qdrant.APIKey != "qkey" || cfg.Storage.Qdrant.Collection != "envcol" {
		t.Errorf("qdrant overrides: %+v", cfg.Storage.Qdrant)
	}
	if cfg.Embedding.Endpoint != "http://ollama-host:11434" {
		t.Errorf("ollama endpoint: %s", cfg.Embedding.Endpoint)
	}
	if cfg.Storage.SQLitePath != filepath.Join("/data/dirindex", "metadata.db") {
		t.Errorf("sqlite path: %s", cfg.Storage.SQLitePath)
	}
}

func TestValidateOpenAIRequiresKey(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKey = ""

	var verr *ValidationError
	if err := cfg.Validate(); !errors.As(err, &verr) || verr.Field != "embedding.api_key" {
		t.Errorf("expected api_key validation error, got %v", err)
	}

	cfg.Embedding.APIKey = "sk-x"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsFileWatching(t *testing.T) {
	cfg := Default()
	cfg.Monitoring.FileWatching = true
	var verr *ValidationError
	if err := cfg.Validate(); !errors.As(err, &verr) || verr.Field != "monitoring.file_watching" {
		t.Errorf("expected file_watching validation error, got %v", err)
	}
}

func TestValidateOverlapBound(t *testing.T) {
	cfg := Default()
	cfg.Indexing.Overlap = cfg.Indexing.ChunkSize
	if err := cfg.Validate(); err == nil {
		t.Error("expected overlap >= chunk_size to fail validation")
	}
}

func TestValidateUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "anthropic"
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown provider to fail validation")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "bad.yaml", "storage: [not: a: mapping")
	var lerr *LoadError
	if _, err := Load(path); !errors.As(err, &lerr) {
		t.Errorf("expected LoadError, got %v", err)
	}
}
