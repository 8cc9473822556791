package semantic

import (
	"context"
	"net/http"
	"time"
)

// DefaultEmbedTimeout bounds each outbound embedding request.
const DefaultEmbedTimeout = 60 * time.Second

// Embedder is the capability set shared by all embedding providers. A
// concrete provider is selected once at configuration time; nothing past
// construction switches on the provider.
type Embedder interface {
	// ModelName returns the provider-specific model identifier.
	ModelName() string

	// Dimensions returns the declared embedding dimension for the model.
	Dimensions() int

	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// HealthCheck verifies the provider endpoint is reachable.
	HealthCheck(ctx context.Context) error
}

// EmbedderConfig selects and configures a provider.
type EmbedderConfig struct {
	Provider   string // "ollama" or "openai"
	Model      string
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// modelDimensions maps known models to their embedding dimension. Unknown
// models default to 1536.
var modelDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"text-embedding-3-large": 3072,
}

// ModelDimensions returns the declared dimension for a model name.
func ModelDimensions(model string) int {
	if d, ok := modelDimensions[model]; ok {
		return d
	}
	return 1536
}

// NewEmbedder constructs the provider named by cfg.Provider.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	if cfg.Model == "" {
		return nil, Errf(KindConfig, "embedding.model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultEmbedTimeout
	}
	switch cfg.Provider {
	case "ollama", "":
		return newOllamaEmbedder(cfg), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, Errf(KindConfig, "embedding.api_key is required for provider openai")
		}
		return newOpenAIEmbedder(cfg), nil
	default:
		return nil, Errf(KindConfig, "unknown embedding provider: %s (use 'ollama' or 'openai')", cfg.Provider)
	}
}

// newEmbedHTTPClient builds the shared pooled client. The per-request
// deadline is carried by the context, not the client, so callers keep
// control over cancellation.
func newEmbedHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        8,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}
