package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ollamaEmbedder talks to an Ollama server. The embeddings endpoint takes
// one prompt per request, so batches are issued as sequential requests.
type ollamaEmbedder struct {
	cfg    EmbedderConfig
	client *http.Client
}

func newOllamaEmbedder(cfg EmbedderConfig) *ollamaEmbedder {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	return &ollamaEmbedder{cfg: cfg, client: newEmbedHTTPClient()}
}

func (e *ollamaEmbedder) ModelName() string { return e.cfg.Model }

func (e *ollamaEmbedder) Dimensions() int { return ModelDimensions(e.cfg.Model) }

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Prompt: text})
	if err != nil {
		return nil, Wrap(KindJSON, err, "failed to encode embedding request")
	}

	data, err := e.post(ctx, e.cfg.Endpoint+"/api/embeddings", body)
	if err != nil {
		return nil, err
	}

	var resp ollamaEmbedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, Wrap(KindEmbedding, err, "unparseable embedding response")
	}
	if len(resp.Embedding) == 0 {
		return nil, Errf(KindEmbedding, "embedding response contained no vector")
	}
	return resp.Embedding, nil
}

func (e *ollamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *ollamaEmbedder) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.Endpoint+"/api/tags", nil)
	if err != nil {
		return Wrap(KindHTTP, err, "failed to create request")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return ErrEnvironmentSetup("ollama", e.cfg.Endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrEnvironmentSetup("ollama", e.cfg.Endpoint,
			fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

// post issues the request with a bounded deadline and retries transient
// failures with quadratic backoff, mirroring the retry policy used for the
// OpenAI provider.
func (e *ollamaEmbedder) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	maxAttempts := e.cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, Wrap(KindEmbedding, ctx.Err(), "embedding request cancelled")
			case <-time.After(time.Duration(attempt*attempt) * 100 * time.Millisecond):
			}
		}

		data, retryable, err := e.postOnce(ctx, url, body)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (e *ollamaEmbedder) postOnce(ctx context.Context, url string, body []byte) (data []byte, retryable bool, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, Wrap(KindHTTP, err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, Wrap(KindHTTP, err, "embedding request failed")
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, Wrap(KindHTTP, err, "failed to read embedding response")
	}
	if resp.StatusCode != http.StatusOK {
		err := Errf(KindEmbedding, "embedding provider returned status %d: %s", resp.StatusCode, truncateBody(data))
		return nil, resp.StatusCode >= 500, err
	}
	return data, false, nil
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
