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

// openAIEmbedder talks to an OpenAI-compatible embeddings endpoint with
// bearer auth and true batch support.
type openAIEmbedder struct {
	cfg    EmbedderConfig
	client *http.Client
}

func newOpenAIEmbedder(cfg EmbedderConfig) *openAIEmbedder {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com"
	}
	return &openAIEmbedder{cfg: cfg, client: newEmbedHTTPClient()}
}

func (e *openAIEmbedder) ModelName() string { return e.cfg.Model }

func (e *openAIEmbedder) Dimensions() int { return ModelDimensions(e.cfg.Model) }

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, Errf(KindEmbedding, "embedding response contained no vector")
	}
	return vecs[0], nil
}

func (e *openAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(openAIEmbedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, Wrap(KindJSON, err, "failed to encode embedding request")
	}

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

		vecs, retryable, err := e.embedOnce(ctx, body, len(texts))
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (e *openAIEmbedder) embedOnce(ctx context.Context, body []byte, want int) (vecs [][]float32, retryable bool, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.cfg.Endpoint+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, Wrap(KindHTTP, err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, Wrap(KindHTTP, err, "embedding request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, Wrap(KindHTTP, err, "failed to read embedding response")
	}
	if resp.StatusCode != http.StatusOK {
		var errResp openAIErrorResponse
		_ = json.Unmarshal(data, &errResp)
		msg := errResp.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, resp.StatusCode >= 500, Errf(KindEmbedding, "embedding provider error: %s", msg)
	}

	var parsed openAIEmbedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, false, Wrap(KindEmbedding, err, "unparseable embedding response")
	}
	if len(parsed.Data) != want {
		return nil, false, Errf(KindEmbedding, "embedding response returned %d vectors, want %d", len(parsed.Data), want)
	}

	vecs = make([][]float32, want)
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= want {
			return nil, false, Errf(KindEmbedding, "embedding response index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, false, nil
}

func (e *openAIEmbedder) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.Endpoint+"/v1/models", nil)
	if err != nil {
		return Wrap(KindHTTP, err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return ErrEnvironmentSetup("openai", e.cfg.Endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return ErrEnvironmentSetup("openai", e.cfg.Endpoint,
			fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}
