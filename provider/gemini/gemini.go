// Package gemini implements docsift.EmbeddingProvider for Google Gemini
// embedding models via the embedContent REST API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/docsift/docsift"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Embedding implements docsift.EmbeddingProvider for Gemini embedding models.
//
// Every failure — transport error, auth, quota, malformed response — is
// returned as *docsift.ErrUnavailable so the retriever can fall back to
// keyword search.
type Embedding struct {
	apiKey     string
	model      string
	dims       int
	baseURL    string
	httpClient *http.Client
}

var _ docsift.EmbeddingProvider = (*Embedding)(nil)

// Option configures a Gemini embedding provider.
type Option func(*Embedding)

// WithBaseURL overrides the API base URL (useful for tests and proxies).
func WithBaseURL(u string) Option {
	return func(e *Embedding) { e.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Embedding) { e.httpClient = c }
}

// NewEmbedding creates a Gemini embedding provider. dims selects the output
// dimensionality requested from the API (the core defaults to 768).
func NewEmbedding(apiKey, model string, dims int, opts ...Option) *Embedding {
	e := &Embedding{
		apiKey:     apiKey,
		model:      model,
		dims:       dims,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Name returns "gemini".
func (e *Embedding) Name() string { return "gemini" }

// Dimensions returns the configured embedding dimensionality.
func (e *Embedding) Dimensions() int { return e.dims }

// Embed embeds each text sequentially and returns the vectors in input order.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", e.baseURL, e.model, e.apiKey)

	embeddings := make([][]float32, 0, len(texts))

	for _, text := range texts {
		body := map[string]any{
			"content": map[string]any{
				"parts": []map[string]any{
					{"text": text},
				},
			},
			"outputDimensionality": e.dims,
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return nil, e.unavailable(fmt.Errorf("marshal embed body: %w", err))
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
		if err != nil {
			return nil, e.unavailable(fmt.Errorf("create embed request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := e.httpClient.Do(httpReq)
		if err != nil {
			return nil, e.unavailable(fmt.Errorf("embed request failed: %w", err))
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, e.unavailable(fmt.Errorf("read embed response: %w", err))
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, e.unavailable(&docsift.ErrHTTP{Status: resp.StatusCode, Body: string(respBody)})
		}

		var parsed embedResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, e.unavailable(fmt.Errorf("parse embed response: %w", err))
		}
		if parsed.Embedding == nil {
			return nil, e.unavailable(fmt.Errorf("missing embedding.values in response"))
		}

		vec := make([]float32, len(parsed.Embedding.Values))
		for i, v := range parsed.Embedding.Values {
			vec[i] = float32(v)
		}
		embeddings = append(embeddings, vec)
	}

	return embeddings, nil
}

func (e *Embedding) unavailable(err error) error {
	return &docsift.ErrUnavailable{Provider: "gemini", Err: err}
}

type embedResponse struct {
	Embedding *embedValues `json:"embedding"`
}

type embedValues struct {
	Values []float64 `json:"values"`
}
