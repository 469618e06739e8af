// Package openaicompat implements docsift.EmbeddingProvider against any
// OpenAI-compatible /v1/embeddings endpoint: OpenAI itself, Ollama,
// LM Studio, vLLM, and similar local servers.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docsift/docsift"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Embedding implements docsift.EmbeddingProvider for OpenAI-compatible
// embedding endpoints. Texts are sent as one batched request; the response
// is re-ordered by the API's index field so output stays aligned with input.
//
// 429 and 5xx responses are retried with exponential backoff, honoring
// Retry-After when present. Exhausted retries and every other failure are
// returned as *docsift.ErrUnavailable.
type Embedding struct {
	apiKey     string
	model      string
	dims       int
	baseURL    string
	maxRetries int
	httpClient *http.Client
}

var _ docsift.EmbeddingProvider = (*Embedding)(nil)

// Option configures the provider.
type Option func(*Embedding)

// WithBaseURL overrides the API base URL, e.g. "http://localhost:11434/v1"
// for Ollama.
func WithBaseURL(u string) Option {
	return func(e *Embedding) { e.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Embedding) { e.httpClient = c }
}

// WithMaxRetries sets the number of retries on 429/5xx (default 3).
func WithMaxRetries(n int) Option {
	return func(e *Embedding) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// NewEmbedding creates an OpenAI-compatible embedding provider. dims is the
// expected vector size; it is advisory (sent as the dimensions parameter
// when positive).
func NewEmbedding(apiKey, model string, dims int, opts ...Option) *Embedding {
	e := &Embedding{
		apiKey:     apiKey,
		model:      model,
		dims:       dims,
		baseURL:    defaultBaseURL,
		maxRetries: 3,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Name returns "openaicompat".
func (e *Embedding) Name() string { return "openaicompat" }

// Dimensions returns the configured embedding dimensionality.
func (e *Embedding) Dimensions() int { return e.dims }

// Embed sends all texts in one request and returns vectors in input order.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body := map[string]any{
		"model": e.model,
		"input": texts,
	}
	if e.dims > 0 {
		body["dimensions"] = e.dims
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, e.unavailable(fmt.Errorf("marshal embed body: %w", err))
	}

	var lastErr error
	var serverWait time.Duration
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, e.unavailable(ctx.Err())
			case <-time.After(retryDelay(attempt, serverWait)):
			}
		}

		vectors, retry, wait, err := e.doRequest(ctx, payload, len(texts))
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retry {
			return nil, e.unavailable(err)
		}
		serverWait = wait
	}
	return nil, e.unavailable(lastErr)
}

// doRequest performs one embeddings call. retry reports whether the failure
// is worth another attempt (429/5xx/transport); wait carries the server's
// Retry-After for the caller's next delay.
func (e *Embedding) doRequest(ctx context.Context, payload []byte, want int) (vectors [][]float32, retry bool, wait time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, false, 0, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, true, 0, fmt.Errorf("embed request failed: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, true, 0, fmt.Errorf("read embed response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, retryAfter(resp), &docsift.ErrHTTP{Status: resp.StatusCode, Body: string(respBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, 0, &docsift.ErrHTTP{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, false, 0, fmt.Errorf("parse embed response: %w", err)
	}
	if len(parsed.Data) != want {
		return nil, false, 0, fmt.Errorf("expected %d embeddings, got %d", want, len(parsed.Data))
	}

	// The API may return entries out of order; the index field restores
	// input alignment.
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	vectors = make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if len(d.Embedding) == 0 {
			return nil, false, 0, fmt.Errorf("empty embedding at index %d", d.Index)
		}
		vectors[i] = d.Embedding
	}
	return vectors, false, 0, nil
}

func (e *Embedding) unavailable(err error) error {
	return &docsift.ErrUnavailable{Provider: "openaicompat", Err: err}
}

func retryAfter(resp *http.Response) time.Duration {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}
	secs, err := strconv.Atoi(ra)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// retryDelay picks the wait before the given attempt: the server's
// Retry-After when it set one, exponential backoff otherwise.
func retryDelay(attempt int, serverWait time.Duration) time.Duration {
	if serverWait > 0 {
		return serverWait
	}
	return backoff(attempt)
}

// backoff returns the delay before the given attempt, exponential from
// 200ms and capped at 5s.
func backoff(attempt int) time.Duration {
	d := 200 * time.Millisecond << (attempt - 1)
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
