// Package client provides the HTTP client facades the gateway talks
// through: the token-classification inference sidecar and the upstream
// LLM providers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Bridge-Point/anonamoose-sub001/internal/detector"
)

// InferenceClient talks to a HuggingFace-style token-classification
// sidecar. It implements detector.Inferencer.
type InferenceClient struct {
	baseURL    string
	cacheDir   string
	httpClient *http.Client
}

// NewInferenceClient constructs a client for the sidecar at baseURL
// (no trailing slash). cacheDir is forwarded on warm-up so the sidecar
// can reuse a shared model cache.
func NewInferenceClient(baseURL, cacheDir string) *InferenceClient {
	return &InferenceClient{
		baseURL:  baseURL,
		cacheDir: cacheDir,
		httpClient: &http.Client{
			// Model loads pull weights on a cold cache.
			Timeout: 120 * time.Second,
		},
	}
}

var _ detector.Inferencer = (*InferenceClient)(nil)

type warmupRequest struct {
	Model    string `json:"model"`
	CacheDir string `json:"cache_dir,omitempty"`
}

// Warmup asks the sidecar to load the model so the first Classify
// call does not pay the load latency.
func (c *InferenceClient) Warmup(ctx context.Context, model string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/models/load", warmupRequest{
		Model:    model,
		CacheDir: c.cacheDir,
	})
	if err != nil {
		return err
	}
	if err := c.doJSON(req, nil); err != nil {
		return fmt.Errorf("Warmup: %w", err)
	}
	return nil
}

type classifyRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

// Classify runs token classification over text and returns the raw
// per-token predictions with BIO tags and chunk-relative offsets.
func (c *InferenceClient) Classify(ctx context.Context, model, text string) ([]detector.TokenPrediction, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/token-classification", classifyRequest{
		Model: model,
		Text:  text,
	})
	if err != nil {
		return nil, err
	}
	var preds []detector.TokenPrediction
	if err := c.doJSON(req, &preds); err != nil {
		return nil, fmt.Errorf("Classify: %w", err)
	}
	return preds, nil
}

// newRequest builds an *http.Request with common headers and a JSON
// body.
func (c *InferenceClient) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("inference client: marshal request body: %w", err)
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, fmt.Errorf("inference client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doJSON executes req and decodes a successful (2xx) response body
// into dest. Non-2xx status codes are treated as errors.
func (c *InferenceClient) doJSON(req *http.Request, dest interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference client: http do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("inference client: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("inference client: unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	if dest != nil {
		if err := json.Unmarshal(raw, dest); err != nil {
			return fmt.Errorf("inference client: unmarshal response: %w", err)
		}
	}
	return nil
}
