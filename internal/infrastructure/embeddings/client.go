// Package embeddings wraps an OpenAI-compatible embedding service. The
// memory endpoints call it when a caller stores or searches by text without
// supplying vectors.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aibtcdev/x402-api/internal/config"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
)

const requestTimeout = 30 * time.Second

const maxResponseBytes = 16 << 20

// Client talks to one embedding endpoint.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds the adapter. An empty URL yields a nil client; callers
// treat nil as "embedding service not configured".
func NewClient(cfg config.EmbeddingsConfig) *Client {
	if cfg.URL == "" {
		return nil
	}
	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model,omitempty"`
}

// Embed converts texts to vectors, one per input, in input order.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	if len(inputs) == 0 {
		return nil, domainerrors.BadRequest("embedding input is required")
	}

	body, err := json.Marshal(embedRequest{Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domainerrors.Upstream("embedding service request failed: " + err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domainerrors.Upstream("embedding service read failed: " + err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domainerrors.Upstream(fmt.Sprintf("embedding service returned status %d", resp.StatusCode))
	}

	var payload struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, domainerrors.Upstream("embedding service sent an unreadable response")
	}
	if len(payload.Data) != len(inputs) {
		return nil, domainerrors.Upstream(fmt.Sprintf("embedding service returned %d vectors for %d inputs", len(payload.Data), len(inputs)))
	}

	sort.Slice(payload.Data, func(a, b int) bool { return payload.Data[a].Index < payload.Data[b].Index })

	vectors := make([][]float64, len(payload.Data))
	for i, d := range payload.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
