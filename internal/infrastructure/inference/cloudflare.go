package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aibtcdev/x402-api/internal/config"
	"github.com/aibtcdev/x402-api/internal/domain/entities"
)

const defaultCloudflareBase = "https://api.cloudflare.com/client/v4"

// Cloudflare calls Workers AI through its OpenAI-compatible endpoint.
type Cloudflare struct {
	baseURL    string
	apiToken   string
	accountID  string
	httpClient *http.Client
}

// NewCloudflare builds the adapter. The account id is part of every path.
func NewCloudflare(cfg config.CloudflareConfig) *Cloudflare {
	return &Cloudflare{
		baseURL:    defaultCloudflareBase,
		apiToken:   cfg.APIToken,
		accountID:  cfg.AccountID,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// ChatCompletion forwards a completion request to Workers AI.
func (c *Cloudflare) ChatCompletion(ctx context.Context, chatReq *entities.ChatRequest) (*entities.ChatCompletion, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/ai/v1/chat/completions", c.baseURL, c.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudflare request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("cloudflare response read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError("cloudflare", resp.StatusCode, raw)
	}
	return parseChatCompletion(raw)
}

// ListModels returns the Workers AI text-generation model list. Cloudflare
// publishes no per-token pricing here; entries carry zero pricing and the
// endpoint is fixed-tier anyway.
func (c *Cloudflare) ListModels(ctx context.Context) ([]entities.CatalogModel, error) {
	url := fmt.Sprintf("%s/accounts/%s/ai/models/search?task=Text%%20Generation", c.baseURL, c.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build models request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudflare request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("cloudflare response read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError("cloudflare", resp.StatusCode, raw)
	}

	var payload struct {
		Result []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("cloudflare catalog is not valid JSON: %w", err)
	}

	models := make([]entities.CatalogModel, 0, len(payload.Result))
	for _, m := range payload.Result {
		models = append(models, entities.CatalogModel{
			ID:   m.Name,
			Name: strings.TrimSpace(m.Description),
		})
	}
	return models, nil
}
