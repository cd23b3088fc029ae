package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/aibtcdev/x402-api/internal/config"
	"github.com/aibtcdev/x402-api/internal/domain/entities"
)

// OpenRouter calls the OpenRouter chat completion API and its model catalog.
type OpenRouter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenRouter builds the adapter from config; the base URL defaults are
// resolved by config.Load.
func NewOpenRouter(cfg config.OpenRouterConfig) *OpenRouter {
	return &OpenRouter{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// ChatCompletion forwards an OpenAI-compatible completion request. The raw
// upstream body is preserved for the client; usage is parsed for accounting.
func (o *OpenRouter) ChatCompletion(ctx context.Context, chatReq *entities.ChatRequest) (*entities.ChatCompletion, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("openrouter response read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError("openrouter", resp.StatusCode, raw)
	}
	return parseChatCompletion(raw)
}

// ListModels fetches the model catalog. OpenRouter prices are USD per token;
// they are normalized to USD per 1k tokens here so the pricing engine only
// ever sees one unit.
func (o *OpenRouter) ListModels(ctx context.Context) ([]entities.CatalogModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("build models request: %w", err)
	}
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("openrouter response read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError("openrouter", resp.StatusCode, raw)
	}

	var payload struct {
		Data []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Pricing struct {
				Prompt     string `json:"prompt"`
				Completion string `json:"completion"`
			} `json:"pricing"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("openrouter catalog is not valid JSON: %w", err)
	}

	models := make([]entities.CatalogModel, 0, len(payload.Data))
	for _, m := range payload.Data {
		models = append(models, entities.CatalogModel{
			ID:   m.ID,
			Name: m.Name,
			Pricing: entities.ModelPricing{
				PromptPerK:     perTokenToPerK(m.Pricing.Prompt),
				CompletionPerK: perTokenToPerK(m.Pricing.Completion),
			},
		})
	}
	return models, nil
}

// perTokenToPerK parses a per-token USD price string into per-1k units.
// Unparseable prices become 0 and fall back to default pricing downstream.
func perTokenToPerK(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v * 1000
}
