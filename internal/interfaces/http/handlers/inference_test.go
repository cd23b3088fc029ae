package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/middleware"
)

type stubChat struct {
	completion *entities.ChatCompletion
	err        error
	last       *entities.ChatRequest
}

func (s *stubChat) ChatCompletion(ctx context.Context, req *entities.ChatRequest) (*entities.ChatCompletion, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.completion, nil
}

type stubModels struct {
	models []entities.CatalogModel
	err    error
}

func (s *stubModels) ListModels(ctx context.Context) ([]entities.CatalogModel, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.models, nil
}

type stubCatalog struct {
	models  []entities.CatalogModel
	fetched time.Time
}

func (s *stubCatalog) Models(ctx context.Context) []entities.CatalogModel { return s.models }
func (s *stubCatalog) FetchedAt() time.Time                               { return s.fetched }

func completionOf(raw string) *entities.ChatCompletion {
	return &entities.ChatCompletion{
		ID:    "gen-1",
		Model: "meta/llama",
		Usage: entities.ChatUsage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
		Raw:   json.RawMessage(raw),
	}
}

func chatBody() gin.H {
	return gin.H{
		"model":    "meta/llama",
		"messages": []gin.H{{"role": "user", "content": "hi"}},
	}
}

func inferenceRouter(h *InferenceHandler, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/", pre...)
	group.POST("/inference/openrouter/chat", h.OpenRouterChat)
	group.POST("/inference/cloudflare/chat", h.CloudflareChat)
	group.GET("/inference/openrouter/models", h.OpenRouterModels)
	group.GET("/inference/cloudflare/models", h.CloudflareModels)
	return r
}

func TestOpenRouterChat_RelaysRawCompletion(t *testing.T) {
	raw := `{"id":"gen-1","choices":[{"message":{"content":"hello"}}],"usage":{"total_tokens":8}}`
	or := &stubChat{completion: completionOf(raw)}
	h := NewInferenceHandler(or, &stubChat{}, &stubModels{}, &stubCatalog{})

	w := performJSON(inferenceRouter(h), http.MethodPost, "/inference/openrouter/chat", chatBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, raw, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.NotNil(t, or.last)
	assert.Equal(t, "meta/llama", or.last.Model)
}

func TestOpenRouterChat_ReusesGateParse(t *testing.T) {
	or := &stubChat{completion: completionOf(`{}`)}
	h := NewInferenceHandler(or, &stubChat{}, &stubModels{}, &stubCatalog{})

	parsed := &entities.ChatRequest{
		Model:    "pinned/model",
		Messages: []entities.ChatMessage{{Role: "user", Content: "hi"}},
	}
	r := inferenceRouter(h, func(c *gin.Context) {
		c.Set(middleware.ParsedBodyKey, parsed)
	})

	// the raw body names another model; the gate's parse wins
	w := performJSON(r, http.MethodPost, "/inference/openrouter/chat", chatBody())
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, or.last)
	assert.Equal(t, "pinned/model", or.last.Model)
}

func TestOpenRouterChat_ValidatesFallbackParse(t *testing.T) {
	h := NewInferenceHandler(&stubChat{}, &stubChat{}, &stubModels{}, &stubCatalog{})
	r := inferenceRouter(h)

	w := performJSON(r, http.MethodPost, "/inference/openrouter/chat", gin.H{"messages": []gin.H{{"role": "user", "content": "hi"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performJSON(r, http.MethodPost, "/inference/openrouter/chat", gin.H{
		"model":    "meta/llama",
		"messages": []gin.H{{"role": "user", "content": "hi"}},
		"stream":   true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "stream")
}

func TestOpenRouterChat_UpstreamError(t *testing.T) {
	or := &stubChat{err: domainerrors.Upstream("openrouter responded 503")}
	h := NewInferenceHandler(or, &stubChat{}, &stubModels{}, &stubCatalog{})

	w := performJSON(inferenceRouter(h), http.MethodPost, "/inference/openrouter/chat", chatBody())
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "openrouter responded 503")
}

func TestCloudflareChat_ParsesOwnBody(t *testing.T) {
	cf := &stubChat{completion: completionOf(`{"result":{"response":"hey"}}`)}
	h := NewInferenceHandler(&stubChat{}, cf, &stubModels{}, &stubCatalog{})

	w := performJSON(inferenceRouter(h), http.MethodPost, "/inference/cloudflare/chat", chatBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"result":{"response":"hey"}}`, w.Body.String())
	require.NotNil(t, cf.last)
	assert.Equal(t, "meta/llama", cf.last.Model)
}

func TestOpenRouterModels_ServedFromCache(t *testing.T) {
	fetched := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	catalog := &stubCatalog{
		models: []entities.CatalogModel{
			{ID: "meta/llama", Pricing: entities.ModelPricing{PromptPerK: 0.001, CompletionPerK: 0.002}},
		},
		fetched: fetched,
	}
	h := NewInferenceHandler(&stubChat{}, &stubChat{}, &stubModels{}, catalog)

	w := performJSON(inferenceRouter(h), http.MethodGet, "/inference/openrouter/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSONMap(t, w)
	assert.Equal(t, float64(1), body["count"])
	assert.Contains(t, body, "fetchedAt")
	models := body["models"].([]any)
	first := models[0].(map[string]any)
	assert.Equal(t, "meta/llama", first["id"])
}

func TestOpenRouterModels_EmptyCacheOmitsFetchedAt(t *testing.T) {
	h := NewInferenceHandler(&stubChat{}, &stubChat{}, &stubModels{}, &stubCatalog{})

	w := performJSON(inferenceRouter(h), http.MethodGet, "/inference/openrouter/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSONMap(t, w)
	assert.Equal(t, float64(0), body["count"])
	assert.NotContains(t, body, "fetchedAt")
}

func TestCloudflareModels_Proxied(t *testing.T) {
	lister := &stubModels{models: []entities.CatalogModel{{ID: "@cf/meta/llama-3"}}}
	h := NewInferenceHandler(&stubChat{}, &stubChat{}, lister, &stubCatalog{})

	w := performJSON(inferenceRouter(h), http.MethodGet, "/inference/cloudflare/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSONMap(t, w)
	assert.Equal(t, float64(1), body["count"])

	lister.err = domainerrors.Upstream("cloudflare responded 500")
	w = performJSON(inferenceRouter(h), http.MethodGet, "/inference/cloudflare/models", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
