package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/middleware"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
)

// ChatProvider forwards a chat completion request to an upstream model host.
type ChatProvider interface {
	ChatCompletion(ctx context.Context, req *entities.ChatRequest) (*entities.ChatCompletion, error)
}

// ModelLister fetches the live model list of an upstream host.
type ModelLister interface {
	ListModels(ctx context.Context) ([]entities.CatalogModel, error)
}

// CatalogView reads the cached model catalog.
type CatalogView interface {
	Models(ctx context.Context) []entities.CatalogModel
	FetchedAt() time.Time
}

// InferenceHandler handles chat completion and model listing endpoints.
type InferenceHandler struct {
	openRouter ChatProvider
	cloudflare ChatProvider
	cfModels   ModelLister
	catalog    CatalogView
}

// NewInferenceHandler creates a new inference handler.
func NewInferenceHandler(openRouter, cloudflare ChatProvider, cfModels ModelLister, catalog CatalogView) *InferenceHandler {
	return &InferenceHandler{
		openRouter: openRouter,
		cloudflare: cloudflare,
		cfModels:   cfModels,
		catalog:    catalog,
	}
}

// OpenRouterChat proxies a chat completion to OpenRouter. The payment gate
// already parsed the body to price the request; reuse that parse when present.
// POST /inference/openrouter/chat
func (h *InferenceHandler) OpenRouterChat(c *gin.Context) {
	req := middleware.ParsedChatRequest(c)
	if req == nil {
		parsed, ok := bindChatRequest(c)
		if !ok {
			return
		}
		req = parsed
	}
	h.complete(c, h.openRouter, req)
}

// CloudflareChat proxies a chat completion to Cloudflare Workers AI.
// POST /inference/cloudflare/chat
func (h *InferenceHandler) CloudflareChat(c *gin.Context) {
	req, ok := bindChatRequest(c)
	if !ok {
		return
	}
	h.complete(c, h.cloudflare, req)
}

// complete forwards the request and relays the upstream response body
// verbatim so callers see the provider's own completion document.
func (h *InferenceHandler) complete(c *gin.Context, provider ChatProvider, req *entities.ChatRequest) {
	completion, err := provider.ChatCompletion(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", completion.Raw)
}

// OpenRouterModels lists the cached OpenRouter catalog.
// GET /inference/openrouter/models
func (h *InferenceHandler) OpenRouterModels(c *gin.Context) {
	models := h.catalog.Models(c.Request.Context())
	body := gin.H{
		"models": models,
		"count":  len(models),
	}
	if fetched := h.catalog.FetchedAt(); !fetched.IsZero() {
		body["fetchedAt"] = fetched
	}
	response.OK(c, http.StatusOK, body)
}

// CloudflareModels lists the live Cloudflare Workers AI model catalog.
// GET /inference/cloudflare/models
func (h *InferenceHandler) CloudflareModels(c *gin.Context) {
	models, err := h.cfModels.ListModels(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"models": models,
		"count":  len(models),
	})
}

func bindChatRequest(c *gin.Context) (*entities.ChatRequest, bool) {
	var req entities.ChatRequest
	if !bindJSON(c, &req) {
		return nil, false
	}
	if err := req.Validate(); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return nil, false
	}
	return &req, true
}
