package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/middleware"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
)

// MemoryHandler handles the per-payer vector memory endpoints. Items and
// queries without an embedding are embedded through the configured
// embedding service before they reach the shard.
type MemoryHandler struct {
	shards   ShardProvider
	scans    ScanScheduler
	embedder Embedder
}

// NewMemoryHandler creates a new vector memory handler. embedder may be
// nil when no embedding service is configured; callers must then supply
// their own vectors.
func NewMemoryHandler(shards ShardProvider, scans ScanScheduler, embedder Embedder) *MemoryHandler {
	return &MemoryHandler{shards: shards, scans: scans, embedder: embedder}
}

type memoryStoreItem struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Embedding []float64       `json:"embedding"`
	Metadata  json.RawMessage `json:"metadata"`
}

type memoryStoreRequest struct {
	Items []memoryStoreItem `json:"items"`
}

// Store upserts memory items by id. Missing ids are generated; missing
// embeddings are computed from the item text in one embedding call.
// POST /storage/memory/store
func (h *MemoryHandler) Store(c *gin.Context) {
	var req memoryStoreRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Items) == 0 {
		response.Error(c, domainerrors.BadRequest("items are required"))
		return
	}

	items := make([]entities.MemoryItem, len(req.Items))
	var pending []int
	for i, in := range req.Items {
		if in.Text == "" {
			response.Error(c, domainerrors.BadRequest("every item needs text"))
			return
		}
		id := in.ID
		if id == "" {
			id = uuid.New().String()
		}
		items[i] = entities.MemoryItem{
			ID:        id,
			Text:      in.Text,
			Embedding: in.Embedding,
			Metadata:  in.Metadata,
		}
		if len(in.Embedding) == 0 {
			pending = append(pending, i)
		}
	}

	if len(pending) > 0 {
		if h.embedder == nil {
			response.Error(c, domainerrors.BadRequest("no embedding service is configured; provide embeddings"))
			return
		}
		texts := make([]string, len(pending))
		for i, idx := range pending {
			texts[i] = items[idx].Text
		}
		vectors, err := h.embedder.Embed(c.Request.Context(), texts)
		if err != nil {
			response.Error(c, err)
			return
		}
		if len(vectors) != len(pending) {
			response.Error(c, domainerrors.Upstream("embedding service returned a mismatched vector count"))
			return
		}
		for i, idx := range pending {
			items[idx].Embedding = vectors[i]
		}
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	stored, err := shard.MemoryStore(c.Request.Context(), items)
	if err != nil {
		response.Error(c, err)
		return
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
		if h.scans != nil {
			h.scans.Schedule(middleware.PayerAddress(c), items[i].ID, entities.ScanContentMemory, items[i].Text)
		}
	}
	response.OK(c, http.StatusOK, gin.H{
		"stored": stored,
		"ids":    ids,
	})
}

type memorySearchRequest struct {
	Query     string    `json:"query"`
	Embedding []float64 `json:"embedding"`
	Limit     int       `json:"limit"`
	Threshold float64   `json:"threshold"`
}

// Search ranks stored items by cosine similarity against the query. The
// query is either a raw embedding or a text to embed.
// POST /storage/memory/search
func (h *MemoryHandler) Search(c *gin.Context) {
	var req memorySearchRequest
	if !bindJSON(c, &req) {
		return
	}

	query := req.Embedding
	if len(query) == 0 {
		if req.Query == "" {
			response.Error(c, domainerrors.BadRequest("query or embedding is required"))
			return
		}
		if h.embedder == nil {
			response.Error(c, domainerrors.BadRequest("no embedding service is configured; provide an embedding"))
			return
		}
		vectors, err := h.embedder.Embed(c.Request.Context(), []string{req.Query})
		if err != nil {
			response.Error(c, err)
			return
		}
		if len(vectors) != 1 {
			response.Error(c, domainerrors.Upstream("embedding service returned a mismatched vector count"))
			return
		}
		query = vectors[0]
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	hits, err := shard.MemorySearch(c.Request.Context(), query, req.Limit, req.Threshold)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"hits":  hits,
		"count": len(hits),
	})
}

type memoryDeleteRequest struct {
	IDs []string `json:"ids"`
}

// Delete removes items by id and reports the ids that actually existed.
// POST /storage/memory/delete
func (h *MemoryHandler) Delete(c *gin.Context) {
	var req memoryDeleteRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.IDs) == 0 {
		response.Error(c, domainerrors.BadRequest("ids are required"))
		return
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	deleted, err := shard.MemoryDelete(c.Request.Context(), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"deleted": deleted,
		"count":   len(deleted),
	})
}

// List pages through stored items in insertion order.
// GET /storage/memory/list?limit=&offset=
func (h *MemoryHandler) List(c *gin.Context) {
	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	items, err := shard.MemoryList(c.Request.Context(), queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// Clear wipes the payer's memory store.
// POST /storage/memory/clear
func (h *MemoryHandler) Clear(c *gin.Context) {
	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	cleared, err := shard.MemoryClear(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"cleared": cleared})
}
