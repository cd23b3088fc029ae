package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/middleware"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
)

// PasteHandler handles the per-payer paste store endpoints.
type PasteHandler struct {
	shards  ShardProvider
	scans   ScanScheduler
	baseURL string
}

// NewPasteHandler creates a new paste handler. baseURL is used to render
// the shareable URL of a created paste.
func NewPasteHandler(shards ShardProvider, scans ScanScheduler, baseURL string) *PasteHandler {
	return &PasteHandler{shards: shards, scans: scans, baseURL: baseURL}
}

type pasteCreateRequest struct {
	Content  string `json:"content"`
	Title    string `json:"title"`
	Language string `json:"language"`
	TTL      int    `json:"ttl"`
}

// Create stores a text snippet and schedules a safety scan of its content.
// POST /storage/paste
func (h *PasteHandler) Create(c *gin.Context) {
	var req pasteCreateRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Content == "" {
		response.Error(c, domainerrors.BadRequest("content is required"))
		return
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	paste, err := shard.PasteCreate(c.Request.Context(), req.Content, req.Title, req.Language, req.TTL)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.scans != nil {
		h.scans.Schedule(middleware.PayerAddress(c), paste.ID, entities.ScanContentPaste, paste.Content)
	}

	body := gin.H{
		"id":        paste.ID,
		"url":       h.baseURL + "/storage/paste/" + paste.ID,
		"createdAt": paste.CreatedAt,
	}
	if paste.ExpiresAt != nil {
		body["expiresAt"] = paste.ExpiresAt
	}
	response.OK(c, http.StatusCreated, body)
}

// Get reads a paste by id. Expired pastes read as missing.
// GET /storage/paste/{id}
func (h *PasteHandler) Get(c *gin.Context) {
	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	paste, err := shard.PasteGet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	body := gin.H{
		"id":        paste.ID,
		"content":   paste.Content,
		"createdAt": paste.CreatedAt,
	}
	if paste.Title != "" {
		body["title"] = paste.Title
	}
	if paste.Language != "" {
		body["language"] = paste.Language
	}
	if paste.ExpiresAt != nil {
		body["expiresAt"] = paste.ExpiresAt
	}
	response.OK(c, http.StatusOK, body)
}

// Delete removes a paste and reports whether it existed.
// DELETE /storage/paste/{id}
func (h *PasteHandler) Delete(c *gin.Context) {
	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	deleted, err := shard.PasteDelete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"id":      c.Param("id"),
		"deleted": deleted,
	})
}
