package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/middleware"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
)

// KVHandler handles the per-payer key-value store endpoints.
type KVHandler struct {
	shards ShardProvider
	scans  ScanScheduler
}

// NewKVHandler creates a new key-value handler.
func NewKVHandler(shards ShardProvider, scans ScanScheduler) *KVHandler {
	return &KVHandler{shards: shards, scans: scans}
}

type kvSetRequest struct {
	Key      string          `json:"key"`
	Value    json.RawMessage `json:"value"`
	Metadata json.RawMessage `json:"metadata"`
	TTL      int             `json:"ttl"`
}

// Set upserts a key in the payer's shard and schedules a safety scan of
// the stored value.
// POST /storage/kv
func (h *KVHandler) Set(c *gin.Context) {
	var req kvSetRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Key == "" {
		response.Error(c, domainerrors.BadRequest("key is required"))
		return
	}
	if len(req.Value) == 0 {
		response.Error(c, domainerrors.BadRequest("value is required"))
		return
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	result, err := shard.KVSet(c.Request.Context(), req.Key, req.Value, req.Metadata, req.TTL)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.scans != nil {
		h.scans.Schedule(middleware.PayerAddress(c), req.Key, entities.ScanContentKV, string(req.Value))
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	body := gin.H{
		"key":     result.Key,
		"created": result.Created,
	}
	if result.ExpiresAt != nil {
		body["expiresAt"] = result.ExpiresAt
	}
	response.OK(c, status, body)
}

// Get reads a key from the payer's shard. Expired entries read as missing.
// GET /storage/kv/{key}
func (h *KVHandler) Get(c *gin.Context) {
	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	item, err := shard.KVGet(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}

	body := gin.H{
		"key":       item.Key,
		"value":     item.Value,
		"createdAt": item.CreatedAt,
		"updatedAt": item.UpdatedAt,
	}
	if len(item.Metadata) > 0 {
		body["metadata"] = item.Metadata
	}
	if item.ExpiresAt != nil {
		body["expiresAt"] = item.ExpiresAt
	}
	response.OK(c, http.StatusOK, body)
}

// Delete removes a key and reports whether it existed.
// DELETE /storage/kv/{key}
func (h *KVHandler) Delete(c *gin.Context) {
	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	deleted, err := shard.KVDelete(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"key":     c.Param("key"),
		"deleted": deleted,
	})
}

// List scans keys by optional prefix. Values are not returned.
// GET /storage/kv?prefix=&limit=
func (h *KVHandler) List(c *gin.Context) {
	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	keys, err := shard.KVList(c.Request.Context(), c.Query("prefix"), queryInt(c, "limit"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"keys":  keys,
		"count": len(keys),
	})
}
