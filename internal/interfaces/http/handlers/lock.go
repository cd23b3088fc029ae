package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
)

// LockHandler handles the per-payer advisory lock endpoints.
type LockHandler struct {
	shards ShardProvider
}

// NewLockHandler creates a new lock handler.
func NewLockHandler(shards ShardProvider) *LockHandler {
	return &LockHandler{shards: shards}
}

type lockAcquireRequest struct {
	Name string `json:"name"`
	TTL  int    `json:"ttl"`
}

// Acquire takes a named lock. A held lock reports acquired=false with the
// holder's expiry instead of failing the request.
// POST /storage/sync/lock
func (h *LockHandler) Acquire(c *gin.Context) {
	var req lockAcquireRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Name == "" {
		response.Error(c, domainerrors.BadRequest("name is required"))
		return
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	result, err := shard.LockAcquire(c.Request.Context(), req.Name, req.TTL)
	if err != nil {
		response.Error(c, err)
		return
	}

	body := gin.H{
		"name":     req.Name,
		"acquired": result.Acquired,
	}
	if result.Token != "" {
		body["token"] = result.Token
	}
	if result.ExpiresAt != nil {
		body["expiresAt"] = result.ExpiresAt
	}
	if result.HeldUntil != nil {
		body["heldUntil"] = result.HeldUntil
	}
	response.OK(c, http.StatusOK, body)
}

type lockTokenRequest struct {
	Name  string `json:"name"`
	Token string `json:"token"`
	TTL   int    `json:"ttl"`
}

// Release frees a lock held with the given token.
// POST /storage/sync/unlock
func (h *LockHandler) Release(c *gin.Context) {
	var req lockTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Name == "" || req.Token == "" {
		response.Error(c, domainerrors.BadRequest("name and token are required"))
		return
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	if err := shard.LockRelease(c.Request.Context(), req.Name, req.Token); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"name":     req.Name,
		"released": true,
	})
}

// Extend pushes the expiry of a held lock forward.
// POST /storage/sync/extend
func (h *LockHandler) Extend(c *gin.Context) {
	var req lockTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Name == "" || req.Token == "" {
		response.Error(c, domainerrors.BadRequest("name and token are required"))
		return
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	result, err := shard.LockExtend(c.Request.Context(), req.Name, req.Token, req.TTL)
	if err != nil {
		response.Error(c, err)
		return
	}

	body := gin.H{
		"name":     req.Name,
		"extended": result.Acquired,
	}
	if result.ExpiresAt != nil {
		body["expiresAt"] = result.ExpiresAt
	}
	response.OK(c, http.StatusOK, body)
}

// Status reports whether a lock is currently held.
// GET /storage/sync/status/{name}
func (h *LockHandler) Status(c *gin.Context) {
	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	state, err := shard.LockStatus(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}

	body := gin.H{
		"name": state.Name,
		"held": state.Held,
	}
	if state.ExpiresAt != nil {
		body["expiresAt"] = state.ExpiresAt
	}
	response.OK(c, http.StatusOK, body)
}

// List reports all live locks in the payer's shard.
// GET /storage/sync/list
func (h *LockHandler) List(c *gin.Context) {
	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	locks, err := shard.LockList(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"locks": locks,
		"count": len(locks),
	})
}
