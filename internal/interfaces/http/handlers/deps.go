// Package handlers contains the gin handlers behind every gateway route.
// Paid handlers run after the payment gate and read the settled payer
// identity from the request context; storage handlers resolve that payer
// to its private shard before touching any data.
package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/infrastructure/storage"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/middleware"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
)

// ShardProvider resolves a payer address to its private storage shard.
type ShardProvider interface {
	Shard(ctx context.Context, payer string) (*storage.Shard, error)
}

// ScanScheduler accepts content for asynchronous safety scanning.
// Scheduling never blocks the request that stored the content.
type ScanScheduler interface {
	Schedule(payer, contentID, contentType, content string)
}

// Embedder turns texts into embedding vectors for the memory store.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// shardFor resolves the shard of the payer bound to the current request.
// Paid storage routes always run behind the payment gate, so a missing
// payer means the route was wired without it.
func shardFor(c *gin.Context, shards ShardProvider) (*storage.Shard, bool) {
	payer := middleware.PayerAddress(c)
	if payer == "" {
		response.Error(c, domainerrors.InternalServerError("no payer identity bound to the request"))
		return nil, false
	}
	shard, err := shards.Shard(c.Request.Context(), payer)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return shard, true
}

// bindJSON decodes the request body into v and reports malformed input
// as a 400 instead of gin's default plain-text error.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		response.Error(c, domainerrors.BadRequest("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// queryInt parses an integer query parameter. Absent or malformed values
// read as zero so callers can apply their defaults.
func queryInt(c *gin.Context, name string) int {
	v, _ := strconv.Atoi(c.Query(name))
	return v
}
