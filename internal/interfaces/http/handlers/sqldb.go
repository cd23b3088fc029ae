package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
)

// SQLHandler handles the sandboxed per-payer SQL endpoints.
type SQLHandler struct {
	shards ShardProvider
}

// NewSQLHandler creates a new SQL sandbox handler.
func NewSQLHandler(shards ShardProvider) *SQLHandler {
	return &SQLHandler{shards: shards}
}

type sqlRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// Query runs a read-only statement against the payer's shard.
// POST /storage/db/query
func (h *SQLHandler) Query(c *gin.Context) {
	var req sqlRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.SQL == "" {
		response.Error(c, domainerrors.BadRequest("sql is required"))
		return
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	result, err := shard.SQLQuery(c.Request.Context(), req.SQL, req.Params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"columns":  result.Columns,
		"rows":     result.Rows,
		"rowCount": result.RowCount,
	})
}

// Execute runs a mutating statement against the payer's shard.
// POST /storage/db/execute
func (h *SQLHandler) Execute(c *gin.Context) {
	var req sqlRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.SQL == "" {
		response.Error(c, domainerrors.BadRequest("sql is required"))
		return
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	result, err := shard.SQLExecute(c.Request.Context(), req.SQL, req.Params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"rowsAffected": result.RowsAffected,
	})
}

// Schema lists the user tables created through the sandbox.
// GET /storage/db/schema
func (h *SQLHandler) Schema(c *gin.Context) {
	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	tables, err := shard.SQLSchema(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"tables": tables,
		"count":  len(tables),
	})
}
