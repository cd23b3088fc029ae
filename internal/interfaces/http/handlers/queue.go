package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
)

// QueueHandler handles the per-payer job queue endpoints.
type QueueHandler struct {
	shards ShardProvider
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(shards ShardProvider) *QueueHandler {
	return &QueueHandler{shards: shards}
}

type queuePushRequest struct {
	Queue    string            `json:"queue"`
	Items    []json.RawMessage `json:"items"`
	Priority int               `json:"priority"`
}

// Push enqueues a batch of items.
// POST /storage/queue/push
func (h *QueueHandler) Push(c *gin.Context) {
	var req queuePushRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Queue == "" {
		response.Error(c, domainerrors.BadRequest("queue is required"))
		return
	}
	if len(req.Items) == 0 {
		response.Error(c, domainerrors.BadRequest("items are required"))
		return
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	result, err := shard.QueuePush(c.Request.Context(), req.Queue, req.Items, req.Priority)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"queue":  req.Queue,
		"queued": result.Queued,
		"jobIds": result.JobIDs,
	})
}

type queueBatchRequest struct {
	Queue string `json:"queue"`
	Count int    `json:"count"`
}

// Pop dequeues up to count jobs in priority order and deletes them.
// POST /storage/queue/pop
func (h *QueueHandler) Pop(c *gin.Context) {
	h.drain(c, true)
}

// Peek reads up to count jobs without removing them.
// POST /storage/queue/peek
func (h *QueueHandler) Peek(c *gin.Context) {
	h.drain(c, false)
}

func (h *QueueHandler) drain(c *gin.Context, remove bool) {
	var req queueBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Queue == "" {
		response.Error(c, domainerrors.BadRequest("queue is required"))
		return
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	var jobs []entities.QueueJob
	var err error
	if remove {
		jobs, err = shard.QueuePop(c.Request.Context(), req.Queue, req.Count)
	} else {
		jobs, err = shard.QueuePeek(c.Request.Context(), req.Queue, req.Count)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"queue": req.Queue,
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// Status counts jobs by state for one queue.
// GET /storage/queue/status?queue=
func (h *QueueHandler) Status(c *gin.Context) {
	queue := c.Query("queue")
	if queue == "" {
		response.Error(c, domainerrors.BadRequest("queue is required"))
		return
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	status, err := shard.QueueStatus(c.Request.Context(), queue)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"queue":      status.Queue,
		"pending":    status.Pending,
		"processing": status.Processing,
		"total":      status.Total,
	})
}

type queueClearRequest struct {
	Queue  string `json:"queue"`
	Status string `json:"status"`
}

// Clear removes jobs from a queue, optionally only those in one state.
// POST /storage/queue/clear
func (h *QueueHandler) Clear(c *gin.Context) {
	var req queueClearRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Queue == "" {
		response.Error(c, domainerrors.BadRequest("queue is required"))
		return
	}

	shard, ok := shardFor(c, h.shards)
	if !ok {
		return
	}

	cleared, err := shard.QueueClear(c.Request.Context(), req.Queue, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"queue":   req.Queue,
		"cleared": cleared,
	})
}
