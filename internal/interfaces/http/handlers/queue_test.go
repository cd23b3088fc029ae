package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibtcdev/x402-api/internal/infrastructure/storage"
)

func queueRouter(manager *storage.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewQueueHandler(manager)
	r := gin.New()
	g := r.Group("/", asPayer(testPayer))
	g.POST("/storage/queue/push", h.Push)
	g.POST("/storage/queue/pop", h.Pop)
	g.POST("/storage/queue/peek", h.Peek)
	g.GET("/storage/queue/status", h.Status)
	g.POST("/storage/queue/clear", h.Clear)
	return r
}

func TestQueueRoundtrip(t *testing.T) {
	r := queueRouter(newShardManager(t))

	w := performJSON(r, http.MethodPost, "/storage/queue/push", gin.H{
		"queue": "jobs",
		"items": []gin.H{{"n": 1}, {"n": 2}, {"n": 3}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeJSONMap(t, w)
	assert.Equal(t, float64(3), body["queued"])
	assert.Len(t, body["jobIds"], 3)

	w = performJSON(r, http.MethodGet, "/storage/queue/status?queue=jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeJSONMap(t, w)
	assert.Equal(t, float64(3), body["pending"])
	assert.Equal(t, float64(3), body["total"])

	// peek does not consume
	w = performJSON(r, http.MethodPost, "/storage/queue/peek", gin.H{"queue": "jobs", "count": 2})
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeJSONMap(t, w)
	assert.Equal(t, float64(2), body["count"])

	w = performJSON(r, http.MethodGet, "/storage/queue/status?queue=jobs", nil)
	body = decodeJSONMap(t, w)
	assert.Equal(t, float64(3), body["pending"])

	w = performJSON(r, http.MethodPost, "/storage/queue/pop", gin.H{"queue": "jobs", "count": 2})
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeJSONMap(t, w)
	assert.Equal(t, float64(2), body["count"])
	jobs := body["jobs"].([]any)
	first := jobs[0].(map[string]any)
	assert.Contains(t, first, "id")
	assert.Contains(t, first, "payload")

	w = performJSON(r, http.MethodGet, "/storage/queue/status?queue=jobs", nil)
	body = decodeJSONMap(t, w)
	assert.Equal(t, float64(1), body["pending"])
}

func TestQueuePriorityOrder(t *testing.T) {
	r := queueRouter(newShardManager(t))

	w := performJSON(r, http.MethodPost, "/storage/queue/push", gin.H{
		"queue": "jobs", "items": []gin.H{{"job": "low"}}, "priority": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = performJSON(r, http.MethodPost, "/storage/queue/push", gin.H{
		"queue": "jobs", "items": []gin.H{{"job": "high"}}, "priority": 9,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = performJSON(r, http.MethodPost, "/storage/queue/pop", gin.H{"queue": "jobs", "count": 1})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSONMap(t, w)
	jobs := body["jobs"].([]any)
	require.Len(t, jobs, 1)
	payload := jobs[0].(map[string]any)["payload"].(map[string]any)
	assert.Equal(t, "high", payload["job"])
}

func TestQueueClear(t *testing.T) {
	r := queueRouter(newShardManager(t))

	performJSON(r, http.MethodPost, "/storage/queue/push", gin.H{
		"queue": "jobs", "items": []gin.H{{"n": 1}, {"n": 2}},
	})

	w := performJSON(r, http.MethodPost, "/storage/queue/clear", gin.H{"queue": "jobs"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSONMap(t, w)
	assert.Equal(t, float64(2), body["cleared"])

	w = performJSON(r, http.MethodGet, "/storage/queue/status?queue=jobs", nil)
	body = decodeJSONMap(t, w)
	assert.Equal(t, float64(0), body["total"])
}

func TestQueueValidation(t *testing.T) {
	r := queueRouter(newShardManager(t))

	w := performJSON(r, http.MethodPost, "/storage/queue/push", gin.H{"items": []gin.H{{"n": 1}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "queue is required")

	w = performJSON(r, http.MethodPost, "/storage/queue/push", gin.H{"queue": "jobs"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "items are required")

	w = performJSON(r, http.MethodGet, "/storage/queue/status", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performJSON(r, http.MethodPost, "/storage/queue/pop", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
