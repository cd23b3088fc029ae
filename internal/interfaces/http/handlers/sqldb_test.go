package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibtcdev/x402-api/internal/infrastructure/storage"
)

func sqlRouter(manager *storage.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSQLHandler(manager)
	r := gin.New()
	g := r.Group("/", asPayer(testPayer))
	g.POST("/storage/db/query", h.Query)
	g.POST("/storage/db/execute", h.Execute)
	g.GET("/storage/db/schema", h.Schema)
	return r
}

func TestSQLSandboxRoundtrip(t *testing.T) {
	r := sqlRouter(newShardManager(t))

	w := performJSON(r, http.MethodPost, "/storage/db/execute", gin.H{
		"sql": "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = performJSON(r, http.MethodPost, "/storage/db/execute", gin.H{
		"sql":    "INSERT INTO notes (body) VALUES (?)",
		"params": []any{"first"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeJSONMap(t, w)
	assert.Equal(t, float64(1), body["rowsAffected"])

	w = performJSON(r, http.MethodPost, "/storage/db/query", gin.H{
		"sql": "SELECT id, body FROM notes",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decodeJSONMap(t, w)
	assert.Equal(t, float64(1), body["rowCount"])
	assert.ElementsMatch(t, []any{"id", "body"}, body["columns"])
	rows := body["rows"].([]any)
	first := rows[0].(map[string]any)
	assert.Equal(t, "first", first["body"])

	w = performJSON(r, http.MethodGet, "/storage/db/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeJSONMap(t, w)
	assert.Equal(t, float64(1), body["count"])
	tables := body["tables"].([]any)
	table := tables[0].(map[string]any)
	assert.Equal(t, "notes", table["name"])
}

func TestSQLSandboxGuards(t *testing.T) {
	r := sqlRouter(newShardManager(t))

	w := performJSON(r, http.MethodPost, "/storage/db/query", gin.H{
		"sql": "SELECT * FROM kv_entries",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "reserved table")

	w = performJSON(r, http.MethodPost, "/storage/db/query", gin.H{
		"sql": "DROP TABLE notes",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performJSON(r, http.MethodPost, "/storage/db/execute", gin.H{
		"sql": "DELETE FROM pastes",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "reserved table")

	w = performJSON(r, http.MethodPost, "/storage/db/execute", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "sql is required")
}
