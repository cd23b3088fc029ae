package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/aibtcdev/x402-api/internal/infrastructure/storage"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/middleware"
)

const (
	testPayer  = "SP3FBR2AGK5H9QBDH3EEN6DF8EK8JY7RX8QJ5SVTE"
	otherPayer = "SP2H8PY27SEZ03MWRKS5XABZYQN17ETGQS3527SA5"
)

// newShardManager opens a real shard manager rooted in a temp dir.
func newShardManager(t *testing.T) *storage.Manager {
	t.Helper()
	manager, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(manager.Close)
	return manager
}

// asPayer binds a settled payer identity the way the payment gate does.
func asPayer(payer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.PayerKey, payer)
	}
}

type scanCall struct {
	payer       string
	contentID   string
	contentType string
	content     string
}

type capturedScans struct {
	mu    sync.Mutex
	calls []scanCall
}

func (s *capturedScans) Schedule(payer, contentID, contentType, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, scanCall{payer, contentID, contentType, content})
}

func (s *capturedScans) all() []scanCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scanCall(nil), s.calls...)
}

func performJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeJSONMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}
