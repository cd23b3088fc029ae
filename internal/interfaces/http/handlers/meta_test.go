package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
)

type stubDiscovery struct {
	manifest *entities.DiscoveryManifest
	topics   map[string]string
}

func (s *stubDiscovery) Manifest() *entities.DiscoveryManifest { return s.manifest }
func (s *stubDiscovery) AgentCard() map[string]any {
	return map[string]any{"protocolVersion": "0.2.9", "name": "x402 API gateway"}
}
func (s *stubDiscovery) LLMsText() string     { return "# x402 API\n" }
func (s *stubDiscovery) LLMsFullText() string { return "# x402 API\nfull\n" }
func (s *stubDiscovery) Topics() []string {
	names := make([]string, 0, len(s.topics))
	for name := range s.topics {
		names = append(names, name)
	}
	return names
}
func (s *stubDiscovery) Topic(name string) (string, bool) {
	text, ok := s.topics[name]
	return text, ok
}
func (s *stubDiscovery) OpenAPI() map[string]any {
	return map[string]any{"openapi": "3.0.3"}
}

type stubUsage struct {
	totals entities.UsageTotals
	recent []entities.RequestRecord
}

func (s *stubUsage) Totals() entities.UsageTotals     { return s.totals }
func (s *stubUsage) Recent() []entities.RequestRecord { return s.recent }

func metaRouter(h *MetaHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", h.Index)
	r.GET("/health", h.Health)
	r.GET("/x402.json", h.Manifest)
	r.GET("/.well-known/agent.json", h.AgentCard)
	r.GET("/llms.txt", h.LLMsText)
	r.GET("/llms-full.txt", h.LLMsFullText)
	r.GET("/topics", h.Topics)
	r.GET("/topics/:topic", h.Topic)
	r.GET("/openapi.json", h.OpenAPI)
	return r
}

func newMetaHandler() *MetaHandler {
	discovery := &stubDiscovery{
		manifest: &entities.DiscoveryManifest{X402Version: 2},
		topics:   map[string]string{"payments": "how to pay"},
	}
	usage := &stubUsage{
		totals: entities.UsageTotals{Requests: 7, ByToken: map[string]int64{"Native": 7}},
		recent: []entities.RequestRecord{{Method: "POST", Path: "/hashing/sha256", Status: 200}},
	}
	return NewMetaHandler(discovery, usage, entities.NetworkMainnet, "1.2.3")
}

func TestIndex(t *testing.T) {
	r := metaRouter(newMetaHandler())

	w := performJSON(r, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSONMap(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "mainnet", body["network"])
	discovery := body["discovery"].(map[string]any)
	assert.Equal(t, "/x402.json", discovery["manifest"])
	assert.Equal(t, "/.well-known/agent.json", discovery["agentCard"])
}

func TestHealth(t *testing.T) {
	r := metaRouter(newMetaHandler())

	w := performJSON(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSONMap(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "mainnet", body["network"])
	assert.Contains(t, body, "uptime")

	totals := body["totals"].(map[string]any)
	assert.Equal(t, float64(7), totals["requests"])
	recent := body["recent"].([]any)
	require.Len(t, recent, 1)
	assert.Equal(t, "/hashing/sha256", recent[0].(map[string]any)["path"])
}

func TestDiscoveryDocuments(t *testing.T) {
	r := metaRouter(newMetaHandler())

	w := performJSON(r, http.MethodGet, "/x402.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	manifest := decodeJSONMap(t, w)
	assert.Equal(t, float64(2), manifest["x402Version"])

	w = performJSON(r, http.MethodGet, "/.well-known/agent.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	card := decodeJSONMap(t, w)
	assert.Equal(t, "0.2.9", card["protocolVersion"])

	w = performJSON(r, http.MethodGet, "/llms.txt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "# x402 API"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = performJSON(r, http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc := decodeJSONMap(t, w)
	assert.Equal(t, "3.0.3", doc["openapi"])
}

func TestTopics(t *testing.T) {
	r := metaRouter(newMetaHandler())

	w := performJSON(r, http.MethodGet, "/topics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSONMap(t, w)
	assert.Equal(t, []any{"payments"}, body["topics"])

	w = performJSON(r, http.MethodGet, "/topics/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "how to pay", w.Body.String())

	w = performJSON(r, http.MethodGet, "/topics/nonsense", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown topic")
}
