package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
)

// DiscoveryDocs renders the machine-readable description of the API.
type DiscoveryDocs interface {
	Manifest() *entities.DiscoveryManifest
	AgentCard() map[string]any
	LLMsText() string
	LLMsFullText() string
	Topics() []string
	Topic(name string) (string, bool)
	OpenAPI() map[string]any
}

// UsageView reads the process-global usage counters.
type UsageView interface {
	Totals() entities.UsageTotals
	Recent() []entities.RequestRecord
}

// MetaHandler handles the free service surface: index, health, discovery
// documents and the OpenAPI description.
type MetaHandler struct {
	discovery DiscoveryDocs
	usage     UsageView
	network   entities.Network
	version   string
	startedAt time.Time
}

// NewMetaHandler creates a new meta handler.
func NewMetaHandler(discovery DiscoveryDocs, usage UsageView, network entities.Network, version string) *MetaHandler {
	return &MetaHandler{
		discovery: discovery,
		usage:     usage,
		network:   network,
		version:   version,
		startedAt: time.Now().UTC(),
	}
}

// Index describes the service and links the discovery documents.
// GET /
func (h *MetaHandler) Index(c *gin.Context) {
	response.OK(c, http.StatusOK, gin.H{
		"name":    "x402 API gateway",
		"version": h.version,
		"network": h.network,
		"discovery": gin.H{
			"manifest":  "/x402.json",
			"agentCard": "/.well-known/agent.json",
			"openapi":   "/openapi.json",
			"llms":      "/llms.txt",
			"llmsFull":  "/llms-full.txt",
			"topics":    "/topics",
		},
	})
}

// Health reports liveness plus the usage counter snapshot.
// GET /health
func (h *MetaHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"network": h.network,
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.usage != nil {
		body["totals"] = h.usage.Totals()
		body["recent"] = h.usage.Recent()
	}
	response.OK(c, http.StatusOK, body)
}

// Manifest serves the x402 discovery manifest.
// GET /x402.json
func (h *MetaHandler) Manifest(c *gin.Context) {
	c.JSON(http.StatusOK, h.discovery.Manifest())
}

// AgentCard serves the A2A agent card.
// GET /.well-known/agent.json
func (h *MetaHandler) AgentCard(c *gin.Context) {
	c.JSON(http.StatusOK, h.discovery.AgentCard())
}

// LLMsText serves the compact LLM-readable endpoint index.
// GET /llms.txt
func (h *MetaHandler) LLMsText(c *gin.Context) {
	c.String(http.StatusOK, h.discovery.LLMsText())
}

// LLMsFullText serves the expanded LLM-readable API description.
// GET /llms-full.txt
func (h *MetaHandler) LLMsFullText(c *gin.Context) {
	c.String(http.StatusOK, h.discovery.LLMsFullText())
}

// Topics lists the documentation topics.
// GET /topics
func (h *MetaHandler) Topics(c *gin.Context) {
	response.OK(c, http.StatusOK, gin.H{"topics": h.discovery.Topics()})
}

// Topic serves one documentation topic as plain text.
// GET /topics/{topic}
func (h *MetaHandler) Topic(c *gin.Context) {
	name := c.Param("topic")
	text, ok := h.discovery.Topic(name)
	if !ok {
		response.Error(c, domainerrors.NotFound("unknown topic: "+name))
		return
	}
	c.String(http.StatusOK, text)
}

// OpenAPI serves the generated OpenAPI document.
// GET /openapi.json
func (h *MetaHandler) OpenAPI(c *gin.Context) {
	c.JSON(http.StatusOK, h.discovery.OpenAPI())
}
