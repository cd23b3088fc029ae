package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aibtcdev/x402-api/internal/config"
	"github.com/aibtcdev/x402-api/internal/domain/entities"
	"github.com/aibtcdev/x402-api/internal/infrastructure/replay"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/handlers"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/middleware"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/registry"
	"github.com/aibtcdev/x402-api/internal/usecases"
	"github.com/aibtcdev/x402-api/pkg/hashing"
)

// serverDeps carries the wired services buildRouter assembles into the
// endpoint table.
type serverDeps struct {
	cfg        *config.Config
	network    entities.Network
	version    string
	pricing    *usecases.Pricing
	settler    middleware.Settler
	guard      replay.Guard
	recorder   *usecases.UsageRecorder
	catalog    *usecases.ModelCatalog
	openRouter handlers.ChatProvider
	cloudflare interface {
		handlers.ChatProvider
		handlers.ModelLister
	}
	chain    handlers.ChainReader
	shards   handlers.ShardProvider
	scanner  handlers.ScanScheduler
	embedder handlers.Embedder
	metrics  *prometheus.Registry
}

// buildRouter registers every endpoint and mounts the middleware chain. The
// registry table is the single source for routing, gating and discovery.
func buildRouter(deps serverDeps) *gin.Engine {
	baseURL := deps.cfg.Server.BaseURL()

	reg := registry.New()
	for _, ep := range apiEndpoints(deps, baseURL) {
		reg.MustRegister(ep)
	}

	// Discovery reads specs through the callback, so the meta endpoints
	// registered below still show up in the rendered documents.
	discovery := usecases.NewDiscovery(baseURL, deps.network, deps.cfg.Payment.Recipient, deps.version, deps.pricing, reg.Specs)
	meta := handlers.NewMetaHandler(discovery, deps.recorder, deps.network, deps.version)
	for _, ep := range metaEndpoints(meta, deps.metrics) {
		reg.MustRegister(ep)
	}

	r := gin.New()
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	applyCORSMiddleware(r)

	gate := middleware.NewPaymentGate(deps.network, deps.cfg.Payment.Recipient, baseURL, deps.pricing, deps.settler, deps.guard, deps.recorder)
	reg.Mount(r, gate.Gate, func(spec entities.EndpointSpec) gin.HandlerFunc {
		return middleware.Observe(spec, deps.recorder)
	})
	return r
}

// apiEndpoints is the priced surface plus the free model listings.
func apiEndpoints(deps serverDeps, baseURL string) []registry.Endpoint {
	stacksHandler := handlers.NewStacksHandler(deps.chain)
	inferenceHandler := handlers.NewInferenceHandler(deps.openRouter, deps.cloudflare, deps.cloudflare, deps.catalog)
	kvHandler := handlers.NewKVHandler(deps.shards, deps.scanner)
	pasteHandler := handlers.NewPasteHandler(deps.shards, deps.scanner, baseURL)
	sqlHandler := handlers.NewSQLHandler(deps.shards)
	lockHandler := handlers.NewLockHandler(deps.shards)
	queueHandler := handlers.NewQueueHandler(deps.shards)
	memoryHandler := handlers.NewMemoryHandler(deps.shards, deps.scanner, deps.embedder)

	standard := entities.Fixed(entities.TierStandard)
	free := entities.Fixed(entities.TierFree)

	var eps []registry.Endpoint

	for _, slug := range hashing.Slugs() {
		algo, _ := hashing.Lookup(slug)
		eps = append(eps, registry.Endpoint{
			Method:   http.MethodPost,
			Path:     "/hashing/" + slug,
			Price:    standard,
			Category: "hashing",
			Summary:  algo.Name + " digest of the posted data",
			Meta:     hashingMeta,
			Handler:  handlers.Hash(algo),
		})
	}

	eps = append(eps,
		registry.Endpoint{Method: http.MethodGet, Path: "/stacks/address/{address}", Price: standard, Category: "stacks",
			Summary: "Decode a Stacks address into its network, type and hash160", Handler: stacksHandler.Address},
		registry.Endpoint{Method: http.MethodPost, Path: "/stacks/decode/clarity", Price: standard, Category: "stacks",
			Summary: "Decode a hex-encoded Clarity value", Handler: stacksHandler.DecodeClarity},
		registry.Endpoint{Method: http.MethodPost, Path: "/stacks/decode/transaction", Price: standard, Category: "stacks",
			Summary: "Decode a hex-encoded Stacks transaction", Handler: stacksHandler.DecodeTransaction},
		registry.Endpoint{Method: http.MethodGet, Path: "/stacks/profile/{address}", Price: standard, Category: "stacks",
			Summary: "Balances and BNS names for an address", Handler: stacksHandler.Profile},
		registry.Endpoint{Method: http.MethodPost, Path: "/stacks/verify/message", Price: standard, Category: "stacks",
			Summary: "Verify a signed personal message against an address", Handler: stacksHandler.VerifyMessage},
		registry.Endpoint{Method: http.MethodPost, Path: "/stacks/verify/sip018", Price: standard, Category: "stacks",
			Summary: "Verify a SIP-018 structured-data signature", Handler: stacksHandler.VerifyStructured},

		registry.Endpoint{Method: http.MethodPost, Path: "/inference/openrouter/chat", Price: entities.Dynamic(entities.EstimatorChat), Category: "inference",
			Summary: "Chat completion via OpenRouter, priced per estimated tokens", Meta: chatMeta, Handler: inferenceHandler.OpenRouterChat},
		registry.Endpoint{Method: http.MethodGet, Path: "/inference/openrouter/models", Price: free, Category: "inference",
			Summary: "Cached OpenRouter model catalog", Handler: inferenceHandler.OpenRouterModels},
		registry.Endpoint{Method: http.MethodPost, Path: "/inference/cloudflare/chat", Price: standard, Category: "inference",
			Summary: "Chat completion via Cloudflare Workers AI", Meta: chatMeta, Handler: inferenceHandler.CloudflareChat},
		registry.Endpoint{Method: http.MethodGet, Path: "/inference/cloudflare/models", Price: free, Category: "inference",
			Summary: "Cloudflare Workers AI model listing", Handler: inferenceHandler.CloudflareModels},

		registry.Endpoint{Method: http.MethodGet, Path: "/storage/kv", Price: standard, Category: "storage",
			Summary: "List keys in the payer's namespace", Handler: kvHandler.List},
		registry.Endpoint{Method: http.MethodPost, Path: "/storage/kv", Price: standard, Category: "storage",
			Summary: "Set a key to a JSON value, optionally with a TTL", Meta: kvSetMeta, Handler: kvHandler.Set},
		registry.Endpoint{Method: http.MethodGet, Path: "/storage/kv/{key}", Price: standard, Category: "storage",
			Summary: "Read one key", Handler: kvHandler.Get},
		registry.Endpoint{Method: http.MethodDelete, Path: "/storage/kv/{key}", Price: standard, Category: "storage",
			Summary: "Delete one key", Handler: kvHandler.Delete},

		registry.Endpoint{Method: http.MethodPost, Path: "/storage/paste", Price: standard, Category: "storage",
			Summary: "Store a text paste and get a shareable URL", Handler: pasteHandler.Create},
		registry.Endpoint{Method: http.MethodGet, Path: "/storage/paste/{id}", Price: standard, Category: "storage",
			Summary: "Fetch a paste by id", Handler: pasteHandler.Get},
		registry.Endpoint{Method: http.MethodDelete, Path: "/storage/paste/{id}", Price: standard, Category: "storage",
			Summary: "Delete a paste", Handler: pasteHandler.Delete},

		registry.Endpoint{Method: http.MethodPost, Path: "/storage/db/query", Price: standard, Category: "storage",
			Summary: "Run a read-only SELECT in the payer's sandbox database", Handler: sqlHandler.Query},
		registry.Endpoint{Method: http.MethodPost, Path: "/storage/db/execute", Price: standard, Category: "storage",
			Summary: "Run a write statement in the payer's sandbox database", Handler: sqlHandler.Execute},
		registry.Endpoint{Method: http.MethodGet, Path: "/storage/db/schema", Price: standard, Category: "storage",
			Summary: "List sandbox tables and their columns", Handler: sqlHandler.Schema},

		registry.Endpoint{Method: http.MethodPost, Path: "/storage/sync/lock", Price: standard, Category: "storage",
			Summary: "Acquire a named lock with a TTL", Handler: lockHandler.Acquire},
		registry.Endpoint{Method: http.MethodPost, Path: "/storage/sync/unlock", Price: standard, Category: "storage",
			Summary: "Release a held lock by token", Handler: lockHandler.Release},
		registry.Endpoint{Method: http.MethodPost, Path: "/storage/sync/extend", Price: standard, Category: "storage",
			Summary: "Extend a held lock's TTL", Handler: lockHandler.Extend},
		registry.Endpoint{Method: http.MethodGet, Path: "/storage/sync/status/{name}", Price: standard, Category: "storage",
			Summary: "Check whether a lock is held", Handler: lockHandler.Status},
		registry.Endpoint{Method: http.MethodGet, Path: "/storage/sync/list", Price: standard, Category: "storage",
			Summary: "List the payer's held locks", Handler: lockHandler.List},

		registry.Endpoint{Method: http.MethodPost, Path: "/storage/queue/push", Price: standard, Category: "storage",
			Summary: "Push jobs onto a named queue", Handler: queueHandler.Push},
		registry.Endpoint{Method: http.MethodPost, Path: "/storage/queue/pop", Price: standard, Category: "storage",
			Summary: "Pop jobs in priority order", Handler: queueHandler.Pop},
		registry.Endpoint{Method: http.MethodPost, Path: "/storage/queue/peek", Price: standard, Category: "storage",
			Summary: "Read queued jobs without consuming them", Handler: queueHandler.Peek},
		registry.Endpoint{Method: http.MethodGet, Path: "/storage/queue/status", Price: standard, Category: "storage",
			Summary: "Pending and processing counts for a queue", Handler: queueHandler.Status},
		registry.Endpoint{Method: http.MethodPost, Path: "/storage/queue/clear", Price: standard, Category: "storage",
			Summary: "Drop queued jobs by status", Handler: queueHandler.Clear},

		registry.Endpoint{Method: http.MethodPost, Path: "/storage/memory/store", Price: standard, Category: "storage",
			Summary: "Store texts with embeddings for semantic recall", Meta: memoryStoreMeta, Handler: memoryHandler.Store},
		registry.Endpoint{Method: http.MethodPost, Path: "/storage/memory/search", Price: standard, Category: "storage",
			Summary: "Cosine-similarity search over stored memories", Handler: memoryHandler.Search},
		registry.Endpoint{Method: http.MethodPost, Path: "/storage/memory/delete", Price: standard, Category: "storage",
			Summary: "Delete memories by id", Handler: memoryHandler.Delete},
		registry.Endpoint{Method: http.MethodGet, Path: "/storage/memory/list", Price: standard, Category: "storage",
			Summary: "List stored memories", Handler: memoryHandler.List},
		registry.Endpoint{Method: http.MethodPost, Path: "/storage/memory/clear", Price: standard, Category: "storage",
			Summary: "Delete every stored memory", Handler: memoryHandler.Clear},
	)

	return eps
}

// metaEndpoints is the free discovery and operational surface.
func metaEndpoints(meta *handlers.MetaHandler, metrics *prometheus.Registry) []registry.Endpoint {
	free := entities.Fixed(entities.TierFree)
	return []registry.Endpoint{
		{Method: http.MethodGet, Path: "/", Price: free, Category: "meta",
			Summary: "Service index with discovery links", Handler: meta.Index},
		{Method: http.MethodGet, Path: "/health", Price: free, Category: "meta",
			Summary: "Liveness, uptime and request totals", Handler: meta.Health},
		{Method: http.MethodGet, Path: "/metrics", Price: free, Category: "meta",
			Summary: "Prometheus metrics", Handler: gin.WrapH(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))},
		{Method: http.MethodGet, Path: "/x402.json", Price: free, Category: "meta",
			Summary: "Payment manifest for every priced endpoint", Handler: meta.Manifest},
		{Method: http.MethodGet, Path: "/.well-known/agent.json", Price: free, Category: "meta",
			Summary: "Agent card with payment and capability metadata", Handler: meta.AgentCard},
		{Method: http.MethodGet, Path: "/openapi.json", Price: free, Category: "meta",
			Summary: "OpenAPI document over the endpoint table", Handler: meta.OpenAPI},
		{Method: http.MethodGet, Path: "/llms.txt", Price: free, Category: "meta",
			Summary: "Short machine-readable index", Handler: meta.LLMsText},
		{Method: http.MethodGet, Path: "/llms-full.txt", Price: free, Category: "meta",
			Summary: "Full endpoint reference with prices", Handler: meta.LLMsFullText},
		{Method: http.MethodGet, Path: "/topics", Price: free, Category: "meta",
			Summary: "Documentation topics", Handler: meta.Topics},
		{Method: http.MethodGet, Path: "/topics/{topic}", Price: free, Category: "meta",
			Summary: "One documentation topic", Handler: meta.Topic},
	}
}

// Input schemas advertised through discovery; the registry validates each
// example against its schema at startup.
var hashingMeta = &entities.EndpointMeta{
	InputSchema: map[string]any{
		"type":     "object",
		"required": []any{"data"},
		"properties": map[string]any{
			"data":     map[string]any{"type": "string", "description": "UTF-8 text, or hex with a 0x prefix"},
			"encoding": map[string]any{"type": "string", "enum": []any{"hex", "base64"}},
		},
	},
	OutputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hash":        map[string]any{"type": "string"},
			"algorithm":   map[string]any{"type": "string"},
			"encoding":    map[string]any{"type": "string"},
			"inputLength": map[string]any{"type": "integer"},
		},
	},
	Example: map[string]any{"data": "hello world", "encoding": "hex"},
}

var chatMeta = &entities.EndpointMeta{
	InputSchema: map[string]any{
		"type":     "object",
		"required": []any{"model", "messages"},
		"properties": map[string]any{
			"model": map[string]any{"type": "string"},
			"messages": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"role", "content"},
					"properties": map[string]any{
						"role":    map[string]any{"type": "string"},
						"content": map[string]any{"type": "string"},
					},
				},
			},
			"max_tokens": map[string]any{"type": "integer"},
		},
	},
	Example: map[string]any{
		"model":    "openai/gpt-4o-mini",
		"messages": []any{map[string]any{"role": "user", "content": "gm"}},
	},
}

var kvSetMeta = &entities.EndpointMeta{
	InputSchema: map[string]any{
		"type":     "object",
		"required": []any{"key", "value"},
		"properties": map[string]any{
			"key":      map[string]any{"type": "string", "minLength": 1, "maxLength": 255},
			"value":    map[string]any{},
			"metadata": map[string]any{"type": "string"},
			"ttl":      map[string]any{"type": "integer", "description": "seconds until expiry"},
		},
	},
	Example: map[string]any{"key": "greeting", "value": map[string]any{"msg": "hi"}, "ttl": 3600},
}

var memoryStoreMeta = &entities.EndpointMeta{
	InputSchema: map[string]any{
		"type":     "object",
		"required": []any{"items"},
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"text"},
					"properties": map[string]any{
						"id":        map[string]any{"type": "string"},
						"text":      map[string]any{"type": "string"},
						"embedding": map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
						"metadata":  map[string]any{"type": "string"},
					},
				},
			},
		},
	},
	Example: map[string]any{
		"items": []any{map[string]any{"text": "the deploy key lives in the vault"}},
	},
}
