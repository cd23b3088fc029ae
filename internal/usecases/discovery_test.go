package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
)

const discoveryRecipient = "SP000000000000000000002Q6VF78"

func testSpecs() []entities.EndpointSpec {
	return []entities.EndpointSpec{
		{Method: "POST", Path: "/hashing/sha256", Tier: entities.TierStandard, Category: "hashing", Summary: "SHA-256 digest"},
		{Method: "GET", Path: "/storage/kv/{key}", Tier: entities.TierStandard, Category: "storage", Summary: "Read a key"},
		{Method: "POST", Path: "/inference/openrouter/chat", Tier: entities.TierDynamic, Category: "inference", Summary: "Chat completion"},
		{Method: "GET", Path: "/health", Tier: entities.TierFree, Category: "meta", Summary: "Liveness"},
	}
}

func newTestDiscovery(network entities.Network) *Discovery {
	return NewDiscovery("https://api.example.com", network, discoveryRecipient, "1.2.3", NewPricing(nil), testSpecs)
}

func TestDiscovery_ManifestListsPricedEndpoints(t *testing.T) {
	d := newTestDiscovery(entities.NetworkMainnet)

	manifest := d.Manifest()
	assert.Equal(t, entities.X402Version, manifest.X402Version)
	require.Len(t, manifest.Items, 3, "free endpoints stay out of the manifest")

	byResource := map[string]entities.DiscoveryResource{}
	for _, item := range manifest.Items {
		byResource[item.Resource] = item
	}

	hash, ok := byResource["https://api.example.com/hashing/sha256"]
	require.True(t, ok)
	require.Len(t, hash.Accepts, 3, "mainnet accepts all three tokens")
	assert.Equal(t, "1000", hash.Accepts[0].MaxAmountRequired)
	assert.Equal(t, "exact", hash.Accepts[0].Scheme)
	assert.Equal(t, "stacks:1", hash.Accepts[0].Network)
	assert.Equal(t, discoveryRecipient, hash.Accepts[0].PayTo)
	assert.Equal(t, entities.FixedTierTimeoutSeconds, hash.Accepts[0].MaxTimeoutSeconds)
	assert.Equal(t, "POST", hash.Metadata["method"])

	kv, ok := byResource["https://api.example.com/storage/kv/{key}"]
	require.True(t, ok, "path templates keep their placeholders")
	assert.Equal(t, "storage", kv.Metadata["category"])

	chat, ok := byResource["https://api.example.com/inference/openrouter/chat"]
	require.True(t, ok)
	// Dynamic endpoints list the USD floor converted per token.
	assert.Equal(t, "2000", chat.Accepts[0].MaxAmountRequired)
	assert.Equal(t, entities.DynamicTierTimeoutSeconds, chat.Accepts[0].MaxTimeoutSeconds)
	assert.Equal(t, "dynamic", chat.Accepts[0].Extra["tier"])
}

func TestDiscovery_TestnetDropsUnsupportedTokens(t *testing.T) {
	d := newTestDiscovery(entities.NetworkTestnet)

	manifest := d.Manifest()
	require.NotEmpty(t, manifest.Items)
	for _, item := range manifest.Items {
		require.Len(t, item.Accepts, 2, "aeUSDC has no testnet contract")
		for _, accept := range item.Accepts {
			assert.Equal(t, "stacks:2147483648", accept.Network)
		}
	}
}

func TestDiscovery_AgentCard(t *testing.T) {
	d := newTestDiscovery(entities.NetworkMainnet)

	card := d.AgentCard()
	assert.Equal(t, "1.2.3", card["version"])
	assert.Equal(t, "https://api.example.com", card["url"])
	assert.ElementsMatch(t, []string{"hashing", "inference", "storage"}, card["skills"])

	payments, ok := card["payments"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "x402", payments["protocol"])
	assert.Equal(t, "stacks:1", payments["network"])
	assert.Equal(t, discoveryRecipient, payments["payTo"])
	assert.Len(t, payments["tokens"], 3)
}

func TestDiscovery_TopicsAndText(t *testing.T) {
	d := newTestDiscovery(entities.NetworkMainnet)

	topics := d.Topics()
	assert.Equal(t, []string{"payments", "hashing", "inference", "meta", "storage"}, topics)

	doc, ok := d.Topic("payments")
	require.True(t, ok)
	assert.Contains(t, doc, "payment-signature")

	doc, ok = d.Topic("storage")
	require.True(t, ok)
	assert.Contains(t, doc, "/storage/kv/{key}")
	assert.Contains(t, doc, "1000 µSTX")

	_, ok = d.Topic("gardening")
	assert.False(t, ok)

	short := d.LLMsText()
	assert.Contains(t, short, "x402.json")
	assert.Contains(t, short, "/topics/payments")

	full := d.LLMsFullText()
	assert.Contains(t, full, "POST /inference/openrouter/chat")
	assert.Contains(t, full, "from 2000 µSTX")
	assert.Contains(t, full, "`GET /health`: free")
}

func TestDiscovery_OpenAPI(t *testing.T) {
	d := newTestDiscovery(entities.NetworkMainnet)

	doc := d.OpenAPI()
	assert.Equal(t, "3.0.3", doc["openapi"])

	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	require.Len(t, paths, 4)

	kv, ok := paths["/storage/kv/{key}"].(map[string]any)
	require.True(t, ok)
	get, ok := kv["get"].(map[string]any)
	require.True(t, ok)
	params, ok := get["parameters"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, params, 1)
	assert.Equal(t, "key", params[0]["name"])

	responses := get["responses"].(map[string]any)
	_, hasChallenge := responses["402"]
	assert.True(t, hasChallenge)

	health := paths["/health"].(map[string]any)["get"].(map[string]any)
	_, hasChallenge = health["responses"].(map[string]any)["402"]
	assert.False(t, hasChallenge)
}
