package usecases

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
)

// EndpointPricer answers what a registered endpoint costs per token, without
// a request body. Dynamic endpoints are listed at their USD floor.
type EndpointPricer interface {
	FixedEstimate(tier entities.Tier, token entities.TokenType) (*entities.PriceEstimate, error)
	QuoteEstimate(quote *entities.DynamicQuote, token entities.TokenType) (*entities.PriceEstimate, error)
}

// Discovery renders the machine- and agent-readable views of the endpoint
// registry: the x402 manifest, the well-known agent card, llms.txt and the
// OpenAPI document. Specs are read through a callback so the views always
// reflect the mounted routes.
type Discovery struct {
	name        string
	description string
	version     string
	baseURL     string
	network     entities.Network
	recipient   string
	pricer      EndpointPricer
	specs       func() []entities.EndpointSpec
}

// NewDiscovery builds the discovery surface over a registry's specs.
func NewDiscovery(baseURL string, network entities.Network, recipient, version string, pricer EndpointPricer, specs func() []entities.EndpointSpec) *Discovery {
	return &Discovery{
		name:        "AIBTC x402 Gateway",
		description: "Pay-per-call compute and storage endpoints settled with x402 micropayments on Stacks.",
		version:     version,
		baseURL:     strings.TrimRight(baseURL, "/"),
		network:     network,
		recipient:   recipient,
		pricer:      pricer,
		specs:       specs,
	}
}

// Manifest lists every priced endpoint with the full set of acceptable
// payments, one requirement per supported token. Tokens that cannot be
// priced are dropped from the accepts list rather than listed at zero.
func (d *Discovery) Manifest() *entities.DiscoveryManifest {
	now := timeNow().Unix()
	items := []entities.DiscoveryResource{}
	for _, spec := range d.specs() {
		if !spec.Priced() {
			continue
		}
		accepts := d.acceptsFor(spec)
		if len(accepts) == 0 {
			continue
		}
		items = append(items, entities.DiscoveryResource{
			Resource:    d.baseURL + spec.Path,
			Type:        "http",
			X402Version: entities.X402Version,
			Accepts:     accepts,
			LastUpdated: now,
			Metadata: map[string]any{
				"method":   spec.Method,
				"category": spec.Category,
			},
		})
	}
	return &entities.DiscoveryManifest{X402Version: entities.X402Version, Items: items}
}

func (d *Discovery) acceptsFor(spec entities.EndpointSpec) []entities.PaymentRequirements {
	accepts := []entities.PaymentRequirements{}
	for _, token := range entities.SupportedTokens(d.network) {
		estimate, err := d.estimateFor(spec.Tier, token)
		if err != nil || estimate.Amount == nil || estimate.Amount.Sign() <= 0 {
			continue
		}
		accepts = append(accepts, entities.BuildPaymentRequirement(entities.RequirementInput{
			Network:     d.network,
			Recipient:   d.recipient,
			Resource:    d.baseURL + spec.Path,
			Description: spec.Summary,
			Token:       token,
			Estimate:    estimate,
			Meta:        spec.Meta,
		}))
	}
	return accepts
}

// estimateFor prices a tier without a body: fixed tiers directly, dynamic
// tiers at the USD floor.
func (d *Discovery) estimateFor(tier entities.Tier, token entities.TokenType) (*entities.PriceEstimate, error) {
	if tier == entities.TierDynamic {
		return d.pricer.QuoteEstimate(&entities.DynamicQuote{
			Estimator: entities.EstimatorChat,
			USDFinal:  entities.MinimumUSD,
		}, token)
	}
	return d.pricer.FixedEstimate(tier, token)
}

// AgentCard renders the .well-known/agent.json document.
func (d *Discovery) AgentCard() map[string]any {
	tokens := []map[string]any{}
	for _, token := range entities.SupportedTokens(d.network) {
		info, _ := token.Info()
		entry := map[string]any{
			"tokenType": string(token),
			"symbol":    info.Symbol,
			"decimals":  info.Decimals,
		}
		if asset := token.AssetID(d.network); asset != "" {
			entry["asset"] = asset
		}
		tokens = append(tokens, entry)
	}

	categories := map[string]bool{}
	priced := 0
	for _, spec := range d.specs() {
		if spec.Priced() {
			priced++
			categories[spec.Category] = true
		}
	}
	skills := make([]string, 0, len(categories))
	for c := range categories {
		skills = append(skills, c)
	}
	sort.Strings(skills)

	return map[string]any{
		"name":        d.name,
		"description": d.description,
		"version":     d.version,
		"url":         d.baseURL,
		"skills":      skills,
		"payments": map[string]any{
			"protocol":    "x402",
			"x402Version": entities.X402Version,
			"network":     d.network.CAIP2(),
			"payTo":       d.recipient,
			"tokens":      tokens,
			"manifest":    d.baseURL + "/x402.json",
		},
		"endpoints": map[string]any{
			"priced":  priced,
			"openapi": d.baseURL + "/openapi.json",
		},
	}
}

// LLMsText renders the short llms.txt index.
func (d *Discovery) LLMsText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n> %s\n\n", d.name, d.description)
	fmt.Fprintf(&b, "Network: %s. Payment protocol: x402 v%d.\n\n", d.network.CAIP2(), entities.X402Version)
	b.WriteString("## Docs\n\n")
	fmt.Fprintf(&b, "- [Payment manifest](%s/x402.json): every priced endpoint with accepted tokens and amounts\n", d.baseURL)
	fmt.Fprintf(&b, "- [OpenAPI](%s/openapi.json): request and response shapes\n", d.baseURL)
	fmt.Fprintf(&b, "- [Full endpoint reference](%s/llms-full.txt)\n", d.baseURL)
	b.WriteString("\n## Topics\n\n")
	for _, topic := range d.Topics() {
		fmt.Fprintf(&b, "- [%s](%s/topics/%s)\n", topic, d.baseURL, topic)
	}
	return b.String()
}

// LLMsFullText renders the expanded reference: every endpoint with method,
// price tier and the native-token amount.
func (d *Discovery) LLMsFullText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: full reference\n\n> %s\n\n", d.name, d.description)
	b.WriteString(d.paymentsTopic())

	byCategory := d.specsByCategory()
	for _, category := range sortedKeys(byCategory) {
		fmt.Fprintf(&b, "\n## %s\n\n", category)
		for _, spec := range byCategory[category] {
			b.WriteString(d.endpointLine(spec))
		}
	}
	return b.String()
}

// Topics lists the documentation topics, one per endpoint category plus the
// payment walkthrough.
func (d *Discovery) Topics() []string {
	topics := sortedKeys(d.specsByCategory())
	return append([]string{"payments"}, topics...)
}

// Topic renders one topic document as markdown.
func (d *Discovery) Topic(name string) (string, bool) {
	if name == "payments" {
		return "# Paying for requests\n\n" + d.paymentsTopic(), true
	}
	byCategory := d.specsByCategory()
	specs, ok := byCategory[name]
	if !ok {
		return "", false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s endpoints\n\n", name)
	for _, spec := range specs {
		b.WriteString(d.endpointLine(spec))
	}
	return b.String(), true
}

func (d *Discovery) paymentsTopic() string {
	var b strings.Builder
	b.WriteString("Call a priced endpoint without payment to receive a 402 challenge. ")
	b.WriteString("The body and the `payment-required` header carry the accepted payments; ")
	b.WriteString("sign a transfer matching one of them and retry with the `payment-signature` header. ")
	b.WriteString("Successful responses carry a `payment-response` receipt header.\n\n")
	fmt.Fprintf(&b, "Settlement network: %s. Select the payment token with the `payment-token-type` header or `tokenType` query parameter: ", d.network.CAIP2())
	names := []string{}
	for _, token := range entities.SupportedTokens(d.network) {
		info, _ := token.Info()
		names = append(names, fmt.Sprintf("`%s` (%s)", string(token), info.Symbol))
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(".\n")
	return b.String()
}

// endpointLine renders one endpoint as a markdown bullet with its price in
// the native token.
func (d *Discovery) endpointLine(spec entities.EndpointSpec) string {
	price := "free"
	if spec.Priced() {
		if est, err := d.estimateFor(spec.Tier, entities.TokenNative); err == nil {
			price = fmt.Sprintf("%s µSTX", est.AmountString())
			if spec.Tier == entities.TierDynamic {
				price = "from " + price + " (estimated per request)"
			}
		}
	}
	line := fmt.Sprintf("- `%s %s`: %s", spec.Method, spec.Path, price)
	if spec.Summary != "" {
		line += ". " + spec.Summary
	}
	return line + "\n"
}

// OpenAPI renders a minimal OpenAPI 3 document over the registry.
func (d *Discovery) OpenAPI() map[string]any {
	paths := map[string]any{}
	for _, spec := range d.specs() {
		operation := map[string]any{
			"summary": spec.Summary,
			"tags":    []string{spec.Category},
			"responses": map[string]any{
				"200": map[string]any{"description": "OK"},
			},
		}
		if params := pathParameters(spec.Path); len(params) > 0 {
			operation["parameters"] = params
		}
		if spec.Priced() {
			operation["responses"].(map[string]any)["402"] = map[string]any{
				"description": "Payment required; accepts listed in the payment-required header",
			}
			operation["x-payment"] = map[string]any{"tier": string(spec.Tier)}
		}
		if spec.Meta != nil && spec.Meta.InputSchema != nil && spec.Method != "GET" {
			operation["requestBody"] = map[string]any{
				"content": map[string]any{
					"application/json": map[string]any{"schema": spec.Meta.InputSchema},
				},
			}
		}

		entry, ok := paths[spec.Path].(map[string]any)
		if !ok {
			entry = map[string]any{}
			paths[spec.Path] = entry
		}
		entry[strings.ToLower(spec.Method)] = operation
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       d.name,
			"description": d.description,
			"version":     d.version,
		},
		"servers": []map[string]any{{"url": d.baseURL}},
		"paths":   paths,
	}
}

func (d *Discovery) specsByCategory() map[string][]entities.EndpointSpec {
	byCategory := map[string][]entities.EndpointSpec{}
	for _, spec := range d.specs() {
		byCategory[spec.Category] = append(byCategory[spec.Category], spec)
	}
	return byCategory
}

func sortedKeys(m map[string][]entities.EndpointSpec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// pathParameters extracts "{name}" placeholders as OpenAPI path parameters.
func pathParameters(path string) []map[string]any {
	params := []map[string]any{}
	for _, segment := range strings.Split(path, "/") {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			params = append(params, map[string]any{
				"name":     strings.Trim(segment, "{}"),
				"in":       "path",
				"required": true,
				"schema":   map[string]any{"type": "string"},
			})
		}
	}
	return params
}
