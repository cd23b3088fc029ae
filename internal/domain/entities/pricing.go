package entities

import "math/big"

// Tier is the pricing class an endpoint is registered under.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierDynamic  Tier = "dynamic"
)

// Valid reports whether the tier is a known value.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierStandard || t == TierDynamic
}

// Pricing constants.
const (
	// StandardTierMicroSTX is the fixed standard-tier price in µSTX (0.001 STX).
	StandardTierMicroSTX int64 = 1000

	// PricingMargin is applied on top of estimated upstream cost.
	PricingMargin = 0.20

	// MinimumUSD is the floor for any dynamic quote.
	MinimumUSD = 0.001

	// CharsPerToken is the crude input-token estimator divisor.
	CharsPerToken = 4

	// DefaultMaxOutputTokens caps the output estimate when the request does
	// not set max_tokens.
	DefaultMaxOutputTokens = 256
)

// Challenge timeouts, in seconds.
const (
	FixedTierTimeoutSeconds   = 60
	DynamicTierTimeoutSeconds = 120
)

// EstimatorChat is the estimator id for OpenAI-style completion bodies.
const EstimatorChat = "chat"

// PriceSpec selects how an endpoint is priced: a fixed tier, or a named
// estimator that derives the price from the request body. Estimator is set
// iff Tier == TierDynamic.
type PriceSpec struct {
	Tier      Tier
	Estimator string
}

// Fixed builds the spec for a constant-price tier.
func Fixed(tier Tier) PriceSpec {
	return PriceSpec{Tier: tier}
}

// Dynamic builds the spec for an estimator-priced endpoint.
func Dynamic(estimator string) PriceSpec {
	return PriceSpec{Tier: TierDynamic, Estimator: estimator}
}

// DynamicQuote is a token-independent dynamic price: the USD figures an
// estimator derived from one request body. Parsed carries the decoded body so
// handlers never re-parse what the estimator consumed.
type DynamicQuote struct {
	Estimator    string  `json:"estimator"`
	Model        string  `json:"model,omitempty"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	USDBase      float64 `json:"usdBase"`
	USDFinal     float64 `json:"usdFinal"`
	Parsed       any     `json:"-"`
}

// PriceEstimate is the pricing engine's output for one request and token.
// Amount is in atomic units of Token and is always >= the token's minimum.
type PriceEstimate struct {
	Amount       *big.Int  `json:"-"`
	Token        TokenType `json:"token"`
	Tier         Tier      `json:"tier"`
	Model        string    `json:"model,omitempty"`
	InputTokens  int       `json:"inputTokens,omitempty"`
	OutputTokens int       `json:"outputTokens,omitempty"`
	USDBase      float64   `json:"usdBase,omitempty"`
	USDFinal     float64   `json:"usdFinal,omitempty"`
}

// AmountString renders the atomic amount as a decimal string, the only form
// amounts take on the wire.
func (e *PriceEstimate) AmountString() string {
	if e == nil || e.Amount == nil {
		return "0"
	}
	return e.Amount.String()
}

// ModelPricing is the per-1k-token USD pricing for one model.
type ModelPricing struct {
	PromptPerK     float64 `json:"promptPerK"`
	CompletionPerK float64 `json:"completionPerK"`
}

// CatalogModel is one entry of the upstream model catalog.
type CatalogModel struct {
	ID      string       `json:"id"`
	Name    string       `json:"name,omitempty"`
	Pricing ModelPricing `json:"pricing"`
}
