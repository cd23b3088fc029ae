package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
)

// CatalogLookup is the pricing view of one model. Valid=false means the
// catalog is populated and the model is not in it. A valid lookup without
// pricing means the catalog could not be consulted and compiled-in pricing
// applies.
type CatalogLookup struct {
	Valid   bool
	Pricing *entities.ModelPricing
	Reason  string
}

// CatalogService answers model pricing questions for the dynamic estimator.
type CatalogService interface {
	Lookup(ctx context.Context, model string) CatalogLookup
}

// EstimatorFunc derives a token-independent USD quote from a raw request
// body. Estimators return AppErrors for malformed bodies.
type EstimatorFunc func(ctx context.Context, body []byte) (*entities.DynamicQuote, error)

// Pricing converts tiers and dynamic quotes into per-token atomic amounts.
// All conversions go through big.Rat with half-up rounding so every token
// sees the same arithmetic.
type Pricing struct {
	catalog    CatalogService
	estimators map[string]EstimatorFunc
}

// NewPricing builds the engine and installs the built-in estimators.
func NewPricing(catalog CatalogService) *Pricing {
	p := &Pricing{
		catalog:    catalog,
		estimators: map[string]EstimatorFunc{},
	}
	p.estimators[entities.EstimatorChat] = p.chatEstimate
	return p
}

// FixedEstimate prices a fixed tier in the given token. Free is always zero;
// standard converts the µSTX anchor through the token's USD rate.
func (p *Pricing) FixedEstimate(tier entities.Tier, token entities.TokenType) (*entities.PriceEstimate, error) {
	info, ok := token.Info()
	if !ok {
		return nil, domainerrors.BadRequest(fmt.Sprintf("unsupported token type %q", token))
	}
	switch tier {
	case entities.TierFree:
		return &entities.PriceEstimate{Amount: big.NewInt(0), Token: token, Tier: tier}, nil
	case entities.TierStandard:
		amount := microSTXToToken(entities.StandardTierMicroSTX, info)
		return &entities.PriceEstimate{Amount: amount, Token: token, Tier: tier}, nil
	}
	return nil, fmt.Errorf("tier %q has no fixed price", tier)
}

// DynamicQuote runs the named estimator over the request body.
func (p *Pricing) DynamicQuote(ctx context.Context, estimator string, body []byte) (*entities.DynamicQuote, error) {
	fn, ok := p.estimators[estimator]
	if !ok {
		return nil, fmt.Errorf("unknown price estimator %q", estimator)
	}
	return fn(ctx, body)
}

// QuoteEstimate converts a USD quote into an atomic amount of the token.
func (p *Pricing) QuoteEstimate(quote *entities.DynamicQuote, token entities.TokenType) (*entities.PriceEstimate, error) {
	info, ok := token.Info()
	if !ok {
		return nil, domainerrors.BadRequest(fmt.Sprintf("unsupported token type %q", token))
	}
	amount := usdToToken(quote.USDFinal, info)
	return &entities.PriceEstimate{
		Amount:       amount,
		Token:        token,
		Tier:         entities.TierDynamic,
		Model:        quote.Model,
		InputTokens:  quote.InputTokens,
		OutputTokens: quote.OutputTokens,
		USDBase:      quote.USDBase,
		USDFinal:     quote.USDFinal,
	}, nil
}

// chatEstimate prices an OpenAI-style completion request. Input tokens are
// chars/4 rounded up; the output estimate is max_tokens capped at twice the
// input, defaulting to 256. Cost is looked up per model, marked up by the
// margin and floored at the USD minimum.
func (p *Pricing) chatEstimate(ctx context.Context, body []byte) (*entities.DynamicQuote, error) {
	var chatReq entities.ChatRequest
	if err := json.Unmarshal(body, &chatReq); err != nil {
		return nil, domainerrors.BadRequest("request body is not a valid chat completion request")
	}
	if err := chatReq.Validate(); err != nil {
		return nil, domainerrors.BadRequest(err.Error())
	}

	pricing, err := p.modelPricing(ctx, chatReq.Model)
	if err != nil {
		return nil, err
	}

	inputTokens := (chatReq.TotalChars() + entities.CharsPerToken - 1) / entities.CharsPerToken
	if inputTokens < 1 {
		inputTokens = 1
	}
	outputTokens := entities.DefaultMaxOutputTokens
	if chatReq.MaxTokens != nil && *chatReq.MaxTokens > 0 {
		outputTokens = *chatReq.MaxTokens
	}
	if cap := 2 * inputTokens; outputTokens > cap {
		outputTokens = cap
	}

	base := float64(inputTokens)/1000*pricing.PromptPerK + float64(outputTokens)/1000*pricing.CompletionPerK
	final := base * (1 + entities.PricingMargin)
	if final < entities.MinimumUSD {
		final = entities.MinimumUSD
	}

	return &entities.DynamicQuote{
		Estimator:    entities.EstimatorChat,
		Model:        chatReq.Model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		USDBase:      base,
		USDFinal:     final,
		Parsed:       &chatReq,
	}, nil
}

// modelPricing resolves per-1k prices for a model. A populated catalog is
// authoritative: unknown models are rejected rather than priced blind. When
// the catalog is unavailable the compiled-in table answers instead.
func (p *Pricing) modelPricing(ctx context.Context, model string) (entities.ModelPricing, error) {
	if p.catalog != nil {
		lookup := p.catalog.Lookup(ctx, model)
		if !lookup.Valid {
			reason := lookup.Reason
			if reason == "" {
				reason = "unknown model"
			}
			return entities.ModelPricing{}, domainerrors.BadRequest(fmt.Sprintf("model %q: %s", model, reason))
		}
		if lookup.Pricing != nil {
			return *lookup.Pricing, nil
		}
	}
	if pricing, ok := fallbackModelPricing[model]; ok {
		return pricing, nil
	}
	return defaultModelPricing, nil
}

// fallbackModelPricing is consulted only when the live catalog cannot be.
// Prices are USD per 1k tokens.
var fallbackModelPricing = map[string]entities.ModelPricing{
	"openai/gpt-4o":                      {PromptPerK: 0.0025, CompletionPerK: 0.01},
	"openai/gpt-4o-mini":                 {PromptPerK: 0.00015, CompletionPerK: 0.0006},
	"anthropic/claude-3.5-sonnet":        {PromptPerK: 0.003, CompletionPerK: 0.015},
	"anthropic/claude-3.5-haiku":         {PromptPerK: 0.0008, CompletionPerK: 0.004},
	"meta-llama/llama-3.1-8b-instruct":   {PromptPerK: 0.00002, CompletionPerK: 0.00003},
	"meta-llama/llama-3.3-70b-instruct":  {PromptPerK: 0.00012, CompletionPerK: 0.0003},
	"google/gemini-2.0-flash-001":        {PromptPerK: 0.0001, CompletionPerK: 0.0004},
	"deepseek/deepseek-chat":             {PromptPerK: 0.00014, CompletionPerK: 0.00028},
	"mistralai/mistral-small-24b-2501":   {PromptPerK: 0.00005, CompletionPerK: 0.00011},
	"qwen/qwen-2.5-72b-instruct":         {PromptPerK: 0.00009, CompletionPerK: 0.00039},
	"@cf/meta/llama-3.1-8b-instruct":     {PromptPerK: 0.00002, CompletionPerK: 0.00003},
	"@cf/meta/llama-3.3-70b-instruct-fp8-fast": {PromptPerK: 0.00012, CompletionPerK: 0.0003},
}

var defaultModelPricing = entities.ModelPricing{PromptPerK: 0.001, CompletionPerK: 0.002}

// microSTXToToken converts a µSTX anchor price into atomic units of the
// token: µSTX × usdPerSTX ÷ usdPerToken, rescaled to the token's decimals.
func microSTXToToken(microSTX int64, info entities.TokenInfo) *big.Int {
	stxInfo, _ := entities.TokenNative.Info()
	rat := new(big.Rat).SetInt64(microSTX)
	rat.Mul(rat, floatRat(stxInfo.USDRate))
	rat.Quo(rat, floatRat(info.USDRate))
	rat.Mul(rat, pow10Rat(info.Decimals-stxInfo.Decimals))
	return clampMin(roundRatHalfUp(rat), info.MinAtomic)
}

// usdToToken converts a USD amount into atomic units of the token.
func usdToToken(usd float64, info entities.TokenInfo) *big.Int {
	rat := floatRat(usd)
	rat.Quo(rat, floatRat(info.USDRate))
	rat.Mul(rat, pow10Rat(info.Decimals))
	return clampMin(roundRatHalfUp(rat), info.MinAtomic)
}

// floatRat lifts a float into a Rat; non-finite inputs become zero so they
// can never poison an amount.
func floatRat(f float64) *big.Rat {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return new(big.Rat)
	}
	r := new(big.Rat)
	r.SetFloat64(f)
	return r
}

func pow10Rat(exp int) *big.Rat {
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(exp))), nil)
	if exp >= 0 {
		return new(big.Rat).SetInt(pow)
	}
	return new(big.Rat).SetFrac(big.NewInt(1), pow)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// roundRatHalfUp rounds a non-negative rational to the nearest integer, ties
// away from zero.
func roundRatHalfUp(r *big.Rat) *big.Int {
	rem := new(big.Int)
	q, _ := new(big.Int).QuoRem(r.Num(), r.Denom(), rem)
	rem.Abs(rem)
	rem.Lsh(rem, 1)
	if rem.Cmp(r.Denom()) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func clampMin(amount *big.Int, min int64) *big.Int {
	if amount.Cmp(big.NewInt(min)) < 0 {
		return big.NewInt(min)
	}
	return amount
}
