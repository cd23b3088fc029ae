package entities

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// X402Version is the protocol version this gateway speaks.
const X402Version = 2

// SchemeExact is the only settlement scheme supported: the signed transfer
// must carry exactly the quoted amount.
const SchemeExact = "exact"

// Payment protocol headers. Lowercase forms are canonical; the X- forms are
// accepted and emitted for older clients.
const (
	HeaderPaymentRequired       = "payment-required"
	HeaderPaymentSignature      = "payment-signature"
	HeaderPaymentResponse       = "payment-response"
	HeaderPaymentTokenType      = "payment-token-type"
	HeaderPaymentPayer          = "payment-payer"
	HeaderPaymentLegacy         = "X-PAYMENT"
	HeaderPaymentResponseLegacy = "X-PAYMENT-RESPONSE"

	QueryTokenType = "tokenType"
)

// PaymentRequirements is one acceptable way to pay for a resource.
type PaymentRequirements struct {
	Scheme            string         `json:"scheme"`
	Network           string         `json:"network"`
	MaxAmountRequired string         `json:"maxAmountRequired"`
	Resource          string         `json:"resource"`
	Description       string         `json:"description,omitempty"`
	MimeType          string         `json:"mimeType,omitempty"`
	PayTo             string         `json:"payTo"`
	MaxTimeoutSeconds int            `json:"maxTimeoutSeconds"`
	Asset             string         `json:"asset,omitempty"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// RequirementInput carries everything needed to render one payment
// requirement, for a 402 challenge or a discovery listing.
type RequirementInput struct {
	Network     Network
	Recipient   string
	Resource    string
	Description string
	Token       TokenType
	Estimate    *PriceEstimate
	Meta        *EndpointMeta
}

// BuildPaymentRequirement renders one acceptable payment for a resource. The
// extra block carries the token and pricing metadata clients display, plus
// the endpoint's schema metadata when registered.
func BuildPaymentRequirement(in RequirementInput) PaymentRequirements {
	info, _ := in.Token.Info()
	extra := map[string]any{
		"tier":      string(in.Estimate.Tier),
		"tokenType": string(in.Token),
		"symbol":    info.Symbol,
		"decimals":  info.Decimals,
	}
	if in.Estimate.Model != "" {
		extra["model"] = in.Estimate.Model
		extra["inputTokens"] = in.Estimate.InputTokens
		extra["outputTokens"] = in.Estimate.OutputTokens
		extra["usdEstimate"] = in.Estimate.USDFinal
	}
	if in.Meta != nil {
		bazaar := map[string]any{}
		if in.Meta.InputSchema != nil {
			bazaar["inputSchema"] = in.Meta.InputSchema
		}
		if in.Meta.OutputSchema != nil {
			bazaar["outputSchema"] = in.Meta.OutputSchema
		}
		if in.Meta.Example != nil {
			bazaar["example"] = in.Meta.Example
		}
		if len(bazaar) > 0 {
			extra["bazaar"] = bazaar
		}
	}
	return PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           in.Network.CAIP2(),
		MaxAmountRequired: in.Estimate.AmountString(),
		Resource:          in.Resource,
		Description:       in.Description,
		MimeType:          "application/json",
		PayTo:             in.Recipient,
		MaxTimeoutSeconds: TierTimeoutSeconds(in.Estimate.Tier),
		Asset:             in.Token.AssetID(in.Network),
		Extra:             extra,
	}
}

// TierTimeoutSeconds is the settlement window offered for a tier.
func TierTimeoutSeconds(tier Tier) int {
	if tier == TierDynamic {
		return DynamicTierTimeoutSeconds
	}
	return FixedTierTimeoutSeconds
}

// PaymentRequired is the 402 challenge body, also emitted base64-encoded in
// the payment-required header.
type PaymentRequired struct {
	X402Version int                   `json:"x402Version"`
	Error       string                `json:"error,omitempty"`
	Accepts     []PaymentRequirements `json:"accepts"`
}

// EncodeBase64 renders the challenge for the payment-required header.
func (p *PaymentRequired) EncodeBase64() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// PaymentPayload is the client's signed retry. Payload is the opaque signed
// transfer blob; the gateway forwards it verbatim to the settlement relay.
type PaymentPayload struct {
	X402Version int                  `json:"x402Version"`
	Scheme      string               `json:"scheme"`
	Network     string               `json:"network"`
	Accepted    *PaymentRequirements `json:"accepted,omitempty"`
	Payload     json.RawMessage      `json:"payload"`
}

// DecodePaymentPayload parses a base64 payment-signature header value.
func DecodePaymentPayload(encoded string) (*PaymentPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("payment payload is not base64: %w", err)
	}
	var payload PaymentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("payment payload is not valid JSON: %w", err)
	}
	if payload.X402Version != X402Version {
		return nil, fmt.Errorf("unsupported x402 version %d", payload.X402Version)
	}
	if len(payload.Payload) == 0 {
		return nil, errors.New("payment payload is missing the signed transfer")
	}
	return &payload, nil
}

// SettlementResult is the relay's verdict. Success implies Payer is set; the
// payer address is the identity downstream handlers trust.
type SettlementResult struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}

// EncodeBase64 renders the receipt for the payment-response header.
func (s *SettlementResult) EncodeBase64() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeSettlementResult parses a base64 payment-response header value.
func DecodeSettlementResult(encoded string) (*SettlementResult, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	var result SettlementResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DecodePaymentRequired parses a base64 payment-required header value. Used
// by clients and tests; the server only encodes.
func DecodePaymentRequired(encoded string) (*PaymentRequired, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	var challenge PaymentRequired
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}
