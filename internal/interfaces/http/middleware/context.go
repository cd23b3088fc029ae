package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
)

// Context keys bound by the payment gate on a settled request.
const (
	// PayerKey holds the payer address extracted by the settlement relay.
	// It is the only identity downstream code may trust.
	PayerKey = "payment_payer"

	// EstimateKey holds the *entities.PriceEstimate the request settled at.
	EstimateKey = "payment_estimate"

	// ParsedBodyKey holds the body a dynamic estimator already decoded, so
	// handlers never re-parse the request.
	ParsedBodyKey = "payment_parsed_body"
)

// PayerAddress returns the settled payer address, or "" before settlement.
func PayerAddress(c *gin.Context) string {
	v, ok := c.Get(PayerKey)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Estimate returns the price estimate the request settled at, or nil.
func Estimate(c *gin.Context) *entities.PriceEstimate {
	v, ok := c.Get(EstimateKey)
	if !ok {
		return nil
	}
	est, _ := v.(*entities.PriceEstimate)
	return est
}

// ParsedChatRequest returns the chat body the pricing estimator decoded, or
// nil when the request was not priced dynamically.
func ParsedChatRequest(c *gin.Context) *entities.ChatRequest {
	v, ok := c.Get(ParsedBodyKey)
	if !ok {
		return nil
	}
	req, _ := v.(*entities.ChatRequest)
	return req
}
