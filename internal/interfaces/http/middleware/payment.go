package middleware

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/infrastructure/replay"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
	"github.com/aibtcdev/x402-api/pkg/logger"
)

// maxDynamicBodyBytes bounds how much of a request body the dynamic
// estimator will read before pricing.
const maxDynamicBodyBytes = 1 << 20

// PricingService quotes requests. Fixed tiers price from configuration alone;
// dynamic tiers parse the body once through a named estimator.
type PricingService interface {
	FixedEstimate(tier entities.Tier, token entities.TokenType) (*entities.PriceEstimate, error)
	DynamicQuote(ctx context.Context, estimator string, body []byte) (*entities.DynamicQuote, error)
	QuoteEstimate(quote *entities.DynamicQuote, token entities.TokenType) (*entities.PriceEstimate, error)
}

// Settler relays a signed transfer for verification and chain submission.
type Settler interface {
	Settle(ctx context.Context, payload *entities.PaymentPayload, requirements *entities.PaymentRequirements) (*entities.SettlementResult, error)
}

// UsageSink receives the usage event for each settled, executed request.
type UsageSink interface {
	RecordSettled(ctx context.Context, event *entities.UsageEvent)
}

// PaymentGate drives the per-request payment state machine: derive price,
// challenge or decode, settle, bind identity, attach receipt.
type PaymentGate struct {
	network   entities.Network
	recipient string
	baseURL   string
	pricing   PricingService
	settler   Settler
	guard     replay.Guard
	usage     UsageSink
}

// NewPaymentGate wires the gate. guard and usage may be nil; a nil guard
// disables replay protection rather than failing requests.
func NewPaymentGate(network entities.Network, recipient, baseURL string, pricing PricingService, settler Settler, guard replay.Guard, usage UsageSink) *PaymentGate {
	return &PaymentGate{
		network:   network,
		recipient: recipient,
		baseURL:   baseURL,
		pricing:   pricing,
		settler:   settler,
		guard:     guard,
		usage:     usage,
	}
}

// Gate returns the middleware guarding one priced endpoint. estimator names
// the dynamic estimator and is empty for fixed tiers.
func (g *PaymentGate) Gate(spec entities.EndpointSpec, estimator string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := selectToken(c)
		if err != nil {
			response.AbortError(c, domainerrors.BadRequest(err.Error()))
			return
		}
		c.Set(response.TokenTypeKey, token)

		if !token.SupportedOn(g.network) {
			response.AbortError(c, domainerrors.NewAppError(http.StatusBadRequest,
				domainerrors.CodeUnsupportedToken,
				fmt.Sprintf("token %s is not available on %s", token, g.network), nil))
			return
		}

		if spec.Tier == entities.TierFree {
			c.Next()
			return
		}

		if g.recipient == "" {
			response.AbortError(c, domainerrors.NewAppError(http.StatusServiceUnavailable,
				domainerrors.CodePaymentFailed, "payments are not configured", nil))
			return
		}

		estimate, quote, err := g.derivePrice(c, spec, estimator, token)
		if err != nil {
			response.AbortError(c, err)
			return
		}
		if quote != nil && quote.Parsed != nil {
			c.Set(ParsedBodyKey, quote.Parsed)
		}

		header := paymentHeader(c)
		if header == "" {
			g.challenge(c, spec, token, estimate, quote)
			return
		}

		payload, err := entities.DecodePaymentPayload(header)
		if err != nil {
			response.AbortError(c, domainerrors.BadRequest("invalid payment payload: "+err.Error()))
			return
		}

		requirement := g.requirementFor(spec, token, estimate, c.Request.URL.Path)
		if err := matchAccepted(payload, &requirement); err != nil {
			response.AbortError(c, domainerrors.BadRequest("invalid payment payload: "+err.Error()))
			return
		}

		// Settlement survives client disconnect: the transfer may land on
		// chain regardless, so the verdict must be recorded either way.
		ctx := context.WithoutCancel(c.Request.Context())

		key := replay.Key(payload.Payload)
		reserved := false
		if g.guard != nil {
			ok, gerr := g.guard.Reserve(ctx, key)
			switch {
			case gerr != nil:
				logger.Warn(c.Request.Context(), "replay guard unavailable, settling without reservation",
					zap.Error(gerr))
			case !ok:
				response.AbortSettlementError(c, domainerrors.ReplayedPayment())
				return
			default:
				reserved = true
			}
		}

		result, err := g.settler.Settle(ctx, payload, &requirement)
		if err != nil {
			g.release(ctx, reserved, key)
			response.AbortSettlementError(c, domainerrors.ClassifySettlementError(err.Error()))
			return
		}
		if !result.Success {
			g.release(ctx, reserved, key)
			reason := result.ErrorReason
			if reason == "" {
				reason = "settlement rejected"
			}
			response.AbortSettlementError(c, domainerrors.ClassifySettlementError(reason))
			return
		}
		if result.Payer == "" {
			// Funds may have moved; keep the reservation so the payload
			// cannot be replayed while the relay sorts itself out.
			logger.Error(c.Request.Context(), "settlement succeeded without a payer address",
				zap.String("transaction", result.Transaction))
			response.AbortSettlementError(c, domainerrors.ClassifySettlementError("settlement result is missing the payer address"))
			return
		}

		c.Set(PayerKey, result.Payer)
		c.Set(EstimateKey, estimate)

		// Receipt headers go out before the handler writes the body.
		if receipt, encErr := result.EncodeBase64(); encErr == nil {
			c.Header(entities.HeaderPaymentResponse, receipt)
			c.Header(entities.HeaderPaymentResponseLegacy, receipt)
		}
		c.Header(entities.HeaderPaymentPayer, result.Payer)

		c.Next()

		if g.usage != nil {
			g.usage.RecordSettled(ctx, &entities.UsageEvent{
				Payer:       result.Payer,
				Endpoint:    spec.Method + " " + spec.Path,
				Category:    spec.Category,
				Token:       token,
				Tier:        spec.Tier,
				Amount:      estimate.Amount,
				Transaction: result.Transaction,
				Status:      c.Writer.Status(),
				At:          time.Now().UTC(),
			})
		}
	}
}

// selectToken resolves the client's token choice: payment-token-type header,
// then the tokenType query parameter, defaulting to native.
func selectToken(c *gin.Context) (entities.TokenType, error) {
	selector := c.GetHeader(entities.HeaderPaymentTokenType)
	if selector == "" {
		selector = c.Query(entities.QueryTokenType)
	}
	return entities.ParseTokenType(selector)
}

// paymentHeader returns the signed payload header, canonical name first.
func paymentHeader(c *gin.Context) string {
	if v := c.GetHeader(entities.HeaderPaymentSignature); v != "" {
		return v
	}
	return c.GetHeader(entities.HeaderPaymentLegacy)
}

// derivePrice quotes the request for the selected token. Dynamic tiers read
// the body once, price it, and restore it for the handler.
func (g *PaymentGate) derivePrice(c *gin.Context, spec entities.EndpointSpec, estimator string, token entities.TokenType) (*entities.PriceEstimate, *entities.DynamicQuote, error) {
	if spec.Tier != entities.TierDynamic {
		estimate, err := g.pricing.FixedEstimate(spec.Tier, token)
		return estimate, nil, err
	}

	body, err := readBody(c, maxDynamicBodyBytes)
	if err != nil {
		return nil, nil, err
	}
	quote, err := g.pricing.DynamicQuote(c.Request.Context(), estimator, body)
	if err != nil {
		return nil, nil, err
	}
	estimate, err := g.pricing.QuoteEstimate(quote, token)
	if err != nil {
		return nil, nil, err
	}
	return estimate, quote, nil
}

// readBody consumes the request body up to limit and puts a replayable copy
// back so the handler can read it again.
func readBody(c *gin.Context, limit int64) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	c.Request.Body.Close()
	if err != nil {
		return nil, domainerrors.BadRequest("request body could not be read")
	}
	if int64(len(body)) > limit {
		return nil, domainerrors.NewAppError(http.StatusRequestEntityTooLarge,
			domainerrors.CodeBadRequest, "request body exceeds the pricing limit", nil)
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// challenge emits the 402: one requirement per supported token, both as the
// JSON body and base64-encoded in the payment-required header.
func (g *PaymentGate) challenge(c *gin.Context, spec entities.EndpointSpec, selected entities.TokenType, selectedEstimate *entities.PriceEstimate, quote *entities.DynamicQuote) {
	resource := c.Request.URL.Path
	var accepts []entities.PaymentRequirements
	for _, t := range entities.SupportedTokens(g.network) {
		estimate := selectedEstimate
		if t != selected {
			var err error
			if quote != nil {
				estimate, err = g.pricing.QuoteEstimate(quote, t)
			} else {
				estimate, err = g.pricing.FixedEstimate(spec.Tier, t)
			}
			if err != nil {
				continue
			}
		}
		accepts = append(accepts, g.requirementFor(spec, t, estimate, resource))
	}

	challenge := &entities.PaymentRequired{
		X402Version: entities.X402Version,
		Error:       entities.HeaderPaymentSignature + " header is required",
		Accepts:     accepts,
	}
	if encoded, err := challenge.EncodeBase64(); err == nil {
		c.Header(entities.HeaderPaymentRequired, encoded)
	}
	c.AbortWithStatusJSON(http.StatusPaymentRequired, challenge)
}

func (g *PaymentGate) requirementFor(spec entities.EndpointSpec, token entities.TokenType, estimate *entities.PriceEstimate, path string) entities.PaymentRequirements {
	return entities.BuildPaymentRequirement(entities.RequirementInput{
		Network:     g.network,
		Recipient:   g.recipient,
		Resource:    g.baseURL + path,
		Description: spec.Summary,
		Token:       token,
		Estimate:    estimate,
		Meta:        spec.Meta,
	})
}

// matchAccepted checks that the payload's echoed requirement is the one the
// gateway quoted. Amounts are deliberately not compared here; sufficiency is
// the relay's call.
func matchAccepted(payload *entities.PaymentPayload, requirement *entities.PaymentRequirements) error {
	if payload.Scheme != "" && payload.Scheme != entities.SchemeExact {
		return fmt.Errorf("unsupported scheme %q", payload.Scheme)
	}
	if payload.Network != "" && payload.Network != requirement.Network {
		return fmt.Errorf("payload network %q does not match %q", payload.Network, requirement.Network)
	}
	accepted := payload.Accepted
	if accepted == nil {
		return fmt.Errorf("missing the accepted requirement")
	}
	if accepted.Scheme != entities.SchemeExact {
		return fmt.Errorf("accepted scheme %q is not %q", accepted.Scheme, entities.SchemeExact)
	}
	if accepted.Network != requirement.Network {
		return fmt.Errorf("accepted network %q does not match %q", accepted.Network, requirement.Network)
	}
	if accepted.PayTo != requirement.PayTo {
		return fmt.Errorf("accepted recipient does not match")
	}
	if accepted.Asset != requirement.Asset {
		return fmt.Errorf("accepted asset does not match the selected token")
	}
	return nil
}

func (g *PaymentGate) release(ctx context.Context, reserved bool, key string) {
	if reserved && g.guard != nil {
		g.guard.Release(ctx, key)
	}
}
