// Package facilitator is the settlement relay client. The relay is the only
// component that verifies signed transfers and submits them to the chain; the
// gateway hands it (payload, requirements) and trusts its verdict.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aibtcdev/x402-api/internal/config"
	"github.com/aibtcdev/x402-api/internal/domain/entities"
	"github.com/aibtcdev/x402-api/pkg/logger"
)

const defaultTimeout = 120 * time.Second

// maxResponseBytes bounds how much of a relay response is read; verdicts are
// small JSON documents.
const maxResponseBytes = 1 << 20

// Client talks to one settlement relay.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a relay client with the timeout fixed at construction.
func NewClient(cfg config.FacilitatorConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type settleRequest struct {
	X402Version         int                           `json:"x402Version"`
	PaymentPayload      *entities.PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements *entities.PaymentRequirements `json:"paymentRequirements"`
}

// Settle submits a signed transfer for verification and chain submission.
// A settled-but-rejected payment comes back as a result with Success=false;
// the returned error is reserved for transport and protocol failures.
func (c *Client) Settle(ctx context.Context, payload *entities.PaymentPayload, requirements *entities.PaymentRequirements) (*entities.SettlementResult, error) {
	body, err := json.Marshal(settleRequest{
		X402Version:         entities.X402Version,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal settle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/settle", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build settle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("settlement relay network error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("settlement relay network error: %w", err)
	}

	var result entities.SettlementResult
	decodeErr := json.Unmarshal(raw, &result)

	switch {
	case resp.StatusCode == http.StatusOK && decodeErr == nil:
		return &result, nil
	case decodeErr == nil && result.ErrorReason != "":
		// relays report rejections with 4xx statuses and a verdict body
		return &result, nil
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("settlement relay unavailable: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		logger.Warn(ctx, "settlement relay returned unexpected status",
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("settlement relay returned status %d", resp.StatusCode)
	default:
		return nil, fmt.Errorf("settlement relay sent an unreadable response: %w", decodeErr)
	}
}
