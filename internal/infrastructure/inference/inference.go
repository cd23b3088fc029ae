// Package inference wraps the chat completion upstreams. Adapters are
// stateless: timeouts are fixed at construction and every call takes the
// request context. Responses are forwarded verbatim; only the usage block is
// parsed out for accounting.
package inference

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
)

const requestTimeout = 120 * time.Second

// maxResponseBytes bounds upstream reads. Completions are capped well below
// this by max_tokens.
const maxResponseBytes = 8 << 20

func parseChatCompletion(raw []byte) (*entities.ChatCompletion, error) {
	var envelope struct {
		ID    string             `json:"id"`
		Model string             `json:"model"`
		Usage entities.ChatUsage `json:"usage"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, domainerrors.Upstream("inference provider sent an unreadable response")
	}
	return &entities.ChatCompletion{
		ID:    envelope.ID,
		Model: envelope.Model,
		Usage: envelope.Usage,
		Raw:   raw,
	}, nil
}

// upstreamError converts a non-200 provider response. Client-shaped failures
// (bad model, malformed request) pass through as 400; everything else is the
// gateway's upstream problem.
func upstreamError(provider string, status int, body []byte) error {
	msg := extractUpstreamMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return domainerrors.BadRequest(provider + ": " + msg)
	}
	return domainerrors.Upstream(provider + ": " + msg)
}

// extractUpstreamMessage digs the human-readable message out of the common
// provider error envelopes.
func extractUpstreamMessage(body []byte) string {
	var withObject struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &withObject); err == nil && withObject.Error.Message != "" {
		return withObject.Error.Message
	}

	var withString struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &withString); err == nil && withString.Error != "" {
		return withString.Error
	}

	var withList struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &withList); err == nil && len(withList.Errors) > 0 {
		return withList.Errors[0].Message
	}

	var withMessage struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &withMessage); err == nil && withMessage.Message != "" {
		return withMessage.Message
	}
	return ""
}
