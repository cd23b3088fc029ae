package entities

import (
	"encoding/json"
	"errors"
)

// ChatMessage is one OpenAI-style chat turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the OpenAI-compatible completion request accepted by the
// inference endpoints. Unknown upstream fields are preserved nowhere; the
// gateway only forwards what it understands.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// Validate checks the request shape. Streaming is rejected because receipts
// are response headers and cannot trail a stream.
func (r *ChatRequest) Validate() error {
	if r.Model == "" {
		return errors.New("model is required")
	}
	if len(r.Messages) == 0 {
		return errors.New("messages must not be empty")
	}
	if r.Stream {
		return errors.New("streaming is not supported on paid endpoints")
	}
	return nil
}

// TotalChars sums the content length across messages, the basis of the
// input-token estimate.
func (r *ChatRequest) TotalChars() int {
	total := 0
	for _, m := range r.Messages {
		total += len(m.Content)
	}
	return total
}

// ChatUsage is the token accounting block reported by upstreams.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletion carries the upstream response: Raw is forwarded to the
// client verbatim, the typed fields feed usage recording.
type ChatCompletion struct {
	ID    string          `json:"id"`
	Model string          `json:"model"`
	Usage ChatUsage       `json:"usage"`
	Raw   json.RawMessage `json:"-"`
}
