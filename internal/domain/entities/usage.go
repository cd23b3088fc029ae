package entities

import (
	"math/big"
	"time"
)

// UsageEvent is one settled, executed priced request.
type UsageEvent struct {
	Payer       string    `json:"payer"`
	Endpoint    string    `json:"endpoint"`
	Category    string    `json:"category"`
	Token       TokenType `json:"token"`
	Tier        Tier      `json:"tier"`
	Amount      *big.Int  `json:"-"`
	Transaction string    `json:"transaction,omitempty"`
	Status      int       `json:"status"`
	At          time.Time `json:"at"`
}

// AmountString renders the settled atomic amount as a decimal string.
func (e *UsageEvent) AmountString() string {
	if e.Amount == nil {
		return "0"
	}
	return e.Amount.String()
}

// RequestRecord is one entry of the process-global recent-request ring.
type RequestRecord struct {
	Method   string    `json:"method"`
	Path     string    `json:"path"`
	Status   int       `json:"status"`
	Token    TokenType `json:"token,omitempty"`
	Amount   string    `json:"amount,omitempty"`
	Payer    string    `json:"payer,omitempty"`
	At       time.Time `json:"at"`
	Category string    `json:"category,omitempty"`
}

// UsageTotals is the process-global counter snapshot served by /health.
type UsageTotals struct {
	Requests int64            `json:"requests"`
	ByToken  map[string]int64 `json:"byToken,omitempty"`
}
