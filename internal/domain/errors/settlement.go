package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// SettleErrorKind is the closed taxonomy settlement failures classify into.
type SettleErrorKind string

const (
	SettleUnexpected              SettleErrorKind = "UnexpectedSettle"
	SettleInsufficientFunds       SettleErrorKind = "InsufficientFunds"
	SettleInvalidTransactionState SettleErrorKind = "InvalidTransactionState"
	SettleAmountInsufficient      SettleErrorKind = "AmountInsufficient"
	SettleInvalidPayload          SettleErrorKind = "InvalidPayload"
	SettleRecipientMismatch       SettleErrorKind = "RecipientMismatch"
	SettleSenderMismatch          SettleErrorKind = "SenderMismatch"
)

// SettlementError is a classified relay failure together with the response
// policy it maps to. RetryAfter is in seconds; zero means no header.
type SettlementError struct {
	Kind       SettleErrorKind `json:"kind"`
	Status     int             `json:"status"`
	RetryAfter int             `json:"retryAfter,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

func (e *SettlementError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("settlement failed: %s", e.Kind)
	}
	return fmt.Sprintf("settlement failed: %s: %s", e.Kind, e.Reason)
}

// Retryable reports whether the client should retry after a delay.
func (e *SettlementError) Retryable() bool {
	return e.RetryAfter > 0
}

type settleRule struct {
	substrings []string
	kind       SettleErrorKind
	status     int
	retryAfter int
}

// settleRules are evaluated in order; the first substring match wins.
var settleRules = []settleRule{
	{[]string{"network", "timeout", "timed out"}, SettleUnexpected, http.StatusBadGateway, 5},
	{[]string{"503", "unavailable"}, SettleUnexpected, http.StatusServiceUnavailable, 30},
	{[]string{"insufficient", "balance"}, SettleInsufficientFunds, http.StatusPaymentRequired, 0},
	{[]string{"expired", "nonce", "stale"}, SettleInvalidTransactionState, http.StatusPaymentRequired, 0},
	{[]string{"amount low", "too low", "below minimum"}, SettleAmountInsufficient, http.StatusPaymentRequired, 0},
	{[]string{"invalid", "signature"}, SettleInvalidPayload, http.StatusBadRequest, 0},
	{[]string{"recipient mismatch", "wrong recipient"}, SettleRecipientMismatch, http.StatusBadRequest, 0},
	{[]string{"broadcast"}, SettleUnexpected, http.StatusBadGateway, 5},
	{[]string{"tx failed", "tx_failed", "transaction failed"}, SettleInvalidTransactionState, http.StatusPaymentRequired, 0},
	{[]string{"tx pending", "tx_pending", "pending"}, SettleInvalidTransactionState, http.StatusPaymentRequired, 10},
	{[]string{"sender mismatch", "wrong sender"}, SettleSenderMismatch, http.StatusBadRequest, 0},
	{[]string{"unsupported scheme", "unknown scheme"}, SettleInvalidPayload, http.StatusBadRequest, 0},
}

// ClassifySettlementError maps a free-form relay error string onto the
// taxonomy. Matching is case-insensitive substring search in rule order;
// anything unmatched is an unexpected settle failure.
func ClassifySettlementError(reason string) *SettlementError {
	lowered := strings.ToLower(reason)
	for _, rule := range settleRules {
		for _, sub := range rule.substrings {
			if strings.Contains(lowered, sub) {
				return &SettlementError{
					Kind:       rule.kind,
					Status:     rule.status,
					RetryAfter: rule.retryAfter,
					Reason:     reason,
				}
			}
		}
	}
	return &SettlementError{
		Kind:       SettleUnexpected,
		Status:     http.StatusInternalServerError,
		RetryAfter: 5,
		Reason:     reason,
	}
}

// ReplayedPayment is the fixed classification for a payload the gateway has
// already settled: the transfer is spent, so the state is invalid rather
// than retryable.
func ReplayedPayment() *SettlementError {
	return &SettlementError{
		Kind:   SettleInvalidTransactionState,
		Status: http.StatusPaymentRequired,
		Reason: "payment payload already settled",
	}
}
