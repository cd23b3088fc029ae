// Package hiro wraps the Hiro Stacks API for address lookups: balances from
// the extended API and BNS names from the v1 naming API.
package hiro

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aibtcdev/x402-api/internal/config"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
)

const requestTimeout = 15 * time.Second

const maxResponseBytes = 4 << 20

// Client talks to one Hiro API deployment (mainnet or testnet).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds the adapter; base URL is network-dependent and resolved by
// config.Load.
func NewClient(cfg config.HiroConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// STXBalance is the native token position of an address.
type STXBalance struct {
	Balance       string `json:"balance"`
	TotalSent     string `json:"total_sent"`
	TotalReceived string `json:"total_received"`
	Locked        string `json:"locked"`
}

// FungibleBalance is one SIP-010 position, keyed by asset identifier.
type FungibleBalance struct {
	Balance string `json:"balance"`
}

// NonFungibleCount is one SIP-009 position, keyed by asset identifier.
type NonFungibleCount struct {
	Count string `json:"count"`
}

// AddressBalances mirrors the extended API balances document.
type AddressBalances struct {
	STX               STXBalance                  `json:"stx"`
	FungibleTokens    map[string]FungibleBalance  `json:"fungible_tokens"`
	NonFungibleTokens map[string]NonFungibleCount `json:"non_fungible_tokens"`
}

// Balances fetches the full token position of a principal.
func (c *Client) Balances(ctx context.Context, principal string) (*AddressBalances, error) {
	path := "/extended/v1/address/" + url.PathEscape(principal) + "/balances"
	raw, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var balances AddressBalances
	if err := json.Unmarshal(raw, &balances); err != nil {
		return nil, domainerrors.Upstream("hiro sent an unreadable balances document")
	}
	return &balances, nil
}

// Names fetches the BNS names owned by an address. An address with no names
// yields an empty slice.
func (c *Client) Names(ctx context.Context, address string) ([]string, error) {
	path := "/v1/addresses/stacks/" + url.PathEscape(address)
	raw, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Names []string `json:"names"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, domainerrors.Upstream("hiro sent an unreadable names document")
	}
	if payload.Names == nil {
		return []string{}, nil
	}
	return payload.Names, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build hiro request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domainerrors.Upstream("hiro request failed: " + err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domainerrors.Upstream("hiro response read failed: " + err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return raw, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, domainerrors.NotFound("address not found")
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return nil, domainerrors.BadRequest(fmt.Sprintf("hiro rejected the request: status %d", resp.StatusCode))
	default:
		return nil, domainerrors.Upstream(fmt.Sprintf("hiro returned status %d", resp.StatusCode))
	}
}
