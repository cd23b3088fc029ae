package entities

import (
	"fmt"
	"strings"
)

// TokenType is the closed set of tokens the gateway accepts payment in.
type TokenType string

const (
	TokenNative     TokenType = "Native"
	TokenBridgedBTC TokenType = "BridgedBTC"
	TokenBridgedUSD TokenType = "BridgedUSD"
)

// ContractID identifies a SIP-010 token contract.
type ContractID struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// String renders the canonical "ADDRESS.name" contract identifier.
func (c ContractID) String() string {
	return c.Address + "." + c.Name
}

// TokenInfo carries the static pricing and chain metadata for one token.
// USDRate is a fixed rate used only for pricing symmetry across tokens.
type TokenInfo struct {
	Type      TokenType
	Symbol    string
	Decimals  int
	USDRate   float64
	MinAtomic int64
	Contracts map[Network]ContractID
}

var tokenRegistry = map[TokenType]TokenInfo{
	TokenNative: {
		Type:      TokenNative,
		Symbol:    "STX",
		Decimals:  6,
		USDRate:   0.50,
		MinAtomic: 1,
	},
	TokenBridgedBTC: {
		Type:      TokenBridgedBTC,
		Symbol:    "sBTC",
		Decimals:  8,
		USDRate:   100000,
		MinAtomic: 1,
		Contracts: map[Network]ContractID{
			NetworkMainnet: {Address: "SM3VDXK3WZZSA84XXFKAFAF15NNZX32CTSG82JFQ4", Name: "sbtc-token"},
			NetworkTestnet: {Address: "ST1F7QA2MDF17S807EPA36TSS8AMEFY4KA9TVGWXT", Name: "sbtc-token"},
		},
	},
	TokenBridgedUSD: {
		Type:      TokenBridgedUSD,
		Symbol:    "aeUSDC",
		Decimals:  6,
		USDRate:   1.00,
		MinAtomic: 1,
		Contracts: map[Network]ContractID{
			NetworkMainnet: {Address: "SP3Y2ZSH8P7D50B0VBTSX11S7XSG24M1VB9YFQA4K", Name: "token-aeusdc"},
		},
	},
}

// Info returns the static metadata for the token.
func (t TokenType) Info() (TokenInfo, bool) {
	info, ok := tokenRegistry[t]
	return info, ok
}

// Valid reports whether the token type is known.
func (t TokenType) Valid() bool {
	_, ok := tokenRegistry[t]
	return ok
}

// Contract returns the SIP-010 contract for the token on the given network.
// Native has none; bridged tokens may be absent on some networks.
func (t TokenType) Contract(network Network) (ContractID, bool) {
	info, ok := tokenRegistry[t]
	if !ok || info.Contracts == nil {
		return ContractID{}, false
	}
	c, ok := info.Contracts[network]
	return c, ok
}

// AssetID returns the asset designation carried in payment requirements: the
// contract identifier for bridged tokens, empty for the native token.
func (t TokenType) AssetID(network Network) string {
	c, ok := t.Contract(network)
	if !ok {
		return ""
	}
	return c.String()
}

// SupportedOn reports whether the token can be accepted on the network.
// Native always is; bridged tokens require a contract.
func (t TokenType) SupportedOn(network Network) bool {
	if t == TokenNative {
		return true
	}
	_, ok := t.Contract(network)
	return ok
}

// SupportedTokens lists the tokens acceptable on the network, native first.
func SupportedTokens(network Network) []TokenType {
	out := []TokenType{TokenNative}
	for _, t := range []TokenType{TokenBridgedBTC, TokenBridgedUSD} {
		if t.SupportedOn(network) {
			out = append(out, t)
		}
	}
	return out
}

// ParseTokenType resolves a client-supplied selector. Canonical names and
// symbols are both accepted, case-insensitively.
func ParseTokenType(s string) (TokenType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native", "stx":
		return TokenNative, nil
	case "bridgedbtc", "sbtc":
		return TokenBridgedBTC, nil
	case "bridgedusd", "aeusdc", "usdc":
		return TokenBridgedUSD, nil
	}
	return "", fmt.Errorf("unknown token type %q", s)
}
