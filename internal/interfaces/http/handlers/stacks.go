package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/infrastructure/hiro"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
	"github.com/aibtcdev/x402-api/pkg/stacks"
)

// ChainReader fetches on-chain account state for a Stacks principal.
type ChainReader interface {
	Balances(ctx context.Context, principal string) (*hiro.AddressBalances, error)
	Names(ctx context.Context, address string) ([]string, error)
}

// StacksHandler handles Stacks chain utility endpoints. Decoding and
// signature checks run locally; profile lookups go through the chain API.
type StacksHandler struct {
	chain ChainReader
}

// NewStacksHandler creates a new Stacks utilities handler.
func NewStacksHandler(chain ChainReader) *StacksHandler {
	return &StacksHandler{chain: chain}
}

// Address decodes a c32check address into its parts.
// GET /stacks/address/{address}
func (h *StacksHandler) Address(c *gin.Context) {
	info, err := stacks.DecodeAddress(c.Param("address"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid address: "+err.Error()))
		return
	}

	response.OK(c, http.StatusOK, gin.H{
		"address": info.Address,
		"network": info.Network,
		"type":    info.Type,
		"version": info.Version,
		"hash160": info.Hash160,
	})
}

type clarityRequest struct {
	Hex string `json:"hex"`
}

// DecodeClarity decodes a hex-serialized Clarity value.
// POST /stacks/decode/clarity
func (h *StacksHandler) DecodeClarity(c *gin.Context) {
	var req clarityRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Hex == "" {
		response.Error(c, domainerrors.BadRequest("hex is required"))
		return
	}

	value, err := stacks.DecodeClarityHex(req.Hex)
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid clarity value: "+err.Error()))
		return
	}
	response.OK(c, http.StatusOK, gin.H{"decoded": value})
}

type transactionRequest struct {
	TxHex string `json:"txHex"`
}

// DecodeTransaction decodes a raw hex-serialized Stacks transaction.
// POST /stacks/decode/transaction
func (h *StacksHandler) DecodeTransaction(c *gin.Context) {
	var req transactionRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.TxHex == "" {
		response.Error(c, domainerrors.BadRequest("txHex is required"))
		return
	}

	tx, err := stacks.DecodeTransactionHex(req.TxHex)
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid transaction: "+err.Error()))
		return
	}
	response.OK(c, http.StatusOK, gin.H{"transaction": tx})
}

// Profile combines token balances and BNS names for an address.
// GET /stacks/profile/{address}
func (h *StacksHandler) Profile(c *gin.Context) {
	address := c.Param("address")
	if !stacks.ValidateAddress(address) {
		response.Error(c, domainerrors.BadRequest("invalid address: "+address))
		return
	}

	ctx := c.Request.Context()
	balances, err := h.chain.Balances(ctx, address)
	if err != nil {
		response.Error(c, err)
		return
	}

	names, err := h.chain.Names(ctx, address)
	if err != nil {
		// An address without a BNS record is still a valid profile.
		if domainerrors.AsAppError(err).Code != domainerrors.CodeNotFound {
			response.Error(c, err)
			return
		}
		names = []string{}
	}

	response.OK(c, http.StatusOK, gin.H{
		"address":  address,
		"balances": balances,
		"names":    names,
	})
}

type verifyMessageRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
}

// VerifyMessage checks a SIP-018 prefixed message signature.
// POST /stacks/verify/message
func (h *StacksHandler) VerifyMessage(c *gin.Context) {
	var req verifyMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Signature == "" || req.Address == "" {
		response.Error(c, domainerrors.BadRequest("signature and address are required"))
		return
	}

	result, err := stacks.VerifyMessage(req.Message, req.Signature, req.Address)
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid signature: "+err.Error()))
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"valid":            result.Valid,
		"recoveredAddress": result.RecoveredAddress,
		"publicKey":        result.PublicKey,
	})
}

type verifyStructuredRequest struct {
	Domain    stacks.SIP018Domain `json:"domain"`
	Message   string              `json:"message"`
	Signature string              `json:"signature"`
	Address   string              `json:"address"`
}

// VerifyStructured checks a SIP-018 structured data signature against a
// domain tuple. The message is a Clarity hex value when 0x-prefixed,
// otherwise it is wrapped as a string-ascii value.
// POST /stacks/verify/sip018
func (h *StacksHandler) VerifyStructured(c *gin.Context) {
	var req verifyStructuredRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Signature == "" || req.Address == "" {
		response.Error(c, domainerrors.BadRequest("signature and address are required"))
		return
	}
	if req.Domain.Name == "" {
		response.Error(c, domainerrors.BadRequest("domain.name is required"))
		return
	}

	result, err := stacks.VerifyStructuredData(req.Domain, req.Message, req.Signature, req.Address)
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid signature: "+err.Error()))
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"valid":            result.Valid,
		"recoveredAddress": result.RecoveredAddress,
		"publicKey":        result.PublicKey,
	})
}
