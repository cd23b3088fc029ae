package stacks

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Transaction wire constants (SIP-005).
const (
	txVersionMainnet byte = 0x00
	txVersionTestnet byte = 0x80

	authTypeStandard  byte = 0x04
	authTypeSponsored byte = 0x05

	hashModeP2PKH byte = 0x00
	hashModeP2SH  byte = 0x01
	hashModeP2WPKH byte = 0x02
	hashModeP2WSH  byte = 0x03

	payloadTokenTransfer     byte = 0x00
	payloadSmartContract     byte = 0x01
	payloadContractCall      byte = 0x02
	payloadPoisonMicroblock  byte = 0x03
	payloadCoinbase          byte = 0x04
	payloadCoinbaseToAltRecipient byte = 0x05
	payloadVersionedSmartContract byte = 0x06
	payloadTenureChange      byte = 0x07
	payloadNakamotoCoinbase  byte = 0x08
)

// Transaction is the decoded, JSON-friendly form of a raw Stacks transaction.
type Transaction struct {
	TxID              string          `json:"txId"`
	Network           string          `json:"network"`
	ChainID           string          `json:"chainId"`
	Auth              TxAuth          `json:"auth"`
	AnchorMode        string          `json:"anchorMode"`
	PostConditionMode string          `json:"postConditionMode"`
	PostConditions    []PostCondition `json:"postConditions"`
	Payload           TxPayload       `json:"payload"`
}

type TxAuth struct {
	Type    string             `json:"type"`
	Origin  SpendingCondition  `json:"origin"`
	Sponsor *SpendingCondition `json:"sponsor,omitempty"`
}

type SpendingCondition struct {
	HashMode           string      `json:"hashMode"`
	Signer             string      `json:"signer"`
	SignerHash160      string      `json:"signerHash160"`
	Nonce              uint64      `json:"nonce"`
	Fee                uint64      `json:"fee"`
	KeyEncoding        string      `json:"keyEncoding,omitempty"`
	Signature          string      `json:"signature,omitempty"`
	SignaturesRequired int         `json:"signaturesRequired,omitempty"`
	Fields             []AuthField `json:"fields,omitempty"`
}

type AuthField struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type PostCondition struct {
	Type      string        `json:"type"`
	Principal string        `json:"principal"`
	Code      string        `json:"code"`
	Amount    string        `json:"amount,omitempty"`
	Asset     string        `json:"asset,omitempty"`
	AssetValue *ClarityValue `json:"assetValue,omitempty"`
}

type TxPayload struct {
	Type string `json:"type"`

	// token transfer
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Memo      string `json:"memo,omitempty"`

	// contract call
	ContractID   string          `json:"contractId,omitempty"`
	FunctionName string          `json:"functionName,omitempty"`
	FunctionArgs []*ClarityValue `json:"functionArgs,omitempty"`

	// contract deploy
	ContractName   string `json:"contractName,omitempty"`
	CodeBody       string `json:"codeBody,omitempty"`
	ClarityVersion int    `json:"clarityVersion,omitempty"`
}

// DecodeTransactionHex decodes a hex-encoded raw Stacks transaction.
func DecodeTransactionHex(s string) (*Transaction, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return DecodeTransaction(raw)
}

// DecodeTransaction decodes a raw Stacks transaction. The transaction id is
// the sha512/256 digest of the raw bytes.
func DecodeTransaction(raw []byte) (*Transaction, error) {
	r := newByteReader(raw)

	version, err := r.u8()
	if err != nil {
		return nil, err
	}
	var network string
	switch version {
	case txVersionMainnet:
		network = "mainnet"
	case txVersionTestnet:
		network = "testnet"
	default:
		return nil, fmt.Errorf("unknown transaction version 0x%02x", version)
	}
	mainnet := version == txVersionMainnet

	chainID, err := r.u32()
	if err != nil {
		return nil, err
	}

	auth, err := decodeAuth(r, mainnet)
	if err != nil {
		return nil, err
	}

	anchorByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	anchorMode, err := anchorModeName(anchorByte)
	if err != nil {
		return nil, err
	}

	pcModeByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	var pcMode string
	switch pcModeByte {
	case 0x01:
		pcMode = "allow"
	case 0x02:
		pcMode = "deny"
	default:
		return nil, fmt.Errorf("unknown post condition mode 0x%02x", pcModeByte)
	}

	postConditions, err := decodePostConditions(r)
	if err != nil {
		return nil, err
	}

	payload, err := decodePayload(r)
	if err != nil {
		return nil, err
	}

	digest := sha512.Sum512_256(raw)

	return &Transaction{
		TxID:              "0x" + hex.EncodeToString(digest[:]),
		Network:           network,
		ChainID:           "0x" + strconv.FormatUint(uint64(chainID), 16),
		Auth:              *auth,
		AnchorMode:        anchorMode,
		PostConditionMode: pcMode,
		PostConditions:    postConditions,
		Payload:           *payload,
	}, nil
}

func anchorModeName(b byte) (string, error) {
	switch b {
	case 0x01:
		return "onChainOnly", nil
	case 0x02:
		return "offChainOnly", nil
	case 0x03:
		return "any", nil
	}
	return "", fmt.Errorf("unknown anchor mode 0x%02x", b)
}

func decodeAuth(r *byteReader, mainnet bool) (*TxAuth, error) {
	authType, err := r.u8()
	if err != nil {
		return nil, err
	}

	switch authType {
	case authTypeStandard:
		origin, err := decodeSpendingCondition(r, mainnet)
		if err != nil {
			return nil, err
		}
		return &TxAuth{Type: "standard", Origin: *origin}, nil
	case authTypeSponsored:
		origin, err := decodeSpendingCondition(r, mainnet)
		if err != nil {
			return nil, err
		}
		sponsor, err := decodeSpendingCondition(r, mainnet)
		if err != nil {
			return nil, err
		}
		return &TxAuth{Type: "sponsored", Origin: *origin, Sponsor: sponsor}, nil
	}
	return nil, fmt.Errorf("unknown auth type 0x%02x", authType)
}

func decodeSpendingCondition(r *byteReader, mainnet bool) (*SpendingCondition, error) {
	hashMode, err := r.u8()
	if err != nil {
		return nil, err
	}
	var hashModeName string
	switch hashMode {
	case hashModeP2PKH:
		hashModeName = "p2pkh"
	case hashModeP2SH:
		hashModeName = "p2sh"
	case hashModeP2WPKH:
		hashModeName = "p2wpkh"
	case hashModeP2WSH:
		hashModeName = "p2wsh"
	default:
		return nil, fmt.Errorf("unknown hash mode 0x%02x", hashMode)
	}

	signer, err := r.read(20)
	if err != nil {
		return nil, err
	}
	nonce, err := r.u64()
	if err != nil {
		return nil, err
	}
	fee, err := r.u64()
	if err != nil {
		return nil, err
	}

	cond := &SpendingCondition{
		HashMode:      hashModeName,
		Signer:        addressForHashMode(hashMode, mainnet, signer),
		SignerHash160: hex.EncodeToString(signer),
		Nonce:         nonce,
		Fee:           fee,
	}

	if hashMode == hashModeP2PKH || hashMode == hashModeP2WPKH {
		keyEncoding, err := r.u8()
		if err != nil {
			return nil, err
		}
		switch keyEncoding {
		case 0x00:
			cond.KeyEncoding = "compressed"
		case 0x01:
			cond.KeyEncoding = "uncompressed"
		default:
			return nil, fmt.Errorf("unknown key encoding 0x%02x", keyEncoding)
		}
		sig, err := r.read(65)
		if err != nil {
			return nil, err
		}
		cond.Signature = hex.EncodeToString(sig)
		return cond, nil
	}

	// multisig: length-prefixed auth fields then a 2-byte signature threshold
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	if int(count) > r.remaining() {
		return nil, errors.New("auth field count exceeds input")
	}
	for i := uint32(0); i < count; i++ {
		fieldID, err := r.u8()
		if err != nil {
			return nil, err
		}
		var fieldType string
		var size int
		switch fieldID {
		case 0x00:
			fieldType, size = "publicKeyCompressed", 33
		case 0x01:
			fieldType, size = "publicKeyUncompressed", 33
		case 0x02:
			fieldType, size = "signatureCompressed", 65
		case 0x03:
			fieldType, size = "signatureUncompressed", 65
		default:
			return nil, fmt.Errorf("unknown auth field 0x%02x", fieldID)
		}
		data, err := r.read(size)
		if err != nil {
			return nil, err
		}
		cond.Fields = append(cond.Fields, AuthField{Type: fieldType, Data: hex.EncodeToString(data)})
	}

	required, err := r.read(2)
	if err != nil {
		return nil, err
	}
	cond.SignaturesRequired = int(required[0])<<8 | int(required[1])
	return cond, nil
}

func decodePostConditions(r *byteReader) ([]PostCondition, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	if int(count) > r.remaining() {
		return nil, errors.New("post condition count exceeds input")
	}

	conditions := make([]PostCondition, 0, count)
	for i := uint32(0); i < count; i++ {
		pcType, err := r.u8()
		if err != nil {
			return nil, err
		}

		principal, err := decodePostConditionPrincipal(r)
		if err != nil {
			return nil, err
		}

		switch pcType {
		case 0x00: // STX
			code, err := r.u8()
			if err != nil {
				return nil, err
			}
			amount, err := r.u64()
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, PostCondition{
				Type:      "stx",
				Principal: principal,
				Code:      fungibleCodeName(code),
				Amount:    strconv.FormatUint(amount, 10),
			})
		case 0x01: // fungible token
			asset, err := decodeAssetInfo(r)
			if err != nil {
				return nil, err
			}
			code, err := r.u8()
			if err != nil {
				return nil, err
			}
			amount, err := r.u64()
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, PostCondition{
				Type:      "fungible",
				Principal: principal,
				Code:      fungibleCodeName(code),
				Amount:    strconv.FormatUint(amount, 10),
				Asset:     asset,
			})
		case 0x02: // non-fungible token
			asset, err := decodeAssetInfo(r)
			if err != nil {
				return nil, err
			}
			value, err := decodeCV(r)
			if err != nil {
				return nil, err
			}
			code, err := r.u8()
			if err != nil {
				return nil, err
			}
			var codeName string
			switch code {
			case 0x10:
				codeName = "sent"
			case 0x11:
				codeName = "not-sent"
			default:
				codeName = fmt.Sprintf("0x%02x", code)
			}
			conditions = append(conditions, PostCondition{
				Type:       "non-fungible",
				Principal:  principal,
				Code:       codeName,
				Asset:      asset,
				AssetValue: value,
			})
		default:
			return nil, fmt.Errorf("unknown post condition type 0x%02x", pcType)
		}
	}
	return conditions, nil
}

func fungibleCodeName(code byte) string {
	switch code {
	case 0x01:
		return "eq"
	case 0x02:
		return "gt"
	case 0x03:
		return "ge"
	case 0x04:
		return "lt"
	case 0x05:
		return "le"
	}
	return fmt.Sprintf("0x%02x", code)
}

func decodePostConditionPrincipal(r *byteReader) (string, error) {
	kind, err := r.u8()
	if err != nil {
		return "", err
	}
	switch kind {
	case 0x01:
		return "origin", nil
	case 0x02:
		return decodePrincipal(r)
	case 0x03:
		addr, err := decodePrincipal(r)
		if err != nil {
			return "", err
		}
		name, err := r.lpString()
		if err != nil {
			return "", err
		}
		return addr + "." + name, nil
	}
	return "", fmt.Errorf("unknown post condition principal 0x%02x", kind)
}

// decodeAssetInfo reads an asset triple and renders it as
// "ADDRESS.contract::asset".
func decodeAssetInfo(r *byteReader) (string, error) {
	addr, err := decodePrincipal(r)
	if err != nil {
		return "", err
	}
	contract, err := r.lpString()
	if err != nil {
		return "", err
	}
	asset, err := r.lpString()
	if err != nil {
		return "", err
	}
	return addr + "." + contract + "::" + asset, nil
}

func decodePayload(r *byteReader) (*TxPayload, error) {
	payloadType, err := r.u8()
	if err != nil {
		return nil, err
	}

	switch payloadType {
	case payloadTokenTransfer:
		recipient, err := decodeCV(r)
		if err != nil {
			return nil, err
		}
		if recipient.Type != "principal" {
			return nil, errors.New("token transfer recipient is not a principal")
		}
		amount, err := r.u64()
		if err != nil {
			return nil, err
		}
		memoRaw, err := r.read(34)
		if err != nil {
			return nil, err
		}
		return &TxPayload{
			Type:      "tokenTransfer",
			Recipient: recipient.Value.(string),
			Amount:    strconv.FormatUint(amount, 10),
			Memo:      decodeMemo(memoRaw),
		}, nil

	case payloadSmartContract, payloadVersionedSmartContract:
		payload := &TxPayload{Type: "smartContract"}
		if payloadType == payloadVersionedSmartContract {
			payload.Type = "versionedSmartContract"
			v, err := r.u8()
			if err != nil {
				return nil, err
			}
			payload.ClarityVersion = int(v)
		}
		name, err := r.lpString()
		if err != nil {
			return nil, err
		}
		codeLen, err := r.u32()
		if err != nil {
			return nil, err
		}
		code, err := r.read(int(codeLen))
		if err != nil {
			return nil, err
		}
		payload.ContractName = name
		payload.CodeBody = string(code)
		return payload, nil

	case payloadContractCall:
		version, err := r.u8()
		if err != nil {
			return nil, err
		}
		hash, err := r.read(20)
		if err != nil {
			return nil, err
		}
		addr, err := EncodeAddress(version, hash)
		if err != nil {
			return nil, err
		}
		contractName, err := r.lpString()
		if err != nil {
			return nil, err
		}
		functionName, err := r.lpString()
		if err != nil {
			return nil, err
		}
		argCount, err := r.u32()
		if err != nil {
			return nil, err
		}
		if int(argCount) > r.remaining() {
			return nil, errors.New("function arg count exceeds input")
		}
		args := make([]*ClarityValue, 0, argCount)
		for i := uint32(0); i < argCount; i++ {
			arg, err := decodeCV(r)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return &TxPayload{
			Type:         "contractCall",
			ContractID:   addr + "." + contractName,
			FunctionName: functionName,
			FunctionArgs: args,
		}, nil

	case payloadPoisonMicroblock:
		return &TxPayload{Type: "poisonMicroblock"}, nil
	case payloadCoinbase, payloadCoinbaseToAltRecipient, payloadNakamotoCoinbase:
		return &TxPayload{Type: "coinbase"}, nil
	case payloadTenureChange:
		return &TxPayload{Type: "tenureChange"}, nil
	}
	return nil, fmt.Errorf("unknown payload type 0x%02x", payloadType)
}

// decodeMemo strips trailing NUL padding; binary memos fall back to hex.
func decodeMemo(raw []byte) string {
	trimmed := strings.TrimRight(string(raw), "\x00")
	if trimmed == "" {
		return ""
	}
	if !utf8.ValidString(trimmed) {
		return "0x" + hex.EncodeToString([]byte(trimmed))
	}
	return trimmed
}
