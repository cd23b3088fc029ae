package stacks

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// stacksMessagePrefix is the domain separator for personal message signing.
// The leading 0x17 is the prefix length.
const stacksMessagePrefix = "\x17Stacks Signed Message:\n"

// sip018Prefix is the ASCII bytes "SIP018".
var sip018Prefix = []byte{0x53, 0x49, 0x50, 0x30, 0x31, 0x38}

var ErrInvalidSignature = errors.New("invalid signature")

// SIP018Domain identifies the application domain of a structured-data
// signature.
type SIP018Domain struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	ChainID uint64 `json:"chainId"`
}

// VerifyResult reports the outcome of a signature verification together with
// the identity recovered from the signature itself.
type VerifyResult struct {
	Valid            bool   `json:"valid"`
	RecoveredAddress string `json:"recoveredAddress"`
	PublicKey        string `json:"publicKey"`
}

// MessageHash computes the hash a Stacks wallet signs for a personal message:
// sha256(prefix || varuint(len) || message).
func MessageHash(message string) []byte {
	payload := make([]byte, 0, len(stacksMessagePrefix)+9+len(message))
	payload = append(payload, stacksMessagePrefix...)
	payload = appendVarUint(payload, uint64(len(message)))
	payload = append(payload, message...)
	digest := sha256.Sum256(payload)
	return digest[:]
}

// StructuredDataHash computes the SIP-018 digest:
// sha256("SIP018" || sha256(domain) || sha256(message)).
func StructuredDataHash(domain SIP018Domain, messageCV []byte) []byte {
	domainCV := serializeTupleCV(map[string][]byte{
		"name":     serializeStringASCIICV(domain.Name),
		"version":  serializeStringASCIICV(domain.Version),
		"chain-id": serializeUIntCV(domain.ChainID),
	})
	domainHash := sha256.Sum256(domainCV)
	messageHash := sha256.Sum256(messageCV)

	payload := make([]byte, 0, len(sip018Prefix)+64)
	payload = append(payload, sip018Prefix...)
	payload = append(payload, domainHash[:]...)
	payload = append(payload, messageHash[:]...)
	digest := sha256.Sum256(payload)
	return digest[:]
}

// StructuredMessageCV serializes the signed message for SIP-018 hashing. A
// "0x" string is treated as an already-serialized Clarity value, anything
// else as a string-ascii value.
func StructuredMessageCV(message string) ([]byte, error) {
	if strings.HasPrefix(message, "0x") {
		raw, err := hex.DecodeString(message[2:])
		if err != nil {
			return nil, fmt.Errorf("invalid clarity hex: %w", err)
		}
		if _, err := DecodeClarityValue(raw); err != nil {
			return nil, fmt.Errorf("invalid clarity value: %w", err)
		}
		return raw, nil
	}
	return serializeStringASCIICV(message), nil
}

// VerifyMessage checks an RSV secp256k1 signature over a personal message
// against the expected signer address.
func VerifyMessage(message, signatureHex, expectedAddress string) (*VerifyResult, error) {
	return verifyHash(MessageHash(message), signatureHex, expectedAddress)
}

// VerifyStructuredData checks an RSV signature over SIP-018 structured data.
func VerifyStructuredData(domain SIP018Domain, message, signatureHex, expectedAddress string) (*VerifyResult, error) {
	messageCV, err := StructuredMessageCV(message)
	if err != nil {
		return nil, err
	}
	return verifyHash(StructuredDataHash(domain, messageCV), signatureHex, expectedAddress)
}

func verifyHash(hash []byte, signatureHex, expectedAddress string) (*VerifyResult, error) {
	expected, err := DecodeAddress(expectedAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	sig, err := normalizeRSV(signatureHex)
	if err != nil {
		return nil, err
	}

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	compressed := crypto.CompressPubkey(pub)

	recovered, err := EncodeAddress(expected.Version, Hash160(compressed))
	if err != nil {
		return nil, err
	}

	return &VerifyResult{
		Valid:            recovered == expected.Address,
		RecoveredAddress: recovered,
		PublicKey:        hex.EncodeToString(compressed),
	}, nil
}

// normalizeRSV accepts a 65-byte hex signature in RSV or VRS order and
// returns RSV bytes with a 0..3 recovery id, the layout SigToPub expects.
func normalizeRSV(signatureHex string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signatureHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: not hex", ErrInvalidSignature)
	}
	if len(raw) != 65 {
		return nil, fmt.Errorf("%w: must be 65 bytes, got %d", ErrInvalidSignature, len(raw))
	}

	v := raw[64]
	if v >= 27 {
		v -= 27
	}
	if v <= 3 {
		out := make([]byte, 65)
		copy(out, raw[:64])
		out[64] = v
		return out, nil
	}

	// recovery byte first (transaction-style VRS)
	v = raw[0]
	if v >= 27 {
		v -= 27
	}
	if v > 3 {
		return nil, fmt.Errorf("%w: bad recovery id", ErrInvalidSignature)
	}
	out := make([]byte, 65)
	copy(out, raw[1:])
	out[64] = v
	return out, nil
}

// appendVarUint appends n in Bitcoin varint encoding.
func appendVarUint(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xfd)
		return binary.LittleEndian.AppendUint16(dst, uint16(n))
	case n <= 0xffffffff:
		dst = append(dst, 0xfe)
		return binary.LittleEndian.AppendUint32(dst, uint32(n))
	default:
		dst = append(dst, 0xff)
		return binary.LittleEndian.AppendUint64(dst, n)
	}
}
