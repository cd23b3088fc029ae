// Package stacks implements the Stacks wire-format primitives the gateway
// needs locally: c32check addresses, Clarity value serialization, raw
// transaction decoding, and signed-message verification. Everything here is
// pure computation; chain lookups live in the infrastructure layer.
package stacks

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/ripemd160"
)

const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// SIP-005 address version bytes.
const (
	VersionMainnetP2PKH byte = 22 // 'P'
	VersionMainnetP2SH  byte = 20 // 'M'
	VersionTestnetP2PKH byte = 26 // 'T'
	VersionTestnetP2SH  byte = 21 // 'N'
)

var (
	ErrInvalidAddress  = errors.New("invalid stacks address")
	ErrBadChecksum     = errors.New("c32check checksum mismatch")
	ErrUnknownVersion  = errors.New("unknown address version")
	c32ValueByChar     = buildC32Lookup()
	addressVersionInfo = map[byte]struct {
		network string
		kind    string
	}{
		VersionMainnetP2PKH: {"mainnet", "standard"},
		VersionMainnetP2SH:  {"mainnet", "multisig"},
		VersionTestnetP2PKH: {"testnet", "standard"},
		VersionTestnetP2SH:  {"testnet", "multisig"},
	}
)

func buildC32Lookup() [128]int8 {
	var table [128]int8
	for i := range table {
		table[i] = -1
	}
	for i, c := range c32Alphabet {
		table[c] = int8(i)
	}
	return table
}

// c32Normalize folds the homoglyphs the c32 alphabet excludes.
func c32Normalize(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "O", "0")
	s = strings.ReplaceAll(s, "L", "1")
	s = strings.ReplaceAll(s, "I", "1")
	return s
}

// c32Encode encodes data as crockford-style base32. Leading zero bytes map to
// leading '0' digits one for one.
func c32Encode(data []byte) string {
	zeros := 0
	for zeros < len(data) && data[zeros] == 0 {
		zeros++
	}

	n := new(big.Int).SetBytes(data)
	radix := big.NewInt(32)
	mod := new(big.Int)
	var digits []byte
	for n.Sign() > 0 {
		n.DivMod(n, radix, mod)
		digits = append(digits, c32Alphabet[mod.Int64()])
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return strings.Repeat("0", zeros) + string(digits)
}

// c32Decode is the inverse of c32Encode.
func c32Decode(s string) ([]byte, error) {
	s = c32Normalize(s)
	if s == "" {
		return nil, errors.New("empty c32 string")
	}

	zeros := 0
	for zeros < len(s) && s[zeros] == '0' {
		zeros++
	}

	n := new(big.Int)
	radix := big.NewInt(32)
	for _, r := range s {
		if r >= 128 || c32ValueByChar[r] < 0 {
			return nil, fmt.Errorf("invalid c32 character %q", r)
		}
		n.Mul(n, radix)
		n.Add(n, big.NewInt(int64(c32ValueByChar[r])))
	}

	num := n.Bytes()
	out := make([]byte, zeros+len(num))
	copy(out[zeros:], num)
	return out, nil
}

func c32Checksum(version byte, data []byte) []byte {
	payload := make([]byte, 0, len(data)+1)
	payload = append(payload, version)
	payload = append(payload, data...)
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// Hash160 computes ripemd160(sha256(data)), the hash used inside Stacks
// addresses and by the matching hashing endpoint.
func Hash160(data []byte) []byte {
	sha := sha256.Sum256(data)
	r := ripemd160.New()
	r.Write(sha[:])
	return r.Sum(nil)
}

// AddressInfo is the decoded form of a c32check address.
type AddressInfo struct {
	Address string `json:"address"`
	Network string `json:"network"`
	Type    string `json:"type"`
	Version byte   `json:"version"`
	Hash160 string `json:"hash160"`
}

// EncodeAddress renders a version byte and 20-byte hash160 as a c32check
// address ("S" + version digit + payload-with-checksum).
func EncodeAddress(version byte, hash160 []byte) (string, error) {
	if len(hash160) != 20 {
		return "", fmt.Errorf("hash160 must be 20 bytes, got %d", len(hash160))
	}
	if int(version) >= len(c32Alphabet) {
		return "", ErrUnknownVersion
	}
	data := make([]byte, 0, 24)
	data = append(data, hash160...)
	data = append(data, c32Checksum(version, hash160)...)
	return "S" + string(c32Alphabet[version]) + c32Encode(data), nil
}

// DecodeAddress parses and checksums a c32check address.
func DecodeAddress(addr string) (*AddressInfo, error) {
	normalized := c32Normalize(strings.TrimSpace(addr))
	if len(normalized) <= 5 || normalized[0] != 'S' {
		return nil, ErrInvalidAddress
	}

	versionChar := rune(normalized[1])
	if versionChar >= 128 || c32ValueByChar[versionChar] < 0 {
		return nil, ErrInvalidAddress
	}
	version := byte(c32ValueByChar[versionChar])

	payload, err := c32Decode(normalized[2:])
	if err != nil {
		return nil, err
	}
	if len(payload) != 24 {
		return nil, ErrInvalidAddress
	}

	hash160 := payload[:20]
	if !bytes.Equal(payload[20:], c32Checksum(version, hash160)) {
		return nil, ErrBadChecksum
	}

	info, ok := addressVersionInfo[version]
	if !ok {
		return nil, ErrUnknownVersion
	}

	return &AddressInfo{
		Address: normalized,
		Network: info.network,
		Type:    info.kind,
		Version: version,
		Hash160: hex.EncodeToString(hash160),
	}, nil
}

// ValidateAddress reports whether addr is a well-formed c32check address with
// a known version byte.
func ValidateAddress(addr string) bool {
	_, err := DecodeAddress(addr)
	return err == nil
}

// AddressFromPublicKey derives the c32check address for a serialized
// secp256k1 public key under the given version byte.
func AddressFromPublicKey(pubKey []byte, version byte) (string, error) {
	if len(pubKey) != 33 && len(pubKey) != 65 {
		return "", fmt.Errorf("public key must be 33 or 65 bytes, got %d", len(pubKey))
	}
	return EncodeAddress(version, Hash160(pubKey))
}

// addressForHashMode maps a spending-condition signer to its address. Single
// sig modes use the p2pkh version, everything else the p2sh version.
func addressForHashMode(hashMode byte, mainnet bool, hash160 []byte) string {
	var version byte
	singleSig := hashMode == 0x00 || hashMode == 0x02
	switch {
	case mainnet && singleSig:
		version = VersionMainnetP2PKH
	case mainnet:
		version = VersionMainnetP2SH
	case singleSig:
		version = VersionTestnetP2PKH
	default:
		version = VersionTestnetP2SH
	}
	addr, err := EncodeAddress(version, hash160)
	if err != nil {
		return ""
	}
	return addr
}
