// Package hashing holds the digest primitives served by the hashing
// endpoints. Every algorithm matches its on-chain counterpart bit for bit:
// keccak256 is the pre-NIST Keccak used by Clarity, hash160 is
// ripemd160(sha256(x)) as in Stacks addressing.
package hashing

import (
	"crypto/sha256"
	"crypto/sha512"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"

	"github.com/aibtcdev/x402-api/pkg/stacks"
)

// Algorithm pairs a URL slug with its display name and digest function.
type Algorithm struct {
	Slug    string
	Name    string
	Compute func([]byte) []byte
}

var algorithms = map[string]Algorithm{
	"sha256": {
		Slug: "sha256",
		Name: "SHA-256",
		Compute: func(data []byte) []byte {
			sum := sha256.Sum256(data)
			return sum[:]
		},
	},
	"sha512": {
		Slug: "sha512",
		Name: "SHA-512",
		Compute: func(data []byte) []byte {
			sum := sha512.Sum512(data)
			return sum[:]
		},
	},
	"sha512-256": {
		Slug: "sha512-256",
		Name: "SHA-512/256",
		Compute: func(data []byte) []byte {
			sum := sha512.Sum512_256(data)
			return sum[:]
		},
	},
	"keccak256": {
		Slug: "keccak256",
		Name: "Keccak-256",
		Compute: func(data []byte) []byte {
			return ethcrypto.Keccak256(data)
		},
	},
	"hash160": {
		Slug:    "hash160",
		Name:    "Hash160",
		Compute: stacks.Hash160,
	},
	"ripemd160": {
		Slug: "ripemd160",
		Name: "RIPEMD-160",
		Compute: func(data []byte) []byte {
			h := ripemd160.New()
			h.Write(data)
			return h.Sum(nil)
		},
	},
}

// Lookup resolves an algorithm by its URL slug.
func Lookup(slug string) (Algorithm, bool) {
	a, ok := algorithms[slug]
	return a, ok
}

// Slugs lists the supported algorithm slugs in stable order.
func Slugs() []string {
	out := make([]string, 0, len(algorithms))
	for slug := range algorithms {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
