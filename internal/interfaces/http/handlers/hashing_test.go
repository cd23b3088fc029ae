package handlers

import (
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibtcdev/x402-api/pkg/hashing"
)

func hashRouter(t *testing.T, slug string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	algo, ok := hashing.Lookup(slug)
	require.True(t, ok, "unknown algorithm %s", slug)

	r := gin.New()
	r.POST("/hashing/"+slug, Hash(algo))
	return r
}

func TestHash_ReferenceVectors(t *testing.T) {
	tests := []struct {
		slug      string
		data      string
		wantHash  string
		wantName  string
		wantInput float64
	}{
		{"sha256", "hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", "SHA-256", 11},
		{"sha512", "abc", "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f", "SHA-512", 3},
		{"sha512-256", "abc", "53048e2681941ef99b2e29b76b4c7dabe4c2d0c634fc6d46e0e2f13107e7af23", "SHA-512/256", 3},
		{"keccak256", "", "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", "Keccak-256", 0},
		{"keccak256", "hello world", "47173285a8d7341e5e972fc677286384f802f8ef42a5ec5f03bbfa254cb01fad", "Keccak-256", 11},
		{"hash160", "", "b472a266d0bd89c13706a4132ccfb16f7c3b9fcb", "Hash160", 0},
		{"hash160", "hello world", "d7d5ee7824ff93f94c3055af9382c86c68b5ca92", "Hash160", 11},
		{"ripemd160", "", "9c1185a5c5e9fc54612808977ee8f548b2258d31", "RIPEMD-160", 0},
	}

	for _, tt := range tests {
		t.Run(tt.slug+"/"+tt.data, func(t *testing.T) {
			r := hashRouter(t, tt.slug)
			w := performJSON(r, http.MethodPost, "/hashing/"+tt.slug, gin.H{"data": tt.data})

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			body := decodeJSONMap(t, w)
			assert.Equal(t, true, body["ok"])
			assert.Equal(t, tt.wantHash, body["hash"])
			assert.Equal(t, tt.wantName, body["algorithm"])
			assert.Equal(t, "hex", body["encoding"])
			assert.Equal(t, tt.wantInput, body["inputLength"])
		})
	}
}

func TestHash_HexInputMatchesUTF8(t *testing.T) {
	r := hashRouter(t, "sha256")

	// 0x68656c6c6f20776f726c64 is "hello world"
	w := performJSON(r, http.MethodPost, "/hashing/sha256", gin.H{"data": "0x68656c6c6f20776f726c64"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSONMap(t, w)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", body["hash"])
	assert.Equal(t, float64(11), body["inputLength"])
}

func TestHash_Base64Output(t *testing.T) {
	r := hashRouter(t, "sha256")

	w := performJSON(r, http.MethodPost, "/hashing/sha256", gin.H{"data": "hello world", "encoding": "base64"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSONMap(t, w)
	assert.Equal(t, "base64", body["encoding"])

	raw, err := base64.StdEncoding.DecodeString(body["hash"].(string))
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", hex.EncodeToString(raw))
}

func TestHash_BadInputs(t *testing.T) {
	r := hashRouter(t, "sha256")

	w := performJSON(r, http.MethodPost, "/hashing/sha256", gin.H{"data": "0xzz"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid hex data")

	w = performJSON(r, http.MethodPost, "/hashing/sha256", gin.H{"data": "hi", "encoding": "utf7"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported encoding")

	req := performJSON(r, http.MethodPost, "/hashing/sha256", nil)
	assert.Equal(t, http.StatusBadRequest, req.Code)
}
