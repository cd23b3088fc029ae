package handlers

import (
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/response"
	"github.com/aibtcdev/x402-api/pkg/hashing"
)

type hashRequest struct {
	Data     string `json:"data"`
	Encoding string `json:"encoding"`
}

// Hash returns a handler that digests the request data with the given
// algorithm. Data prefixed with 0x is decoded as hex, anything else is
// hashed as UTF-8 bytes. The digest is encoded per the requested output
// encoding, hex by default.
func Hash(algo hashing.Algorithm) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req hashRequest
		if !bindJSON(c, &req) {
			return
		}

		input, err := decodeHashInput(req.Data)
		if err != nil {
			response.Error(c, err)
			return
		}

		encoding := strings.ToLower(req.Encoding)
		if encoding == "" {
			encoding = "hex"
		}

		digest := algo.Compute(input)
		var encoded string
		switch encoding {
		case "hex":
			encoded = hex.EncodeToString(digest)
		case "base64":
			encoded = base64.StdEncoding.EncodeToString(digest)
		default:
			response.Error(c, domainerrors.BadRequest("unsupported encoding: "+req.Encoding))
			return
		}

		response.OK(c, http.StatusOK, gin.H{
			"hash":        encoded,
			"algorithm":   algo.Name,
			"encoding":    encoding,
			"inputLength": len(input),
		})
	}
}

func decodeHashInput(data string) ([]byte, error) {
	if strings.HasPrefix(data, "0x") || strings.HasPrefix(data, "0X") {
		raw, err := hex.DecodeString(data[2:])
		if err != nil {
			return nil, domainerrors.BadRequest("invalid hex data: " + err.Error())
		}
		return raw, nil
	}
	return []byte(data), nil
}
