// Package response renders the gateway's uniform JSON bodies. Every response
// carries ok; requests that passed token selection also echo the tokenType,
// success or failure.
package response

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
)

// TokenTypeKey is the gin context key the payment middleware binds the
// request's entities.TokenType under. Living here keeps the middleware and
// handlers from importing each other.
const TokenTypeKey = "payment_token_type"

func tokenType(c *gin.Context) string {
	v, ok := c.Get(TokenTypeKey)
	if !ok {
		return ""
	}
	if t, ok := v.(entities.TokenType); ok {
		return string(t)
	}
	return ""
}

// OK sends a success body: {ok: true, tokenType?, ...data}.
func OK(c *gin.Context, status int, data gin.H) {
	body := gin.H{"ok": true}
	if t := tokenType(c); t != "" {
		body["tokenType"] = t
	}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(status, body)
}

// Error sends the uniform error body; non-AppErrors map to 500.
func Error(c *gin.Context, err error) {
	appErr := domainerrors.AsAppError(err)
	c.JSON(appErr.Status, errorBody(c, appErr.Message, appErr.Code))
}

// AbortError is Error plus request abortion, for middleware use.
func AbortError(c *gin.Context, err error) {
	appErr := domainerrors.AsAppError(err)
	c.AbortWithStatusJSON(appErr.Status, errorBody(c, appErr.Message, appErr.Code))
}

// AbortSettlementError renders a classified settlement failure, attaching
// the Retry-After hint when the taxonomy carries one.
func AbortSettlementError(c *gin.Context, serr *domainerrors.SettlementError) {
	if serr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(serr.RetryAfter))
	}
	body := errorBody(c, serr.Reason, string(serr.Kind))
	if body["error"] == "" {
		body["error"] = "settlement failed"
	}
	c.AbortWithStatusJSON(serr.Status, body)
}

func errorBody(c *gin.Context, message, code string) gin.H {
	body := gin.H{"ok": false, "error": message, "code": code}
	if t := tokenType(c); t != "" {
		body["tokenType"] = t
	}
	return body
}
