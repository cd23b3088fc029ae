package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
)

// applyCORSMiddleware opens the API to browser agents. Payment happens per
// request, so there is no cookie session to shield; the payment headers must
// be readable or a browser client cannot complete the 402 handshake.
func applyCORSMiddleware(r *gin.Engine) {
	allowHeaders := strings.Join([]string{
		"Content-Type",
		"Authorization",
		entities.HeaderPaymentSignature,
		entities.HeaderPaymentTokenType,
		entities.HeaderPaymentLegacy,
	}, ", ")
	exposeHeaders := strings.Join([]string{
		entities.HeaderPaymentRequired,
		entities.HeaderPaymentResponse,
		entities.HeaderPaymentPayer,
		entities.HeaderPaymentResponseLegacy,
		"Retry-After",
	}, ", ")

	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", allowHeaders)
		c.Header("Access-Control-Expose-Headers", exposeHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}
