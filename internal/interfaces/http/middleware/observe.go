package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
)

// RequestObserver receives one record per completed request for the
// process-global counters and the recent-request ring.
type RequestObserver interface {
	ObserveRequest(rec entities.RequestRecord)
}

// Observe reports each completed request on spec's route to the observer,
// including settlement facts when the payment gate bound them.
func Observe(spec entities.EndpointSpec, observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if observer == nil {
			return
		}
		rec := entities.RequestRecord{
			Method:   spec.Method,
			Path:     spec.Path,
			Status:   c.Writer.Status(),
			Payer:    PayerAddress(c),
			At:       time.Now().UTC(),
			Category: spec.Category,
		}
		if est := Estimate(c); est != nil {
			rec.Token = est.Token
			rec.Amount = est.AmountString()
		}
		observer.ObserveRequest(rec)
	}
}
