package middleware

import (
	"net/http"

	"botrelay/internal/microservices/http-api/dto"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"google.golang.org/genproto/googleapis/rpc/code"
)

// RateLimit rejects requests beyond a process-wide token bucket with 429.
// A non-positive rps disables the limiter.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(code.Code_RESOURCE_EXHAUSTED.String()))
			return
		}
		c.Next()
	}
}
