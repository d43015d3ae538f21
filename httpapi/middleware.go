package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// rateLimited enforces §5's per-caller-per-endpoint throttle ahead of a run
// path, responding 429 with a Retry-After hint on denial, per §7's mapping
// of rate-limit denials to 429.
func (s *Server) rateLimited(next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.ClientIP()
		endpoint := c.Param("endpoint")
		if s.limiter != nil && !s.limiter.Allow(caller, endpoint) {
			retryAfter := s.limiter.Reserve(caller, endpoint)
			c.Header("Retry-After", retryAfter.String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		next(c)
	}
}
