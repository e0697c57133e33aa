package middleware

import (
	"hero-mint-service/internal/core/domain"

	"github.com/gin-gonic/gin"
)

const maxUserAgentLength = 512

// ClientContext extracts the client details recorded on audit events.
func ClientContext(c *gin.Context) domain.RequestContext {
	ua := c.Request.UserAgent()
	if len(ua) > maxUserAgentLength {
		ua = ua[:maxUserAgentLength]
	}
	return domain.RequestContext{
		IP:        c.ClientIP(),
		UserAgent: ua,
	}
}
