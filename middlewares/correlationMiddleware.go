package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pricing_backend/utils"
)

const CorrelationHeader = "X-Correlation-Id"

// CorrelationMiddleware propagates X-Correlation-Id, generating one when absent.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.Request.Header.Get(CorrelationHeader); id != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, id)
		}
		ctx, id := utils.EnsureCorrelationId(ctx)
		c.Header(CorrelationHeader, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
