package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradeflow-api/internal/service"
)

// AuditMeta attaches the client address and user agent to the request context
// so audit entries written by services can carry them.
func AuditMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithRequestMeta(c.Request.Context(), service.RequestMeta{
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
