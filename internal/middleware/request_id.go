package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request.id"
	maxRequestIDLen = 128
)

// RequestID echoes a caller-supplied X-Request-Id, or mints a UUID when the
// header is missing or oversized.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		c.Next()
	}
}

func CurrentRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
