package middleware

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
)

const (
	requestIDHeader     = "X-Request-Id"
	ContextRequestIDKey = "request_id"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = newRequestID()
		}
		c.Writer.Header().Set(requestIDHeader, reqID)
		c.Set(ContextRequestIDKey, reqID)
		c.Next()
	}
}

func newRequestID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
