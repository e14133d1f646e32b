package middleware

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
)

const (
	ContextRequestIDKey = "request_id"
	headerRequestID     = "X-Request-Id"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 64 {
			buf := make([]byte, 8)
			_, _ = rand.Read(buf)
			id = hex.EncodeToString(buf)
		}
		c.Set(ContextRequestIDKey, id)
		c.Writer.Header().Set(headerRequestID, id)
		c.Next()
	}
}
