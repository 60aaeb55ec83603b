package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the HTTP header used to propagate the request identifier.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key holding the request ID. The audit interceptor
	// copies it into every entry's metadata.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware ensures every request carries an identifier. An inbound
// X-Request-ID is reused unchanged; otherwise a UUID v4 is generated. The id is stored
// under RequestIDKey and echoed in the response header.
//
// Register it before the logger and the audit interceptor so both see the id:
//
//	router.Use(gin.Recovery())
//	router.Use(RequestIDMiddleware())
//	router.Use(MetricsMiddleware())
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}

// RequestID returns the current request's id, or "" outside RequestIDMiddleware
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
