// Package middleware provides HTTP middleware functions for request logging and processing.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/cadence/internal/logger"
)

const (
	// RequestIDHeader carries the request id in requests and responses
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
)

// RequestID assigns every request an id, reusing the one sent by the client
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or an empty string
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger returns a Gin middleware for logging HTTP requests
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Log.Info().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")

		// Log errors separately if any occurred during request processing
		if len(c.Errors) > 0 {
			logger.Log.Error().
				Str("request_id", GetRequestID(c)).
				Strs("errors", c.Errors.Errors()).
				Str("path", path).
				Msg("Request completed with errors")
		}
	}
}
