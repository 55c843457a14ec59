package middleware

import (
	"context"
	"time"

	"camcapture/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestObserver receives per-request latency, e.g. a Prometheus collector.
type RequestObserver interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// RequestLoggerMiddleware tags the request context with a request id and the
// capture session id, then logs the request once it completes.
func RequestLoggerMiddleware(cl *logger.ContextLogger, sessionID string, observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
		if sessionID != "" {
			ctx = context.WithValue(ctx, logger.SessionIDKey, sessionID)
		}
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		cl.LogRequest(ctx, c.Request.Method, route, c.Writer.Status(), duration.Milliseconds())
		if observer != nil {
			observer.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), duration)
		}
	}
}
