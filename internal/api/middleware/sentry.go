package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/logger"
	"github.com/Conceptual-Machines/magda-composer/internal/metrics"
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	httpStatusInternalServerError = http.StatusInternalServerError
	sentryFlushTimeout            = 2 * time.Second
	requestIDHeader               = "X-Request-ID"
)

// RequestTracking tags the request with an ID (reusing X-Request-ID when the
// caller sent one), logs its outcome and records API metrics.
func RequestTracking(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		status := c.Writer.Status()
		logger.LogAPIRequest(c, duration, status, nil)

		recorder.RecordAPIRequest(c.Request.Context(), c.FullPath(), status, duration)
	}
}

// SentryMiddleware attaches a Sentry hub to every request.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true, Timeout: sentryFlushTimeout})
}

// RecoverWithSentry turns a handler panic into a 500 and reports it.
func RecoverWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			reportPanic(c, recovered)
			c.AbortWithStatusJSON(httpStatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"request_id": c.GetString("request_id"),
			})
		}()
		c.Next()
	}
}

func reportPanic(c *gin.Context, recovered interface{}) {
	requestID := c.GetString("request_id")
	logger.Error("Panic recovered", fmt.Errorf("%v", recovered), logger.Fields{
		"request_id": requestID,
		"path":       c.Request.URL.Path,
	})

	hub := sentrygin.GetHubFromContext(c)
	if hub == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(c.Request)
		scope.SetTag("request_id", requestID)
		scope.SetUser(sentry.User{ID: UserID(c)})
		hub.RecoverWithContext(c.Request.Context(), recovered)
	})
}
