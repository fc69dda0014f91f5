package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	obscontext "github.com/smallbiznis/territorial/internal/observability/context"
	"go.uber.org/zap"
)

const (
	ActorHeader     = "X-Actor-Id"
	RequestIDHeader = "X-Request-Id"
)

type MiddlewareConfig struct {
	Log   *zap.Logger
	Debug bool
	// ErrorClassifier maps a handler error to (error_type, error_code) log
	// fields. Error messages are never logged.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware puts the request id and actor on the request context and
// writes one log line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	base := cfg.Log
	if base == nil {
		base = zap.L()
	}
	base = base.Named("http")

	return func(c *gin.Context) {
		start := time.Now()

		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = ulid.Make().String()
		}
		c.Header(RequestIDHeader, requestID)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx = obscontext.WithActor(ctx, c.GetHeader(ActorHeader))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if last := c.Errors.Last(); last != nil && cfg.ErrorClassifier != nil {
			errType, errCode := cfg.ErrorClassifier(last.Err)
			fields = append(fields, zap.String("error_type", errType), zap.String("error_code", errCode))
			if cfg.Debug && errType == "internal" {
				fields = append(fields, zap.String("error", last.Err.Error()))
			}
		}

		log := WithContext(c.Request.Context(), base)
		switch {
		case route == "/health" || route == "/metrics":
			log.Debug("request", fields...)
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
