package tracing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/territorial/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens a server span per request, continuing any remote
// parent found in the headers.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("territorial/http")
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route != "" {
			span.SetName(c.Request.Method + " " + route)
		}
		status := c.Writer.Status()
		span.SetAttributes(
			attribute.String("http.request.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
			attribute.String("request_id", obscontext.RequestIDFromContext(ctx)),
		)
		if status < http.StatusInternalServerError {
			return
		}
		if last := c.Errors.Last(); last != nil {
			span.RecordError(SafeError(last.Err))
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// Attributes that could carry business record contents.
var blockedAttributeKeys = map[attribute.Key]struct{}{
	"assignable_id": {},
	"record.fields": {},
}

// SafeAttributes drops attributes that could carry record contents.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := attrs[:0:0]
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; !blocked {
			out = append(out, attr)
		}
	}
	return out
}

// SafeError keeps only the error text, detaching wrapped values.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(err.Error())
}
