package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/invoicer/internal/observability/context"
	"github.com/smallbiznis/invoicer/internal/usercontext"
	"github.com/smallbiznis/invoicer/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "invoicer/http"

// GinMiddleware opens a server span per request. The span is renamed to the matched
// route once routing is done, and carries the owner and invoice ids when known.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		ctx = withRequestBaggage(ctx, span)
		c.Request = c.Request.WithContext(ctx)
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		if userID, ok := usercontext.UserIDFromContext(c.Request.Context()); ok {
			attrs = append(attrs, attribute.String("invoicer.user_id", userID.String()))
		}
		if id := c.Param("id"); id != "" && strings.HasPrefix(route, "/api/invoices") {
			attrs = append(attrs, attribute.String("invoicer.invoice_id", id))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if c.Writer.Status() >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

// withRequestBaggage copies the request and correlation ids onto the span and into
// baggage so downstream calls can pick them up.
func withRequestBaggage(ctx context.Context, span trace.Span) context.Context {
	var members []baggage.Member
	for key, value := range map[string]string{
		"request_id":     obscontext.RequestIDFromContext(ctx),
		"correlation_id": correlation.ExtractCorrelationID(ctx),
	} {
		if value == "" {
			continue
		}
		span.SetAttributes(attribute.String(key, value))
		if member, err := baggage.NewMember(key, value); err == nil {
			members = append(members, member)
		}
	}
	if len(members) == 0 {
		return ctx
	}
	bag, err := baggage.New(members...)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
