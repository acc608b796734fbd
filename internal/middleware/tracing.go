package middleware

import (
	"context"
	"fmt"

	"warden/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceHeader echoes the request's trace id so a moderator report can be
// matched to its spans.
const TraceHeader = "X-Trace-ID"

// TracingMiddleware opens a server span per request, continuing any W3C
// trace context sent by the content domain. The span is renamed to the
// matched route once routing is done, so case ids never reach span names.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("url.path", c.Path()),
				attribute.String("client.address", c.IP()),
				attribute.String("user_agent.original", c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		if tid := observability.TraceIDFrom(ctx); tid != "" {
			ctx = context.WithValue(ctx, TraceIDKey, tid)
			c.Set(TraceHeader, tid)
		}
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.SetUserContext(ctx)

		err := c.Next()

		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
			span.RecordError(err)
		}
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		)
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		}
		if actor := ActorID(c); actor != "" {
			span.SetAttributes(attribute.String("actor.id", actor))
		}
		if role, ok := c.Locals(RoleLocal).(string); ok && role != "" {
			span.SetAttributes(attribute.String("actor.role", role))
		}
		return err
	}
}
