package middleware

import (
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "laundry.auth.http"

// headerCarrier adapts request headers to propagation.TextMapCarrier.
type headerCarrier struct{ c *fiber.Ctx }

func (h headerCarrier) Get(key string) string { return h.c.Get(key) }

func (h headerCarrier) Set(key, value string) { h.c.Request().Header.Set(key, value) }

func (h headerCarrier) Keys() []string {
	keys := make([]string, 0, 8)
	for k := range h.c.GetReqHeaders() {
		keys = append(keys, k)
	}
	return keys
}

// Tracing starts a server span per request, continuing any W3C trace context sent by the
// client. Nil arguments fall back to the global provider and propagator.
func Tracing(tp trace.TracerProvider, prop propagation.TextMapPropagator) fiber.Handler {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}
	tracer := tp.Tracer(tracerName)
	return func(c *fiber.Ctx) error {
		ctx := prop.Extract(c.UserContext(), headerCarrier{c})
		ctx, span := tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("url.path", c.Path()),
			))
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()
		status := responseStatus(c, err)
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if route := c.Route(); route != nil && route.Path != "" {
			span.SetName(c.Method() + " " + route.Path)
		}
		if status >= fiber.StatusInternalServerError {
			if err != nil {
				span.RecordError(err)
			}
			span.SetStatus(codes.Error, "")
		}
		return err
	}
}
