package loom

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/loomhq/loom"

// TraceConfig configures the Trace middleware.
type TraceConfig struct {
	TracerProvider trace.TracerProvider          // default: otel.GetTracerProvider()
	Propagator     propagation.TextMapPropagator // default: otel.GetTextMapPropagator()
}

// Trace returns middleware that opens a server span per request. Incoming
// trace context is extracted from the request headers and the span context
// is installed on the request for downstream stages. The span is named by
// the matched route pattern to keep names low-cardinality.
func Trace(cfg ...TraceConfig) Middleware {
	var conf TraceConfig
	if len(cfg) > 0 {
		conf = cfg[0]
	}
	tp := conf.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	prop := conf.Propagator
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}
	tracer := tp.Tracer(tracerName)

	return func(c *Context, next Next) error {
		ctx := prop.Extract(c.Context(), propagation.HeaderCarrier(c.Headers()))

		name := c.Method()
		if route := c.RoutePattern(); route != "" {
			name = c.Method() + " " + route
		}

		ctx, span := tracer.Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("url.path", c.Path()),
				attribute.String("http.route", c.RoutePattern()),
			),
		)
		defer span.End()
		c.WithContext(ctx)

		err := next()

		status := c.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if err != nil {
			status = statusForError(err)
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		return err
	}
}
