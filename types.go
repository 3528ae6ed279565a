package httptracer

import (
	"net/http"

	"github.com/go-logr/logr"
	"github.com/luxas/deklarative/httptracer/zaplog"
	"go.opentelemetry.io/otel/trace"
)

type (
	// TracerProvider is a symbolic link to trace.TracerProvider.
	TracerProvider = trace.TracerProvider
	// Span is a symbolic link to trace.Span.
	Span = trace.Span
	// Logger is a symbolic link to logr.Logger.
	Logger = logr.Logger
)

// instrumentationName is the tracer name all exchange spans are created under.
const instrumentationName = "github.com/luxas/deklarative/httptracer"

// SpanCallback is invoked exactly once per exchange, with the live Span,
// right before the span is ended. It can add or override custom attributes
// based on the raw request and, when available, the response. resp is nil
// for server-side exchanges and for outbound exchanges that failed before
// any response headers arrived.
//
// A panicking callback is recovered and logged; it never prevents the span
// from being ended.
type SpanCallback func(span Span, req *http.Request, resp *http.Response)

// ZapLogger is a shorthand for zaplog.NewZap().
//
// Refer to the zaplog package for usage details and examples.
func ZapLogger() *zaplog.Builder { return zaplog.NewZap() }
