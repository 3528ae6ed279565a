package httptracer

import (
	"context"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"
)

//nolint:gochecknoglobals
var noopProvider = trace.NewNoopTracerProvider()

// SpanFromContext retrieves the currently-executing Span stored in the
// context, if any, or a no-op Span. Inside an instrumented handler, this is
// the SERVER span of the inbound exchange.
func SpanFromContext(ctx context.Context) Span { return trace.SpanFromContext(ctx) }

// TracerProviderFromContext retrieves the TracerProvider the current Span
// in the context was created by, or, if there is none (the no-op provider),
// the global from GetGlobalTracerProvider(). New exchanges chain onto the
// ambient span's provider this way.
func TracerProviderFromContext(ctx context.Context) TracerProvider {
	if spanTp := SpanFromContext(ctx).TracerProvider(); !isNoop(spanTp) {
		return spanTp
	}
	return GetGlobalTracerProvider()
}

func isNoop(tp TracerProvider) bool { return tp == noopProvider }

// ContextWithLogger injects the given Logger into a new context descending
// from parent. Instrumented exchanges starting from the returned context
// resolve their Logger from it, unless one was pinned on the Builder.
func ContextWithLogger(parent context.Context, log Logger) context.Context {
	return logr.NewContext(parent, log)
}
