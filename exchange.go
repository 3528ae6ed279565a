package httptracer

import (
	"context"
	"net/http"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// exchange tracks one observed request/response pair from span open to span
// end. It is owned exclusively by the interception layer that created it and
// is never shared across exchanges.
//
// Several listeners may observe terminal events for the same exchange (end
// of the response stream, a transport error, an abort, a premature body
// close); whichever fires first wins the one-shot end guard, and every later
// one becomes inert. At most one span end is ever issued.
type exchange struct {
	span     Span
	log      Logger
	callback SpanCallback

	req  *http.Request
	resp *http.Response

	// ended flips from 0 to 1 exactly once, on the first terminal event.
	ended int32
	// done is closed by the terminal transition that won the guard, so
	// listeners waiting for a terminal event can stop.
	done chan struct{}
}

// startExchange opens the span for a new exchange and binds the two
// together. The returned context carries the new span as current, so work
// nested under the exchange observes it as the ambient parent.
func (c *config) startExchange(ctx context.Context, req *http.Request, kind trace.SpanKind,
	name string, attrs []attribute.KeyValue) (context.Context, *exchange) {
	log := c.logger(ctx)

	ctx, span := c.tracer(ctx).Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...))
	if c.logSpans {
		span = newLoggingSpan(span, log.WithName(name))
		ctx = trace.ContextWithSpan(ctx, span)
	}

	return ctx, &exchange{
		span:     span,
		log:      log,
		callback: c.callback,
		req:      req,
		done:     make(chan struct{}),
	}
}

// end performs the single OPEN -> ENDED transition. The custom-attribute
// callback runs against the still-live span, then the status is applied and
// the span is ended. Only the first call has any effect; the return value
// reports whether this call was the one that ended the exchange.
func (e *exchange) end(code codes.Code, description string) bool {
	if !atomic.CompareAndSwapInt32(&e.ended, 0, 1) {
		return false
	}
	e.invokeCallback()
	e.span.SetStatus(code, description)
	e.span.End()
	close(e.done)
	return true
}

// endWithStatus ends the exchange from a fully received (or fully written)
// response with the given HTTP status code.
func (e *exchange) endWithStatus(status int) bool {
	code, description := spanStatusFromCode(status)
	return e.end(code, description)
}

// endWithError ends the exchange from a transport-level error or a
// caller-initiated abort. The error is recorded on the span and the error
// itself still propagates to the caller through the normal error channel,
// unmodified.
func (e *exchange) endWithError(err error) bool {
	if !atomic.CompareAndSwapInt32(&e.ended, 0, 1) {
		return false
	}
	e.invokeCallback()
	e.span.RecordError(err)
	e.span.SetStatus(codes.Error, err.Error())
	e.span.End()
	close(e.done)
	return true
}

// invokeCallback runs the user callback, if any, guarding the exchange
// against a panicking callback. A failed callback only skips the remaining
// custom attributes; it never prevents span completion.
func (e *exchange) invokeCallback() {
	if e.callback == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			e.log.Error(panicError(p), "span callback panicked; span ends without custom attributes")
		}
	}()
	e.callback(e.span, e.req, e.resp)
}
