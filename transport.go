package httptracer

import (
	"io"
	"net/http"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// RoundTripperFunc adapts a plain function to the http.RoundTripper
// interface, in the spirit of http.HandlerFunc.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// roundTripper is the outbound interception layer; an explicit decorator
// around the http.RoundTripper that actually issues the request.
type roundTripper struct {
	base http.RoundTripper
	cfg  *config
}

var _ http.RoundTripper = &roundTripper{}

// RoundTrip traces one outbound exchange around the wrapped RoundTripper.
//
// Ignored URLs delegate straight through; no span, no context mutation.
// Otherwise a CLIENT span is opened before the transport is handed the
// request ("open first, resolve outcome after"), trace context is injected
// into a cloned request, and every way the exchange can end is mapped onto
// the single terminal transition of the exchange.
func (t *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if t.cfg.ignoreOutgoing.Ignores(req.URL.String(), t.cfg.logger(ctx)) {
		return t.base.RoundTrip(req)
	}

	ctx, ex := t.cfg.startExchange(ctx, req,
		trace.SpanKindClient,
		spanName(req.URL.Scheme, requestMethod(req)),
		clientRequestAttrs(req))

	// Clone before mutating headers; the RoundTripper contract forbids
	// modifying the caller's request. The clone carries the new span as
	// its context, so the transport observes it as current.
	req = req.Clone(ctx)
	t.cfg.propagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		// Transport error, timeout, or caller abort during the round
		// trip; the error passes through to the caller unmodified.
		ex.endWithError(err)
		return resp, err
	}

	ex.resp = resp
	ex.span.SetAttributes(statusCodeAttr(resp.StatusCode))

	// Responses that can never carry data end here; there is no body
	// event left to wait for.
	if resp.Body == nil || resp.Body == http.NoBody ||
		req.Method == http.MethodHead || resp.ContentLength == 0 {
		ex.endWithStatus(resp.StatusCode)
		return resp, nil
	}

	// Defer the end transition to the response stream: EOF, a read error,
	// or a premature close all end the span, first one wins.
	resp.Body = &trackedBody{body: resp.Body, ex: ex, want: resp.ContentLength}

	// A consumer may abandon the body without ever reading or closing it;
	// then cancellation of the request context is the last terminal event
	// left, and no body listener will observe it.
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				ex.endWithError(ctx.Err())
			case <-ex.done:
			}
		}()
	}
	return resp, nil
}

// trackedBody observes the response stream of an outbound exchange so that
// the span ends exactly once no matter how the consumer treats the body.
type trackedBody struct {
	body io.ReadCloser
	ex   *exchange

	// want is the declared content length, or -1 when unknown.
	want   int64
	read   int64
	sawEOF bool
}

var _ io.ReadCloser = &trackedBody{}

func (b *trackedBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	b.read += int64(n)

	switch {
	case err == io.EOF:
		// Normal end of the response stream.
		b.sawEOF = true
		b.ex.endWithStatus(b.ex.resp.StatusCode)
	case err != nil:
		// Connection reset, timeout, or context cancellation while
		// streaming the body.
		b.ex.endWithError(err)
	}
	return n, err
}

func (b *trackedBody) Close() error {
	err := b.body.Close()
	if b.drained() {
		b.ex.endWithStatus(b.ex.resp.StatusCode)
	} else {
		// The consumer tore the stream down before it ended; a distinct
		// condition from a clean completion.
		b.ex.end(codes.Error, "response body closed before end of stream")
	}
	return err
}

// drained reports whether the full response was consumed before Close.
func (b *trackedBody) drained() bool {
	return b.sawEOF || (b.want >= 0 && b.read >= b.want)
}
