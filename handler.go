package httptracer

import (
	"bufio"
	"errors"
	"net"
	"net/http"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// errHijackUnsupported is returned by statusWriter.Hijack when the wrapped
// http.ResponseWriter does not implement http.Hijacker.
var errHijackUnsupported = errors.New("the wrapped http.ResponseWriter does not support hijacking")

// handler is the inbound interception layer; an explicit decorator around
// the http.Handler that dispatches incoming requests to server logic.
type handler struct {
	next http.Handler
	cfg  *config
}

var _ http.Handler = &handler{}

// ServeHTTP traces one inbound exchange around the wrapped handler.
//
// Ignored paths dispatch straight through with no span and no context
// change. Otherwise the remote parent is extracted from the incoming
// headers (absent or malformed headers start a new root), a SERVER span is
// opened and set as the request context for the scope of the handler, and
// the exchange ends exactly once when the response has been emitted;
// also when the handler panics, in which case the panic continues to the
// server untouched.
func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.ignoreIncoming.Ignores(r.URL.Path, h.cfg.logger(r.Context())) {
		h.next.ServeHTTP(w, r)
		return
	}

	ctx := h.cfg.propagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, ex := h.cfg.startExchange(ctx, r,
		trace.SpanKindServer,
		spanName(schemeOf(r), requestMethod(r)),
		serverRequestAttrs(r, h.cfg.serverName))

	ww := &statusWriter{ResponseWriter: w}
	defer func() {
		if p := recover(); p != nil {
			ex.end(codes.Error, "handler panicked before the response was finished")
			panic(p)
		}
		ex.span.SetAttributes(statusCodeAttr(ww.statusCode()))
		ex.endWithStatus(ww.statusCode())
	}()

	h.next.ServeHTTP(ww, r.WithContext(ctx))
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// statusWriter captures the status code written by the handler; the span
// outcome can only be derived once the response has been emitted.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(p)
}

// Flush passes through to the wrapped writer, keeping streaming handlers
// working unchanged.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the underlying connection over to the handler, as needed
// for e.g. WebSocket upgrades. The wrapper must not hide capabilities of
// the wrapped writer; a handler behaves the same with or without tracing.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errHijackUnsupported
	}
	return hj.Hijack()
}

// Push initiates an HTTP/2 server push through the wrapped writer.
func (w *statusWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := w.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

// statusCode resolves the effective status; a handler that never writes
// implicitly responds 200, as in net/http.
func (w *statusWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
