package httptracer

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHandlerOK(t *testing.T) {
	buf, tp := newCaptureTP(t)

	h := Instrument().WithTracerProvider(tp).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "ok")
		}))

	req := httptest.NewRequest(http.MethodGet, "/ping?x=1", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	spans := capturedSpans(t, buf)
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "HTTP GET", span.Name)
	require.NotNil(t, span.StartConfig)
	assert.Equal(t, "server", span.StartConfig.SpanKind)
	assert.Equal(t, "/ping?x=1", attrValue(t, span.StartConfig.Attributes, "http.target"))
	assert.Equal(t, "203.0.113.7", attrValue(t, span.StartConfig.Attributes, "http.client_ip"))
	assert.EqualValues(t, 200, attrValue(t, span.Attributes, "http.status_code"))
	require.Len(t, span.StatusChanges, 1)
	assert.Equal(t, "Ok", span.StatusChanges[0].Code)
}

func TestHandlerErrorStatus(t *testing.T) {
	buf, tp := newCaptureTP(t)

	h := Instrument().WithTracerProvider(tp).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

	spans := capturedSpans(t, buf)
	require.Len(t, spans, 1)
	assert.EqualValues(t, 500, attrValue(t, spans[0].Attributes, "http.status_code"))
	require.Len(t, spans[0].StatusChanges, 1)
	assert.Equal(t, "Error", spans[0].StatusChanges[0].Code)
	assert.Equal(t, "Internal Server Error", spans[0].StatusChanges[0].Description)
}

func TestHandlerImplicitOK(t *testing.T) {
	buf, tp := newCaptureTP(t)

	// A handler that never writes implicitly responds 200.
	h := Instrument().WithTracerProvider(tp).Handler(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/noop", nil))

	spans := capturedSpans(t, buf)
	require.Len(t, spans, 1)
	assert.EqualValues(t, 200, attrValue(t, spans[0].Attributes, "http.status_code"))
	require.Len(t, spans[0].StatusChanges, 1)
	assert.Equal(t, "Ok", spans[0].StatusChanges[0].Code)
}

func TestHandlerIgnored(t *testing.T) {
	buf, tp := newCaptureTP(t)

	var ambient trace.SpanContext
	h := Instrument().
		WithTracerProvider(tp).
		IgnoreIncoming(IgnoreExact("/healthz")).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ambient = trace.SpanContextFromContext(r.Context())
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	// No span, and no span leaked into the handler's context either.
	assert.Empty(t, capturedSpans(t, buf))
	assert.False(t, ambient.IsValid())
}

func TestHandlerRemoteParent(t *testing.T) {
	buf, tp := newCaptureTP(t)

	const parentTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	var gotTraceID trace.TraceID
	h := Instrument().
		WithTracerProvider(tp).
		WithPropagator(propagation.TraceContext{}).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotTraceID = trace.SpanContextFromContext(r.Context()).TraceID()
		}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", "00-"+parentTraceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// The inbound exchange continues the remote trace instead of starting
	// a new root.
	assert.Equal(t, parentTraceID, gotTraceID.String())
	assert.Len(t, capturedSpans(t, buf), 1)
}

func TestHandlerMalformedParent(t *testing.T) {
	buf, tp := newCaptureTP(t)

	var gotTraceID trace.TraceID
	h := Instrument().
		WithTracerProvider(tp).
		WithPropagator(propagation.TraceContext{}).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotTraceID = trace.SpanContextFromContext(r.Context()).TraceID()
		}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", "not-a-valid-traceparent")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// A malformed header starts a fresh root trace instead of failing.
	assert.True(t, gotTraceID.IsValid())
	assert.Len(t, capturedSpans(t, buf), 1)
}

func TestHandlerServerName(t *testing.T) {
	buf, tp := newCaptureTP(t)

	h := Instrument().
		WithTracerProvider(tp).
		WithServerName("my-alias").
		Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	spans := capturedSpans(t, buf)
	require.Len(t, spans, 1)
	assert.Equal(t, "my-alias", attrValue(t, spans[0].StartConfig.Attributes, "http.server_name"))
}

func TestHandlerPanic(t *testing.T) {
	buf, tp := newCaptureTP(t)

	h := Instrument().WithTracerProvider(tp).Handler(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("kaboom")
		}))

	rec := httptest.NewRecorder()
	// The panic propagates to the server untouched, but the span has been
	// ended first.
	require.Panics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})

	spans := capturedSpans(t, buf)
	require.Len(t, spans, 1)
	require.Len(t, spans[0].StatusChanges, 1)
	assert.Equal(t, "Error", spans[0].StatusChanges[0].Code)
	assert.Equal(t, "handler panicked before the response was finished", spans[0].StatusChanges[0].Description)
}

// hijackRecorder is a ResponseRecorder whose connection can be hijacked,
// like the writer a real server hands to a WebSocket-upgrading handler.
type hijackRecorder struct {
	*httptest.ResponseRecorder
	conn net.Conn
}

func (r *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	rw := bufio.NewReadWriter(bufio.NewReader(r.conn), bufio.NewWriter(r.conn))
	return r.conn, rw, nil
}

func TestHandlerHijack(t *testing.T) {
	_, tp := newCaptureTP(t)

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	// A connection upgrade must work exactly as it does without tracing.
	h := Instrument().WithTracerProvider(tp).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, rw, err := hj.Hijack()
			require.NoError(t, err)
			assert.NotNil(t, rw)
			assert.Same(t, net.Conn(server), conn)
		}))

	rec := &hijackRecorder{httptest.NewRecorder(), server}
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
}

func TestHandlerHijackUnsupported(t *testing.T) {
	_, tp := newCaptureTP(t)

	h := Instrument().WithTracerProvider(tp).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// httptest.ResponseRecorder is not an http.Hijacker.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			_, _, err := hj.Hijack()
			assert.ErrorIs(t, err, errHijackUnsupported)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
}

// pushRecorder is a ResponseRecorder that records HTTP/2 server pushes.
type pushRecorder struct {
	*httptest.ResponseRecorder
	pushed []string
}

func (r *pushRecorder) Push(target string, opts *http.PushOptions) error {
	r.pushed = append(r.pushed, target)
	return nil
}

func TestHandlerPush(t *testing.T) {
	_, tp := newCaptureTP(t)

	h := Instrument().WithTracerProvider(tp).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, w.(http.Pusher).Push("/style.css", nil))
		}))

	rec := &pushRecorder{ResponseRecorder: httptest.NewRecorder()}
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))

	assert.Equal(t, []string{"/style.css"}, rec.pushed)
}

func TestHandlerPushUnsupported(t *testing.T) {
	_, tp := newCaptureTP(t)

	h := Instrument().WithTracerProvider(tp).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := w.(http.Pusher).Push("/style.css", nil)
			assert.ErrorIs(t, err, http.ErrNotSupported)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
}

func TestHandlerNestedOutbound(t *testing.T) {
	buf, tp := newCaptureTP(t)

	b := Instrument().WithTracerProvider(tp)
	backend := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data")
	})
	c := &http.Client{Transport: b.Transport(nil)}

	// The inbound exchange's span is ambient in the handler context, so
	// the outbound exchange issued from it becomes its child.
	h := b.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, backend.URL+"/data", nil)
		require.NoError(t, err)
		resp, err := c.Do(req)
		require.NoError(t, err)
		drainAndClose(t, resp)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frontend", nil))

	spans := capturedSpans(t, buf)
	require.Len(t, spans, 1)
	require.NotNil(t, spans[0].StartConfig)
	assert.Equal(t, "server", spans[0].StartConfig.SpanKind)
	require.Len(t, spans[0].Children, 1)
	assert.Equal(t, "client", spans[0].Children[0].StartConfig.SpanKind)
}
