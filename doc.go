/*
Package httptracer instruments HTTP clients and servers with OpenTelemetry
spans, correlated with go-logr logging.

Every outbound request issued through an instrumented http.RoundTripper, and
every inbound request dispatched through the instrumented http.Handler
middleware, is observed as one "exchange": a span is opened when the request
is first seen, annotated with protocol-level attributes as metadata becomes
available (method, target, host, port, flavor, status code, and so on,
following the OpenTelemetry semantic conventions), and ended exactly once
when the exchange concludes. The exchange may conclude in several ways; a
normal end of the response stream, an HTTP error status, a transport-level
error, a caller-initiated abort, or a premature termination of the response
body. Whichever terminal event fires first ends the span; all later ones
find the exchange already consumed and become no-ops. A span is never leaked
and never ended twice.

Instrumentation is composed explicitly at startup using the Instrument()
builder, never by mutating shared module state at runtime:

	rt := httptracer.Instrument().
		IgnoreOutgoing(httptracer.IgnoreExact("http://localhost:9090/healthz")).
		Transport(http.DefaultTransport)
	client := &http.Client{Transport: rt}

and on the server side:

	handler := httptracer.Instrument().
		IgnoreIncoming(httptracer.IgnorePattern(regexp.MustCompile(`^/metrics`))).
		Handler(mux)

For processes that really want the wrapper process-wide, InstallGlobally()
wraps http.DefaultTransport and Uninstall() restores the original reference;
both are explicit, documented, mutex-guarded operations.

Outbound spans are of kind CLIENT; the active trace context is injected into
the outgoing headers using the configured propagator (W3C TraceContext by
default, through otel.GetTextMapPropagator()), so that downstream services
can continue the trace. Inbound spans are of kind SERVER and continue the
remote parent extracted from the incoming headers, or start a new root when
no (valid) headers are present. In both directions the new span becomes the
current span of the request context for the scope of the exchange, so nested
outbound calls made by a handler become children of the server span.

Requests can be excluded from tracing entirely with ignore rules; an exact
string, a compiled pattern, or a predicate function, evaluated against the
full URL for outbound requests and against the path for inbound ones. An
ignored exchange delegates straight to the wrapped implementation with zero
tracing overhead and zero context mutation. A panicking predicate is treated
as "do not ignore" and logged through logr; filter evaluation never aborts
the exchange being classified.

Tracing is transparent: response bodies, return values and errors seen by
the calling application are identical to the untraced path; only the
telemetry side effects differ.

The TracerProviderBuilder (Provider()) constructs the span backend, able to
export to stdout, Jaeger, or an OpenTelemetry Collector, with deterministic
IDs and synchronous export for unit tests. The zaplog subpackage builds a
zap-backed logr.Logger; the traceyaml subpackage captures span data as
human-readable YAML, and filetest compares writer output against golden
testdata/ files.
*/
package httptracer
