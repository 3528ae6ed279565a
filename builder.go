package httptracer

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

/*
	If Builder.WithTracerProvider is set, that provider is used.
	If the context of a request carries a Span with a non-noop
	TracerProvider, it'll be used (this is how nesting of exchanges works).
	If SetGlobalTracerProvider / otel.SetTracerProvider is set, it'll be used.
	Otherwise, trace.NewNoopTracerProvider() is used.

	If Builder.WithPropagator is set, that propagator is used, otherwise
	the global otel.GetTextMapPropagator().

	If Builder.WithLogger is set, that logger will be used.
	If the request context carries a logger, it'll be used.
	If SetGlobalLogger is set, it'll be used.
	Otherwise, logr.Discard() is used.
*/

// Instrument returns a new *Builder.
func Instrument() *Builder {
	return &Builder{}
}

// Builder is a builder-pattern constructor for instrumented HTTP
// capabilities; a client transport, a server handler, or both, sharing one
// configuration. The zero value is usable; by default the global tracer
// provider and propagator are consulted at request time and nothing is
// ignored.
type Builder struct {
	cfg config
}

// WithTracerProvider pins the TracerProvider to use for all exchanges.
//
// A call to this function overwrites any previous value.
func (b *Builder) WithTracerProvider(tp TracerProvider) *Builder {
	b.cfg.tp = tp
	return b
}

// WithPropagator pins the propagator used to inject outbound and extract
// inbound trace-context headers.
//
// A call to this function overwrites any previous value.
func (b *Builder) WithPropagator(prop propagation.TextMapPropagator) *Builder {
	b.cfg.prop = prop
	return b
}

// WithLogger specifies the Logger for non-fatal instrumentation noise, like
// panicking ignore predicates and span callbacks.
//
// A call to this function overwrites any previous value.
func (b *Builder) WithLogger(log Logger) *Builder {
	b.cfg.log = log
	return b
}

// WithSpanLogging mirrors all span lifecycle events of every exchange to
// the Logger; useful when debugging what the instrumentation records.
func (b *Builder) WithSpanLogging() *Builder {
	b.cfg.logSpans = true
	return b
}

// WithServerName overrides the primary server name attribute recorded on
// inbound exchanges, for servers reached through aliases.
//
// A call to this function overwrites any previous value.
func (b *Builder) WithServerName(name string) *Builder {
	b.cfg.serverName = name
	return b
}

// WithSpanCallback registers a callback invoked with the
// finished-but-not-yet-ended span of every exchange; see SpanCallback.
//
// A call to this function overwrites any previous value.
func (b *Builder) WithSpanCallback(cb SpanCallback) *Builder {
	b.cfg.callback = cb
	return b
}

// IgnoreIncoming excludes inbound requests whose path matches any of the
// given rules from tracing.
//
// A call to this function appends to the list of previous values.
func (b *Builder) IgnoreIncoming(rules ...IgnoreRule) *Builder {
	b.cfg.ignoreIncoming = append(b.cfg.ignoreIncoming, rules...)
	return b
}

// IgnoreOutgoing excludes outbound requests whose full URL matches any of
// the given rules from tracing.
//
// A call to this function appends to the list of previous values.
func (b *Builder) IgnoreOutgoing(rules ...IgnoreRule) *Builder {
	b.cfg.ignoreOutgoing = append(b.cfg.ignoreOutgoing, rules...)
	return b
}

// Transport decorates base so that every request issued through it is
// traced as a CLIENT exchange. A nil base uses http.DefaultTransport.
func (b *Builder) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &roundTripper{base: base, cfg: b.cfg.snapshot()}
}

// Handler decorates next so that every request dispatched through it is
// traced as a SERVER exchange.
func (b *Builder) Handler(next http.Handler) http.Handler {
	return &handler{next: next, cfg: b.cfg.snapshot()}
}

// Client returns a convenience *Client around c, with c's transport
// decorated like Transport does. A nil c starts from a plain http.Client.
// c itself is not modified.
func (b *Builder) Client(c *http.Client) *Client {
	clone := http.Client{}
	if c != nil {
		clone = *c
	}
	clone.Transport = b.Transport(clone.Transport)
	return &Client{http: &clone, cfg: b.cfg.snapshot()}
}

// config is one immutable snapshot of a Builder, shared by the products
// built from it.
type config struct {
	tp         TracerProvider
	prop       propagation.TextMapPropagator
	log        Logger
	logSpans   bool
	serverName string
	callback   SpanCallback

	ignoreIncoming IgnoreRules
	ignoreOutgoing IgnoreRules
}

// snapshot copies the config so later Builder mutations don't leak into
// already-built products.
func (c *config) snapshot() *config {
	cp := *c
	cp.ignoreIncoming = append(IgnoreRules(nil), c.ignoreIncoming...)
	cp.ignoreOutgoing = append(IgnoreRules(nil), c.ignoreOutgoing...)
	return &cp
}

// tracer resolves the trace.Tracer for an exchange starting in ctx.
func (c *config) tracer(ctx context.Context) trace.Tracer {
	tp := c.tp
	if tp == nil {
		tp = TracerProviderFromContext(ctx)
	}
	return tp.Tracer(instrumentationName)
}

// propagator resolves the propagator; the global one unless pinned.
func (c *config) propagator() propagation.TextMapPropagator {
	if c.prop != nil {
		return c.prop
	}
	return otel.GetTextMapPropagator()
}

// logger resolves the Logger; never nil.
func (c *config) logger(ctx context.Context) Logger {
	if c.log != nil {
		return c.log
	}
	return LoggerFromContext(ctx)
}
