package httptracer

import (
	"context"
	"io"
	"math/rand"
	"sync"

	"github.com/luxas/deklarative/httptracer/filetest"
	"github.com/luxas/deklarative/httptracer/traceyaml"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

// SDKTracerProvider is a TracerProvider that can also flush its exported
// spans and shut down.
type SDKTracerProvider interface {
	TracerProvider

	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Provider returns a new *TracerProviderBuilder instance.
func Provider() *TracerProviderBuilder {
	return &TracerProviderBuilder{}
}

// TracerProviderBuilder is an opinionated builder-pattern constructor for
// the TracerProvider backing the instrumentation; it can export spans to
// stdout, the Jaeger HTTP API or an OpenTelemetry Collector gRPC proxy, and
// has deterministic modes for unit tests.
type TracerProviderBuilder struct {
	exporters []tracesdk.SpanExporter
	errs      []error
	tpOpts    []tracesdk.TracerProviderOption
	attrs     []attribute.KeyValue
	sync      bool
	yamlTo    []io.Writer
}

// WithInsecureOTelExporter registers an exporter to an OpenTelemetry
// Collector on the given address, which defaults to "localhost:55680" if
// addr is empty. The OpenTelemetry Collector speaks gRPC, hence, don't add
// any "http(s)://" prefix to addr. Additional options can be supplied that
// can override the default behavior.
func (b *TracerProviderBuilder) WithInsecureOTelExporter(ctx context.Context, addr string, opts ...otlptracegrpc.Option) *TracerProviderBuilder {
	if len(addr) == 0 {
		addr = "localhost:55680"
	}

	defaultOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(addr),
		otlptracegrpc.WithInsecure(),
	}
	// Make sure to order the defaultOpts first, so opts can override the default ones
	opts = append(defaultOpts, opts...)
	exp, err := otlptracegrpc.New(ctx, opts...)
	b.exporters = append(b.exporters, exp)
	b.errs = append(b.errs, err)
	return b
}

// WithInsecureJaegerExporter registers an exporter to Jaeger using Jaeger's
// own HTTP API. The default address is "http://localhost:14268/api/traces"
// if addr is left empty. Additional options can be supplied that can
// override the default behavior.
func (b *TracerProviderBuilder) WithInsecureJaegerExporter(addr string, opts ...jaeger.CollectorEndpointOption) *TracerProviderBuilder {
	defaultOpts := []jaeger.CollectorEndpointOption{}
	// Only override if addr is set. Default is "http://localhost:14268/api/traces"
	if len(addr) != 0 {
		defaultOpts = append(defaultOpts, jaeger.WithEndpoint(addr))
	}
	// Make sure to order the defaultOpts first, so opts can override the default ones
	opts = append(defaultOpts, opts...)
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(opts...))
	b.exporters = append(b.exporters, exp)
	b.errs = append(b.errs, err)
	return b
}

// WithStdoutExporter exports pretty-formatted telemetry data to os.Stdout,
// or another writer if stdouttrace.WithWriter(w) is supplied as an option.
func (b *TracerProviderBuilder) WithStdoutExporter(opts ...stdouttrace.Option) *TracerProviderBuilder {
	defaultOpts := []stdouttrace.Option{
		stdouttrace.WithPrettyPrint(),
	}
	// Make sure to order the defaultOpts first, so opts can override the default ones
	opts = append(defaultOpts, opts...)
	exp, err := stdouttrace.New(opts...)
	b.exporters = append(b.exporters, exp)
	b.errs = append(b.errs, err)
	return b
}

// WithOptions allows configuring the TracerProvider in various ways, for
// example tracesdk.WithSpanProcessor(sp) or tracesdk.WithIDGenerator().
func (b *TracerProviderBuilder) WithOptions(opts ...tracesdk.TracerProviderOption) *TracerProviderBuilder {
	b.tpOpts = append(b.tpOpts, opts...)
	return b
}

// WithAttributes allows registering more default resource attributes for
// traces created by this TracerProvider. By default semantic conventions of
// version v1.4.0 are used, with "service.name" => "httptracer".
func (b *TracerProviderBuilder) WithAttributes(attrs ...attribute.KeyValue) *TracerProviderBuilder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

// Synchronous allows configuring whether the exporters should export in
// synchronous mode, which is useful for avoiding flakes in unit tests. The
// default mode is batching. DO NOT use in production.
func (b *TracerProviderBuilder) Synchronous() *TracerProviderBuilder {
	b.sync = true
	return b
}

// DeterministicIDs enables deterministic trace and span IDs. Useful for
// unit tests. DO NOT use in production.
func (b *TracerProviderBuilder) DeterministicIDs(seed int64) *TracerProviderBuilder {
	return b.WithOptions(tracesdk.WithIDGenerator(deterministicWithSeed(seed)))
}

// TestYAMLTo wraps the built TracerProvider using traceyaml.New() so that
// trace testing YAML is written to w. See traceyaml.New for more
// information about how it works.
//
// This is useful for unit tests.
func (b *TracerProviderBuilder) TestYAMLTo(w io.Writer) *TracerProviderBuilder {
	b.yamlTo = append(b.yamlTo, w)
	return b
}

// TestYAML is a shorthand for TestYAMLTo, that writes to a testdata/ file
// with the name of the test + the ".yaml" suffix.
//
// This is useful for unit tests.
func (b *TracerProviderBuilder) TestYAML(g *filetest.Tester) *TracerProviderBuilder {
	return b.TestYAMLTo(g.Add(g.T.Name() + ".yaml").Writer())
}

// Build builds the SDKTracerProvider.
func (b *TracerProviderBuilder) Build() (SDKTracerProvider, error) {
	// Default to discard all trace output, if no exporter is configured
	if len(b.exporters) == 0 {
		b = b.WithStdoutExporter(stdouttrace.WithWriter(io.Discard))
	}
	// Combine and filter the errors from the exporter building
	if err := multierr.Combine(b.errs...); err != nil {
		return nil, err
	}

	// By default, set the service name to "httptracer".
	// This can be overridden through WithAttributes.
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String("httptracer"),
	}
	// Make sure to order the default attrs first, so b.attrs can override the default ones
	attrs = append(attrs, b.attrs...)

	tpOpts := []tracesdk.TracerProviderOption{
		tracesdk.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)),
	}

	// Register all exporters with the options list
	for _, exporter := range b.exporters {
		// The non-syncing mode shall only be used in testing. The batching mode must be used in production.
		if b.sync {
			tpOpts = append(tpOpts, tracesdk.WithSyncer(exporter))
			continue
		}

		tpOpts = append(tpOpts, tracesdk.WithBatcher(exporter))
	}

	// Make sure to order the default tpOpts first, so b.tpOpts can override the default ones
	tpOpts = append(tpOpts, b.tpOpts...)
	sdktp := tracesdk.NewTracerProvider(tpOpts...)

	// Layer the YAML capture providers on top, keeping flush/shutdown
	// reachable through the composite.
	var tp SDKTracerProvider = sdktp
	for _, w := range b.yamlTo {
		tp = &compositeProvider{traceyaml.New(tp, w), sdktp}
	}
	return tp, nil
}

// InstallGlobally builds the TracerProvider and registers it globally using
// otel.SetTracerProvider(tp).
func (b *TracerProviderBuilder) InstallGlobally() error {
	tp, err := b.Build()
	if err != nil {
		return err
	}
	SetGlobalTracerProvider(tp)
	return nil
}

// compositeProvider exposes a wrapped TracerProvider together with the
// flush/shutdown capability of the SDK provider underneath it.
type compositeProvider struct {
	// embedding is important; this automatically exposes all inherited
	// functionality from the underlying resource.
	trace.TracerProvider

	sdk SDKTracerProvider
}

func (c *compositeProvider) ForceFlush(ctx context.Context) error { return c.sdk.ForceFlush(ctx) }
func (c *compositeProvider) Shutdown(ctx context.Context) error   { return c.sdk.Shutdown(ctx) }

type deterministicIDGenerator struct {
	mu  *sync.Mutex
	rnd *rand.Rand
}

func (g *deterministicIDGenerator) NewSpanID(context.Context, trace.TraceID) trace.SpanID {
	g.mu.Lock()
	defer g.mu.Unlock()
	sid := trace.SpanID{}
	_, _ = g.rnd.Read(sid[:])
	return sid
}

func (g *deterministicIDGenerator) NewIDs(context.Context) (trace.TraceID, trace.SpanID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tid := trace.TraceID{}
	_, _ = g.rnd.Read(tid[:])
	sid := trace.SpanID{}
	_, _ = g.rnd.Read(sid[:])
	return tid, sid
}

func deterministicWithSeed(seed int64) tracesdk.IDGenerator {
	return &deterministicIDGenerator{
		mu: &sync.Mutex{},
		// Use the "weak" random number generator math/rand, not the more secure
		// crypto/rand because we specifically don't want secure randomness but
		// deterministicness for unit tests.
		//nolint:gosec
		rnd: rand.New(rand.NewSource(seed)),
	}
}
