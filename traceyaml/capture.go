// Package traceyaml provides a means to unit test a trace flow, using a YAML
// file structure that is representative and as close to human-readable as it
// gets.
//
// This package is tested by unit tests in the above httptracer package.
package traceyaml

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"
)

// New returns a composite TracerProvider that captures all data written into
// spans created through it. The recursively captured span data is gathered
// into a SpanInfo tree, marshalled into YAML, and written to w. Writer w can
// optionally implement the zapcore.WriteSyncer interface; if so it'll be
// used. As soon as a root span ends, its list item of YAML is output to w,
// as:
//
//	# Trace1
//	- {Trace1 data}
//
// 	# Trace2
//	- {Trace2 data}
func New(tp trace.TracerProvider, w io.Writer) trace.TracerProvider {
	return &captureProvider{tp, zapcore.Lock(zapcore.AddSync(w))}
}

type captureProvider struct {
	// embedding is important; this automatically exposes all inherited
	// functionality from the underlying resource.
	trace.TracerProvider
	// ws is a race-free writer
	ws zapcore.WriteSyncer
}

func (tp *captureProvider) Tracer(instrumentationName string, opts ...trace.TracerOption) trace.Tracer {
	tracer := tp.TracerProvider.Tracer(instrumentationName, opts...)
	return &captureTracer{tracer, tp}
}

type captureTracer struct {
	// embedding is important; this automatically exposes all inherited
	// functionality from the underlying resource.
	trace.Tracer

	provider *captureProvider
}

func (t *captureTracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	ctx, span := t.Tracer.Start(ctx, spanName, opts...)
	newSpan := &captureSpan{span, t.provider, nil}

	cfg := trace.NewSpanStartConfig(opts...)

	if parentData := getSpanInfo(ctx); parentData != nil && !cfg.NewRoot() {
		newSpan.data = parentData.newChild(spanName, opts...)
	} else {
		newSpan.data = newSpanInfo(spanName, opts...)
	}
	ctx = withSpanInfo(ctx, newSpan.data)

	return trace.ContextWithSpan(ctx, newSpan), newSpan
}

type captureSpan struct {
	// embedding is important; this automatically exposes all inherited
	// functionality from the underlying resource.
	trace.Span

	provider *captureProvider
	data     *SpanInfo
}

func (s *captureSpan) End(options ...trace.SpanEndOption) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	s.data.EndConfig = spanConfigFromEnd(options...)

	if !s.data.isChild {
		listItem := []*SpanInfo{s.data}
		// Deliberately use yaml.v2 here as it marshals lists on the same
		// indentation level as the list key.
		out, err := yaml.Marshal(listItem)
		if err == nil {
			header := fmt.Sprintf("# %s", s.data.Name)
			out = bytes.Join([][]byte{[]byte(header), out, nil}, []byte{'\n'})
			err = multierr.Combine(err, writeNoLength(s.provider.ws, out))
		}
		if err != nil {
			s.Span.RecordError(err)
		}
	}

	s.Span.End(options...)
}

func writeNoLength(w io.Writer, p []byte) error {
	_, err := w.Write(p)
	return err
}

func (s *captureSpan) AddEvent(name string, options ...trace.EventOption) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	ec := trace.NewEventConfig(options...)
	s.data.Events = append(s.data.Events, Event{
		Name:       name,
		Attributes: newAttrs(ec.Attributes()),
	})

	s.Span.AddEvent(name, options...)
}

func (s *captureSpan) RecordError(err error, options ...trace.EventOption) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	ec := trace.NewEventConfig(options...)
	s.data.Errors = append(s.data.Errors, Error{
		Error:      fmt.Sprintf("%v", err),
		Attributes: newAttrs(ec.Attributes()),
	})

	s.Span.RecordError(err, options...)
}

func (s *captureSpan) SetStatus(code codes.Code, description string) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	sc := Status{
		Code: code.String(),
	}
	// Set description only if codes.Error
	if code == codes.Error {
		sc.Description = description
	}
	s.data.StatusChanges = append(s.data.StatusChanges, sc)

	s.Span.SetStatus(code, description)
}

func (s *captureSpan) SetName(name string) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	s.data.NameChanges = append(s.data.NameChanges, name)
	s.Span.SetName(name)
}

func (s *captureSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	s.data.Attributes = append(s.data.Attributes, newAttrs(kv)...)
	s.Span.SetAttributes(kv...)
}

func (s *captureSpan) TracerProvider() trace.TracerProvider { return s.provider }

func (td *SpanInfo) newChild(spanName string, opts ...trace.SpanStartOption) *SpanInfo {
	td.mu.Lock()
	defer td.mu.Unlock()

	child := newSpanInfo(spanName, opts...)
	child.isChild = true
	td.Children = append(td.Children, child)
	return child
}

func newSpanInfo(spanName string, opts ...trace.SpanStartOption) *SpanInfo {
	return &SpanInfo{
		Name:        spanName,
		StartConfig: spanConfigFromStart(opts...),
		mu:          &sync.Mutex{},
	}
}

func newAttrs(attrList []attribute.KeyValue) []Attribute {
	attrs := make([]Attribute, 0, len(attrList))
	for _, attr := range attrList {
		attrs = append(attrs, Attribute{
			Key:   string(attr.Key),
			Value: attr.Value.AsInterface(),
			Type:  attr.Value.Type().String(),
		})
	}
	return attrs
}

func spanConfigFromStart(opts ...trace.SpanStartOption) *SpanConfig {
	if len(opts) == 0 {
		return nil
	}
	return spanConfigFrom(trace.NewSpanStartConfig(opts...))
}

func spanConfigFromEnd(opts ...trace.SpanEndOption) *SpanConfig {
	if len(opts) == 0 {
		return nil
	}
	return spanConfigFrom(trace.NewSpanEndConfig(opts...))
}

func spanConfigFrom(sc *trace.SpanConfig) *SpanConfig {
	kind := ""
	if sc.SpanKind() != trace.SpanKindUnspecified {
		kind = sc.SpanKind().String()
	}
	return &SpanConfig{
		SpanKind:   kind,
		NewRoot:    sc.NewRoot(),
		Attributes: newAttrs(sc.Attributes()),
	}
}

type spanInfoCtxKeyStruct struct{}

//nolint:gochecknoglobals
var spanInfoCtxKey = spanInfoCtxKeyStruct{}

func withSpanInfo(ctx context.Context, data *SpanInfo) context.Context {
	return context.WithValue(ctx, spanInfoCtxKey, data)
}

func getSpanInfo(ctx context.Context) *SpanInfo {
	td, _ := ctx.Value(spanInfoCtxKey).(*SpanInfo)
	return td
}
