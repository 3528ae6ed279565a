package httptracer

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	spanNameKey              = "span-name"
	spanEventKey             = "span-event"
	spanStatusCodeKey        = "span-status-code"
	spanStatusDescriptionKey = "span-status-description"
	// SpanAttributePrefix is the prefix used when logging an attribute
	// registered with a Span.
	SpanAttributePrefix = "span-attr-"
)

// newLoggingSpan wraps span so all changes to it are mirrored to log.
// Used by Builder.WithSpanLogging.
func newLoggingSpan(span Span, log Logger) Span {
	log.Info("starting span")
	return &loggingSpan{Span: span, log: log}
}

// loggingSpan is a composite Span implementation logging changes to the
// underlying span.
type loggingSpan struct {
	// embedding is important; this automatically exposes all inherited
	// functionality from the underlying resource.
	Span

	log Logger
}

func (s *loggingSpan) End(options ...trace.SpanEndOption) {
	s.log.Info("ending span")
	s.Span.End(options...)
}

func (s *loggingSpan) AddEvent(name string, options ...trace.EventOption) {
	s.log.Info("span event", spanEventKey, name)
	s.Span.AddEvent(name, options...)
}

func (s *loggingSpan) RecordError(err error, options ...trace.EventOption) {
	s.log.Error(err, "span error")
	s.Span.RecordError(err, options...)
}

func (s *loggingSpan) SetStatus(code codes.Code, description string) {
	// The description is only included when there's an error, as per the
	// spec of Span.SetStatus.
	args := []interface{}{spanStatusCodeKey, code.String()}
	if code == codes.Error {
		args = append(args, spanStatusDescriptionKey, description)
	}
	s.log.Info("span status change", args...)

	s.Span.SetStatus(code, description)
}

func (s *loggingSpan) SetName(name string) {
	s.log.Info("span name change", spanNameKey, name)
	s.Span.SetName(name)
}

func (s *loggingSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.log.Info("span attribute change", kvListToLogAttrs(kv)...)
	s.Span.SetAttributes(kv...)
}

func kvListToLogAttrs(kv []attribute.KeyValue) []interface{} {
	attrs := make([]interface{}, 0, len(kv)*2)
	for _, item := range kv {
		attrs = append(attrs, SpanAttributePrefix+string(item.Key), item.Value.AsInterface())
	}
	return attrs
}
