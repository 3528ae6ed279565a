package traceyaml

import "sync"

// SpanInfo captures everything registered on one span, in registration
// order, plus the spans started underneath it. YAML tags exist on all types
// so a trace can be marshalled into a human-readable testdata file.
type SpanInfo struct {
	Name          string      `yaml:"name"`
	StartConfig   *SpanConfig `yaml:"startConfig,omitempty"`
	Events        []Event     `yaml:"events,omitempty"`
	Errors        []Error     `yaml:"errors,omitempty"`
	StatusChanges []Status    `yaml:"statusChanges,omitempty"`
	NameChanges   []string    `yaml:"nameChanges,omitempty"`
	Attributes    []Attribute `yaml:"attributes,omitempty"`
	EndConfig     *SpanConfig `yaml:"endConfig,omitempty"`

	Children []*SpanInfo `yaml:"children,omitempty"`

	mu      *sync.Mutex
	isChild bool
}

// Event represents an event registered using span.AddEvent().
type Event struct {
	Name       string      `yaml:"name"`
	Attributes []Attribute `yaml:"attributes,omitempty"`
}

// Error represents an error registered using span.RecordError().
type Error struct {
	Error      string      `yaml:"error"`
	Attributes []Attribute `yaml:"attributes,omitempty"`
}

// Status represents a status update registered using span.SetStatus().
// The code is serialized using its String form, e.g. "Ok" or "Error".
type Status struct {
	Code        string `yaml:"code"`
	Description string `yaml:"description,omitempty"`
}

// SpanConfig is created from []trace.SpanStartOption or []trace.SpanEndOption.
// The span kind is serialized using its String form, e.g. "client" or "server".
type SpanConfig struct {
	SpanKind   string      `yaml:"spanKind,omitempty"`
	NewRoot    bool        `yaml:"newRoot,omitempty"`
	Attributes []Attribute `yaml:"attributes,omitempty"`
}

// Attribute represents one attribute.KeyValue, in the order it was
// registered.
type Attribute struct {
	Key   string      `yaml:"key"`
	Value interface{} `yaml:"value"`
	Type  string      `yaml:"type"`
}
