package httptracer

import (
	"bytes"
	"context"
	"testing"

	"github.com/luxas/deklarative/httptracer/traceyaml"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

// newCaptureTP builds a provider whose traces are captured as YAML into the
// returned buffer, so tests can assert on everything registered on a span.
func newCaptureTP(t *testing.T) (*bytes.Buffer, SDKTracerProvider) {
	t.Helper()

	var buf bytes.Buffer
	tp, err := Provider().TestYAMLTo(&buf).Build()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, tp.Shutdown(context.Background()))
	})
	return &buf, tp
}

// capturedSpans parses the YAML trace capture into root SpanInfos.
func capturedSpans(t *testing.T, buf *bytes.Buffer) []traceyaml.SpanInfo {
	t.Helper()

	var spans []traceyaml.SpanInfo
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &spans))
	return spans
}

// attrValue resolves one attribute value by key, failing the test when the
// attribute was never registered.
func attrValue(t *testing.T, attrs []traceyaml.Attribute, key string) interface{} {
	t.Helper()

	for _, attr := range attrs {
		if attr.Key == key {
			return attr.Value
		}
	}
	t.Fatalf("attribute %q not found in %v", key, attrs)
	return nil
}

func hasAttr(attrs []traceyaml.Attribute, key string) bool {
	for _, attr := range attrs {
		if attr.Key == key {
			return true
		}
	}
	return false
}
