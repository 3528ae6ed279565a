package httptracer

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func TestClientRequestAttrs(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.com:8080/path?x=1", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")

	assert.Equal(t, []attribute.KeyValue{
		semconv.HTTPMethodKey.String("GET"),
		semconv.HTTPURLKey.String("http://example.com:8080/path?x=1"),
		semconv.HTTPTargetKey.String("/path?x=1"),
		semconv.HTTPHostKey.String("example.com:8080"),
		semconv.HTTPSchemeKey.String("http"),
		semconv.HTTPFlavorKey.String("1.1"),
		semconv.NetTransportTCP,
		semconv.NetPeerNameKey.String("example.com"),
		semconv.NetPeerPortKey.Int(8080),
		semconv.HTTPUserAgentKey.String("test-agent"),
	}, clientRequestAttrs(req))
}

func TestClientRequestAttrsDefaultPort(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	require.NoError(t, err)

	attrs := clientRequestAttrs(req)
	assert.Contains(t, attrs, semconv.NetPeerPortKey.Int(443))
	assert.Contains(t, attrs, semconv.HTTPSchemeKey.String("https"))
	// No User-Agent header; the attribute shall be absent entirely.
	for _, attr := range attrs {
		assert.NotEqual(t, semconv.HTTPUserAgentKey, attr.Key)
	}
}

func TestServerRequestAttrs(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/submit?y=2", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1, 10.0.0.2")

	assert.Equal(t, []attribute.KeyValue{
		semconv.HTTPMethodKey.String("POST"),
		semconv.HTTPTargetKey.String("/submit?y=2"),
		semconv.HTTPHostKey.String("example.com"),
		semconv.HTTPSchemeKey.String("http"),
		semconv.HTTPFlavorKey.String("1.1"),
		semconv.NetTransportTCP,
		semconv.NetHostNameKey.String("example.com"),
		semconv.NetHostPortKey.Int(80),
		semconv.HTTPServerNameKey.String("alias"),
		semconv.HTTPUserAgentKey.String("test-agent"),
		semconv.HTTPClientIPKey.String("203.0.113.7"),
	}, serverRequestAttrs(req, "alias"))
}

func TestSpanStatusFromCode(t *testing.T) {
	tests := []struct {
		status   int
		wantCode codes.Code
		wantDesc string
	}{
		{http.StatusOK, codes.Ok, ""},
		{http.StatusCreated, codes.Ok, ""},
		{http.StatusPermanentRedirect, codes.Ok, ""},
		{http.StatusBadRequest, codes.Error, "Bad Request"},
		{http.StatusNotFound, codes.Error, "Not Found"},
		{http.StatusInternalServerError, codes.Error, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			code, desc := spanStatusFromCode(tt.status)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantDesc, desc)
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		forwarded string
		want      string
		wantOK    bool
	}{
		{"", "", false},
		{"203.0.113.7", "203.0.113.7", true},
		{"203.0.113.7, 10.0.0.1", "203.0.113.7", true},
		{" 203.0.113.7 ,10.0.0.1", "203.0.113.7", true},
	}
	for i, tt := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			h := http.Header{}
			if tt.forwarded != "" {
				h.Set(forwardedForHeader, tt.forwarded)
			}
			got, ok := clientIP(h)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProtoFlavor(t *testing.T) {
	assert.Equal(t, "1.1", protoFlavor("HTTP/1.1"))
	assert.Equal(t, "2", protoFlavor("HTTP/2"))
	assert.Equal(t, "1.0", protoFlavor("HTTP/1.0"))
	assert.Equal(t, "1.1", protoFlavor(""))
}

func TestSpanName(t *testing.T) {
	assert.Equal(t, "HTTP GET", spanName("http", "GET"))
	assert.Equal(t, "HTTPS POST", spanName("https", "POST"))
	assert.Equal(t, "HTTP GET", spanName("", "GET"))
	assert.Equal(t, "HTTP", spanName("http", ""))
}

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		hostport string
		scheme   string
		wantHost string
		wantPort int
	}{
		{"example.com:8080", "http", "example.com", 8080},
		{"example.com", "http", "example.com", 80},
		{"example.com", "https", "example.com", 443},
		{"127.0.0.1:0", "http", "127.0.0.1", 0},
	}
	for i, tt := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			host, port := splitHostPort(tt.hostport, tt.scheme)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}
