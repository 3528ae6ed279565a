package httptracer

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// forwardedForHeader carries the original client IP (plus any intermediary
// proxies) for requests that traversed a reverse proxy.
const forwardedForHeader = "X-Forwarded-For"

// clientRequestAttrs derives the start-time attribute set for an outbound
// request. It is a pure function of the request metadata.
func clientRequestAttrs(req *http.Request) []attribute.KeyValue {
	scheme := urlScheme(req.URL.Scheme)
	host, port := splitHostPort(requestHost(req), scheme)

	attrs := []attribute.KeyValue{
		semconv.HTTPMethodKey.String(requestMethod(req)),
		semconv.HTTPURLKey.String(req.URL.String()),
		semconv.HTTPTargetKey.String(req.URL.RequestURI()),
		semconv.HTTPHostKey.String(requestHost(req)),
		semconv.HTTPSchemeKey.String(scheme),
		semconv.HTTPFlavorKey.String(protoFlavor(req.Proto)),
		semconv.NetTransportTCP,
		semconv.NetPeerNameKey.String(host),
		semconv.NetPeerPortKey.Int(port),
	}
	if ua := req.UserAgent(); ua != "" {
		attrs = append(attrs, semconv.HTTPUserAgentKey.String(ua))
	}
	return attrs
}

// serverRequestAttrs derives the start-time attribute set for an inbound
// request. serverName optionally overrides the primary server name attribute
// ("custom server name" configuration).
func serverRequestAttrs(req *http.Request, serverName string) []attribute.KeyValue {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	host, port := splitHostPort(req.Host, scheme)

	attrs := []attribute.KeyValue{
		semconv.HTTPMethodKey.String(requestMethod(req)),
		semconv.HTTPTargetKey.String(req.URL.RequestURI()),
		semconv.HTTPHostKey.String(req.Host),
		semconv.HTTPSchemeKey.String(scheme),
		semconv.HTTPFlavorKey.String(protoFlavor(req.Proto)),
		semconv.NetTransportTCP,
		semconv.NetHostNameKey.String(host),
		semconv.NetHostPortKey.Int(port),
	}
	if serverName != "" {
		attrs = append(attrs, semconv.HTTPServerNameKey.String(serverName))
	}
	if ua := req.UserAgent(); ua != "" {
		attrs = append(attrs, semconv.HTTPUserAgentKey.String(ua))
	}
	if ip, ok := clientIP(req.Header); ok {
		attrs = append(attrs, semconv.HTTPClientIPKey.String(ip))
	}
	return attrs
}

// statusCodeAttr converts a numeric HTTP status code into its attribute.
func statusCodeAttr(status int) attribute.KeyValue {
	return semconv.HTTPStatusCodeKey.Int(status)
}

// spanStatusFromCode maps an HTTP status code onto the span outcome; any
// status >= 400 is an error, everything else a success.
func spanStatusFromCode(status int) (codes.Code, string) {
	if status >= http.StatusBadRequest {
		return codes.Error, http.StatusText(status)
	}
	return codes.Ok, ""
}

// clientIP extracts the best-effort original client IP from the forwarding
// header; the first entry of the comma-separated list, trimmed. The second
// return value is false when the header is absent.
func clientIP(h http.Header) (string, bool) {
	forwarded := h.Get(forwardedForHeader)
	if forwarded == "" {
		return "", false
	}
	if idx := strings.Index(forwarded, ","); idx != -1 {
		forwarded = forwarded[:idx]
	}
	return strings.TrimSpace(forwarded), true
}

// protoFlavor converts a protocol string like "HTTP/1.1" into the flavor
// notation "1.1" used by the semantic conventions.
func protoFlavor(proto string) string {
	if flavor := strings.TrimPrefix(proto, "HTTP/"); flavor != "" {
		return flavor
	}
	return "1.1"
}

// urlScheme defaults an empty URL scheme to plain "http".
func urlScheme(scheme string) string {
	if scheme == "" {
		return "http"
	}
	return scheme
}

// requestMethod defaults an empty method to GET, matching net/http.
func requestMethod(req *http.Request) string {
	if req.Method == "" {
		return http.MethodGet
	}
	return req.Method
}

// requestHost resolves the authority of an outbound request; the Host field
// overrides the URL host, as in net/http itself.
func requestHost(req *http.Request) string {
	if req.Host != "" {
		return req.Host
	}
	return req.URL.Host
}

// splitHostPort splits an authority into host name and port, defaulting the
// port from the scheme when absent.
func splitHostPort(hostport, scheme string) (string, int) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, defaultPort(scheme)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, defaultPort(scheme)
	}
	return host, port
}

func defaultPort(scheme string) int {
	if scheme == "https" {
		return 443
	}
	return 80
}
