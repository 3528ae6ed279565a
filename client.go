package httptracer

import (
	"context"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Client is a convenience wrapper around *http.Client whose transport is
// instrumented. Its Get/Head/Post helpers take a context, and realize the
// one guarantee a raw http.RoundTripper cannot: a request that fails to
// construct (malformed target) still yields exactly one finished,
// error-flagged span, opened and closed synchronously before the error is
// returned to the caller.
type Client struct {
	http *http.Client
	cfg  *config
}

// Do issues the request through the instrumented transport, exactly like
// (*http.Client).Do.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// Get issues a GET request to the given URL.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.failConstruction(ctx, http.MethodGet, url, err)
		return nil, err
	}
	return c.http.Do(req)
}

// Head issues a HEAD request to the given URL.
func (c *Client) Head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		c.failConstruction(ctx, http.MethodHead, url, err)
		return nil, err
	}
	return c.http.Do(req)
}

// Post issues a POST request with the given content type and body.
func (c *Client) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		c.failConstruction(ctx, http.MethodPost, url, err)
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.http.Do(req)
}

// failConstruction records a request that never made it to the transport.
// The span is opened unconditionally (ignore rules permitting) and then
// immediately resolved as an error; the construction error itself surfaces
// to the caller untouched.
func (c *Client) failConstruction(ctx context.Context, method, rawurl string, err error) {
	if c.cfg.ignoreOutgoing.Ignores(rawurl, c.cfg.logger(ctx)) {
		return
	}
	_, ex := c.cfg.startExchange(ctx, nil,
		trace.SpanKindClient,
		spanName("", method),
		[]attribute.KeyValue{
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPURLKey.String(rawurl),
		})
	ex.endWithError(err)
}
