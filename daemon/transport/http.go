package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// ContentTypeJSON is the content type of every structured daemon request.
	ContentTypeJSON = "application/json"

	// ContentTypeOctetStream is the content type for raw blob uploads.
	ContentTypeOctetStream = "application/octet-stream"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultUserAgent identifies this library to the daemon.
	DefaultUserAgent = "go-xpipe"

	// defaultBufferSize is the initial size for pooled buffers.
	defaultBufferSize = 32 * 1024 // 32KB
)

// bufferPool is a pool of reusable bytes.Buffer to reduce allocations.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	buf.Reset()
	bufferPool.Put(buf)
}

// readAllPooled reads from r using a pooled buffer and returns a copy of the data.
func readAllPooled(r io.Reader) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}

	// Return a copy since buf will be reused
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	URL        string
	Header     http.Header
	Body       []byte
}

// HTTPTransport handles HTTP communication with the daemon.
type HTTPTransport struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// HTTPTransportOption configures an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// NewHTTPTransport creates a new HTTP transport with the given options.
func NewHTTPTransport(opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				Proxy:           nil, // the daemon only listens on loopback
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		userAgent: DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithRateLimit limits outgoing requests to rps per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if rps <= 0 {
			t.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.userAgent = ua
	}
}

func (t *HTTPTransport) newRequest(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Request, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("transport: rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to create request: %w", err)
	}
	if contentType != "" && body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	return req, nil
}

// Do sends a request and reads the complete response. Status codes are not
// interpreted; callers decide what counts as a failure.
func (t *HTTPTransport) Do(ctx context.Context, method, url, contentType string, body io.Reader) (*Response, error) {
	req, err := t.newRequest(ctx, method, url, contentType, body)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := readAllPooled(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		URL:        url,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// Stream sends a request and returns the live response. The caller must
// close the response body.
func (t *HTTPTransport) Stream(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := t.newRequest(ctx, method, url, contentType, body)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: request failed: %w", err)
	}
	return resp, nil
}

// ReadAll drains r through the transport's buffer pool.
func ReadAll(r io.Reader) ([]byte, error) {
	return readAllPooled(r)
}

// Client returns the underlying HTTP client so that authentication can wrap
// its Transport.
func (t *HTTPTransport) Client() *http.Client {
	return t.client
}

// CloseIdleConnections closes any idle connections in the transport.
func (t *HTTPTransport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}
