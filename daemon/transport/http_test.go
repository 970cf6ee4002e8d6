package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestNewHTTPTransport verifies transport creation with default settings.
func TestNewHTTPTransport(t *testing.T) {
	tr := NewHTTPTransport()
	if tr == nil {
		t.Fatal("NewHTTPTransport returned nil")
	}
	if tr.client.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", tr.client.Timeout, DefaultTimeout)
	}
	if tr.limiter != nil {
		t.Error("limiter should be nil by default")
	}
}

func TestHTTPTransport_Options(t *testing.T) {
	custom := &http.Client{}
	tr := NewHTTPTransport(
		WithHTTPClient(custom),
		WithTimeout(5*time.Second),
		WithRateLimit(10, 0),
		WithUserAgent("test-agent"),
	)

	if tr.Client() != custom {
		t.Error("WithHTTPClient not applied")
	}
	if custom.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", custom.Timeout)
	}
	if tr.limiter == nil || tr.limiter.Burst() != 1 {
		t.Error("WithRateLimit should install a limiter with burst 1")
	}
	if tr.userAgent != "test-agent" {
		t.Errorf("userAgent = %q", tr.userAgent)
	}

	tr = NewHTTPTransport(WithRateLimit(0, 5))
	if tr.limiter != nil {
		t.Error("non-positive rate should disable limiting")
	}
}

// TestHTTPTransport_Do verifies basic request execution.
func TestHTTPTransport_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != ContentTypeJSON {
			t.Errorf("unexpected Content-Type: %s", ct)
		}
		if ua := r.Header.Get("User-Agent"); ua != DefaultUserAgent {
			t.Errorf("unexpected User-Agent: %s", ua)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"x":1}` {
			t.Errorf("unexpected body: %s", body)
		}
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	tr := NewHTTPTransport()
	resp, err := tr.Do(context.Background(), http.MethodPost, server.URL, ContentTypeJSON, strings.NewReader(`{"x":1}`))
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("body = %s", resp.Body)
	}
	if resp.URL != server.URL {
		t.Errorf("URL = %s", resp.URL)
	}
	if resp.Header.Get("X-Test") != "yes" {
		t.Error("header not propagated")
	}
}

// TestHTTPTransport_Do_ErrorStatus verifies that failure statuses are
// returned, not converted to errors.
func TestHTTPTransport_Do_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer server.Close()

	tr := NewHTTPTransport()
	resp, err := tr.Do(context.Background(), http.MethodGet, server.URL, "", nil)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(resp.Body), "boom") {
		t.Errorf("body = %s", resp.Body)
	}
}

// TestHTTPTransport_Do_WithContext verifies context cancellation.
func TestHTTPTransport_Do_WithContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := NewHTTPTransport()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := tr.Do(ctx, http.MethodGet, server.URL, "", nil); err == nil {
		t.Error("expected context deadline exceeded error")
	}
}

func TestHTTPTransport_Do_ConnectionError(t *testing.T) {
	tr := NewHTTPTransport(WithTimeout(time.Second))
	_, err := tr.Do(context.Background(), http.MethodGet, "http://127.0.0.1:1/", "", nil)
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}
	if !strings.Contains(err.Error(), "transport: request failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHTTPTransport_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := NewHTTPTransport(WithRateLimit(0.001, 1))
	if _, err := tr.Do(context.Background(), http.MethodGet, server.URL, "", nil); err != nil {
		t.Fatalf("first request should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.Do(ctx, http.MethodGet, server.URL, "", nil)
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("expected rate limit error, got %v", err)
	}
}

func TestHTTPTransport_Stream(t *testing.T) {
	payload := strings.Repeat("a", 100*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, payload)
	}))
	defer server.Close()

	tr := NewHTTPTransport()
	resp, err := tr.Stream(context.Background(), http.MethodPost, server.URL, ContentTypeJSON, strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer resp.Body.Close()

	got, err := ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != len(payload) {
		t.Errorf("read %d bytes, want %d", len(got), len(payload))
	}
}
