package auth

import (
	"context"
	"net/http"
)

// TokenSource supplies the current session token. Implementations may
// perform a handshake to obtain one.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) {
		return token, nil
	})
}

type anonymousKey struct{}

// Anonymous marks ctx so that BearerAuth leaves requests made with it
// unauthenticated. The handshake itself is such a request.
func Anonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey{}, true)
}

// IsAnonymous reports whether ctx was marked with Anonymous.
func IsAnonymous(ctx context.Context) bool {
	v, _ := ctx.Value(anonymousKey{}).(bool)
	return v
}

// BearerAuth attaches the daemon session token to every request.
type BearerAuth struct {
	source TokenSource
}

// NewBearerAuth creates a bearer authentication handler backed by source.
func NewBearerAuth(source TokenSource) *BearerAuth {
	return &BearerAuth{source: source}
}

// Name returns the authentication scheme name.
func (a *BearerAuth) Name() string {
	return "Bearer"
}

// Transport wraps an http.RoundTripper with bearer authentication.
func (a *BearerAuth) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &bearerTransport{
		base:   base,
		source: a.source,
	}
}

// bearerTransport adds the Authorization header to requests.
type bearerTransport struct {
	base   http.RoundTripper
	source TokenSource
}

// RoundTrip implements http.RoundTripper.
func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if IsAnonymous(req.Context()) {
		return t.base.RoundTrip(req)
	}

	token, err := t.source.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}

	// Clone the request to avoid mutating the original
	reqCopy := req.Clone(req.Context())
	reqCopy.Header.Set("Authorization", "Bearer "+token)

	return t.base.RoundTrip(reqCopy)
}
