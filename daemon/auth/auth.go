package auth

import (
	"errors"
	"log/slog"
	"net/http"
)

// ErrNoToken is returned when no credential was supplied and none could be
// loaded from the local auth file.
var ErrNoToken = errors.New("auth: no token found")

// Authenticator defines the interface for authentication handlers.
type Authenticator interface {
	// Transport wraps an http.RoundTripper with authentication.
	Transport(base http.RoundTripper) http.RoundTripper

	// Name returns the authentication scheme name.
	Name() string
}

// Type identifies how the client proves its identity during the handshake.
type Type string

const (
	// TypeAPIKey authenticates with a user-issued API key.
	TypeAPIKey Type = "ApiKey"
	// TypeLocal authenticates with the contents of the daemon's local auth file.
	TypeLocal Type = "Local"
)

// Credentials holds the secret presented to the daemon's handshake endpoint.
type Credentials struct {
	// Type selects the handshake auth method.
	Type Type

	// Key is the API key. Only used with TypeAPIKey.
	Key string

	// AuthFileContent is the trimmed content of the local auth file.
	// Only used with TypeLocal.
	AuthFileContent string
}

// APIKey returns credentials for API key authentication.
func APIKey(key string) Credentials {
	return Credentials{Type: TypeAPIKey, Key: key}
}

// Local returns credentials for local auth-file authentication.
func Local(content string) Credentials {
	return Credentials{Type: TypeLocal, AuthFileContent: content}
}

// Validate checks that required credential fields are populated.
func (c *Credentials) Validate() error {
	switch c.Type {
	case TypeAPIKey:
		if c.Key == "" {
			return errors.New("api key is required")
		}
	case TypeLocal:
		if c.AuthFileContent == "" {
			return errors.New("auth file content is required")
		}
	default:
		return errors.New("unknown auth type: " + string(c.Type))
	}
	return nil
}

// Secret returns the credential material regardless of type.
func (c Credentials) Secret() string {
	if c.Type == TypeAPIKey {
		return c.Key
	}
	return c.AuthFileContent
}

// HandshakePayload returns the "auth" object sent to the handshake endpoint.
func (c Credentials) HandshakePayload() map[string]string {
	if c.Type == TypeAPIKey {
		return map[string]string{"type": string(TypeAPIKey), "key": c.Key}
	}
	return map[string]string{"type": string(TypeLocal), "authFileContent": c.AuthFileContent}
}

// LogValue implements slog.LogValuer so secrets never reach log output.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", string(c.Type)),
		slog.String("secret", redacted(c.Secret())),
	)
}

func redacted(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}
