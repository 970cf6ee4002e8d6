package daemon

import "github.com/google/uuid"

// DaemonVersion describes the running daemon.
type DaemonVersion struct {
	Version          string `json:"version"`
	CanonicalVersion string `json:"canonicalVersion"`
	BuildVersion     string `json:"buildVersion"`
	JavaVersion      string `json:"jvmVersion"`
	Pro              bool   `json:"pro"`
}

// ConnectionInfo describes a stored connection as returned by connection/info.
type ConnectionInfo struct {
	Connection uuid.UUID `json:"connection"`

	// Category is the category path, outermost first.
	Category []string `json:"category"`

	// Name is the name path, outermost first.
	Name []string `json:"name"`

	Type          string         `json:"type"`
	RawData       map[string]any `json:"rawData,omitempty"`
	UsageCategory string         `json:"usageCategory,omitempty"`
	LastModified  string         `json:"lastModified,omitempty"`
	LastUsed      string         `json:"lastUsed,omitempty"`
	State         map[string]any `json:"state,omitempty"`
	Cache         map[string]any `json:"cache,omitempty"`
}

// ShellInfo describes a shell session opened by shell/start.
type ShellInfo struct {
	ShellDialect int    `json:"shellDialect"`
	OSType       string `json:"osType"`
	OSName       string `json:"osName"`
	TTYState     string `json:"ttyState"`
	Temp         string `json:"temp"`
}

// ExecResult is the outcome of shell/exec.
type ExecResult struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Success reports whether the command exited with status 0.
func (r ExecResult) Success() bool {
	return r.ExitCode == 0
}

// QueryFilter selects connections by glob patterns. Empty fields match
// everything.
type QueryFilter struct {
	Categories  string
	Connections string
	Types       string
}

func (f QueryFilter) request() connectionQueryRequest {
	return connectionQueryRequest{
		CategoryFilter:   orWildcard(f.Categories),
		ConnectionFilter: orWildcard(f.Connections),
		TypeFilter:       orWildcard(f.Types),
	}
}

func orWildcard(s string) string {
	if s == "" {
		return Wildcard
	}
	return s
}

// Wire types.

type handshakeRequest struct {
	Auth   map[string]string `json:"auth"`
	Client handshakeClient   `json:"client"`
}

type handshakeClient struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type connectionQueryRequest struct {
	CategoryFilter   string `json:"categoryFilter"`
	ConnectionFilter string `json:"connectionFilter"`
	TypeFilter       string `json:"typeFilter"`
}

type connectionQueryResponse struct {
	Found []uuid.UUID `json:"found"`
}

type connectionsRequest struct {
	Connections []uuid.UUID `json:"connections"`
}

type connectionInfoResponse struct {
	Infos []ConnectionInfo `json:"infos"`
}

type connectionAddRequest struct {
	Name     string `json:"name"`
	Data     any    `json:"data"`
	Validate bool   `json:"validate"`
}

type connectionAddResponse struct {
	Connection *uuid.UUID `json:"connection"`
}

type connectionRequest struct {
	Connection uuid.UUID `json:"connection"`
	Directory  string    `json:"directory,omitempty"`
}

type connectionToggleRequest struct {
	Connection uuid.UUID `json:"connection"`
	State      bool      `json:"state"`
}

type shellExecRequest struct {
	Connection uuid.UUID `json:"connection"`
	Command    string    `json:"command"`
}

type blobResponse struct {
	Blob *uuid.UUID `json:"blob"`
}

type fsWriteRequest struct {
	Connection uuid.UUID `json:"connection"`
	Blob       uuid.UUID `json:"blob"`
	Path       string    `json:"path"`
}

type fsScriptRequest struct {
	Connection uuid.UUID `json:"connection"`
	Blob       uuid.UUID `json:"blob"`
}

type fsScriptResponse struct {
	Path *string `json:"path"`
}

type fsReadRequest struct {
	Connection uuid.UUID `json:"connection"`
	Path       string    `json:"path"`
}
