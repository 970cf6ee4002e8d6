package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/smnsjas/go-xpipe/daemon/auth"
	"github.com/smnsjas/go-xpipe/daemon/transport"
)

// maxErrorBody bounds how much of a failed streamed response is buffered.
const maxErrorBody = 64 * 1024

// Client issues typed requests against the daemon HTTP API.
//
// Client does not manage sessions. Authentication is attached by the
// transport's RoundTripper (see auth.BearerAuth).
type Client struct {
	baseURL        string
	transport      *transport.HTTPTransport
	raiseErrors    bool
	clientName     string
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithRaiseErrors controls whether statuses >= 400 become APIErrors.
// When disabled the response body is decoded as if the call succeeded.
func WithRaiseErrors(raise bool) Option {
	return func(c *Client) { c.raiseErrors = raise }
}

// WithClientName sets the client name announced during the handshake.
func WithClientName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.clientName = name
		}
	}
}

// WithUnauthorizedHandler registers fn to be called whenever the daemon
// answers 401, regardless of the raise-errors setting.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// NewClient creates a daemon client for baseURL. Leading and trailing
// slashes are trimmed from baseURL.
func NewClient(baseURL string, tr *transport.HTTPTransport, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.Trim(baseURL, "/"),
		transport:   tr,
		raiseErrors: true,
		clientName:  DefaultClientName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RaiseErrors reports whether failed statuses are turned into errors.
func (c *Client) RaiseErrors() bool {
	return c.raiseErrors
}

// Handshake exchanges creds for a session token. The request is sent
// without a bearer token. A response without a session token yields an
// *AuthError carrying the response body.
func (c *Client) Handshake(ctx context.Context, creds auth.Credentials) (string, error) {
	payload, err := json.Marshal(handshakeRequest{
		Auth:   creds.HandshakePayload(),
		Client: handshakeClient{Type: ClientTypeAPI, Name: c.clientName},
	})
	if err != nil {
		return "", fmt.Errorf("handshake: marshal request: %w", err)
	}

	resp, err := c.transport.Do(auth.Anonymous(ctx), http.MethodPost, c.url(PathHandshake),
		transport.ContentTypeJSON, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("handshake: %w", err)
	}

	var parsed struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil || parsed.SessionToken == "" {
		return "", &AuthError{Response: strings.TrimSpace(string(resp.Body))}
	}
	return parsed.SessionToken, nil
}

// DaemonVersion returns version information about the running daemon.
func (c *Client) DaemonVersion(ctx context.Context) (*DaemonVersion, error) {
	resp, err := c.do(ctx, http.MethodGet, PathDaemonVersion, "", nil)
	if err != nil {
		return nil, fmt.Errorf("daemon version: %w", err)
	}
	var v DaemonVersion
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return nil, fmt.Errorf("daemon version: decode response: %w", err)
	}
	return &v, nil
}

// ConnectionQuery returns the IDs of connections matching filter.
func (c *Client) ConnectionQuery(ctx context.Context, filter QueryFilter) ([]uuid.UUID, error) {
	var out connectionQueryResponse
	if err := c.postJSON(ctx, PathConnectionQuery, filter.request(), &out); err != nil {
		return nil, fmt.Errorf("connection query: %w", err)
	}
	if out.Found == nil {
		return []uuid.UUID{}, nil
	}
	return out.Found, nil
}

// ConnectionInfo returns details for the given connections.
func (c *Client) ConnectionInfo(ctx context.Context, ids ...uuid.UUID) ([]ConnectionInfo, error) {
	var out connectionInfoResponse
	if err := c.postJSON(ctx, PathConnectionInfo, connectionsRequest{Connections: nonNil(ids)}, &out); err != nil {
		return nil, fmt.Errorf("connection info: %w", err)
	}
	if out.Infos == nil {
		return []ConnectionInfo{}, nil
	}
	return out.Infos, nil
}

// ConnectionAdd stores a new connection and returns its ID. data is the
// connection store entry and is sent as-is. When validate is true the daemon
// tests the connection before storing it.
func (c *Client) ConnectionAdd(ctx context.Context, name string, data any, validate bool) (uuid.UUID, error) {
	var out connectionAddResponse
	req := connectionAddRequest{Name: name, Data: data, Validate: validate}
	if err := c.postJSON(ctx, PathConnectionAdd, req, &out); err != nil {
		return uuid.Nil, fmt.Errorf("connection add: %w", err)
	}
	if out.Connection == nil {
		return uuid.Nil, errors.New("connection add: response missing connection")
	}
	return *out.Connection, nil
}

// ConnectionRemove deletes the given connections.
func (c *Client) ConnectionRemove(ctx context.Context, ids ...uuid.UUID) error {
	if err := c.postJSON(ctx, PathConnectionRemove, connectionsRequest{Connections: nonNil(ids)}, nil); err != nil {
		return fmt.Errorf("connection remove: %w", err)
	}
	return nil
}

// ConnectionBrowse opens the daemon's file browser for a connection,
// optionally starting in directory.
func (c *Client) ConnectionBrowse(ctx context.Context, id uuid.UUID, directory string) error {
	if err := c.postJSON(ctx, PathConnectionBrowse, connectionRequest{Connection: id, Directory: directory}, nil); err != nil {
		return fmt.Errorf("connection browse: %w", err)
	}
	return nil
}

// ConnectionTerminal opens a terminal session for a connection, optionally
// starting in directory.
func (c *Client) ConnectionTerminal(ctx context.Context, id uuid.UUID, directory string) error {
	if err := c.postJSON(ctx, PathConnectionTerminal, connectionRequest{Connection: id, Directory: directory}, nil); err != nil {
		return fmt.Errorf("connection terminal: %w", err)
	}
	return nil
}

// ConnectionToggle switches a toggleable connection (e.g. a tunnel) on or off.
func (c *Client) ConnectionToggle(ctx context.Context, id uuid.UUID, state bool) error {
	if err := c.postJSON(ctx, PathConnectionToggle, connectionToggleRequest{Connection: id, State: state}, nil); err != nil {
		return fmt.Errorf("connection toggle: %w", err)
	}
	return nil
}

// ConnectionRefresh refreshes the children of a connection.
func (c *Client) ConnectionRefresh(ctx context.Context, id uuid.UUID) error {
	if err := c.postJSON(ctx, PathConnectionRefresh, connectionRequest{Connection: id}, nil); err != nil {
		return fmt.Errorf("connection refresh: %w", err)
	}
	return nil
}

// ShellStart opens a shell session for a connection. An empty response
// yields a zero ShellInfo.
func (c *Client) ShellStart(ctx context.Context, id uuid.UUID) (*ShellInfo, error) {
	var out ShellInfo
	if err := c.postJSON(ctx, PathShellStart, connectionRequest{Connection: id}, &out); err != nil {
		return nil, fmt.Errorf("shell start: %w", err)
	}
	return &out, nil
}

// ShellStop closes the shell session of a connection.
func (c *Client) ShellStop(ctx context.Context, id uuid.UUID) error {
	if err := c.postJSON(ctx, PathShellStop, connectionRequest{Connection: id}, nil); err != nil {
		return fmt.Errorf("shell stop: %w", err)
	}
	return nil
}

// ShellExec runs command in the connection's shell session. The shell must
// have been started with ShellStart.
func (c *Client) ShellExec(ctx context.Context, id uuid.UUID, command string) (*ExecResult, error) {
	var out ExecResult
	if err := c.postJSON(ctx, PathShellExec, shellExecRequest{Connection: id, Command: command}, &out); err != nil {
		return nil, fmt.Errorf("shell exec: %w", err)
	}
	return &out, nil
}

// FsBlob uploads data to the daemon and returns the blob ID.
func (c *Client) FsBlob(ctx context.Context, data io.Reader) (uuid.UUID, error) {
	if data == nil {
		data = http.NoBody
	}
	resp, err := c.do(ctx, http.MethodPost, PathFsBlob, transport.ContentTypeOctetStream, data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("fs blob: %w", err)
	}
	var out blobResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return uuid.Nil, fmt.Errorf("fs blob: decode response: %w", err)
	}
	if out.Blob == nil {
		return uuid.Nil, errors.New("fs blob: response missing blob")
	}
	return *out.Blob, nil
}

// FsWrite writes a previously uploaded blob to path on the connection.
func (c *Client) FsWrite(ctx context.Context, id, blob uuid.UUID, path string) error {
	if err := c.postJSON(ctx, PathFsWrite, fsWriteRequest{Connection: id, Blob: blob, Path: path}, nil); err != nil {
		return fmt.Errorf("fs write: %w", err)
	}
	return nil
}

// FsScript turns a blob into an executable script on the connection and
// returns its remote path.
func (c *Client) FsScript(ctx context.Context, id, blob uuid.UUID) (string, error) {
	var out fsScriptResponse
	if err := c.postJSON(ctx, PathFsScript, fsScriptRequest{Connection: id, Blob: blob}, &out); err != nil {
		return "", fmt.Errorf("fs script: %w", err)
	}
	if out.Path == nil {
		return "", errors.New("fs script: response missing path")
	}
	return *out.Path, nil
}

// FsRead returns the content of the file at path on the connection.
func (c *Client) FsRead(ctx context.Context, id uuid.UUID, path string) ([]byte, error) {
	rc, err := c.FsReadStream(ctx, id, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := transport.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fs read: %w", err)
	}
	return data, nil
}

// FsReadStream returns the file content as a stream. The caller must close it.
func (c *Client) FsReadStream(ctx context.Context, id uuid.UUID, path string) (io.ReadCloser, error) {
	payload, err := json.Marshal(fsReadRequest{Connection: id, Path: path})
	if err != nil {
		return nil, fmt.Errorf("fs read: marshal request: %w", err)
	}

	url := c.url(PathFsRead)
	resp, err := c.transport.Stream(ctx, http.MethodPost, url, transport.ContentTypeJSON, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("fs read: %w", err)
	}

	if resp.StatusCode >= 400 {
		body, _ := transport.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err := c.check(resp.StatusCode, url, body); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("fs read: %w", err)
		}
		// Errors are not raised: hand back what was read plus the rest.
		return struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}, nil
	}
	return resp.Body, nil
}

// CloseIdleConnections closes any idle connections in the underlying transport.
func (c *Client) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*transport.Response, error) {
	resp, err := c.transport.Do(ctx, method, c.url(path), contentType, body)
	if err != nil {
		return nil, err
	}
	if err := c.check(resp.StatusCode, resp.URL, resp.Body); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) check(status int, url string, body []byte) error {
	if status == http.StatusUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized()
	}
	if c.raiseErrors && status >= 400 {
		return NewAPIError(status, url, body)
	}
	return nil
}

// postJSON sends in as JSON and decodes a non-empty response into out.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, transport.ContentTypeJSON, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
