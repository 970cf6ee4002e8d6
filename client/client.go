package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/smnsjas/go-xpipe/daemon"
	"github.com/smnsjas/go-xpipe/daemon/auth"
	"github.com/smnsjas/go-xpipe/daemon/transport"
)

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("client: closed")

// Re-exported daemon types.
type (
	DaemonVersion  = daemon.DaemonVersion
	ConnectionInfo = daemon.ConnectionInfo
	ShellInfo      = daemon.ShellInfo
	ExecResult     = daemon.ExecResult
	QueryFilter    = daemon.QueryFilter
)

// pendingSessionKey carries a freshly issued token through the version check
// before it is published to other callers.
type pendingSessionKey struct{}

// Client is a synchronous XPipe daemon client. It is safe for concurrent use.
//
// The session is established lazily by the first operation and reused until
// the daemon rejects it with 401.
type Client struct {
	config   Config
	logger   *slog.Logger
	security *SecurityLogger
	requests *requestCounter

	transport  *transport.HTTPTransport
	daemon     *daemon.Client
	minVersion *Version

	// handshakeMu serializes session establishment.
	handshakeMu sync.Mutex

	mu       sync.RWMutex
	creds    auth.Credentials
	authFile string
	session  string

	watcher *auth.Watcher
	closed  atomic.Bool
}

// New creates a client. Credentials are resolved immediately: the API key
// when configured, else the local auth file. No request is made until the
// first operation.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	creds, authFile, err := resolveCredentials(cfg)
	if err != nil {
		return nil, err
	}

	var minVersion *Version
	if !cfg.SkipVersionCheck && cfg.MinVersion != "" {
		// Validate already parsed it once.
		minVersion, _ = ParseVersion(cfg.MinVersion)
	}

	c := &Client{
		config:     cfg,
		logger:     logger,
		requests:   newRequestCounter(),
		minVersion: minVersion,
		creds:      creds,
		authFile:   authFile,
	}
	c.security = NewSecurityLogger(cfg.Logger, string(creds.Type), cfg.ResolvedBaseURL())

	opts := []transport.HTTPTransportOption{transport.WithTimeout(cfg.Timeout)}
	if cfg.RateLimit > 0 {
		opts = append(opts, transport.WithRateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	c.transport = transport.NewHTTPTransport(opts...)

	bearer := auth.NewBearerAuth(auth.TokenSourceFunc(c.token))
	hc := c.transport.Client()
	hc.Transport = bearer.Transport(hc.Transport)

	c.daemon = daemon.NewClient(cfg.ResolvedBaseURL(), c.transport,
		daemon.WithRaiseErrors(!cfg.IgnoreHTTPErrors),
		daemon.WithClientName(cfg.ClientName),
		daemon.WithUnauthorizedHandler(c.onUnauthorized),
	)

	if cfg.WatchAuthFile && creds.Type == auth.TypeLocal {
		w, err := auth.NewWatcher(authFile, creds, c.onAuthFileChange, auth.WithWatcherLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("watch auth file: %w", err)
		}
		c.watcher = w
	}

	logger.Debug("client created", "config", cfg)
	return c, nil
}

func resolveCredentials(cfg Config) (auth.Credentials, string, error) {
	if cfg.APIKey != "" {
		return auth.APIKey(cfg.APIKey), "", nil
	}
	path := cfg.AuthFile
	if path == "" {
		path = auth.LocalAuthFilePath(cfg.PTB)
	}
	creds, err := auth.LoadLocal(path)
	if err != nil {
		return auth.Credentials{}, "", err
	}
	return creds, path, nil
}

// BaseURL returns the normalized daemon base URL.
func (c *Client) BaseURL() string {
	return c.daemon.BaseURL()
}

// Config returns the configuration the client was created with.
func (c *Client) Config() Config {
	return c.config
}

// Credentials returns the credentials presented during the handshake.
func (c *Client) Credentials() auth.Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// CorrelationID returns the ID attached to this client's security events.
func (c *Client) CorrelationID() string {
	return c.security.CorrelationID()
}

// Session returns the cached session token, or "" when none is held.
func (c *Client) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// HasSession reports whether a session token is cached.
func (c *Client) HasSession() bool {
	return c.Session() != ""
}

// RenewSession performs a new handshake and version check, replacing any
// cached session.
func (c *Client) RenewSession(ctx context.Context) error {
	_, err := c.establish(ctx, true)
	return err
}

// InvalidateSession drops the cached session. The next operation performs
// a new handshake.
func (c *Client) InvalidateSession() {
	c.mu.Lock()
	had := c.session != ""
	c.session = ""
	c.mu.Unlock()

	if had {
		c.security.LogSession(SubtypeSessionInvalidated, OutcomeSuccess, SeverityInfo, nil)
	}
}

// token implements auth.TokenSource for the bearer transport.
func (c *Client) token(ctx context.Context) (string, error) {
	if t, ok := ctx.Value(pendingSessionKey{}).(string); ok {
		return t, nil
	}
	if s := c.Session(); s != "" {
		return s, nil
	}
	return c.establish(ctx, false)
}

// establish performs the handshake and version gate. Concurrent callers
// that find no session wait for a single handshake.
func (c *Client) establish(ctx context.Context, force bool) (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}

	c.handshakeMu.Lock()
	defer c.handshakeMu.Unlock()

	if !force {
		if s := c.Session(); s != "" {
			return s, nil
		}
	}

	creds := c.Credentials()
	c.security.LogAuthentication(SubtypeAuthAttempt, OutcomeAttempt, SeverityInfo, nil)

	token, err := c.daemon.Handshake(ctx, creds)
	if err != nil {
		outcome := OutcomeFailure
		if daemon.IsAuthError(err) {
			outcome = OutcomeDenied
		}
		c.security.LogAuthentication(SubtypeAuthFailure, outcome, SeverityWarning, map[string]any{"error": err.Error()})
		return "", fmt.Errorf("session: %w", err)
	}
	c.security.LogAuthentication(SubtypeAuthSuccess, OutcomeSuccess, SeverityInfo, nil)

	if c.minVersion != nil {
		v, err := c.daemon.DaemonVersion(context.WithValue(ctx, pendingSessionKey{}, token))
		if err == nil {
			err = checkVersion(v.Version, c.minVersion, c.config.MinVersion)
		}
		if err != nil {
			c.logger.Warn("daemon version check failed", "error", err)
			return "", fmt.Errorf("session: %w", err)
		}
		c.logger.Debug("daemon version accepted", "version", v.Version)
	}

	c.mu.Lock()
	c.session = token
	c.mu.Unlock()

	c.security.LogSession(SubtypeSessionOpen, OutcomeSuccess, SeverityInfo, nil)
	return token, nil
}

func (c *Client) onUnauthorized() {
	c.logger.Debug("daemon rejected session, dropping it")
	c.InvalidateSession()
}

func (c *Client) onAuthFileChange(creds auth.Credentials) {
	c.mu.Lock()
	c.creds = creds
	had := c.session != ""
	c.session = ""
	c.mu.Unlock()

	c.logger.Info("local auth file changed, session will be renewed", "path", c.authFile)
	if had {
		c.security.LogSession(SubtypeSessionInvalidated, OutcomeSuccess, SeverityInfo, map[string]any{"reason": "auth file changed"})
	}
}

// Close stops the auth file watcher and releases idle connections.
// Operations after Close return ErrClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	var err error
	if c.watcher != nil {
		err = c.watcher.Close()
	}
	c.transport.CloseIdleConnections()

	c.mu.Lock()
	had := c.session != ""
	c.session = ""
	c.mu.Unlock()
	if had {
		c.security.LogSession(SubtypeSessionClosed, OutcomeSuccess, SeverityInfo, nil)
	}
	return err
}

// IsClosed reports whether Close was called.
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

// begin checks the client is usable and logs the start of op.
func (c *Client) begin(op string) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	id := c.requests.Next()
	c.logger.Debug("daemon request", "op", op, "request_id", id)
	return id, nil
}

func (c *Client) end(op string, id int64, err error) {
	if err != nil {
		c.logger.Debug("daemon request failed", "op", op, "request_id", id, "error", err)
	}
}

// DaemonVersion returns version information about the running daemon.
func (c *Client) DaemonVersion(ctx context.Context) (v *DaemonVersion, err error) {
	id, err := c.begin("DaemonVersion")
	if err != nil {
		return nil, err
	}
	defer func() { c.end("DaemonVersion", id, err) }()
	return c.daemon.DaemonVersion(ctx)
}

// ConnectionQuery returns the IDs of connections matching filter.
func (c *Client) ConnectionQuery(ctx context.Context, filter QueryFilter) (ids []uuid.UUID, err error) {
	id, err := c.begin("ConnectionQuery")
	if err != nil {
		return nil, err
	}
	defer func() { c.end("ConnectionQuery", id, err) }()
	return c.daemon.ConnectionQuery(ctx, filter)
}

// ConnectionInfo returns details for the given connections.
func (c *Client) ConnectionInfo(ctx context.Context, ids ...uuid.UUID) (infos []ConnectionInfo, err error) {
	id, err := c.begin("ConnectionInfo")
	if err != nil {
		return nil, err
	}
	defer func() { c.end("ConnectionInfo", id, err) }()
	return c.daemon.ConnectionInfo(ctx, ids...)
}

// GetConnections queries connections matching filter and returns their
// details. No info request is made when nothing matches.
func (c *Client) GetConnections(ctx context.Context, filter QueryFilter) ([]ConnectionInfo, error) {
	ids, err := c.ConnectionQuery(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []ConnectionInfo{}, nil
	}
	return c.ConnectionInfo(ctx, ids...)
}

// ConnectionAdd stores a new connection and returns its ID.
func (c *Client) ConnectionAdd(ctx context.Context, name string, data any, validate bool) (conn uuid.UUID, err error) {
	id, err := c.begin("ConnectionAdd")
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { c.end("ConnectionAdd", id, err) }()

	conn, err = c.daemon.ConnectionAdd(ctx, name, data, validate)
	if err != nil {
		c.security.LogConnection(SubtypeConnAdded, OutcomeFailure, SeverityWarning, map[string]any{"name": name, "error": err.Error()})
		return uuid.Nil, err
	}
	c.security.LogConnection(SubtypeConnAdded, OutcomeSuccess, SeverityInfo, map[string]any{"name": name, "connection": conn.String()})
	return conn, nil
}

// ConnectionRemove deletes the given connections.
func (c *Client) ConnectionRemove(ctx context.Context, ids ...uuid.UUID) (err error) {
	id, err := c.begin("ConnectionRemove")
	if err != nil {
		return err
	}
	defer func() { c.end("ConnectionRemove", id, err) }()

	if err := c.daemon.ConnectionRemove(ctx, ids...); err != nil {
		c.security.LogConnection(SubtypeConnRemoved, OutcomeFailure, SeverityWarning, map[string]any{"count": len(ids), "error": err.Error()})
		return err
	}
	c.security.LogConnection(SubtypeConnRemoved, OutcomeSuccess, SeverityInfo, map[string]any{"count": len(ids)})
	return nil
}

// ConnectionBrowse opens the file browser for a connection.
func (c *Client) ConnectionBrowse(ctx context.Context, conn uuid.UUID, directory string) (err error) {
	id, err := c.begin("ConnectionBrowse")
	if err != nil {
		return err
	}
	defer func() { c.end("ConnectionBrowse", id, err) }()
	return c.daemon.ConnectionBrowse(ctx, conn, directory)
}

// ConnectionTerminal opens a terminal for a connection.
func (c *Client) ConnectionTerminal(ctx context.Context, conn uuid.UUID, directory string) (err error) {
	id, err := c.begin("ConnectionTerminal")
	if err != nil {
		return err
	}
	defer func() { c.end("ConnectionTerminal", id, err) }()
	return c.daemon.ConnectionTerminal(ctx, conn, directory)
}

// ConnectionToggle switches a toggleable connection on or off.
func (c *Client) ConnectionToggle(ctx context.Context, conn uuid.UUID, state bool) (err error) {
	id, err := c.begin("ConnectionToggle")
	if err != nil {
		return err
	}
	defer func() { c.end("ConnectionToggle", id, err) }()
	return c.daemon.ConnectionToggle(ctx, conn, state)
}

// ConnectionRefresh refreshes the children of a connection.
func (c *Client) ConnectionRefresh(ctx context.Context, conn uuid.UUID) (err error) {
	id, err := c.begin("ConnectionRefresh")
	if err != nil {
		return err
	}
	defer func() { c.end("ConnectionRefresh", id, err) }()
	return c.daemon.ConnectionRefresh(ctx, conn)
}

// ShellStart opens a shell session for a connection.
func (c *Client) ShellStart(ctx context.Context, conn uuid.UUID) (info *ShellInfo, err error) {
	id, err := c.begin("ShellStart")
	if err != nil {
		return nil, err
	}
	defer func() { c.end("ShellStart", id, err) }()
	return c.daemon.ShellStart(ctx, conn)
}

// ShellStop closes the shell session of a connection.
func (c *Client) ShellStop(ctx context.Context, conn uuid.UUID) (err error) {
	id, err := c.begin("ShellStop")
	if err != nil {
		return err
	}
	defer func() { c.end("ShellStop", id, err) }()
	return c.daemon.ShellStop(ctx, conn)
}

// ShellExec runs command in the shell session of a connection.
func (c *Client) ShellExec(ctx context.Context, conn uuid.UUID, command string) (res *ExecResult, err error) {
	id, err := c.begin("ShellExec")
	if err != nil {
		return nil, err
	}
	defer func() { c.end("ShellExec", id, err) }()

	details := map[string]any{"connection": conn.String(), "request_id": id}
	c.security.LogCommand(SubtypeCommandExecute, OutcomeAttempt, SeverityInfo, details)

	res, err = c.daemon.ShellExec(ctx, conn, command)
	if err != nil {
		c.security.LogCommand(SubtypeCommandFailed, OutcomeFailure, SeverityWarning,
			map[string]any{"connection": conn.String(), "request_id": id, "error": err.Error()})
		return nil, err
	}
	c.security.LogCommand(SubtypeCommandComplete, OutcomeSuccess, SeverityInfo,
		map[string]any{"connection": conn.String(), "request_id": id, "exit_code": res.ExitCode})
	return res, nil
}

// FsBlob uploads data and returns the blob ID.
func (c *Client) FsBlob(ctx context.Context, data io.Reader) (blob uuid.UUID, err error) {
	id, err := c.begin("FsBlob")
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { c.end("FsBlob", id, err) }()
	return c.daemon.FsBlob(ctx, data)
}

// FsWrite writes a blob to path on a connection.
func (c *Client) FsWrite(ctx context.Context, conn, blob uuid.UUID, path string) (err error) {
	id, err := c.begin("FsWrite")
	if err != nil {
		return err
	}
	defer func() { c.end("FsWrite", id, err) }()
	return c.daemon.FsWrite(ctx, conn, blob, path)
}

// FsScript turns a blob into an executable script and returns its path.
func (c *Client) FsScript(ctx context.Context, conn, blob uuid.UUID) (path string, err error) {
	id, err := c.begin("FsScript")
	if err != nil {
		return "", err
	}
	defer func() { c.end("FsScript", id, err) }()
	return c.daemon.FsScript(ctx, conn, blob)
}

// FsRead returns the content of a remote file.
func (c *Client) FsRead(ctx context.Context, conn uuid.UUID, path string) (data []byte, err error) {
	id, err := c.begin("FsRead")
	if err != nil {
		return nil, err
	}
	defer func() { c.end("FsRead", id, err) }()
	return c.daemon.FsRead(ctx, conn, path)
}

// FsReadStream returns a remote file as a stream. The caller must close it.
func (c *Client) FsReadStream(ctx context.Context, conn uuid.UUID, path string) (rc io.ReadCloser, err error) {
	id, err := c.begin("FsReadStream")
	if err != nil {
		return nil, err
	}
	defer func() { c.end("FsReadStream", id, err) }()
	return c.daemon.FsReadStream(ctx, conn, path)
}
