package daemon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/smnsjas/go-xpipe/daemon/auth"
	"github.com/smnsjas/go-xpipe/daemon/transport"
	"github.com/smnsjas/go-xpipe/internal/daemontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient returns a client with an established session against srv.
func newTestClient(t *testing.T, srv *daemontest.Server, opts ...Option) *Client {
	t.Helper()

	tr := transport.NewHTTPTransport()
	c := NewClient(srv.URL+"/", tr, opts...)

	token, err := c.Handshake(context.Background(), auth.APIKey(daemontest.DefaultAPIKey))
	require.NoError(t, err)

	hc := tr.Client()
	hc.Transport = auth.NewBearerAuth(auth.StaticToken(token)).Transport(hc.Transport)
	return c
}

func TestNewClient_TrimsBaseURL(t *testing.T) {
	c := NewClient("/http://127.0.0.1:21721/", transport.NewHTTPTransport())
	assert.Equal(t, "http://127.0.0.1:21721", c.BaseURL())
	assert.True(t, c.RaiseErrors())
}

func TestHandshake(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()

	c := NewClient(srv.URL, transport.NewHTTPTransport(), WithClientName("my_client"))
	token, err := c.Handshake(context.Background(), auth.APIKey(daemontest.DefaultAPIKey))
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	reqs := srv.RequestsTo(PathHandshake)
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Authorization)
	body := reqs[0].JSON()
	assert.Equal(t, map[string]any{"type": "ApiKey", "key": daemontest.DefaultAPIKey}, body["auth"])
	assert.Equal(t, map[string]any{"type": "Api", "name": "my_client"}, body["client"])
}

func TestHandshake_Local(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()

	c := NewClient(srv.URL, transport.NewHTTPTransport())
	_, err := c.Handshake(context.Background(), auth.Local(daemontest.DefaultAuthFileContent))
	require.NoError(t, err)

	body := srv.RequestsTo(PathHandshake)[0].JSON()
	assert.Equal(t, map[string]any{"type": "Local", "authFileContent": daemontest.DefaultAuthFileContent}, body["auth"])
	assert.Equal(t, "go_xpipe_api", body["client"].(map[string]any)["name"])
}

func TestHandshake_Failure(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()

	c := NewClient(srv.URL, transport.NewHTTPTransport())
	_, err := c.Handshake(context.Background(), auth.APIKey("wrong"))
	require.Error(t, err)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Contains(t, authErr.Response, "Authentication failed")
	assert.True(t, IsAuthError(err))
}

func TestHandshake_NonJSON(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()
	srv.FailNext(PathHandshake, http.StatusOK, "not json")

	c := NewClient(srv.URL, transport.NewHTTPTransport())
	_, err := c.Handshake(context.Background(), auth.APIKey(daemontest.DefaultAPIKey))
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "not json", authErr.Response)
}

func TestDaemonVersion(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()
	srv.SetVersion("15.2")

	c := newTestClient(t, srv)
	v, err := c.DaemonVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "15.2", v.Version)
	assert.Equal(t, "21.0.2", v.JavaVersion)

	req := srv.RequestsTo(PathDaemonVersion)[0]
	assert.Equal(t, http.MethodGet, req.Method)
	assert.True(t, strings.HasPrefix(req.Authorization, "Bearer "))
}

func TestConnectionQueryAndInfo(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()
	web := srv.AddConnection("web", "prod", "ssh")
	db := srv.AddConnection("db", "prod", "ssh")
	srv.AddConnection("local", "dev", "local")

	c := newTestClient(t, srv)
	ctx := context.Background()

	ids, err := c.ConnectionQuery(ctx, QueryFilter{Categories: "prod"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{web, db}, ids)

	body := srv.RequestsTo(PathConnectionQuery)[0].JSON()
	assert.Equal(t, "prod", body["categoryFilter"])
	assert.Equal(t, "*", body["connectionFilter"])
	assert.Equal(t, "*", body["typeFilter"])

	infos, err := c.ConnectionInfo(ctx, ids...)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, web, infos[0].Connection)
	assert.Equal(t, []string{"web"}, infos[0].Name)
	assert.Equal(t, "ssh", infos[1].Type)

	none, err := c.ConnectionQuery(ctx, QueryFilter{Types: "docker"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestConnectionInfo_SingleIDIsList(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()
	id := srv.AddConnection("web", "prod", "ssh")

	c := newTestClient(t, srv)
	_, err := c.ConnectionInfo(context.Background(), id)
	require.NoError(t, err)

	body := srv.RequestsTo(PathConnectionInfo)[0].JSON()
	assert.Equal(t, []any{id.String()}, body["connections"])
}

func TestConnectionAddRemove(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx := context.Background()

	id, err := c.ConnectionAdd(ctx, "box", map[string]any{"type": "ssh", "host": "example.com"}, true)
	require.NoError(t, err)
	conn, ok := srv.Connection(id)
	require.True(t, ok)
	assert.Equal(t, "ssh", conn.Type)

	body := srv.RequestsTo(PathConnectionAdd)[0].JSON()
	assert.Equal(t, true, body["validate"])
	assert.Equal(t, "box", body["name"])

	require.NoError(t, c.ConnectionRemove(ctx, id))
	_, ok = srv.Connection(id)
	assert.False(t, ok)
}

func TestConnectionActions(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()
	id := srv.AddConnection("tunnel", "prod", "sshTunnel")

	c := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, c.ConnectionBrowse(ctx, id, ""))
	require.NoError(t, c.ConnectionTerminal(ctx, id, "/var/log"))
	require.NoError(t, c.ConnectionToggle(ctx, id, true))
	require.NoError(t, c.ConnectionRefresh(ctx, id))

	browse := srv.RequestsTo(PathConnectionBrowse)[0].JSON()
	_, hasDir := browse["directory"]
	assert.False(t, hasDir, "empty directory must be omitted")

	term := srv.RequestsTo(PathConnectionTerminal)[0].JSON()
	assert.Equal(t, "/var/log", term["directory"])

	conn, _ := srv.Connection(id)
	assert.True(t, conn.Enabled)
}

func TestShell(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()
	srv.SetExec(func(_ uuid.UUID, command string) (int, string, string) {
		if command == "false" {
			return 1, "", "failed"
		}
		return 0, "ran " + command, ""
	})
	id := srv.AddConnection("box", "prod", "ssh")

	c := newTestClient(t, srv)
	ctx := context.Background()

	info, err := c.ShellStart(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Linux", info.OSType)

	res, err := c.ShellExec(ctx, id, "uptime")
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, "ran uptime", res.Stdout)

	res, err = c.ShellExec(ctx, id, "false")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "failed", res.Stderr)

	require.NoError(t, c.ShellStop(ctx, id))
	assert.False(t, srv.ShellOpen(id))
}

func TestShellStart_EmptyBody(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()
	id := srv.AddConnection("box", "prod", "ssh")
	srv.FailNext(PathShellStart, http.StatusOK, "")

	c := newTestClient(t, srv)
	info, err := c.ShellStart(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, ShellInfo{}, *info)
}

func TestFs(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()
	id := srv.AddConnection("box", "prod", "ssh")

	c := newTestClient(t, srv)
	ctx := context.Background()

	blob, err := c.FsBlob(ctx, strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, transport.ContentTypeOctetStream, srv.RequestsTo(PathFsBlob)[0].ContentType)

	require.NoError(t, c.FsWrite(ctx, id, blob, "/home/user/hello.txt"))

	data, err := c.FsRead(ctx, id, "/home/user/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	rc, err := c.FsReadStream(ctx, id, "/home/user/hello.txt")
	require.NoError(t, err)
	streamed, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(streamed))

	path, err := c.FsScript(ctx, id, blob)
	require.NoError(t, err)
	assert.Contains(t, path, blob.String())
}

func TestErrors_ClientError(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.ConnectionRefresh(context.Background(), uuid.New())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.True(t, apiErr.IsClientError())
	assert.Contains(t, apiErr.Message, "Client Error for "+srv.URL+PathConnectionRefresh+": Unknown connection")
}

func TestErrors_ServerError(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()
	id := srv.AddConnection("box", "prod", "ssh")

	c := newTestClient(t, srv)
	_, err := c.FsRead(context.Background(), id, "/missing")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsServerError())
	assert.Equal(t, "Server Error for "+srv.URL+PathFsRead+": No such file: /missing", apiErr.Message)
}

func TestErrors_Unauthorized(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()

	called := 0
	c := newTestClient(t, srv, WithUnauthorizedHandler(func() { called++ }))
	srv.RevokeSessions()

	_, err := c.ConnectionQuery(context.Background(), QueryFilter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, 1, called)
}

func TestErrors_RaiseDisabled(t *testing.T) {
	srv := daemontest.New()
	defer srv.Close()
	srv.FailNext(PathShellExec, http.StatusInternalServerError, `{"exitCode":3}`)
	id := srv.AddConnection("box", "prod", "ssh")

	c := newTestClient(t, srv, WithRaiseErrors(false))
	res, err := c.ShellExec(context.Background(), id, "ls")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)

	srv.FailNext(PathFsRead, http.StatusInternalServerError, "raw failure")
	data, err := c.FsRead(context.Background(), id, "/x")
	require.NoError(t, err)
	assert.Equal(t, "raw failure", string(data))
}
