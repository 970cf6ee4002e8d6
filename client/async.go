package client

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

// ErrPending is returned by Future.Result while the operation is running.
var ErrPending = errors.New("client: operation still pending")

// Future is the eventual result of an asynchronous operation.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Done is closed when the operation has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the operation finishes or ctx is done. Cancelling ctx
// stops waiting; it does not cancel the operation.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking, or ErrPending.
func (f *Future[T]) Result() (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
		var zero T
		return zero, ErrPending
	}
}

// AsyncClient runs daemon operations in the background and returns futures.
// Independent futures complete in no particular order.
type AsyncClient struct {
	client *Client
	sem    *opSemaphore
	owned  bool
}

// NewAsync creates an AsyncClient with its own underlying Client.
func NewAsync(cfg Config) (*AsyncClient, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	a := FromSyncClient(c)
	a.owned = true
	return a, nil
}

// FromSyncClient creates an AsyncClient sharing c's credentials, base URL
// and cached session.
func FromSyncClient(c *Client) *AsyncClient {
	return &AsyncClient{
		client: c,
		sem:    newOpSemaphore(c.config.MaxConcurrent, c.config.MaxQueue, c.config.AcquireTimeout),
	}
}

// Sync returns the underlying synchronous client.
func (a *AsyncClient) Sync() *Client {
	return a.client
}

// Stats returns busy slots, queued operations and the slot limit.
func (a *AsyncClient) Stats() (active, queued, max int) {
	return a.sem.Stats()
}

// Close closes the underlying client when it was created by NewAsync.
func (a *AsyncClient) Close() error {
	if a.owned {
		return a.client.Close()
	}
	return nil
}

// goAsync runs fn once a slot is free and resolves the returned future.
func goAsync[T any](ctx context.Context, a *AsyncClient, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		defer close(f.done)
		if err := a.sem.Acquire(ctx); err != nil {
			f.err = err
			return
		}
		defer a.sem.Release()
		f.val, f.err = fn(ctx)
	}()
	return f
}

func goAsyncErr(ctx context.Context, a *AsyncClient, fn func(context.Context) error) *Future[struct{}] {
	return goAsync(ctx, a, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// RenewSession performs a new handshake.
func (a *AsyncClient) RenewSession(ctx context.Context) *Future[struct{}] {
	return goAsyncErr(ctx, a, a.client.RenewSession)
}

// DaemonVersion returns version information about the running daemon.
func (a *AsyncClient) DaemonVersion(ctx context.Context) *Future[*DaemonVersion] {
	return goAsync(ctx, a, a.client.DaemonVersion)
}

// ConnectionQuery returns the IDs of connections matching filter.
func (a *AsyncClient) ConnectionQuery(ctx context.Context, filter QueryFilter) *Future[[]uuid.UUID] {
	return goAsync(ctx, a, func(ctx context.Context) ([]uuid.UUID, error) {
		return a.client.ConnectionQuery(ctx, filter)
	})
}

// ConnectionInfo returns details for the given connections.
func (a *AsyncClient) ConnectionInfo(ctx context.Context, ids ...uuid.UUID) *Future[[]ConnectionInfo] {
	return goAsync(ctx, a, func(ctx context.Context) ([]ConnectionInfo, error) {
		return a.client.ConnectionInfo(ctx, ids...)
	})
}

// GetConnections queries connections matching filter and returns their details.
func (a *AsyncClient) GetConnections(ctx context.Context, filter QueryFilter) *Future[[]ConnectionInfo] {
	return goAsync(ctx, a, func(ctx context.Context) ([]ConnectionInfo, error) {
		return a.client.GetConnections(ctx, filter)
	})
}

// ConnectionAdd stores a new connection.
func (a *AsyncClient) ConnectionAdd(ctx context.Context, name string, data any, validate bool) *Future[uuid.UUID] {
	return goAsync(ctx, a, func(ctx context.Context) (uuid.UUID, error) {
		return a.client.ConnectionAdd(ctx, name, data, validate)
	})
}

// ConnectionRemove deletes the given connections.
func (a *AsyncClient) ConnectionRemove(ctx context.Context, ids ...uuid.UUID) *Future[struct{}] {
	return goAsyncErr(ctx, a, func(ctx context.Context) error {
		return a.client.ConnectionRemove(ctx, ids...)
	})
}

// ConnectionBrowse opens the file browser for a connection.
func (a *AsyncClient) ConnectionBrowse(ctx context.Context, conn uuid.UUID, directory string) *Future[struct{}] {
	return goAsyncErr(ctx, a, func(ctx context.Context) error {
		return a.client.ConnectionBrowse(ctx, conn, directory)
	})
}

// ConnectionTerminal opens a terminal for a connection.
func (a *AsyncClient) ConnectionTerminal(ctx context.Context, conn uuid.UUID, directory string) *Future[struct{}] {
	return goAsyncErr(ctx, a, func(ctx context.Context) error {
		return a.client.ConnectionTerminal(ctx, conn, directory)
	})
}

// ConnectionToggle switches a toggleable connection on or off.
func (a *AsyncClient) ConnectionToggle(ctx context.Context, conn uuid.UUID, state bool) *Future[struct{}] {
	return goAsyncErr(ctx, a, func(ctx context.Context) error {
		return a.client.ConnectionToggle(ctx, conn, state)
	})
}

// ConnectionRefresh refreshes the children of a connection.
func (a *AsyncClient) ConnectionRefresh(ctx context.Context, conn uuid.UUID) *Future[struct{}] {
	return goAsyncErr(ctx, a, func(ctx context.Context) error {
		return a.client.ConnectionRefresh(ctx, conn)
	})
}

// ShellStart opens a shell session for a connection.
func (a *AsyncClient) ShellStart(ctx context.Context, conn uuid.UUID) *Future[*ShellInfo] {
	return goAsync(ctx, a, func(ctx context.Context) (*ShellInfo, error) {
		return a.client.ShellStart(ctx, conn)
	})
}

// ShellStop closes the shell session of a connection.
func (a *AsyncClient) ShellStop(ctx context.Context, conn uuid.UUID) *Future[struct{}] {
	return goAsyncErr(ctx, a, func(ctx context.Context) error {
		return a.client.ShellStop(ctx, conn)
	})
}

// ShellExec runs command in the shell session of a connection.
func (a *AsyncClient) ShellExec(ctx context.Context, conn uuid.UUID, command string) *Future[*ExecResult] {
	return goAsync(ctx, a, func(ctx context.Context) (*ExecResult, error) {
		return a.client.ShellExec(ctx, conn, command)
	})
}

// FsBlob uploads data and returns the blob ID. data is read from the
// background goroutine.
func (a *AsyncClient) FsBlob(ctx context.Context, data io.Reader) *Future[uuid.UUID] {
	return goAsync(ctx, a, func(ctx context.Context) (uuid.UUID, error) {
		return a.client.FsBlob(ctx, data)
	})
}

// FsWrite writes a blob to path on a connection.
func (a *AsyncClient) FsWrite(ctx context.Context, conn, blob uuid.UUID, path string) *Future[struct{}] {
	return goAsyncErr(ctx, a, func(ctx context.Context) error {
		return a.client.FsWrite(ctx, conn, blob, path)
	})
}

// FsScript turns a blob into an executable script and returns its path.
func (a *AsyncClient) FsScript(ctx context.Context, conn, blob uuid.UUID) *Future[string] {
	return goAsync(ctx, a, func(ctx context.Context) (string, error) {
		return a.client.FsScript(ctx, conn, blob)
	})
}

// FsRead returns the content of a remote file.
func (a *AsyncClient) FsRead(ctx context.Context, conn uuid.UUID, path string) *Future[[]byte] {
	return goAsync(ctx, a, func(ctx context.Context) ([]byte, error) {
		return a.client.FsRead(ctx, conn, path)
	})
}

// FsReadStream returns a remote file as a stream. The caller must close it.
// The operation slot is released once the response headers arrived.
func (a *AsyncClient) FsReadStream(ctx context.Context, conn uuid.UUID, path string) *Future[io.ReadCloser] {
	return goAsync(ctx, a, func(ctx context.Context) (io.ReadCloser, error) {
		return a.client.FsReadStream(ctx, conn, path)
	})
}
