// Package client provides a high-level API for the XPipe daemon.
//
// This is the recommended entry point for most users. It handles:
//   - Credential discovery (API key or the daemon's local auth file)
//   - Lazy session handshake and daemon version check
//   - Synchronous and asynchronous calling conventions
//
// # Quick Start
//
//	c, err := client.New(client.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err) // errors.Is(err, auth.ErrNoToken) when no daemon runs
//	}
//	defer c.Close()
//
//	conns, err := c.GetConnections(ctx, client.QueryFilter{Types: "ssh"})
//
// # Sessions
//
// The first operation performs the handshake. The session is reused until
// the daemon answers 401, after which the next operation shakes hands again.
// Nothing is retried automatically.
//
// # Async
//
// AsyncClient returns a *Future for every operation. Use FromSyncClient to
// share a session with an existing Client.
package client
