// Package auth provides authentication handlers for XPipe daemon connections.
//
// # Credentials
//
// The daemon accepts two kinds of handshake credentials:
//
//   - ApiKey: a key the user created in the daemon's settings
//   - Local: the content of the auth file the daemon writes to the temp
//     directory on startup, proving the client runs as the same user
//
// # Sessions
//
// A successful handshake yields a session token. BearerAuth wraps an
// http.RoundTripper and attaches that token to every request, obtaining it
// from a TokenSource. Requests whose context is marked with Anonymous are
// sent without it.
//
// # Usage
//
// API key authentication:
//
//	creds := auth.APIKey("my-key")
//
// Local authentication:
//
//	creds, err := auth.LoadLocal(auth.LocalAuthFilePath(false))
//	if err != nil {
//	    log.Fatal(err) // errors.Is(err, auth.ErrNoToken)
//	}
package auth
