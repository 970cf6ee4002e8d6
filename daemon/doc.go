// Package daemon implements the protocol layer of the XPipe daemon HTTP API.
//
// Every operation is a POST (or GET for the version endpoint) against a path
// below the daemon's base URL, carrying a JSON body and returning JSON or raw
// file content. Requests other than the handshake are authenticated with a
// bearer session token supplied by the transport.
//
// # Subpackages
//
//   - auth: credentials, local auth-file discovery, bearer sessions
//   - transport: HTTP transport layer
//
// # Operations
//
//   - Handshake, DaemonVersion
//   - ConnectionQuery, ConnectionInfo, ConnectionAdd, ConnectionRemove
//   - ConnectionBrowse, ConnectionTerminal, ConnectionToggle, ConnectionRefresh
//   - ShellStart, ShellStop, ShellExec
//   - FsBlob, FsWrite, FsScript, FsRead, FsReadStream
//
// # Errors
//
// Statuses >= 400 become *APIError unless disabled with WithRaiseErrors.
// A 400 or 500 response carrying a parsable message has that message folded
// into the error text. A handshake that yields no session token returns
// *AuthError.
package daemon
