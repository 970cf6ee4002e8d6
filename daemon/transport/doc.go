// Package transport provides the HTTP transport for XPipe daemon communication.
//
// The transport layer handles:
//   - request construction and content types
//   - optional client-side rate limiting
//   - reading responses through pooled buffers
//
// It does not interpret status codes. Mapping failures to errors happens in
// the daemon package.
package transport
