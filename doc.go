// Package xpipe provides a client for the XPipe daemon HTTP API.
//
// The daemon exposes stored connections, their shell sessions and file
// systems over a local HTTP API. This module adds a typed client with
// lazy session handling on top of it.
//
// # Architecture
//
// The library is organized into layers:
//
//	┌─────────────────────────────────────────────────────────┐
//	│  client/             Sessions, version gate, async API  │
//	├─────────────────────────────────────────────────────────┤
//	│  daemon/             Endpoints, typed requests, errors  │
//	├─────────────────────────────────────────────────────────┤
//	│  daemon/auth/        Credentials, bearer RoundTripper   │
//	├─────────────────────────────────────────────────────────┤
//	│  daemon/transport/   HTTP transport, rate limiting      │
//	└─────────────────────────────────────────────────────────┘
//
// # Quick Start
//
//	cfg := client.DefaultConfig()
//	cfg.APIKey = "my-key" // or leave empty to use the local auth file
//
//	c, err := client.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	conns, err := c.GetConnections(ctx, client.QueryFilter{Types: "ssh"})
package xpipe
