// Package config loads, normalizes, and validates the xpipe-client
// configuration file.
//
// It supplies defaults, expands tilde paths, reads TOML files and honours
// the XPIPE_API_KEY and XPIPE_BASE_URL environment variables. ClientConfig
// converts the result into a client.Config.
package config
