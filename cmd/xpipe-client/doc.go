// Command xpipe-client talks to a running XPipe daemon.
//
// Usage:
//
//	xpipe-client connections --type ssh
//	xpipe-client shell exec <connection> -- uname -a
//	xpipe-client fs upload ./build.tar.gz <connection> /tmp/build.tar.gz
//	xpipe-client config init
//
// Settings are read from ~/.config/xpipe-client/config.toml. Flags take
// precedence over the file, which takes precedence over the defaults.
package main
