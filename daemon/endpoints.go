package daemon

// Daemon API endpoint paths, relative to the base URL.
const (
	PathHandshake     = "/handshake"
	PathDaemonVersion = "/daemon/version"

	PathConnectionQuery    = "/connection/query"
	PathConnectionInfo     = "/connection/info"
	PathConnectionAdd      = "/connection/add"
	PathConnectionRemove   = "/connection/remove"
	PathConnectionBrowse   = "/connection/browse"
	PathConnectionTerminal = "/connection/terminal"
	PathConnectionToggle   = "/connection/toggle"
	PathConnectionRefresh  = "/connection/refresh"

	PathShellStart = "/shell/start"
	PathShellStop  = "/shell/stop"
	PathShellExec  = "/shell/exec"

	PathFsBlob   = "/fs/blob"
	PathFsWrite  = "/fs/write"
	PathFsScript = "/fs/script"
	PathFsRead   = "/fs/read"
)

// Wildcard matches everything in a connection query filter.
const Wildcard = "*"

// ClientTypeAPI is the client type announced during the handshake.
const ClientTypeAPI = "Api"

// DefaultClientName is the client name announced during the handshake.
const DefaultClientName = "go_xpipe_api"
