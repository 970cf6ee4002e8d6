package config

import "github.com/smnsjas/go-xpipe/client"

// Output formats.
const (
	OutputAuto  = "auto"
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// Default returns the built-in configuration.
func Default() Config {
	cc := client.DefaultConfig()
	return Config{
		Daemon: Daemon{
			TimeoutSeconds: int(cc.Timeout.Seconds()),
			ClientName:     cc.ClientName,
			MinVersion:     cc.MinVersion,
		},
		Limits: Limits{
			RateBurst:             cc.RateBurst,
			MaxConcurrent:         cc.MaxConcurrent,
			MaxQueue:              cc.MaxQueue,
			AcquireTimeoutSeconds: int(cc.AcquireTimeout.Seconds()),
		},
		Logging: Logging{
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Output: Output{
			Format: OutputAuto,
		},
	}
}
