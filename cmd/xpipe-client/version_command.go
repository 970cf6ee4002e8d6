package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/smnsjas/go-xpipe/client"
)

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the daemon version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				v, err := cl.DaemonVersion(c)
				if err != nil {
					return err
				}
				return ctx.render(cmd, v, func(w io.Writer) error {
					return printTable(w, []string{"Field", "Value"}, [][]string{
						{"Version", v.Version},
						{"Canonical", v.CanonicalVersion},
						{"Build", v.BuildVersion},
						{"JVM", v.JavaVersion},
						{"Pro", yesNo(v.Pro)},
						{"Endpoint", cl.BaseURL()},
					}, nil)
				})
			})
		},
	}
}
