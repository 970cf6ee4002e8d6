package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smnsjas/go-xpipe/client"
	"github.com/smnsjas/go-xpipe/internal/config"
)

func newShellCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Control shell sessions of connections",
	}
	cmd.AddCommand(newShellStartCommand(ctx))
	cmd.AddCommand(newShellStopCommand(ctx))
	cmd.AddCommand(newShellExecCommand(ctx))
	return cmd
}

func newShellStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start the shell session of a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				info, err := cl.ShellStart(c, id)
				if err != nil {
					return err
				}
				return ctx.render(cmd, info, func(w io.Writer) error {
					return printTable(w, []string{"Field", "Value"}, [][]string{
						{"OS", info.OSName},
						{"OS Type", info.OSType},
						{"Dialect", fmt.Sprint(info.ShellDialect)},
						{"TTY", info.TTYState},
						{"Temp", info.Temp},
					}, nil)
				})
			})
		},
	}
}

func newShellStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop the shell session of a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				return cl.ShellStop(c, id)
			})
		},
	}
}

func newShellExecCommand(ctx *commandContext) *cobra.Command {
	var start bool

	cmd := &cobra.Command{
		Use:   "exec <id> -- <command>...",
		Short: "Run a command in the shell session of a connection",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}
			command := strings.Join(args[1:], " ")

			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				if start {
					if _, err := cl.ShellStart(c, id); err != nil {
						return err
					}
					defer func() {
						if err := cl.ShellStop(context.WithoutCancel(c), id); err != nil {
							fmt.Fprintf(cmd.ErrOrStderr(), "warning: stop shell: %v\n", err)
						}
					}()
				}

				res, err := cl.ShellExec(c, id, command)
				if err != nil {
					return err
				}
				return ctx.printExecResult(cmd, res)
			})
		},
	}
	cmd.Flags().BoolVar(&start, "start", false, "Start the shell before and stop it after the command")
	return cmd
}

// printExecResult writes the streams of res and maps a non-zero exit code
// to the process exit status.
func (c *commandContext) printExecResult(cmd *cobra.Command, res *client.ExecResult) error {
	if f := c.outputFormat(cmd); f == config.OutputJSON || f == config.OutputYAML {
		return c.render(cmd, res, nil)
	}
	if res.Stdout != "" {
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(res.Stdout, "\n"))
	}
	if res.Stderr != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), strings.TrimRight(res.Stderr, "\n"))
	}
	if !res.Success() {
		return &exitCodeError{code: res.ExitCode}
	}
	return nil
}
