package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/smnsjas/go-xpipe/client"
)

func newFsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fs",
		Short: "Transfer files to and from connections",
	}
	cmd.AddCommand(newFsUploadCommand(ctx))
	cmd.AddCommand(newFsFetchCommand(ctx))
	cmd.AddCommand(newFsReadCommand(ctx))
	cmd.AddCommand(newFsScriptCommand(ctx))
	return cmd
}

type transferFlags struct {
	sha256      string
	maxSize     string
	noOverwrite bool
	progress    bool
}

func (f *transferFlags) register(cmd *cobra.Command, fetch bool) {
	cmd.Flags().StringVar(&f.sha256, "sha256", "", "Expected SHA-256 digest of the content")
	cmd.Flags().StringVar(&f.maxSize, "max-size", "", "Maximum file size, e.g. 500MB (\"0\" disables the limit)")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "Report progress on stderr")
	if fetch {
		cmd.Flags().BoolVar(&f.noOverwrite, "no-overwrite", false, "Fail if the local file exists")
	}
}

func (f *transferFlags) options(cmd *cobra.Command) ([]client.FileTransferOption, error) {
	var opts []client.FileTransferOption
	if f.sha256 != "" {
		opts = append(opts, client.WithExpectedSHA256(f.sha256))
	}
	if f.maxSize != "" {
		size, err := humanize.ParseBytes(f.maxSize)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-size: %w", err)
		}
		if size > math.MaxInt64 {
			return nil, fmt.Errorf("invalid --max-size: %s is too large", f.maxSize)
		}
		limit := int64(size)
		if size == 0 {
			limit = -1
		}
		opts = append(opts, client.WithMaxFileSize(limit))
	}
	if f.noOverwrite {
		opts = append(opts, client.WithNoOverwrite(true))
	}
	if f.progress {
		w := cmd.ErrOrStderr()
		opts = append(opts, client.WithProgressCallback(func(done, total int64) {
			if total > 0 {
				fmt.Fprintf(w, "\r%s / %s", humanize.IBytes(uint64(done)), humanize.IBytes(uint64(total)))
				return
			}
			fmt.Fprintf(w, "\r%s", humanize.IBytes(uint64(done)))
		}))
	}
	return opts, nil
}

func (c *commandContext) printTransfer(cmd *cobra.Command, verb string, res *client.TransferResult, progress bool) error {
	if progress {
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	return c.render(cmd, res, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s %s (sha256 %s)\n", verb, humanize.IBytes(uint64(res.Bytes)), res.SHA256)
		return err
	})
}

func newFsUploadCommand(ctx *commandContext) *cobra.Command {
	var tf transferFlags

	cmd := &cobra.Command{
		Use:   "upload <local-path> <id> <remote-path>",
		Short: "Upload a local file to a connection",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[1])
			if err != nil {
				return err
			}
			opts, err := tf.options(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				res, err := cl.CopyFile(c, args[0], id, args[2], opts...)
				if err != nil {
					return err
				}
				return ctx.printTransfer(cmd, "Uploaded", res, tf.progress)
			})
		},
	}
	tf.register(cmd, false)
	return cmd
}

func newFsFetchCommand(ctx *commandContext) *cobra.Command {
	var tf transferFlags

	cmd := &cobra.Command{
		Use:   "fetch <id> <remote-path> <local-path>",
		Short: "Download a file from a connection",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}
			opts, err := tf.options(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				res, err := cl.FetchFile(c, id, args[1], args[2], opts...)
				if err != nil {
					return err
				}
				return ctx.printTransfer(cmd, "Fetched", res, tf.progress)
			})
		},
	}
	tf.register(cmd, true)
	return cmd
}

func newFsReadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id> <remote-path>",
		Short: "Print a remote file to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				rc, err := cl.FsReadStream(c, id, args[1])
				if err != nil {
					return err
				}
				defer rc.Close()
				_, err = io.Copy(cmd.OutOrStdout(), rc)
				return err
			})
		},
	}
}

func newFsScriptCommand(ctx *commandContext) *cobra.Command {
	var start bool

	cmd := &cobra.Command{
		Use:   "script <id> <script-file|->",
		Short: "Upload a script to a connection and run it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}
			script, err := readScript(cmd, args[1])
			if err != nil {
				return err
			}
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
				res, err := cl.RunScript(c, id, script)
				if err != nil {
					return err
				}
				return ctx.printExecResult(cmd, res)
			})
		},
	}
	cmd.Flags().BoolVar(&start, "start", false, "Start the shell before and stop it after the script")
	return cmd
}

func readScript(cmd *cobra.Command, source string) (string, error) {
	var data []byte
	var err error
	if source == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("script %s is empty", source)
	}
	return string(data), nil
}
