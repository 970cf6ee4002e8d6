package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/smnsjas/go-xpipe/client"
)

func newConnectionsCommand(ctx *commandContext) *cobra.Command {
	var filter client.QueryFilter

	cmd := &cobra.Command{
		Use:   "connections",
		Short: "List connections matching glob filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				infos, err := cl.GetConnections(c, filter)
				if err != nil {
					return err
				}
				return ctx.render(cmd, infos, func(w io.Writer) error {
					rows := make([][]string, 0, len(infos))
					for _, info := range infos {
						rows = append(rows, []string{
							info.Connection.String(),
							strings.Join(info.Name, "/"),
							strings.Join(info.Category, "/"),
							info.Type,
							info.LastUsed,
						})
					}
					return printTable(w, []string{"ID", "Name", "Category", "Type", "Last Used"}, rows, nil)
				})
			})
		},
	}

	cmd.Flags().StringVar(&filter.Categories, "category", "", "Category glob (default *)")
	cmd.Flags().StringVar(&filter.Connections, "name", "", "Connection name glob (default *)")
	cmd.Flags().StringVar(&filter.Types, "type", "", "Connection type glob (default *)")
	return cmd
}

func newConnectionCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connection",
		Short: "Manage a single connection",
	}
	cmd.AddCommand(newConnectionAddCommand(ctx))
	cmd.AddCommand(newConnectionRemoveCommand(ctx))
	cmd.AddCommand(newConnectionOpenCommand(ctx, "browse", "Open the file browser for a connection",
		(*client.Client).ConnectionBrowse))
	cmd.AddCommand(newConnectionOpenCommand(ctx, "terminal", "Open a terminal session for a connection",
		(*client.Client).ConnectionTerminal))
	cmd.AddCommand(newConnectionToggleCommand(ctx))
	cmd.AddCommand(newConnectionRefreshCommand(ctx))
	return cmd
}

func newConnectionAddCommand(ctx *commandContext) *cobra.Command {
	var dataJSON string
	var dataFile string
	var validate bool

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a connection from its JSON store data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readConnectionData(dataJSON, dataFile)
			if err != nil {
				return err
			}
			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				id, err := cl.ConnectionAdd(c, args[0], data, validate)
				if err != nil {
					return err
				}
				return ctx.render(cmd, map[string]string{"connection": id.String()}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, id)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&dataJSON, "data", "", "Connection data as a JSON object")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "Read connection data from a JSON file")
	cmd.Flags().BoolVar(&validate, "validate", false, "Ask the daemon to validate the connection")
	cmd.MarkFlagsMutuallyExclusive("data", "data-file")
	cmd.MarkFlagsOneRequired("data", "data-file")
	return cmd
}

func readConnectionData(dataJSON, dataFile string) (map[string]any, error) {
	raw := []byte(dataJSON)
	if dataFile != "" {
		b, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, fmt.Errorf("read connection data: %w", err)
		}
		raw = b
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("connection data must be a JSON object: %w", err)
	}
	if _, ok := data["type"]; !ok {
		return nil, errors.New(`connection data needs a "type" field`)
	}
	return data, nil
}

func newConnectionRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove connections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseConnectionIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				if err := cl.ConnectionRemove(c, ids...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Removed %d connection(s)\n", len(ids))
				return nil
			})
		},
	}
}

type openFunc func(*client.Client, context.Context, uuid.UUID, string) error

func newConnectionOpenCommand(ctx *commandContext, use, short string, open openFunc) *cobra.Command {
	var directory string

	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				return open(cl, c, id, directory)
			})
		},
	}
	cmd.Flags().StringVarP(&directory, "directory", "d", "", "Initial directory")
	return cmd
}

func newConnectionToggleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "toggle <id> <on|off>",
		Short:     "Enable or disable a connection",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}
			var state bool
			switch strings.ToLower(args[1]) {
			case "on", "true", "enable":
				state = true
			case "off", "false", "disable":
				state = false
			default:
				return fmt.Errorf("state must be on or off, got %q", args[1])
			}
			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				return cl.ConnectionToggle(c, id, state)
			})
		},
	}
}

func newConnectionRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <id>",
		Short: "Refresh a connection's state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(cmd, func(c context.Context, cl *client.Client) error {
				return cl.ConnectionRefresh(c, id)
			})
		},
	}
}
