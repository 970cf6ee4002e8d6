package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smnsjas/go-xpipe/internal/config"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// outputFormat resolves "auto" to table on a terminal and JSON otherwise.
func (c *commandContext) outputFormat(cmd *cobra.Command) string {
	format := config.OutputAuto
	if c.config != nil {
		format = c.config.Output.Format
	}
	if format != config.OutputAuto {
		return format
	}
	if isTerminal(cmd.OutOrStdout()) {
		return config.OutputTable
	}
	return config.OutputJSON
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// render writes v as JSON or YAML, or calls table for the table format.
func (c *commandContext) render(cmd *cobra.Command, v any, table func(io.Writer) error) error {
	switch c.outputFormat(cmd) {
	case config.OutputJSON:
		return writeJSON(cmd.OutOrStdout(), v)
	case config.OutputYAML:
		return writeYAML(cmd.OutOrStdout(), v)
	default:
		return table(cmd.OutOrStdout())
	}
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML encodes v as YAML using its JSON field names.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func printTable(w io.Writer, headers []string, rows [][]string, aligns []columnAlignment) error {
	_, err := fmt.Fprintln(w, renderTable(headers, rows, aligns))
	return err
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
