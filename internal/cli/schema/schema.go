// Package schema implements the 'cssharp-interop schema' command family for
// inspecting a schema dump.
package schema

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JustZerooo/CounterStrikeSharp/internal/cli/helpers"
	"github.com/JustZerooo/CounterStrikeSharp/internal/config"
	"github.com/JustZerooo/CounterStrikeSharp/internal/logging"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/schema"
)

// NewSchemaCmd creates the schema command and its subcommands.
func NewSchemaCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the schema dump",
		Long: `Inspect the class/field schema dump used to resolve entity fields.

The dump defaults to the configured schema path (CSSHARP_SCHEMA or
schema.path in the config file).`,
	}
	cmd.PersistentFlags().StringVar(&path, "schema", "", "Schema dump file (defaults to the configured path)")

	cmd.AddCommand(newListCmd(&path))
	cmd.AddCommand(newGetCmd(&path))

	return cmd
}

// FieldRow is one field of a class listing.
type FieldRow struct {
	Name   string      `header:"FIELD" json:"name" yaml:"name"`
	Offset string      `header:"OFFSET" json:"offset" yaml:"offset"`
	Size   uintptr     `header:"SIZE" json:"size" yaml:"size"`
	Kind   schema.Kind `header:"KIND" json:"kind" yaml:"kind"`
	Type   string      `header:"TYPE" json:"type,omitempty" yaml:"type,omitempty"`
	Length int         `json:"length,omitempty" yaml:"length,omitempty"`
}

// ClassRow is one class of the class listing.
type ClassRow struct {
	Name   string `header:"CLASS" json:"name" yaml:"name"`
	Fields int    `header:"FIELDS" json:"fields" yaml:"fields"`
}

func newListCmd(path *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list [class]",
		Short: "List classes, or the fields of one class",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, helpers.AllFormats); err != nil {
				return err
			}
			dump, err := readDump(*path)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return helpers.Render(format, ClassRows(dump), cmd.OutOrStdout())
			}
			rows, err := FieldRows(dump, args[0])
			if err != nil {
				return err
			}
			return helpers.Render(format, rows, cmd.OutOrStdout())
		},
	}
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.AllFormats)

	return cmd
}

func newGetCmd(path *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <class> <field>",
		Short: "Resolve one field the way the runtime does",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, helpers.AllFormats); err != nil {
				return err
			}
			dump, err := readDump(*path)
			if err != nil {
				return err
			}
			sys := schema.NewSystem(dump, logging.New(logging.Config{Level: "warn", Output: cmd.ErrOrStderr()}))
			return writeField(cmd.OutOrStdout(), sys, args[0], args[1], format)
		},
	}
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.AllFormats)

	return cmd
}

// ClassRows summarizes every class of a dump.
func ClassRows(dump schema.Dump) []ClassRow {
	rows := make([]ClassRow, 0, len(dump))
	for _, c := range dump.Classes() {
		rows = append(rows, ClassRow{Name: c, Fields: len(dump[c])})
	}
	return rows
}

// FieldRows lists the fields of class in offset order.
func FieldRows(dump schema.Dump, class string) ([]FieldRow, error) {
	if _, ok := dump[class]; !ok {
		return nil, fmt.Errorf("%w: class %s not in dump", schema.ErrUnresolvedField, class)
	}
	names := dump.Fields(class)
	rows := make([]FieldRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, fieldRow(name, dump[class][name]))
	}
	return rows, nil
}

func fieldRow(name string, f schema.Field) FieldRow {
	return FieldRow{
		Name:   name,
		Offset: fmt.Sprintf("0x%x", f.Offset),
		Size:   f.Size,
		Kind:   f.Kind,
		Type:   f.Type,
		Length: f.Length,
	}
}

func writeField(out io.Writer, sys *schema.System, class, field, format string) error {
	f, err := sys.Field(class, field)
	if err != nil {
		return err
	}
	row := fieldRow(class+"."+field, f)
	if format != string(helpers.FormatTable) && format != string(helpers.FormatCSV) {
		return helpers.Render(format, row, out)
	}
	return helpers.Render(format, []FieldRow{row}, out)
}

func readDump(path string) (schema.Dump, error) {
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		path = cfg.Schema.Path
	}
	return schema.ReadDump(path)
}
