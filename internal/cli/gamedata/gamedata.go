// Package gamedata implements the 'cssharp-interop gamedata' command family.
package gamedata

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/JustZerooo/CounterStrikeSharp/internal/cli/helpers"
	"github.com/JustZerooo/CounterStrikeSharp/internal/config"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/gamedata"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/sigscan"
)

// NewGameDataCmd creates the gamedata command and its subcommands.
func NewGameDataCmd() *cobra.Command {
	var (
		path     string
		platform string
	)

	cmd := &cobra.Command{
		Use:   "gamedata",
		Short: "Inspect and validate the offset/signature table",
	}
	cmd.PersistentFlags().StringVarP(&path, "gamedata", "g", "", "Gamedata file (defaults to the configured path)")
	cmd.PersistentFlags().StringVarP(&platform, "platform", "p", "", "Gamedata platform (defaults to the configured platform)")

	cmd.AddCommand(newShowCmd(&path, &platform))
	cmd.AddCommand(newValidateCmd(&path, &platform))
	cmd.AddCommand(newJSONSchemaCmd())

	return cmd
}

// EntryRow is one gamedata entry resolved for a platform.
type EntryRow struct {
	Name      string `header:"NAME" json:"name" yaml:"name"`
	Kind      string `header:"KIND" json:"kind" yaml:"kind"`
	Library   string `header:"LIBRARY" json:"library,omitempty" yaml:"library,omitempty"`
	Offset    string `header:"OFFSET" json:"offset,omitempty" yaml:"offset,omitempty"`
	Signature string `header:"SIGNATURE" json:"signature,omitempty" yaml:"signature,omitempty"`
}

// ValidationRow reports one entry that cannot be used on a platform.
type ValidationRow struct {
	Name  string `header:"NAME" json:"name" yaml:"name"`
	Error string `header:"ERROR" json:"error" yaml:"error"`
}

func newShowCmd(path, platform *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show [name...]",
		Short: "Show entries for a platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, helpers.AllFormats); err != nil {
				return err
			}
			table, err := load(*path, *platform)
			if err != nil {
				return err
			}
			rows, err := Rows(table, args...)
			if err != nil {
				return err
			}
			if format == string(helpers.FormatTable) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), helpers.HintStyle.Render(
					fmt.Sprintf("platform %s, fingerprint %016x", table.Platform(), table.Fingerprint())))
			}
			return helpers.Render(format, rows, cmd.OutOrStdout())
		},
	}
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.AllFormats)

	return cmd
}

func newValidateCmd(path, platform *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every entry parses and has a value for the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, helpers.AllFormats); err != nil {
				return err
			}
			table, err := load(*path, *platform)
			if err != nil {
				return err
			}
			problems := Validate(table)
			if len(problems) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), helpers.Status("All entries valid", true, false))
				return nil
			}
			if err := helpers.Render(format, problems, cmd.OutOrStdout()); err != nil {
				return err
			}
			return fmt.Errorf("%d invalid gamedata entries", len(problems))
		},
	}
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.AllFormats)

	return cmd
}

func newJSONSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "json-schema",
		Short: "Print the JSON Schema of the gamedata file format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return WriteJSONSchema(cmd.OutOrStdout())
		},
	}
}

// WriteJSONSchema writes the JSON Schema describing gamedata files.
func WriteJSONSchema(out io.Writer) error {
	r := &jsonschema.Reflector{DoNotReference: true}
	s := r.Reflect(gamedata.File{})
	s.Title = "cssharp-interop gamedata"
	s.Description = "Named offsets and byte signatures, keyed by entry name."

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// Rows resolves the named entries, or all entries when none are named.
func Rows(table *gamedata.Table, names ...string) ([]EntryRow, error) {
	if len(names) == 0 {
		names = table.Names()
	}

	rows := make([]EntryRow, 0, len(names))
	for _, name := range names {
		def, ok := table.Definition(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", gamedata.ErrUnresolvedSymbol, name)
		}
		row := EntryRow{Name: name}
		if def.Offsets != nil {
			row.Kind = "offset"
			if v, ok := def.Offsets.For(table.Platform()); ok {
				row.Offset = fmt.Sprintf("%d", v)
			}
		}
		if def.Signatures != nil {
			if row.Kind == "" {
				row.Kind = "signature"
			} else {
				row.Kind = "offset+signature"
			}
			row.Library = def.Signatures.Library
			row.Signature = def.Signatures.For(table.Platform())
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Validate reports entries whose value for the table's platform is missing
// or whose signature does not parse.
func Validate(table *gamedata.Table) []ValidationRow {
	var out []ValidationRow
	for _, name := range table.Names() {
		def, _ := table.Definition(name)
		if def.Offsets == nil && def.Signatures == nil {
			out = append(out, ValidationRow{Name: name, Error: "entry has neither offsets nor signatures"})
			continue
		}
		if def.Offsets != nil {
			if _, err := table.Offset(name); err != nil && def.Signatures == nil {
				out = append(out, ValidationRow{Name: name, Error: err.Error()})
			}
		}
		if def.Signatures == nil {
			continue
		}
		sig, _, err := table.Signature(name)
		if err != nil {
			out = append(out, ValidationRow{Name: name, Error: err.Error()})
			continue
		}
		if _, err := sigscan.Parse(sig); err != nil {
			out = append(out, ValidationRow{Name: name, Error: err.Error()})
		}
	}
	return out
}

func load(path, platform string) (*gamedata.Table, error) {
	if path == "" || platform == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if path == "" {
			path = cfg.GameData.Path
		}
		if platform == "" {
			platform = cfg.GameData.Platform
		}
	}
	return gamedata.Load(path, gamedata.WithPlatform(gamedata.Platform(platform)))
}
