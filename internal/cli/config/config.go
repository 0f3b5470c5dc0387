// Package config implements the 'cssharp-interop config' command family.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JustZerooo/CounterStrikeSharp/internal/cli/helpers"
	"github.com/JustZerooo/CounterStrikeSharp/internal/config"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/gamedata"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/schema"
)

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage interop configuration",
		Long: `Manage interop configuration.

Configuration Priority:
  1. CSSHARP_* environment variables (highest)
  2. Config file (config.yaml in the config directory)
  3. Built-in defaults

Environment Variables:
  CSSHARP_CONFIG    Override config directory (default: ~/.cssharp)
  CSSHARP_GAMEDATA  Gamedata file
  CSSHARP_SCHEMA    Schema dump file
  CSSHARP_PLATFORM  Gamedata platform (linux, windows)
  CSSHARP_LOG_LEVEL Log level`,
	}

	cmd.AddCommand(newViewCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newPathCmd())

	return cmd
}

func newViewCmd() *cobra.Command {
	var (
		format  string
		sources bool
	)

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration.

With --sources, list the fields set by the config file or the environment
instead; every other field holds its built-in default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			allowed := []helpers.OutputFormat{helpers.FormatYAML, helpers.FormatJSON}
			if sources {
				allowed = helpers.AllFormats
			}
			if err := helpers.ValidateFormat(format, allowed); err != nil {
				return err
			}
			cfg, fields, err := config.NewLoader().LoadWithSources()
			if err != nil {
				return err
			}
			if sources {
				return helpers.Render(format, fields, cmd.OutOrStdout())
			}
			return helpers.Render(format, cfg, cmd.OutOrStdout())
		},
	}
	helpers.AddFormatFlag(cmd, &format, helpers.FormatYAML, helpers.AllFormats)
	cmd.Flags().BoolVar(&sources, "sources", false, "List which fields the config file and environment set")

	return cmd
}

// CheckRow is the outcome of one validation check.
type CheckRow struct {
	Check  string `header:"CHECK" json:"check" yaml:"check"`
	OK     bool   `json:"ok" yaml:"ok"`
	Status string `header:"STATUS" json:"-" yaml:"-"`
	Detail string `header:"DETAIL" json:"detail" yaml:"detail"`
}

func newValidateCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and the data files it names",
		Long: `Validate the configuration and the data files it names.

Checks that:
- the config file parses and its values are valid
- the gamedata file exists and decodes
- the schema dump exists and decodes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, helpers.AllFormats); err != nil {
				return err
			}
			return runValidate(cmd.OutOrStdout(), config.NewLoader(), format)
		},
	}
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.AllFormats)

	return cmd
}

func runValidate(out io.Writer, loader *config.Loader, format string) error {
	rows := Validate(loader)
	if err := helpers.Render(format, rows, out); err != nil {
		return err
	}
	failed := 0
	for _, r := range rows {
		if !r.OK {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d configuration checks failed", failed)
	}
	return nil
}

// Validate runs every configuration check. Data file checks are skipped
// when the config itself does not load.
func Validate(loader *config.Loader) []CheckRow {
	cfg, err := loader.Load()
	if err != nil {
		return []CheckRow{check("config", loader.ConfigPath(), err)}
	}
	rows := []CheckRow{check("config", loader.ConfigPath(), nil)}

	defs, _, err := gamedata.ReadFile(cfg.GameData.Path)
	detail := cfg.GameData.Path
	if err == nil {
		detail = fmt.Sprintf("%s (%d entries)", cfg.GameData.Path, len(defs))
	}
	rows = append(rows, check("gamedata", detail, err))

	dump, err := schema.ReadDump(cfg.Schema.Path)
	detail = cfg.Schema.Path
	if err == nil {
		detail = fmt.Sprintf("%s (%d classes)", cfg.Schema.Path, len(dump))
	}
	rows = append(rows, check("schema", detail, err))

	return rows
}

func check(name, detail string, err error) CheckRow {
	if err != nil {
		return CheckRow{Check: name, OK: false, Status: helpers.Status("FAIL", false, false), Detail: err.Error()}
	}
	return CheckRow{Check: name, OK: true, Status: helpers.Status("OK", true, false), Detail: detail}
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the built-in defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader()
			if err := writeDefaults(loader, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", loader.ConfigPath())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func writeDefaults(loader *config.Loader, force bool) error {
	if _, err := os.Stat(loader.ConfigPath()); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", loader.ConfigPath())
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return loader.Save(config.DefaultConfig())
}

func newPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), config.NewLoader().ConfigPath())
		},
	}
}
