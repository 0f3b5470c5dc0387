// Package cli wires the cssharp-interop command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configcmd "github.com/JustZerooo/CounterStrikeSharp/internal/cli/config"
	gamedatacmd "github.com/JustZerooo/CounterStrikeSharp/internal/cli/gamedata"
	"github.com/JustZerooo/CounterStrikeSharp/internal/cli/helpers"
	"github.com/JustZerooo/CounterStrikeSharp/internal/cli/scan"
	schemacmd "github.com/JustZerooo/CounterStrikeSharp/internal/cli/schema"
	"github.com/JustZerooo/CounterStrikeSharp/internal/constants"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/version"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "cssharp-interop",
	Short: "Inspect and verify the native interop data of a game server",
	Long: `Offline tooling for the plugin interop layer.

- scan:     check gamedata signatures against a server library build
- gamedata: show and validate the offset/signature table
- schema:   browse the class/field schema dump
- config:   inspect the interop configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configDir != "" {
			return os.Setenv(constants.EnvConfigDir, configDir)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Config directory (overrides "+constants.EnvConfigDir+")")

	rootCmd.AddCommand(scan.NewScanCmd())
	rootCmd.AddCommand(gamedatacmd.NewGameDataCmd())
	rootCmd.AddCommand(schemacmd.NewSchemaCmd())
	rootCmd.AddCommand(configcmd.NewConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()
			if format != string(helpers.FormatTable) {
				return helpers.Render(format, info, out)
			}
			_, _ = fmt.Fprintf(out, "cssharp-interop version %s\n", info.Version)
			_, _ = fmt.Fprintf(out, "Git commit: %s\n", info.GitCommit)
			_, _ = fmt.Fprintf(out, "Build date: %s\n", info.BuildDate)
			_, _ = fmt.Fprintf(out, "Go version: %s\n", info.GoVersion)
			_, _ = fmt.Fprintf(out, "Platform: %s\n", info.Platform)
			return nil
		},
	}
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, []helpers.OutputFormat{
		helpers.FormatTable,
		helpers.FormatJSON,
		helpers.FormatYAML,
	})

	return cmd
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
