package helpers

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

func formatNames(formats []OutputFormat) []string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return names
}

// AddFormatFlag registers --format/-o with shell completion over supported.
func AddFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat OutputFormat, supported []OutputFormat) {
	names := formatNames(supported)
	cmd.Flags().StringVarP(formatVar, "format", "o", string(defaultFormat),
		fmt.Sprintf("Output format (%s)", strings.Join(names, ", ")))
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(names, cobra.ShellCompDirectiveNoFileComp))
}

// AddGameDataFlag registers --gamedata/-g. Empty means the configured file.
func AddGameDataFlag(cmd *cobra.Command, pathVar *string) {
	cmd.Flags().StringVarP(pathVar, "gamedata", "g", "", "Gamedata file (defaults to the configured path)")
	_ = cmd.MarkFlagFilename("gamedata", "json", "yaml", "yml")
}

// AddPlatformFlag registers --platform/-p, which selects the gamedata
// column read for offsets and signatures.
func AddPlatformFlag(cmd *cobra.Command, platformVar *string) {
	cmd.Flags().StringVarP(platformVar, "platform", "p", "", "Gamedata platform (linux, windows; defaults to the configured platform)")
	_ = cmd.RegisterFlagCompletionFunc("platform",
		cobra.FixedCompletions([]string{"linux", "windows"}, cobra.ShellCompDirectiveNoFileComp))
}

// ValidateFormat rejects formats outside supported.
func ValidateFormat(format string, supported []OutputFormat) error {
	if slices.Contains(supported, OutputFormat(format)) {
		return nil
	}
	return fmt.Errorf("unsupported format %q, must be one of: %s",
		format, strings.Join(formatNames(supported), ", "))
}
