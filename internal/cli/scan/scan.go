package scan

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"

	"github.com/JustZerooo/CounterStrikeSharp/internal/cli/helpers"
	"github.com/JustZerooo/CounterStrikeSharp/internal/config"
	"github.com/JustZerooo/CounterStrikeSharp/internal/constants"
	"github.com/JustZerooo/CounterStrikeSharp/internal/disasm"
	"github.com/JustZerooo/CounterStrikeSharp/internal/logging"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/gamedata"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/sigscan"
)

type scanFlags struct {
	lib      string
	gamedata string
	platform string
	process  string
	format   string
	disasm   bool
	count    int
}

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	var f scanFlags

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Check gamedata signatures against a library build",
		Long: `Scan a library for every gamedata signature that targets it and report
whether each one matches exactly once.

The library is given as a file path, as a short name searched in the
configured library directories, or as a short name resolved inside a
running process with --process. With --process, addresses are reported
at the module's live load address.

The command fails when any signature has no match, several matches or
an invalid pattern.`,
		Example: `  cssharp-interop scan --lib /srv/cs2/game/csgo/bin/linuxsteamrt64/libserver.so
  cssharp-interop scan --lib server --process cs2 --disasm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVarP(&f.lib, "lib", "l", constants.DefaultServerLibrary, "Library file path or short name")
	cmd.Flags().StringVar(&f.process, "process", "", "Resolve the library inside the named running process")
	cmd.Flags().BoolVar(&f.disasm, "disasm", false, "Show the instructions at each match")
	cmd.Flags().IntVar(&f.count, "disasm-count", 8, "Instructions shown per match with --disasm")
	helpers.AddGameDataFlag(cmd, &f.gamedata)
	helpers.AddPlatformFlag(cmd, &f.platform)
	helpers.AddFormatFlag(cmd, &f.format, helpers.FormatTable, helpers.AllFormats)

	return cmd
}

func runScan(ctx context.Context, out io.Writer, f scanFlags) error {
	if err := helpers.ValidateFormat(f.format, helpers.AllFormats); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.NewWithComponent(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}, "scan")

	gdPath := f.gamedata
	if gdPath == "" {
		gdPath = cfg.GameData.Path
	}
	defs, _, err := gamedata.ReadFile(gdPath)
	if err != nil {
		return err
	}

	platform := f.platform
	if platform == "" {
		platform = cfg.GameData.Platform
	}

	target, err := locate(ctx, f.lib, f.process, cfg.Scan.Libraries)
	if err != nil {
		return err
	}
	logger.Debug().
		Str("library", target.name).
		Str("path", target.path).
		Str("base", fmt.Sprintf("0x%x", target.base)).
		Msg("Scanning library")

	img, err := sigscan.OpenImage(target.path)
	if err != nil {
		return err
	}

	results := Check(defs, img, Options{
		Library:     target.name,
		Platform:    gamedata.Platform(platform),
		Base:        target.base,
		Disasm:      f.disasm,
		DisasmCount: f.count,
		Arch:        disasm.HostArch(),
		Cache:       sigscan.NewCache(cfg.Scan.CacheSize),
	})

	if f.format == string(helpers.FormatTable) {
		writeTable(out, target, results, f.disasm)
	} else if err := helpers.Render(f.format, results, out); err != nil {
		return err
	}

	if n := Failures(results); n > 0 {
		return fmt.Errorf("%d of %d signatures failed for %s", n, len(results), target.name)
	}
	return nil
}

func writeTable(out io.Writer, target library, results []Result, showDisasm bool) {
	_, _ = fmt.Fprintln(out, helpers.HeadingStyle.Render(fmt.Sprintf("%s (%s)", target.name, target.path)))
	if len(results) == 0 {
		_, _ = fmt.Fprintln(out, helpers.HintStyle.Render("No signatures target this library."))
		return
	}

	for _, r := range results {
		status := helpers.Status(fmt.Sprintf("%-9s", r.Status), r.Status == StatusOK, r.Status == StatusMissing)
		line := fmt.Sprintf("  %s  %-40s", status, r.Name)
		switch {
		case r.Address != "":
			line += " " + r.Address
			if r.Target != "" {
				line += helpers.HintStyle.Render(" -> " + r.Target)
			}
		case r.Error != "":
			line += " " + helpers.HintStyle.Render(r.Error)
		}
		_, _ = fmt.Fprintln(out, line)

		if showDisasm && r.Disasm != "" {
			for _, l := range strings.Split(strings.TrimRight(r.Disasm, "\n"), "\n") {
				_, _ = fmt.Fprintln(out, "      "+helpers.HintStyle.Render(l))
			}
		}
	}
}

// library is a resolved scan target.
type library struct {
	name string
	path string
	base uint64
}

// locate resolves the library argument. A process name takes precedence,
// then an existing file, then the configured library directories.
func locate(ctx context.Context, lib, procName string, dirs []string) (library, error) {
	if procName != "" {
		return locateInProcess(ctx, memory.ModuleName(lib), procName)
	}

	if st, err := os.Stat(lib); err == nil && !st.IsDir() {
		return library{name: memory.ModuleName(lib), path: lib}, nil
	}

	for _, dir := range dirs {
		for _, file := range []string{"lib" + lib + ".so", lib + ".so", lib} {
			path := filepath.Join(dir, file)
			if st, err := os.Stat(path); err == nil && !st.IsDir() {
				return library{name: memory.ModuleName(path), path: path}, nil
			}
		}
	}
	return library{}, fmt.Errorf("%w: %s (searched %d library directories)", memory.ErrModuleNotFound, lib, len(dirs))
}

func locateInProcess(ctx context.Context, lib, procName string) (library, error) {
	pid, err := findProcess(ctx, procName)
	if err != nil {
		return library{}, err
	}

	modules, err := memory.LoadProcessModules(int(pid))
	if err != nil {
		return library{}, err
	}
	mod, err := modules.Find(lib)
	if err != nil {
		return library{}, err
	}
	return library{name: mod.Name, path: mod.Path, base: uint64(mod.Base)}, nil
}

func findProcess(ctx context.Context, name string) (int32, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}
	for _, p := range procs {
		n, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if n == name {
			return p.Pid, nil
		}
	}
	return 0, fmt.Errorf("no running process named %q", name)
}
