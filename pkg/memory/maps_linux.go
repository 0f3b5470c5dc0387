//go:build linux

package memory

import (
	"fmt"
	"os"
)

// LoadModules snapshots the modules mapped into the current process.
func LoadModules() (*ModuleMap, error) {
	return LoadProcessModules(os.Getpid())
}

// LoadProcessModules snapshots the modules mapped into another process.
func LoadProcessModules(pid int) (*ModuleMap, error) {
	path := fmt.Sprintf("/proc/%d/maps", pid)
	//nolint:gosec // G304: Path is from /proc filesystem for process information.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() // nolint:errcheck

	return ParseMaps(f)
}
