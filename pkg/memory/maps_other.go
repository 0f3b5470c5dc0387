//go:build !linux

package memory

// LoadModules snapshots the modules mapped into the current process.
func LoadModules() (*ModuleMap, error) {
	return nil, ErrUnsupportedPlatform
}

// LoadProcessModules snapshots the modules mapped into another process.
func LoadProcessModules(pid int) (*ModuleMap, error) {
	return nil, ErrUnsupportedPlatform
}
