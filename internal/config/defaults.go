package config

import (
	"runtime"

	"github.com/JustZerooo/CounterStrikeSharp/internal/constants"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		GameData: GameDataConfig{
			Path:     constants.DefaultGameDataFile,
			Platform: DefaultPlatform(),
		},
		Schema: SchemaConfig{
			Path: constants.DefaultSchemaFile,
		},
		Scan: ScanConfig{
			CacheSize:      constants.DefaultScanCacheSize,
			MaxVTableSlots: constants.DefaultMaxVTableSlots,
		},
	}
}

// DefaultPlatform returns the gamedata platform key for the running OS.
// Everything that is not Windows uses the Linux entries.
func DefaultPlatform() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}
	return "linux"
}
