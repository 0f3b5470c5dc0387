package config

// Config is the interop runtime configuration.
//
// Values are layered: defaults, then the YAML file, then CSSHARP_*
// environment variables.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	GameData GameDataConfig `yaml:"gamedata"`
	Schema   SchemaConfig   `yaml:"schema"`
	Scan     ScanConfig     `yaml:"scan"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"CSSHARP_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"CSSHARP_LOG_PRETTY"`
}

// GameDataConfig locates the offset/signature table.
type GameDataConfig struct {
	// Path is the gamedata file (JSON or YAML). Relative paths are resolved
	// against the config directory.
	Path string `yaml:"path" env:"CSSHARP_GAMEDATA"`
	// Platform selects the per-platform offsets and signatures
	// ("linux" or "windows").
	Platform string `yaml:"platform" env:"CSSHARP_PLATFORM"`
}

// SchemaConfig locates the schema dump.
type SchemaConfig struct {
	Path string `yaml:"path" env:"CSSHARP_SCHEMA"`
}

// ScanConfig tunes signature scanning.
type ScanConfig struct {
	// CacheSize bounds the scan result cache.
	CacheSize int `yaml:"cache_size" env:"CSSHARP_SCAN_CACHE_SIZE"`
	// MaxVTableSlots bounds vtable layout discovery.
	MaxVTableSlots int `yaml:"max_vtable_slots" env:"CSSHARP_MAX_VTABLE_SLOTS"`
	// Libraries are extra directories searched for libraries named in
	// gamedata when scanning files on disk.
	Libraries []string `yaml:"libraries" env:"CSSHARP_LIBRARY_PATH"`
}
