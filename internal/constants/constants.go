// Package constants defines shared configuration constants.
package constants

var (
	ConfigFile = "config.yaml"

	DefaultDir = ".cssharp"

	// FallbackDir is used when no home directory exists (minimal containers).
	FallbackDir = "/tmp/cssharp-fallback"

	// DefaultGameDataFile is the gamedata file name looked up next to the config.
	DefaultGameDataFile = "gamedata.json"

	// DefaultSchemaFile is the schema dump file name looked up next to the config.
	DefaultSchemaFile = "schema.json"

	// DefaultServerLibrary is the library signatures are scanned in when an
	// entry does not name one.
	DefaultServerLibrary = "server"
)

// Scanning and caching defaults.
const (
	// DefaultScanCacheSize bounds the number of memoised signature scans.
	DefaultScanCacheSize = 512

	// DefaultMaxReportedMatches caps the match addresses kept for diagnostics
	// when a signature is ambiguous.
	DefaultMaxReportedMatches = 8

	// DefaultMaxVTableSlots bounds the slot walk when measuring a vtable.
	DefaultMaxVTableSlots = 1024

	// DefaultMaxCStringLen bounds C string reads from native memory.
	DefaultMaxCStringLen = 4096
)

// Environment variable names.
const (
	EnvConfigDir = "CSSHARP_CONFIG"
	EnvLogLevel  = "CSSHARP_LOG_LEVEL"
	EnvLogPretty = "CSSHARP_LOG_PRETTY"
	EnvGameData  = "CSSHARP_GAMEDATA"
	EnvSchema    = "CSSHARP_SCHEMA"
	EnvPlatform  = "CSSHARP_PLATFORM"
)
