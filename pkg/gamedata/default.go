package gamedata

import (
	"errors"
	"fmt"
	"sync"

	"github.com/JustZerooo/CounterStrikeSharp/internal/config"
	"github.com/JustZerooo/CounterStrikeSharp/internal/logging"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/sigscan"
)

// ErrAlreadyInitialized is returned by InitDefault once the process-wide
// table has been used.
var ErrAlreadyInitialized = errors.New("gamedata: default table already in use")

// The process-wide table is created on first use and lives until exit.
// There is no reset: offsets and addresses handed out earlier would
// otherwise disagree with later ones.
var defaultState struct {
	mu    sync.Mutex
	used  bool
	init  func() (*Table, error)
	once  sync.Once
	table *Table
	err   error
}

// InitDefault overrides how the process-wide table is created. It must run
// before the first call to Default.
func InitDefault(fn func() (*Table, error)) error {
	defaultState.mu.Lock()
	defer defaultState.mu.Unlock()
	if defaultState.used {
		return ErrAlreadyInitialized
	}
	defaultState.init = fn
	return nil
}

// Default returns the process-wide table. Without InitDefault it is loaded
// from the configured gamedata file. A failed load is memoised like any
// other resolution.
func Default() (*Table, error) {
	defaultState.mu.Lock()
	defaultState.used = true
	fn := defaultState.init
	defaultState.mu.Unlock()

	defaultState.once.Do(func() {
		if fn == nil {
			fn = loadConfigured
		}
		defaultState.table, defaultState.err = fn()
	})
	return defaultState.table, defaultState.err
}

func loadConfigured() (*Table, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("gamedata: %w", err)
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	return Load(cfg.GameData.Path,
		WithPlatform(Platform(cfg.GameData.Platform)),
		WithScanCache(sigscan.NewCache(cfg.Scan.CacheSize)),
		WithLogger(logger),
	)
}
