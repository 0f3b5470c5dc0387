package schema

import (
	"errors"
	"sync"

	"github.com/JustZerooo/CounterStrikeSharp/internal/config"
	"github.com/JustZerooo/CounterStrikeSharp/internal/logging"
)

// ErrAlreadyInitialized is returned by InitDefault once the process-wide
// system has been used.
var ErrAlreadyInitialized = errors.New("schema: default system already in use")

var defaultState struct {
	mu     sync.Mutex
	used   bool
	init   func() (*System, error)
	once   sync.Once
	system *System
	err    error
}

// InitDefault overrides how the process-wide system is created, typically
// with a Resolver backed by the host's live schema. It must run before the
// first call to Default.
func InitDefault(fn func() (*System, error)) error {
	defaultState.mu.Lock()
	defer defaultState.mu.Unlock()
	if defaultState.used {
		return ErrAlreadyInitialized
	}
	defaultState.init = fn
	return nil
}

// Default returns the process-wide system, loading the configured schema
// dump when InitDefault was not called.
func Default() (*System, error) {
	defaultState.mu.Lock()
	defaultState.used = true
	fn := defaultState.init
	defaultState.mu.Unlock()

	defaultState.once.Do(func() {
		if fn == nil {
			fn = loadConfigured
		}
		defaultState.system, defaultState.err = fn()
	})
	return defaultState.system, defaultState.err
}

func loadConfigured() (*System, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	return Load(cfg.Schema.Path, logger)
}
