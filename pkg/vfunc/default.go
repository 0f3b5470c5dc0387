package vfunc

import (
	"errors"
	"sync"

	"github.com/JustZerooo/CounterStrikeSharp/internal/config"
	"github.com/JustZerooo/CounterStrikeSharp/internal/logging"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/sigscan"
)

// ErrAlreadyInitialized is returned by InitDefault once the process-wide
// registry has been used.
var ErrAlreadyInitialized = errors.New("vfunc: default registry already in use")

var defaultState struct {
	mu   sync.Mutex
	used bool
	init func() (*Registry, error)
	once sync.Once
	reg  *Registry
	err  error
}

// InitDefault overrides how the process-wide registry is created. It must
// run before the first call to Default.
func InitDefault(fn func() (*Registry, error)) error {
	defaultState.mu.Lock()
	defer defaultState.mu.Unlock()
	if defaultState.used {
		return ErrAlreadyInitialized
	}
	defaultState.init = fn
	return nil
}

// Default returns the process-wide registry, calling through purego with a
// module snapshot taken on first use.
func Default() (*Registry, error) {
	defaultState.mu.Lock()
	defaultState.used = true
	fn := defaultState.init
	defaultState.mu.Unlock()

	defaultState.once.Do(func() {
		if fn == nil {
			fn = newConfigured
		}
		defaultState.reg, defaultState.err = fn()
	})
	return defaultState.reg, defaultState.err
}

func newConfigured() (*Registry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	opts := []Option{
		WithLogger(logger),
		WithMaxSlots(cfg.Scan.MaxVTableSlots),
		WithScanCache(sigscan.NewCache(cfg.Scan.CacheSize)),
		WithModuleLoader(memory.LoadModules),
	}
	if mm, err := memory.LoadModules(); err == nil {
		opts = append(opts, WithModules(mm))
	} else {
		logger.Warn().Err(err).Msg("Module snapshot unavailable; vtable slots will not be checked")
	}
	return NewRegistry(opts...), nil
}

// FromVTable creates a vtable function through the default registry.
func FromVTable(obj memory.Handle, index int, sig Signature) (*Function, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.FromVTable(obj, index, sig)
}

// FromSignature creates a signature function through the default registry.
func FromSignature(base memory.Handle, pattern string, sig Signature) (*Function, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.FromSignature(base, pattern, sig)
}

// FromGameData creates a gamedata function through the default registry.
func FromGameData(name string, obj memory.Handle, sig Signature) (*Function, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.FromGameData(name, obj, sig)
}
