// Package plugin manages plugin lifetimes. Each loaded plugin gets a Scope
// that owns everything it registers; unloading removes it all at once.
package plugin

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	cerrors "github.com/JustZerooo/CounterStrikeSharp/internal/errors"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/hooks"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/version"
)

var (
	// ErrAlreadyLoaded is returned when loading a plugin name twice.
	ErrAlreadyLoaded = errors.New("plugin: already loaded")
	// ErrNotLoaded is returned for unknown plugin names.
	ErrNotLoaded = errors.New("plugin: not loaded")
)

// Plugin is implemented by plugins. Plugins may also implement
// hooks.OutputHookProvider to declare output hooks, and Unloader.
type Plugin interface {
	Name() string
	Load(s *Scope, hotReload bool) error
}

// Unloader is implemented by plugins that release resources on unload.
type Unloader interface {
	Unload(hotReload bool)
}

// Scope is a loaded plugin's registration surface. Everything registered
// through it is owned by the plugin instance.
type Scope struct {
	id     string
	name   string
	engine *hooks.Engine
	logger zerolog.Logger

	mu      sync.Mutex
	fnHooks []*hooks.FunctionHook
}

// ID returns the instance's owner identity. A reloaded plugin gets a new
// one.
func (s *Scope) ID() string { return s.id }

// Name returns the plugin name.
func (s *Scope) Name() string { return s.name }

// Logger returns the plugin's logger. Faults in the plugin's handlers are
// reported here.
func (s *Scope) Logger() zerolog.Logger { return s.logger }

// HookEntityOutput registers an output handler owned by the plugin.
func (s *Scope) HookEntityOutput(entity, output string, h hooks.Handler) (hooks.HookID, error) {
	return s.engine.HookEntityOutput(s.id, entity, output, h)
}

// Unhook removes one of the plugin's output handlers.
func (s *Scope) Unhook(id hooks.HookID) error {
	return s.engine.Unhook(id)
}

// AddFunctionHook adds a pre-callback to a function hook. Its faults are
// reported to the plugin's logger. It is removed when the plugin unloads.
func (s *Scope) AddFunctionHook(fh *hooks.FunctionHook, cb hooks.PreCallback) hooks.HookID {
	s.mu.Lock()
	if !slices.Contains(s.fnHooks, fh) {
		s.fnHooks = append(s.fnHooks, fh)
		fh.SetFaultReporter(s.id, hooks.LogReporter{Logger: s.logger})
	}
	s.mu.Unlock()
	return fh.Add(s.id, cb)
}

// release removes everything the scope registered.
func (s *Scope) release() int {
	removed := s.engine.UnhookOwner(s.id)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fh := range s.fnHooks {
		removed += fh.RemoveOwner(s.id)
	}
	s.fnHooks = nil
	return removed
}

type loaded struct {
	plugin Plugin
	scope  *Scope
}

// Manager loads and unloads plugins against one hook engine.
type Manager struct {
	engine *hooks.Engine
	logger zerolog.Logger

	mu      sync.Mutex
	plugins map[string]*loaded
}

// NewManager creates a manager.
func NewManager(engine *hooks.Engine, logger zerolog.Logger) *Manager {
	m := &Manager{
		engine:  engine,
		logger:  logger.With().Str("component", "plugin").Logger(),
		plugins: make(map[string]*loaded),
	}
	m.logger.Debug().Str("interop_version", version.Get().String()).Msg("Plugin manager started")
	return m
}

// Load loads p. Declared output hooks are registered before p.Load runs.
// If loading fails, anything the plugin registered is removed again.
func (m *Manager) Load(p Plugin) (*Scope, error) {
	return m.load(p, false)
}

func (m *Manager) load(p Plugin, hotReload bool) (*Scope, error) {
	name := p.Name()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plugins[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLoaded, name)
	}

	id := uuid.NewString()
	s := &Scope{
		id:     id,
		name:   name,
		engine: m.engine,
		logger: m.logger.With().Str("plugin", name).Str("instance", id).Logger(),
	}
	m.engine.SetFaultReporter(id, hooks.LogReporter{Logger: s.logger})

	err := cerrors.Call(func() error {
		if provider, ok := p.(hooks.OutputHookProvider); ok {
			if _, err := m.engine.RegisterProvider(id, provider); err != nil {
				return fmt.Errorf("declared hooks: %w", err)
			}
		}
		return p.Load(s, hotReload)
	})
	if err != nil {
		s.release()
		return nil, fmt.Errorf("load plugin %s: %w", name, err)
	}

	m.plugins[name] = &loaded{plugin: p, scope: s}
	m.logger.Info().Str("plugin", name).Str("instance", id).Bool("hot_reload", hotReload).Msg("Plugin loaded")
	return s, nil
}

// Unload unloads a plugin and removes all of its registrations in one step.
func (m *Manager) Unload(name string) error {
	return m.unload(name, false)
}

func (m *Manager) unload(name string, hotReload bool) error {
	m.mu.Lock()
	l, ok := m.plugins[name]
	if ok {
		delete(m.plugins, name)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}

	if u, ok := l.plugin.(Unloader); ok {
		if err := cerrors.Call(func() error { u.Unload(hotReload); return nil }); err != nil {
			l.scope.logger.Error().Err(err).Msg("Plugin unload panicked")
		}
	}
	removed := l.scope.release()
	m.logger.Info().Str("plugin", name).Int("hooks_removed", removed).Msg("Plugin unloaded")
	return nil
}

// Reload unloads and loads a plugin again with hotReload set.
func (m *Manager) Reload(p Plugin) (*Scope, error) {
	if err := m.unload(p.Name(), true); err != nil {
		return nil, err
	}
	return m.load(p, true)
}

// Plugins returns the loaded plugin names in sorted order.
func (m *Manager) Plugins() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.plugins))
	for n := range m.plugins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Scope returns the scope of a loaded plugin.
func (m *Manager) Scope(name string) (*Scope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.plugins[name]
	if !ok {
		return nil, false
	}
	return l.scope, true
}
