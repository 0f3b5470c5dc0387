package vfunc

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/JustZerooo/CounterStrikeSharp/internal/constants"
	"github.com/JustZerooo/CounterStrikeSharp/internal/disasm"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/gamedata"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/sigscan"
)

// Signature declares a native function's parameters, excluding the
// receiver of member functions, and its return type.
type Signature struct {
	Args       []DataType
	Return     DataType
	Convention Convention
}

// Sig is shorthand for a cdecl signature.
func Sig(ret DataType, args ...DataType) Signature {
	return Signature{Args: args, Return: ret}
}

// FuncType returns the Go func type that carries the signature. With
// receiver set, a leading uintptr parameter is added for the object.
func (s Signature) FuncType(receiver bool) reflect.Type {
	in := make([]reflect.Type, 0, len(s.Args)+1)
	if receiver {
		in = append(in, Pointer.GoType())
	}
	for _, a := range s.Args {
		in = append(in, a.GoType())
	}
	var out []reflect.Type
	if s.Return != Void {
		out = []reflect.Type{s.Return.GoType()}
	}
	return reflect.FuncOf(in, out, false)
}

// WithReceiver returns the signature with a leading Pointer argument.
func (s Signature) WithReceiver() Signature {
	return Signature{
		Args:       append([]DataType{Pointer}, s.Args...),
		Return:     s.Return,
		Convention: s.Convention,
	}
}

func (s Signature) validate() error {
	for i, a := range s.Args {
		if !a.Valid() || a == Void {
			return fmt.Errorf("%w: argument %d has type %s", ErrSignatureMismatch, i, a)
		}
	}
	if !s.Return.Valid() {
		return fmt.Errorf("%w: return type %s", ErrSignatureMismatch, s.Return)
	}
	return nil
}

// Registry creates Functions. It owns the native caller, the vtable layout
// cache and the signature scan cache.
type Registry struct {
	caller   Caller
	modules  atomic.Pointer[memory.ModuleMap]
	load     func() (*memory.ModuleMap, error)
	reloadMu sync.Mutex
	gamedata *gamedata.Table
	cache    *sigscan.Cache
	logger   zerolog.Logger
	maxSlots int
	layouts  layoutCache
}

// Option configures a Registry.
type Option func(*Registry)

// WithCaller sets how native code is called. The default is PuregoCaller.
func WithCaller(c Caller) Option {
	return func(r *Registry) { r.caller = c }
}

// WithModules sets the module snapshot used for signature scans, vtable
// measurement and slot protection. Without it, modules are re-read from the
// process on each signature lookup and vtable slots are not checked for
// executability.
func WithModules(mm *memory.ModuleMap) Option {
	return func(r *Registry) { r.modules.Store(mm) }
}

// WithModuleLoader sets how the module snapshot is refreshed. A lookup that
// misses the snapshot reloads it once before failing, so libraries loaded
// after the snapshot was taken are still found.
func WithModuleLoader(load func() (*memory.ModuleMap, error)) Option {
	return func(r *Registry) { r.load = load }
}

// WithGameData sets the table FromGameData resolves names in. The default
// is the process-wide gamedata table.
func WithGameData(t *gamedata.Table) Option {
	return func(r *Registry) { r.gamedata = t }
}

// WithScanCache shares a signature scan cache.
func WithScanCache(c *sigscan.Cache) Option {
	return func(r *Registry) { r.cache = c }
}

// WithLogger sets the registry's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithMaxSlots caps how many slots a vtable is assumed to have.
func WithMaxSlots(n int) Option {
	return func(r *Registry) { r.maxSlots = n }
}

// NewRegistry creates a registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		caller:   PuregoCaller{},
		logger:   zerolog.Nop(),
		maxSlots: constants.DefaultMaxVTableSlots,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = sigscan.NewCache(constants.DefaultScanCacheSize)
	}
	r.logger = r.logger.With().Str("component", "vfunc").Logger()
	return r
}

// Caller returns the registry's native caller.
func (r *Registry) Caller() Caller { return r.caller }

// Layout measures the vtable of obj.
func (r *Registry) Layout(obj memory.Handle) (*Layout, error) {
	table, err := memory.ReadPointer(obj, 0)
	if err != nil {
		return nil, err
	}
	var exec func(memory.Handle) bool
	if mm := r.modules.Load(); mm != nil {
		reloaded := false
		exec = func(h memory.Handle) bool {
			if mm.IsExecutable(h) {
				return true
			}
			if reloaded {
				return false
			}
			reloaded = true
			mm = r.reload(mm)
			return mm.IsExecutable(h)
		}
	}
	return r.layouts.get(table, exec, r.maxSlots)
}

// FromVTable creates a member function bound to obj from slot index of
// obj's vtable. The slot is re-read on each call.
func (r *Registry) FromVTable(obj memory.Handle, index int, sig Signature) (*Function, error) {
	if err := sig.validate(); err != nil {
		return nil, err
	}
	if err := obj.Validate(); err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: negative index %d", ErrInvalidVTableIndex, index)
	}
	layout, err := r.Layout(obj)
	if err != nil {
		return nil, err
	}
	addr, err := layout.Slot(index)
	if err != nil {
		return nil, err
	}

	f := r.newFunction(fmt.Sprintf("vtable[%d]", index), sig)
	f.this = obj
	f.vtable = layout
	f.index = index
	r.logger.Trace().
		Str("object", obj.String()).
		Int("index", index).
		Str("target", addr.String()).
		Msg("Created vtable function")
	return f, nil
}

// FromSignature creates a member function bound to base, at the address
// the byte pattern resolves to inside the module that implements base's
// class. The module is found through base's vtable pointer.
func (r *Registry) FromSignature(base memory.Handle, pattern string, sig Signature) (*Function, error) {
	if err := sig.validate(); err != nil {
		return nil, err
	}
	table, err := memory.ReadPointer(base, 0)
	if err != nil {
		return nil, err
	}
	mod, err := r.findModule(func(mm *memory.ModuleMap) (*memory.Module, error) {
		if m, ok := mm.ModuleFor(table); ok {
			return m, nil
		}
		return nil, fmt.Errorf("%w: no module contains vtable %s", memory.ErrModuleNotFound, table)
	})
	if err != nil {
		return nil, &gamedata.SymbolError{Name: pattern, Err: err}
	}

	addr, err := r.scan(mod, pattern)
	if err != nil {
		return nil, err
	}
	f := r.newFunction(pattern, sig)
	f.this = base
	f.addr = addr
	return f, nil
}

// FromLibrarySignature creates a free function at the address the byte
// pattern resolves to inside the named library.
func (r *Registry) FromLibrarySignature(library, pattern string, sig Signature) (*Function, error) {
	if err := sig.validate(); err != nil {
		return nil, err
	}
	mod, err := r.findModule(func(mm *memory.ModuleMap) (*memory.Module, error) {
		return mm.Find(library)
	})
	if err != nil {
		return nil, &gamedata.SymbolError{Name: pattern, Err: err}
	}

	addr, err := r.scan(mod, pattern)
	if err != nil {
		return nil, err
	}
	f := r.newFunction(pattern, sig)
	f.addr = addr
	return f, nil
}

// FromAddress creates a free function at a known address.
func (r *Registry) FromAddress(addr memory.Handle, sig Signature) (*Function, error) {
	if err := sig.validate(); err != nil {
		return nil, err
	}
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	f := r.newFunction(addr.String(), sig)
	f.addr = addr
	return f, nil
}

// FromGameData creates a function from a named gamedata entry. Entries
// with an offset are vtable slots of obj; entries with only a signature
// resolve to an address, and are bound to obj when it is non-null.
func (r *Registry) FromGameData(name string, obj memory.Handle, sig Signature) (*Function, error) {
	table := r.gamedata
	if table == nil {
		var err error
		if table, err = gamedata.Default(); err != nil {
			return nil, err
		}
	}

	entry, err := table.Resolve(name)
	if err != nil {
		return nil, err
	}

	var f *Function
	switch entry.Kind {
	case gamedata.KindOffset:
		if f, err = r.FromVTable(obj, entry.Offset, sig); err != nil {
			return nil, err
		}
	default:
		if f, err = r.FromAddress(entry.Address, sig); err != nil {
			return nil, err
		}
		f.this = obj
	}
	f.name = name
	return f, nil
}

// FollowThunks resolves a chain of jump stubs starting at addr, reading
// code through the module snapshot. It returns addr unchanged when no
// snapshot is configured or addr is not readable.
func (r *Registry) FollowThunks(addr memory.Handle) (memory.Handle, int) {
	mm := r.modules.Load()
	if mm == nil {
		return addr, 0
	}
	read := func(a uint64, n int) ([]byte, bool) {
		h := memory.Handle(a)
		seg, ok := mm.SegmentAt(h)
		if !ok || seg.Perm&memory.PermRead == 0 {
			return nil, false
		}
		n = min(n, int(seg.End()-h))
		b, err := memory.Bytes(h, n)
		return b, err == nil
	}
	target, hops := disasm.Follow(read, uint64(addr), disasm.HostArch(), 8)
	return memory.Handle(target), hops
}

func (r *Registry) newFunction(name string, sig Signature) *Function {
	return &Function{
		name:  name,
		args:  append([]DataType(nil), sig.Args...),
		ret:   sig.Return,
		conv:  sig.Convention,
		reg:   r,
		binds: &bindCache{},
	}
}

func (r *Registry) moduleMap() (*memory.ModuleMap, error) {
	if mm := r.modules.Load(); mm != nil {
		return mm, nil
	}
	if r.load != nil {
		if mm := r.reload(nil); mm != nil {
			return mm, nil
		}
	}
	return memory.LoadModules()
}

// findModule runs find against the module map, reloading a stale snapshot
// once when find misses.
func (r *Registry) findModule(find func(*memory.ModuleMap) (*memory.Module, error)) (*memory.Module, error) {
	mm, err := r.moduleMap()
	if err != nil {
		return nil, err
	}
	mod, err := find(mm)
	if err == nil {
		return mod, nil
	}
	if fresh := r.reload(mm); fresh != nil && fresh != mm {
		return find(fresh)
	}
	return nil, err
}

// reload replaces the snapshot stale with a freshly loaded one. Callers
// that missed against the same snapshot share one reload. Without a loader,
// or when loading fails, stale is returned.
func (r *Registry) reload(stale *memory.ModuleMap) *memory.ModuleMap {
	if r.load == nil {
		return stale
	}
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()
	if cur := r.modules.Load(); cur != stale {
		return cur
	}
	mm, err := r.load()
	if err != nil {
		r.logger.Warn().Err(err).Msg("Module map reload failed")
		return stale
	}
	r.modules.Store(mm)
	r.logger.Debug().Int("modules", len(mm.Modules())).Msg("Reloaded module map")
	return mm
}

// slotPerm returns the protection of the page holding a vtable slot, so a
// patched slot can be put back the way it was.
func (r *Registry) slotPerm(slot memory.Handle) memory.Perm {
	if mm := r.modules.Load(); mm != nil {
		if p, ok := mm.PermAt(slot); ok {
			return p
		}
	}
	if mm, err := memory.LoadModules(); err == nil {
		if p, ok := mm.PermAt(slot); ok {
			return p
		}
	}
	return memory.PermRead | memory.PermWrite
}

func (r *Registry) scan(mod *memory.Module, pattern string) (memory.Handle, error) {
	p, err := sigscan.Parse(pattern)
	if err != nil {
		return memory.Null, &gamedata.SymbolError{Name: pattern, Err: err}
	}
	key := sigscan.ContentKey(fmt.Sprintf("%s@%s", mod.Path, mod.Base))
	addr, err := r.cache.Do(key, p, func() (uint64, error) {
		h, err := sigscan.ScanModule(mod, p)
		return uint64(h), err
	})
	if err != nil {
		var me *sigscan.MatchError
		if errors.As(err, &me) {
			r.logger.Warn().Err(err).Str("module", mod.Name).Int("matches", me.Count).Msg("Signature did not resolve")
		}
		return memory.Null, &gamedata.SymbolError{Name: pattern, Err: err}
	}
	return memory.Handle(addr), nil
}
