// Package gamedata is the offset/signature table: a load-once map from
// symbolic names ("CBaseEntity_Teleport", "GameEventManager") to vtable
// indices, member offsets and signature-resolved code addresses.
//
// Entries resolve lazily on first use and are memoised for the lifetime of
// the table. Resolution is deterministic: asking again yields the same value
// or the same error, and concurrent first use of a name resolves it once.
package gamedata

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/JustZerooo/CounterStrikeSharp/internal/constants"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/sigscan"
)

// ErrUnresolvedSymbol is returned for unknown names and for entries whose
// signature could not be located.
var ErrUnresolvedSymbol = errors.New("gamedata: unresolved symbol")

// SymbolError reports why a name did not resolve. It matches
// ErrUnresolvedSymbol and unwraps to the cause, so a scan failure still
// satisfies errors.Is(err, sigscan.ErrAmbiguousMatch).
type SymbolError struct {
	Name string
	Err  error
}

func (e *SymbolError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gamedata: unresolved symbol %q", e.Name)
	}
	return fmt.Sprintf("gamedata: unresolved symbol %q: %v", e.Name, e.Err)
}

func (e *SymbolError) Unwrap() error { return e.Err }

// Is reports whether target is ErrUnresolvedSymbol.
func (e *SymbolError) Is(target error) bool { return target == ErrUnresolvedSymbol }

func unresolved(name string, format string, args ...any) error {
	return &SymbolError{Name: name, Err: fmt.Errorf(format, args...)}
}

// Kind tells which form a resolved entry takes.
type Kind int

const (
	// KindOffset entries carry an integer: a vtable index or member offset.
	KindOffset Kind = iota
	// KindAddress entries carry an absolute code address found by scanning.
	KindAddress
)

func (k Kind) String() string {
	if k == KindAddress {
		return "address"
	}
	return "offset"
}

// Entry is a resolved table entry.
type Entry struct {
	Name string
	Kind Kind
	// Offset is set for KindOffset entries.
	Offset int
	// Address is set for KindAddress entries.
	Address memory.Handle
	// Library and Signature describe where Address came from.
	Library   string
	Signature string
}

// ModuleLocator finds a loaded library by short name. *memory.ModuleMap
// implements it.
type ModuleLocator interface {
	Find(name string) (*memory.Module, error)
}

// liveModules re-reads the process module list on each lookup so libraries
// loaded after the table was created are found.
type liveModules struct{}

func (liveModules) Find(name string) (*memory.Module, error) {
	mm, err := memory.LoadModules()
	if err != nil {
		return nil, err
	}
	return mm.Find(name)
}

type slot struct {
	once  sync.Once
	entry Entry
	err   error
}

// Table is a loaded gamedata file.
type Table struct {
	defs        File
	platform    Platform
	modules     ModuleLocator
	cache       *sigscan.Cache
	logger      zerolog.Logger
	fingerprint uint64

	mu    sync.Mutex
	slots map[string]*slot
}

// Option configures a Table.
type Option func(*Table)

// WithPlatform selects the per-platform values. The default is Linux.
func WithPlatform(p Platform) Option {
	return func(t *Table) { t.platform = p }
}

// WithModules sets where signature libraries are looked up. The default
// reads the current process's module list.
func WithModules(m ModuleLocator) Option {
	return func(t *Table) { t.modules = m }
}

// WithScanCache shares a scan cache between tables.
func WithScanCache(c *sigscan.Cache) Option {
	return func(t *Table) { t.cache = c }
}

// WithLogger sets the table's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Table) { t.logger = logger }
}

// New creates a table over decoded definitions.
func New(defs File, opts ...Option) *Table {
	raw, _ := json.Marshal(defs) // nolint:errcheck // map of plain structs
	return newTable(defs, xxh3.Hash(raw), opts)
}

// Load reads a gamedata file (JSON, or YAML by extension).
func Load(path string, opts ...Option) (*Table, error) {
	defs, raw, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	t := newTable(defs, xxh3.Hash(raw), opts)
	t.logger.Debug().
		Str("path", path).
		Int("entries", len(defs)).
		Str("fingerprint", fmt.Sprintf("%016x", t.fingerprint)).
		Msg("Loaded gamedata")
	return t, nil
}

func newTable(defs File, fingerprint uint64, opts []Option) *Table {
	t := &Table{
		defs:        defs,
		platform:    Linux,
		modules:     liveModules{},
		logger:      zerolog.Nop(),
		fingerprint: fingerprint,
		slots:       make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.cache == nil {
		t.cache = sigscan.NewCache(constants.DefaultScanCacheSize)
	}
	t.logger = t.logger.With().Str("component", "gamedata").Logger()
	return t
}

// Platform returns the platform the table resolves for.
func (t *Table) Platform() Platform { return t.platform }

// Fingerprint is the xxh3 hash of the loaded file, for reporting which
// gamedata revision a process runs with.
func (t *Table) Fingerprint() uint64 { return t.fingerprint }

// Names returns every entry name in sorted order.
func (t *Table) Names() []string { return t.defs.Names() }

// Definition returns the raw definition of an entry.
func (t *Table) Definition(name string) (Definition, bool) {
	d, ok := t.defs[name]
	return d, ok
}

// Offset returns the integer value of an entry for the table's platform.
func (t *Table) Offset(name string) (int, error) {
	d, ok := t.defs[name]
	if !ok {
		return 0, unresolved(name, "unknown name")
	}
	off, ok := d.Offsets.For(t.platform)
	if !ok {
		return 0, unresolved(name, "no %s offset", t.platform)
	}
	return off, nil
}

// Signature returns the pattern and library of an entry for the table's
// platform.
func (t *Table) Signature(name string) (sig, library string, err error) {
	d, ok := t.defs[name]
	if !ok {
		return "", "", unresolved(name, "unknown name")
	}
	sig = d.Signatures.For(t.platform)
	if sig == "" {
		return "", "", unresolved(name, "no %s signature", t.platform)
	}
	if d.Signatures.Library == "" {
		return "", "", unresolved(name, "signature has no library")
	}
	return sig, d.Signatures.Library, nil
}

// Address resolves an entry's signature to a code address. The scan runs
// once per name; later calls return the memoised result.
func (t *Table) Address(name string) (memory.Handle, error) {
	s := t.slot(name)
	s.once.Do(func() {
		s.entry, s.err = t.scan(name)
	})
	if s.err != nil {
		return memory.Null, s.err
	}
	return s.entry.Address, nil
}

// Resolve returns the entry in its primary form: the offset when the
// platform has one, otherwise the signature-resolved address.
func (t *Table) Resolve(name string) (Entry, error) {
	if off, err := t.Offset(name); err == nil {
		e := Entry{Name: name, Kind: KindOffset, Offset: off}
		if sig, lib, err := t.Signature(name); err == nil {
			e.Signature, e.Library = sig, lib
		}
		return e, nil
	}
	if _, ok := t.defs[name]; !ok {
		return Entry{}, unresolved(name, "unknown name")
	}
	if _, err := t.Address(name); err != nil {
		return Entry{}, err
	}
	return t.slot(name).entry, nil
}

func (t *Table) slot(name string) *slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[name]
	if !ok {
		s = &slot{}
		t.slots[name] = s
	}
	return s
}

func (t *Table) scan(name string) (Entry, error) {
	sig, lib, err := t.Signature(name)
	if err != nil {
		return Entry{}, err
	}
	pattern, err := sigscan.Parse(sig)
	if err != nil {
		return Entry{}, &SymbolError{Name: name, Err: err}
	}
	mod, err := t.modules.Find(lib)
	if err != nil {
		return Entry{}, &SymbolError{Name: name, Err: err}
	}

	key := sigscan.ContentKey(fmt.Sprintf("%s@%s", mod.Path, mod.Base))
	addr, err := t.cache.Do(key, pattern, func() (uint64, error) {
		h, err := sigscan.ScanModule(mod, pattern)
		return uint64(h), err
	})
	if err != nil {
		t.logger.Warn().Err(err).Str("name", name).Str("library", lib).Msg("Signature did not resolve")
		return Entry{}, &SymbolError{Name: name, Err: err}
	}
	if addr == 0 {
		return Entry{}, unresolved(name, "resolved to null")
	}

	t.logger.Debug().
		Str("name", name).
		Str("library", lib).
		Str("address", memory.Handle(addr).String()).
		Msg("Resolved signature")

	return Entry{
		Name:      name,
		Kind:      KindAddress,
		Address:   memory.Handle(addr),
		Library:   lib,
		Signature: sig,
	}, nil
}
