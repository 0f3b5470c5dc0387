package hooks

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	cerrors "github.com/JustZerooo/CounterStrikeSharp/internal/errors"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

// ErrUnknownHook is returned when unhooking an ID that is not registered.
var ErrUnknownHook = errors.New("hooks: unknown hook")

// HookID identifies a registration. IDs increase with registration order.
type HookID uint64

// OutputEvent is one entity output firing.
type OutputEvent struct {
	// Entity is the designer name of the entity firing the output.
	Entity string
	// Output is the output name, for example OnPlayerPickup.
	Output string
	// Activator is the entity that caused the output. It may be null.
	Activator memory.Handle
	// Caller is the entity firing the output.
	Caller memory.Handle
	Delay  float32
}

// Handler handles an output. An error is reported as a fault and the
// handler's result is then ignored.
type Handler func(ev OutputEvent) (HookResult, error)

// Func adapts a handler that cannot fail.
func Func(fn func(ev OutputEvent) HookResult) Handler {
	return func(ev OutputEvent) (HookResult, error) { return fn(ev), nil }
}

// Registration is a snapshot of one registered handler.
type Registration struct {
	ID      HookID
	Owner   string
	Pattern Pattern
	// Name is an optional label, set for declared hooks.
	Name string

	handler Handler
}

// Engine holds output hook registrations and dispatches events to them.
//
// Mutations are serialised and publish a new immutable handler list;
// FireOutput dispatches over the list current when it starts. A handler
// registered or removed during a dispatch (including by a handler of that
// dispatch) takes effect from the next event.
type Engine struct {
	mu     sync.Mutex
	nextID HookID
	regs   atomic.Pointer[[]*Registration]

	reportersMu sync.RWMutex
	reporters   map[string]FaultReporter
	fallback    FaultReporter

	logger zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger. Faults without an owner reporter
// are logged through it.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithFaultReporter sets the reporter used for owners without their own.
func WithFaultReporter(r FaultReporter) EngineOption {
	return func(e *Engine) { e.fallback = r }
}

// NewEngine creates an empty engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger:    zerolog.Nop(),
		reporters: make(map[string]FaultReporter),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "hooks").Logger()
	if e.fallback == nil {
		e.fallback = LogReporter{Logger: e.logger}
	}
	e.regs.Store(&[]*Registration{})
	return e
}

// HookEntityOutput registers handler for outputs matching (entity, output).
// Either token may be Wildcard.
func (e *Engine) HookEntityOutput(owner, entity, output string, handler Handler) (HookID, error) {
	ids, err := e.register(owner, []OutputHook{{Entity: entity, Output: output, Handler: handler}})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// register adds hooks in order, all or none.
func (e *Engine) register(owner string, hooks []OutputHook) ([]HookID, error) {
	if owner == "" {
		return nil, errors.New("hooks: owner cannot be empty")
	}
	for i, h := range hooks {
		if err := (Pattern{Entity: h.Entity, Output: h.Output}).Validate(); err != nil {
			return nil, fmt.Errorf("hook %d: %w", i, err)
		}
		if h.Handler == nil {
			return nil, fmt.Errorf("hook %d (%s:%s): nil handler", i, h.Entity, h.Output)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := *e.regs.Load()
	next := make([]*Registration, len(cur), len(cur)+len(hooks))
	copy(next, cur)
	ids := make([]HookID, len(hooks))
	for i, h := range hooks {
		e.nextID++
		r := &Registration{
			ID:      e.nextID,
			Owner:   owner,
			Pattern: Pattern{Entity: h.Entity, Output: h.Output},
			Name:    h.Name,
			handler: h.Handler,
		}
		next = append(next, r)
		ids[i] = r.ID
		e.logger.Debug().
			Str("owner", owner).
			Uint64("hook_id", uint64(r.ID)).
			Str("pattern", r.Pattern.String()).
			Msg("Registered output hook")
	}
	e.regs.Store(&next)
	return ids, nil
}

// Unhook removes one registration.
func (e *Engine) Unhook(id HookID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := *e.regs.Load()
	i := slices.IndexFunc(cur, func(r *Registration) bool { return r.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownHook, id)
	}
	next := slices.Delete(slices.Clone(cur), i, i+1)
	e.regs.Store(&next)
	return nil
}

// UnhookOwner removes every registration of owner in one step: a dispatch
// sees either all of them or none. It returns how many were removed.
func (e *Engine) UnhookOwner(owner string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := *e.regs.Load()
	next := slices.DeleteFunc(slices.Clone(cur), func(r *Registration) bool { return r.Owner == owner })
	removed := len(cur) - len(next)
	if removed > 0 {
		e.regs.Store(&next)
		e.logger.Debug().Str("owner", owner).Int("removed", removed).Msg("Removed owner hooks")
	}

	e.reportersMu.Lock()
	delete(e.reporters, owner)
	e.reportersMu.Unlock()
	return removed
}

// Registrations returns the current registrations in dispatch order.
func (e *Engine) Registrations() []Registration {
	cur := *e.regs.Load()
	out := make([]Registration, len(cur))
	for i, r := range cur {
		out[i] = *r
		out[i].handler = nil
	}
	return out
}

// Len returns the number of registrations.
func (e *Engine) Len() int { return len(*e.regs.Load()) }

// SetFaultReporter routes the faults of owner's handlers to r. A nil r
// restores the engine default.
func (e *Engine) SetFaultReporter(owner string, r FaultReporter) {
	e.reportersMu.Lock()
	defer e.reportersMu.Unlock()
	if r == nil {
		delete(e.reporters, owner)
		return
	}
	e.reporters[owner] = r
}

// FireOutput dispatches ev to every matching handler in registration order
// and returns the strongest result. A Stop from one handler does not
// prevent later handlers from running.
func (e *Engine) FireOutput(ev OutputEvent) HookResult {
	result := Continue
	for _, r := range *e.regs.Load() {
		if !r.Pattern.Matches(ev.Entity, ev.Output) {
			continue
		}
		result = Max(result, e.invoke(r, ev))
	}
	return result
}

func (e *Engine) invoke(r *Registration, ev OutputEvent) HookResult {
	var res HookResult
	err := cerrors.Call(func() error {
		var err error
		res, err = r.handler(ev)
		return err
	})
	if err == nil && !res.Valid() {
		err = fmt.Errorf("invalid result %s", res)
	}
	if err != nil {
		e.reportFault(&HandlerFault{
			Owner:   r.Owner,
			ID:      r.ID,
			Pattern: r.Pattern,
			Event:   &ev,
			Err:     err,
		})
		return Continue
	}
	return res
}

func (e *Engine) reportFault(f *HandlerFault) {
	e.reportersMu.RLock()
	r, ok := e.reporters[f.Owner]
	e.reportersMu.RUnlock()
	if !ok {
		r = e.fallback
	}
	// A reporter must not take the dispatch down with it.
	if err := cerrors.Call(func() error { r.ReportFault(f); return nil }); err != nil {
		e.logger.Error().Err(err).Str("owner", f.Owner).Msg("Fault reporter failed")
	}
}
