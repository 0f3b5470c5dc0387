package hooks

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	cerrors "github.com/JustZerooo/CounterStrikeSharp/internal/errors"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/vfunc"
)

// Params are the arguments of a hooked call. Pre-callbacks may rewrite
// Args, which the original then receives, and set Return, which is used
// when the original is skipped.
type Params struct {
	// Args holds the native arguments, receiver first for member functions.
	Args   []any
	Return any
}

// PreCallback runs before a hooked function.
type PreCallback func(p *Params) (HookResult, error)

type preEntry struct {
	id    HookID
	owner string
	fn    PreCallback
}

// FunctionHook is the ordered pre-callback list of one detoured function.
// All callbacks run; when the aggregate is Handled or stronger the
// original is not called.
type FunctionHook struct {
	name     string
	reporter FaultReporter

	mu     sync.Mutex
	nextID HookID
	list   atomic.Pointer[[]preEntry]

	reportersMu sync.RWMutex
	reporters   map[string]FaultReporter

	vtable *vfunc.VTableHook
}

// NewFunctionHook creates an empty callback list. Faults of owners without
// their own reporter go to reporter, or to the global zerolog logger when
// it is nil.
func NewFunctionHook(name string, reporter FaultReporter) *FunctionHook {
	if reporter == nil {
		reporter = LogReporter{Logger: log.Logger.With().Str("component", "hooks").Logger()}
	}
	h := &FunctionHook{name: name, reporter: reporter, reporters: make(map[string]FaultReporter)}
	h.list.Store(&[]preEntry{})
	return h
}

// Name returns the hooked function's name.
func (h *FunctionHook) Name() string { return h.name }

// Add appends a callback.
func (h *FunctionHook) Add(owner string, fn PreCallback) HookID {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	next := append(slices.Clone(*h.list.Load()), preEntry{id: h.nextID, owner: owner, fn: fn})
	h.list.Store(&next)
	return h.nextID
}

// Remove deletes one callback.
func (h *FunctionHook) Remove(id HookID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur := *h.list.Load()
	i := slices.IndexFunc(cur, func(e preEntry) bool { return e.id == id })
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownHook, id)
	}
	next := slices.Delete(slices.Clone(cur), i, i+1)
	h.list.Store(&next)
	return nil
}

// RemoveOwner deletes every callback of owner at once, along with its
// fault reporter.
func (h *FunctionHook) RemoveOwner(owner string) int {
	h.mu.Lock()
	cur := *h.list.Load()
	next := slices.DeleteFunc(slices.Clone(cur), func(e preEntry) bool { return e.owner == owner })
	h.list.Store(&next)
	h.mu.Unlock()

	h.SetFaultReporter(owner, nil)
	return len(cur) - len(next)
}

// SetFaultReporter routes the faults of owner's callbacks to r. A nil r
// restores the hook's default reporter.
func (h *FunctionHook) SetFaultReporter(owner string, r FaultReporter) {
	h.reportersMu.Lock()
	defer h.reportersMu.Unlock()
	if r == nil {
		delete(h.reporters, owner)
		return
	}
	h.reporters[owner] = r
}

// Len returns the number of callbacks.
func (h *FunctionHook) Len() int { return len(*h.list.Load()) }

// Run invokes every callback in order and returns the aggregate result and
// whether the original should be called.
func (h *FunctionHook) Run(p *Params) (HookResult, bool) {
	result := Continue
	for _, e := range *h.list.Load() {
		var res HookResult
		err := cerrors.Call(func() error {
			var err error
			res, err = e.fn(p)
			return err
		})
		if err == nil && !res.Valid() {
			err = fmt.Errorf("invalid result %s", res)
		}
		if err != nil {
			h.report(&HandlerFault{Owner: e.owner, ID: e.id, Hook: h.name, Err: err})
			continue
		}
		result = Max(result, res)
	}
	return result, result < Handled
}

func (h *FunctionHook) report(f *HandlerFault) {
	h.reportersMu.RLock()
	r, ok := h.reporters[f.Owner]
	h.reportersMu.RUnlock()
	if !ok {
		r = h.reporter
	}
	_ = cerrors.Call(func() error { r.ReportFault(f); return nil })
}

// HookVTableFunction detours slot index of obj's vtable through a new
// FunctionHook. Callbacks see the object as Args[0].
func HookVTableFunction(reg *vfunc.Registry, obj memory.Handle, index int, sig vfunc.Signature, reporter FaultReporter) (*FunctionHook, error) {
	layout, err := reg.Layout(obj)
	if err != nil {
		return nil, err
	}
	target, err := layout.Slot(index)
	if err != nil {
		return nil, err
	}
	full := sig.WithReceiver()
	original, err := reg.FromAddress(target, full)
	if err != nil {
		return nil, err
	}

	h := NewFunctionHook(fmt.Sprintf("vtable[%d]", index), reporter)
	detour := reflect.MakeFunc(full.FuncType(false), h.detour(original, sig.Return))
	vh, err := reg.HookVTable(obj, index, sig, detour.Interface())
	if err != nil {
		return nil, err
	}
	h.vtable = vh
	return h, nil
}

func (h *FunctionHook) detour(original *vfunc.Function, ret vfunc.DataType) func([]reflect.Value) []reflect.Value {
	return func(in []reflect.Value) []reflect.Value {
		p := &Params{Args: make([]any, len(in))}
		for i, v := range in {
			p.Args[i] = v.Interface()
		}

		_, callOriginal := h.Run(p)
		if callOriginal {
			res, err := original.Call(p.Args...)
			if err != nil {
				// Rewritten arguments no longer fit the signature.
				h.report(&HandlerFault{Hook: h.name, Err: err})
				res, err = original.Call(values(in)...)
				if err != nil {
					panic(err)
				}
			}
			p.Return = res
		}

		if ret == vfunc.Void {
			return nil
		}
		return []reflect.Value{returnValue(p.Return, ret)}
	}
}

func values(in []reflect.Value) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v.Interface()
	}
	return out
}

func returnValue(v any, ret vfunc.DataType) reflect.Value {
	t := ret.GoType()
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !rv.CanConvert(t) {
		return reflect.Zero(t)
	}
	return rv.Convert(t)
}

// Unhook removes the detour installed by HookVTableFunction.
func (h *FunctionHook) Unhook() error {
	if h.vtable == nil {
		return errors.New("hooks: function hook was not installed on a vtable")
	}
	return h.vtable.Unhook()
}
