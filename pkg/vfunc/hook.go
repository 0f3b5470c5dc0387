package vfunc

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

var patchPointer = memory.PatchPointer

// VTableHook is a detour installed in one vtable slot. Every object that
// shares the vtable is affected.
type VTableHook struct {
	reg      *Registry
	slot     memory.Handle
	restore  memory.Perm
	detour   memory.Handle
	original *Function

	mu     sync.Mutex
	active bool
}

// HookVTable replaces slot index of obj's vtable with detour. The detour
// receives the object as its first argument followed by sig.Args, and must
// match that native signature. The previous slot value is available
// through Original.
func (r *Registry) HookVTable(obj memory.Handle, index int, sig Signature, detour any) (*VTableHook, error) {
	if err := sig.validate(); err != nil {
		return nil, err
	}
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	full := sig.WithReceiver()
	want := r.newFunction("detour", full)
	dt := reflect.TypeOf(detour)
	if dt == nil || dt.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: detour must be a func, got %T", ErrSignatureMismatch, detour)
	}
	if err := want.checkSignature(dt); err != nil {
		return nil, err
	}

	layout, err := r.Layout(obj)
	if err != nil {
		return nil, err
	}
	slot, err := layout.SlotAddr(index)
	if err != nil {
		return nil, err
	}
	if _, err := layout.Slot(index); err != nil {
		return nil, err
	}

	cb, err := r.caller.Callback(detour)
	if err != nil {
		return nil, fmt.Errorf("create detour callback: %w", err)
	}

	restore := r.slotPerm(slot)
	old, err := patchPointer(slot, uintptr(cb), restore)
	if err != nil {
		return nil, fmt.Errorf("patch vtable slot %d: %w", index, err)
	}

	original := r.newFunction(fmt.Sprintf("original vtable[%d]", index), full)
	original.addr = memory.Handle(old)

	r.logger.Debug().
		Str("vtable", layout.Table().String()).
		Int("index", index).
		Str("original", original.addr.String()).
		Msg("Hooked vtable slot")

	return &VTableHook{
		reg:      r,
		slot:     slot,
		restore:  restore,
		detour:   cb,
		original: original,
		active:   true,
	}, nil
}

// Original returns the function the slot held before the hook. It takes
// the object explicitly as its first argument.
func (h *VTableHook) Original() *Function { return h.original }

// Active reports whether the detour is still installed.
func (h *VTableHook) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Unhook puts the original pointer back. Unhooking twice is a no-op. If
// something else has since overwritten the slot, that value is left alone.
// When the restore fails the hook stays active and Unhook may be retried.
func (h *VTableHook) Unhook() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active {
		return nil
	}

	cur, err := memory.ReadPointer(h.slot, 0)
	if err != nil {
		return err
	}
	if cur != h.detour {
		h.reg.logger.Warn().
			Str("slot", h.slot.String()).
			Str("found", cur.String()).
			Msg("Vtable slot was re-hooked; leaving it in place")
		h.active = false
		return nil
	}
	if _, err := patchPointer(h.slot, uintptr(h.original.addr), h.restore); err != nil {
		return fmt.Errorf("restore vtable slot: %w", err)
	}
	h.active = false
	return nil
}
