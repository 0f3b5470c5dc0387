package vfunc

import (
	"fmt"
	"sync"

	"github.com/JustZerooo/CounterStrikeSharp/internal/safe"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

// Layout is the measured shape of one vtable. Slot values are always read
// live; only the slot count is cached.
type Layout struct {
	table memory.Handle
	count int
}

// Table returns the vtable address.
func (l *Layout) Table() memory.Handle { return l.table }

// Count returns the number of slots.
func (l *Layout) Count() int { return l.count }

// SlotAddr returns the address of slot i.
func (l *Layout) SlotAddr(i int) (memory.Handle, error) {
	slot, ok := safe.IntToUintptr(i)
	if !ok || i >= l.count {
		return memory.Null, fmt.Errorf("%w: %d not in [0, %d) of vtable %s", ErrInvalidVTableIndex, i, l.count, l.table)
	}
	return l.table.Add(slot * memory.PointerSize), nil
}

// Slot returns the current function pointer in slot i.
func (l *Layout) Slot(i int) (memory.Handle, error) {
	addr, err := l.SlotAddr(i)
	if err != nil {
		return memory.Null, err
	}
	fn, err := memory.ReadPointer(addr, 0)
	if err != nil {
		return memory.Null, err
	}
	if fn.IsNull() {
		return memory.Null, fmt.Errorf("%w: slot %d of vtable %s is null", ErrInvalidVTableIndex, i, l.table)
	}
	return fn, nil
}

// layoutCache measures each vtable once. Objects of one class share a
// vtable, so this is bounded by the number of classes touched.
type layoutCache struct {
	mu      sync.Mutex
	layouts map[memory.Handle]*Layout
}

// get returns the layout of the vtable at table, measuring it on first
// use. Slots are counted until the first null pointer, the first pointer
// outside executable memory when exec is known, or max. Empty layouts are
// not cached: the code they point at may not be mapped yet.
func (c *layoutCache) get(table memory.Handle, exec func(memory.Handle) bool, max int) (*Layout, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("%w: object has no vtable", ErrInvalidVTableIndex)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.layouts[table]; ok {
		return l, nil
	}

	n := 0
	for ; n < max; n++ {
		fn, err := memory.ReadPointer(table, uintptr(n)*memory.PointerSize)
		if err != nil {
			return nil, err
		}
		if fn.IsNull() || (exec != nil && !exec(fn)) {
			break
		}
	}
	l := &Layout{table: table, count: n}
	if n == 0 {
		return l, nil
	}
	if c.layouts == nil {
		c.layouts = make(map[memory.Handle]*Layout)
	}
	c.layouts[table] = l
	return l, nil
}

func (c *layoutCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.layouts)
}
