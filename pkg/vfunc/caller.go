package vfunc

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/ebitengine/purego"

	cerrors "github.com/JustZerooo/CounterStrikeSharp/internal/errors"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

// Caller crosses the native boundary.
type Caller interface {
	// Bind makes the func pointed to by fptr call the native code at addr.
	Bind(fptr any, addr memory.Handle) error
	// Callback returns a native function pointer that calls fn.
	Callback(fn any) (memory.Handle, error)
}

// PuregoCaller calls native code through purego, without cgo.
type PuregoCaller struct{}

// Bind implements Caller. purego reports unsupported signatures by
// panicking; those panics are returned as errors.
func (PuregoCaller) Bind(fptr any, addr memory.Handle) error {
	if err := addr.Validate(); err != nil {
		return err
	}
	return cerrors.Call(func() error {
		purego.RegisterFunc(fptr, uintptr(addr))
		return nil
	})
}

// Callback implements Caller. Callbacks are never released; purego caps
// the number a process can create, so hooks should be installed once.
func (PuregoCaller) Callback(fn any) (memory.Handle, error) {
	var h memory.Handle
	err := cerrors.Call(func() error {
		h = memory.Handle(purego.NewCallback(fn))
		return nil
	})
	return h, err
}

// GoCaller serves native-looking addresses with Go functions. Registered
// functions get synthetic addresses that are never dereferenced; binding to
// such an address calls the Go function directly. It lets vtables and
// gamedata resolve to code implemented in Go, which is how the packages'
// tests stand in for a host process.
type GoCaller struct {
	mu    sync.RWMutex
	next  memory.Handle
	funcs map[memory.Handle]reflect.Value
}

// goCallerBase starts synthetic addresses above the user address space on
// 64-bit targets, so they can never alias real code.
const goCallerBase = memory.Handle(^uintptr(0)>>9) &^ 0xffff

// NewGoCaller creates an empty GoCaller.
func NewGoCaller() *GoCaller {
	return &GoCaller{next: goCallerBase, funcs: make(map[memory.Handle]reflect.Value)}
}

// Register assigns an address to a Go function.
func (c *GoCaller) Register(fn any) memory.Handle {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("vfunc: GoCaller.Register of non-func %T", fn))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next += 0x10
	c.funcs[c.next] = v
	return c.next
}

// Lookup returns the Go function registered at addr.
func (c *GoCaller) Lookup(addr memory.Handle) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.funcs[addr]
	if !ok {
		return nil, false
	}
	return v.Interface(), true
}

// Bind implements Caller. The registered function's parameters must match
// fptr's in count and kind width; values are converted between named and
// unnamed types (memory.Handle and uintptr, for example).
func (c *GoCaller) Bind(fptr any, addr memory.Handle) error {
	c.mu.RLock()
	impl, ok := c.funcs[addr]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("vfunc: no Go function registered at %s", addr)
	}

	dst := reflect.ValueOf(fptr)
	if dst.Kind() != reflect.Pointer || dst.Elem().Kind() != reflect.Func {
		return fmt.Errorf("vfunc: Bind needs a pointer to a func, got %T", fptr)
	}
	want := dst.Elem().Type()
	if impl.Type() == want {
		dst.Elem().Set(impl)
		return nil
	}
	if err := convertible(impl.Type(), want); err != nil {
		return err
	}
	dst.Elem().Set(reflect.MakeFunc(want, func(in []reflect.Value) []reflect.Value {
		args := make([]reflect.Value, len(in))
		for i, a := range in {
			args[i] = a.Convert(impl.Type().In(i))
		}
		out := impl.Call(args)
		for i, o := range out {
			out[i] = o.Convert(want.Out(i))
		}
		return out
	}))
	return nil
}

// Callback implements Caller by registering fn.
func (c *GoCaller) Callback(fn any) (memory.Handle, error) {
	if reflect.ValueOf(fn).Kind() != reflect.Func {
		return memory.Null, fmt.Errorf("vfunc: callback must be a func, got %T", fn)
	}
	return c.Register(fn), nil
}

func convertible(have, want reflect.Type) error {
	if have.NumIn() != want.NumIn() || have.NumOut() != want.NumOut() {
		return fmt.Errorf("%w: Go function %s cannot serve %s", ErrSignatureMismatch, have, want)
	}
	for i := 0; i < have.NumIn(); i++ {
		if !want.In(i).ConvertibleTo(have.In(i)) || want.In(i).Size() != have.In(i).Size() {
			return fmt.Errorf("%w: parameter %d is %s, want %s", ErrSignatureMismatch, i, have.In(i), want.In(i))
		}
	}
	for i := 0; i < have.NumOut(); i++ {
		if !have.Out(i).ConvertibleTo(want.Out(i)) || want.Out(i).Size() != have.Out(i).Size() {
			return fmt.Errorf("%w: result %d is %s, want %s", ErrSignatureMismatch, i, have.Out(i), want.Out(i))
		}
	}
	return nil
}
