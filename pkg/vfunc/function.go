// Package vfunc builds typed callables for native functions located by
// vtable slot, by signature or by gamedata name.
//
// Construction does all the locating and validation; a *Function that was
// returned without error is wired. Calling it is a plain native call with
// no error channel beyond the function's own return value: wrong argument
// types or a stale object are undefined behaviour at the native level, so
// Bind rejects every mismatch it can detect up front.
package vfunc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

var (
	// ErrInvalidVTableIndex is returned when a vtable slot cannot be used.
	ErrInvalidVTableIndex = errors.New("vfunc: invalid vtable index")

	// ErrNotCallable is returned for functions whose calling convention
	// cannot be invoked on this platform.
	ErrNotCallable = errors.New("vfunc: function is not callable")

	// ErrSignatureMismatch is returned when a Go func or argument list does
	// not fit the declared native signature.
	ErrSignatureMismatch = errors.New("vfunc: signature mismatch")
)

// Function is a located native function and its signature. It is
// immutable; creating one never calls it.
type Function struct {
	name string
	args []DataType
	ret  DataType
	conv Convention

	// this is passed as the hidden first argument when non-null.
	this memory.Handle

	// Direct functions have a fixed address; vtable functions re-read
	// their slot on every call so a later detour is honoured.
	addr   memory.Handle
	vtable *Layout
	index  int

	reg   *Registry
	binds *bindCache
}

// bindCache holds the native funcs bound for a Function and its receiver
// copies, per call target.
type bindCache struct {
	mu    sync.Mutex
	funcs map[bindKey]reflect.Value
}

type bindKey struct {
	addr     memory.Handle
	receiver bool
}

// Name returns a description of where the function came from.
func (f *Function) Name() string { return f.name }

// Args returns the declared argument types, excluding the receiver.
func (f *Function) Args() []DataType { return append([]DataType(nil), f.args...) }

// Return returns the declared return type.
func (f *Function) Return() DataType { return f.ret }

// Convention returns the calling convention.
func (f *Function) Convention() Convention { return f.conv }

// Receiver returns the object passed as the hidden first argument, or Null
// for free functions.
func (f *Function) Receiver() memory.Handle { return f.this }

// IsCallable reports whether the function can be invoked here.
func (f *Function) IsCallable() bool { return f.conv.IsCallable() }

// VTableIndex returns the slot index of vtable functions.
func (f *Function) VTableIndex() (int, bool) {
	if f.vtable == nil {
		return 0, false
	}
	return f.index, true
}

// Addr returns the code address a call would jump to right now.
func (f *Function) Addr() (memory.Handle, error) {
	if f.vtable == nil {
		return f.addr, nil
	}
	return f.vtable.Slot(f.index)
}

// NativeArgs returns the full native parameter list, with the receiver
// first for member functions.
func (f *Function) NativeArgs() []DataType {
	if f.this.IsNull() {
		return f.Args()
	}
	return append([]DataType{Pointer}, f.args...)
}

func (f *Function) String() string {
	args := make([]string, len(f.args))
	for i, a := range f.args {
		args[i] = a.String()
	}
	recv := ""
	if !f.this.IsNull() {
		recv = fmt.Sprintf("(%s) ", f.this)
	}
	return fmt.Sprintf("%s %s%s(%s) %s", f.ret, recv, f.name, strings.Join(args, ", "), f.conv)
}

// nativeType is the Go func type the caller binds for this signature.
func (f *Function) nativeType() reflect.Type {
	sig := Signature{Args: f.args, Return: f.ret}
	return sig.FuncType(!f.this.IsNull())
}

// Signature returns the declared signature, excluding the receiver.
func (f *Function) Signature() Signature {
	return Signature{Args: f.Args(), Return: f.ret, Convention: f.conv}
}

// target binds (once per address) and returns the native func value for
// the current call target.
func (f *Function) target() (reflect.Value, error) {
	addr, err := f.Addr()
	if err != nil {
		return reflect.Value{}, err
	}

	key := bindKey{addr: addr, receiver: !f.this.IsNull()}
	c := f.binds
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.funcs[key]; ok {
		return v, nil
	}
	fptr := reflect.New(f.nativeType())
	if err := f.reg.caller.Bind(fptr.Interface(), addr); err != nil {
		return reflect.Value{}, fmt.Errorf("bind %s at %s: %w", f.name, addr, err)
	}
	if c.funcs == nil {
		c.funcs = make(map[bindKey]reflect.Value)
	}
	c.funcs[key] = fptr.Elem()
	return fptr.Elem(), nil
}

// Call invokes the function with dynamically typed arguments. Each value
// must be convertible to its DataType's Go carrier (memory.Handle works for
// Pointer). The result is nil for Void functions.
func (f *Function) Call(args ...any) (any, error) {
	if !f.IsCallable() {
		return nil, fmt.Errorf("%w: %s uses %s", ErrNotCallable, f.name, f.conv)
	}
	if len(args) != len(f.args) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrSignatureMismatch, f.name, len(f.args), len(args))
	}

	in := make([]reflect.Value, 0, len(args)+1)
	if !f.this.IsNull() {
		in = append(in, reflect.ValueOf(uintptr(f.this)))
	}
	for i, a := range args {
		v, err := marshalArg(a, f.args[i])
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", f.name, i, err)
		}
		in = append(in, v)
	}

	fn, err := f.target()
	if err != nil {
		return nil, err
	}
	out := fn.Call(in)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func marshalArg(a any, dt DataType) (reflect.Value, error) {
	want := dt.GoType()
	if want == nil {
		return reflect.Value{}, fmt.Errorf("%w: %s cannot be an argument", ErrSignatureMismatch, dt)
	}
	v := reflect.ValueOf(a)
	if !v.IsValid() {
		if dt == Pointer {
			return reflect.Zero(want), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil for %s", ErrSignatureMismatch, dt)
	}
	if v.Type() == want {
		return v, nil
	}
	if !sameClass(v.Type(), want) || !v.CanConvert(want) {
		return reflect.Value{}, fmt.Errorf("%w: %T for %s", ErrSignatureMismatch, a, dt)
	}
	return v.Convert(want), nil
}

// sameClass rejects conversions Go allows but the ABI would not carry
// faithfully (float to int, int to string).
func sameClass(have, want reflect.Type) bool {
	return kindClass(have.Kind()) == kindClass(want.Kind())
}

func kindClass(k reflect.Kind) int {
	switch k {
	case reflect.Bool:
		return 1
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return 2
	case reflect.Float32, reflect.Float64:
		return 3
	case reflect.String:
		return 4
	case reflect.Pointer, reflect.UnsafePointer:
		return 5
	}
	return 0
}

// WithReceiver returns a copy of f that passes obj as the hidden first
// argument. For vtable functions obj must be of a class sharing f's
// vtable; the slot is still read from f's table. The copy shares f's
// bound native funcs.
func (f *Function) WithReceiver(obj memory.Handle) *Function {
	return &Function{
		name:   f.name,
		args:   f.args,
		ret:    f.ret,
		conv:   f.conv,
		this:   obj,
		addr:   f.addr,
		vtable: f.vtable,
		index:  f.index,
		reg:    f.reg,
		binds:  f.binds,
	}
}
