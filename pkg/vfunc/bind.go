package vfunc

import (
	"fmt"
	"reflect"
)

// Bind makes the func variable pointed to by fptr call f. The Go func must
// take the declared arguments, without the receiver, and return nothing
// for Void or one value of the declared return size. Parameter widths and
// integer/float classes are checked against the declared DataTypes; this
// is the last point where a mismatched signature can be caught.
//
//	var teleport func(pos, angles, velocity uintptr)
//	err := fn.Bind(&teleport)
func (f *Function) Bind(fptr any) error {
	if !f.IsCallable() {
		return fmt.Errorf("%w: %s uses %s", ErrNotCallable, f.name, f.conv)
	}
	dst := reflect.ValueOf(fptr)
	if !dst.IsValid() || dst.Kind() != reflect.Pointer || dst.IsNil() || dst.Elem().Kind() != reflect.Func {
		return fmt.Errorf("%w: Bind needs a pointer to a func variable, got %T", ErrSignatureMismatch, fptr)
	}
	want := dst.Elem().Type()
	if err := f.checkSignature(want); err != nil {
		return err
	}

	// Bind eagerly so an unbindable address fails here, not on first call.
	if _, err := f.target(); err != nil {
		return err
	}

	dst.Elem().Set(reflect.MakeFunc(want, func(in []reflect.Value) []reflect.Value {
		args := make([]reflect.Value, 0, len(in)+1)
		if !f.this.IsNull() {
			args = append(args, reflect.ValueOf(uintptr(f.this)))
		}
		for i, a := range in {
			args = append(args, a.Convert(f.args[i].GoType()))
		}

		fn, err := f.target()
		if err != nil {
			// Construction validated the slot; a failure here means the
			// host tore the object down under us.
			panic(err)
		}
		out := fn.Call(args)
		if len(out) == 0 {
			return nil
		}
		return []reflect.Value{out[0].Convert(want.Out(0))}
	}))
	return nil
}

func (f *Function) checkSignature(t reflect.Type) error {
	if t.IsVariadic() {
		return fmt.Errorf("%w: %s is variadic", ErrSignatureMismatch, t)
	}
	if t.NumIn() != len(f.args) {
		return fmt.Errorf("%w: %s has %d parameters, %s takes %d", ErrSignatureMismatch, t, t.NumIn(), f.name, len(f.args))
	}
	for i, dt := range f.args {
		if err := checkType(t.In(i), dt); err != nil {
			return fmt.Errorf("%w: parameter %d: %v", ErrSignatureMismatch, i, err)
		}
	}

	switch {
	case f.ret == Void && t.NumOut() != 0:
		return fmt.Errorf("%w: %s returns void, %s has results", ErrSignatureMismatch, f.name, t)
	case f.ret != Void && t.NumOut() != 1:
		return fmt.Errorf("%w: %s returns %s, %s needs exactly one result", ErrSignatureMismatch, f.name, f.ret, t)
	case f.ret != Void:
		if err := checkType(t.Out(0), f.ret); err != nil {
			return fmt.Errorf("%w: result: %v", ErrSignatureMismatch, err)
		}
	}
	return nil
}

func checkType(have reflect.Type, dt DataType) error {
	want := dt.GoType()
	if want == nil {
		return fmt.Errorf("%s is not a value type", dt)
	}
	if kindClass(have.Kind()) != kindClass(want.Kind()) {
		return fmt.Errorf("%s cannot carry %s", have, dt)
	}
	if have.Kind() != reflect.String && have.Size() != dt.Size() {
		return fmt.Errorf("%s is %d bytes, %s is %d", have, have.Size(), dt, dt.Size())
	}
	return nil
}

// BindAs returns f as a func of type F.
//
//	getManager, err := vfunc.BindAs[func() uintptr](fn)
func BindAs[F any](f *Function) (F, error) {
	var fn F
	if err := f.Bind(&fn); err != nil {
		var zero F
		return zero, err
	}
	return fn, nil
}
