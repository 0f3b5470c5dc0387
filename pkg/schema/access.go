package schema

import (
	"fmt"
	"unsafe"

	"github.com/JustZerooo/CounterStrikeSharp/internal/constants"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

// locate validates the handle, resolves the field and checks that a value of
// want bytes fits the recorded size. want 0 skips the size check.
func (s *System) locate(h memory.Handle, class, field string, want uintptr) (Field, memory.Handle, error) {
	if err := h.Validate(); err != nil {
		return Field{}, memory.Null, &FieldError{Class: class, Field: field, Err: err}
	}
	f, err := s.Field(class, field)
	if err != nil {
		return Field{}, memory.Null, err
	}
	if want != 0 && f.Size != 0 && f.Size != want {
		return Field{}, memory.Null, &FieldError{
			Class: class,
			Field: field,
			Err:   fmt.Errorf("%w: field is %d bytes, type is %d", ErrTypeSizeMismatch, f.Size, want),
		}
	}
	return f, h.Add(f.Offset), nil
}

func sizeOf[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

// GetScalar reads a fixed-size value.
func GetScalar[T any](s *System, h memory.Handle, class, field string) (T, error) {
	var zero T
	_, addr, err := s.locate(h, class, field, sizeOf[T]())
	if err != nil {
		return zero, err
	}
	return memory.Read[T](addr, 0)
}

// SetScalar writes a fixed-size value. The native object sees the write
// immediately.
func SetScalar[T any](s *System, h memory.Handle, class, field string, v T) error {
	_, addr, err := s.locate(h, class, field, sizeOf[T]())
	if err != nil {
		return err
	}
	return memory.Write(addr, 0, v)
}

// GetRef returns a pointer aliasing the field. Writes through it go straight
// into the native object. The pointer is only valid while the host keeps
// the object alive.
func GetRef[T any](s *System, h memory.Handle, class, field string) (*T, error) {
	_, addr, err := s.locate(h, class, field, sizeOf[T]())
	if err != nil {
		return nil, err
	}
	return memory.Ref[T](addr, 0)
}

// GetFixedArray returns a bounded view over length contiguous elements.
func GetFixedArray[T any](s *System, h memory.Handle, class, field string, length int) (FixedArray[T], error) {
	if length < 0 {
		return FixedArray[T]{}, &FieldError{Class: class, Field: field,
			Err: fmt.Errorf("%w: negative length %d", memory.ErrOutOfBounds, length)}
	}
	f, addr, err := s.locate(h, class, field, sizeOf[T]()*uintptr(length))
	if err != nil {
		return FixedArray[T]{}, err
	}
	if f.Length != 0 && f.Length != length {
		return FixedArray[T]{}, &FieldError{
			Class: class,
			Field: field,
			Err:   fmt.Errorf("%w: field has %d elements, requested %d", ErrTypeSizeMismatch, f.Length, length),
		}
	}
	return NewFixedArray[T](addr, length), nil
}

// GetPointer reads a pointer-typed field. A null stored pointer yields
// ok == false and no error.
func GetPointer(s *System, h memory.Handle, class, field string) (memory.Handle, bool, error) {
	_, addr, err := s.locate(h, class, field, memory.PointerSize)
	if err != nil {
		return memory.Null, false, err
	}
	p, err := memory.ReadPointer(addr, 0)
	if err != nil {
		return memory.Null, false, err
	}
	return p, !p.IsNull(), nil
}

// GetPointerAs reads a pointer-typed field and wraps the pointee. A null
// stored pointer yields the zero T and ok == false.
func GetPointerAs[T any](s *System, h memory.Handle, class, field string, wrap func(memory.Handle) T) (T, bool, error) {
	var zero T
	p, ok, err := GetPointer(s, h, class, field)
	if err != nil || !ok {
		return zero, false, err
	}
	return wrap(p), true, nil
}

// GetDeclaredClass returns a view of an object embedded by value in the
// field. The view shares the parent's memory.
func GetDeclaredClass[T any](s *System, h memory.Handle, class, field string, wrap func(memory.Handle) T) (T, error) {
	var zero T
	_, addr, err := s.locate(h, class, field, 0)
	if err != nil {
		return zero, err
	}
	return wrap(addr), nil
}

// GetString reads a string field: an inline char buffer (KindString, read
// up to the field size) or a char* (KindStringPtr). A null char* reads as
// the empty string.
func GetString(s *System, h memory.Handle, class, field string) (string, error) {
	f, addr, err := s.locate(h, class, field, 0)
	if err != nil {
		return "", err
	}
	switch f.Kind {
	case KindStringPtr:
		p, err := memory.ReadPointer(addr, 0)
		if err != nil || p.IsNull() {
			return "", err
		}
		return memory.CString(p, constants.DefaultMaxCStringLen)
	case KindString:
		if f.Size == 0 {
			return "", &FieldError{Class: class, Field: field,
				Err: fmt.Errorf("%w: inline string without recorded size", ErrTypeSizeMismatch)}
		}
		return memory.CStringIn(addr, int(f.Size))
	}
	return "", &FieldError{Class: class, Field: field,
		Err: fmt.Errorf("%w: %s field is not a string", ErrTypeSizeMismatch, kindOrUnknown(f.Kind))}
}

// SetString copies v into an inline char buffer, NUL-terminated. Values
// that do not fit fail with memory.ErrOutOfBounds.
func SetString(s *System, h memory.Handle, class, field, v string) error {
	f, addr, err := s.locate(h, class, field, 0)
	if err != nil {
		return err
	}
	if f.Kind != KindString || f.Size == 0 {
		return &FieldError{Class: class, Field: field,
			Err: fmt.Errorf("%w: %s field is not an inline string", ErrTypeSizeMismatch, kindOrUnknown(f.Kind))}
	}
	if uintptr(len(v))+1 > f.Size {
		return &FieldError{Class: class, Field: field,
			Err: fmt.Errorf("%w: %d bytes do not fit in %d", memory.ErrOutOfBounds, len(v)+1, f.Size)}
	}
	buf, err := memory.Bytes(addr, len(v)+1)
	if err != nil {
		return err
	}
	copy(buf, v)
	buf[len(v)] = 0
	return nil
}

func kindOrUnknown(k Kind) Kind {
	if k == "" {
		return "untyped"
	}
	return k
}
