// Package memory provides borrowed views over native memory owned by the host
// process.
//
// A Handle is an opaque native address. Nothing in this package allocates,
// frees or caches what a handle points at: every read and write goes straight
// to the host's memory and re-validates the handle first. Callers must only
// touch a native object from the thread the host allows to own it; there is
// no internal locking.
package memory

import (
	"errors"
	"fmt"
	"unsafe"
)

var (
	// ErrInvalidHandle is returned when a null handle is dereferenced.
	ErrInvalidHandle = errors.New("memory: invalid handle")

	// ErrOutOfBounds is returned when an access falls outside a bounded view.
	ErrOutOfBounds = errors.New("memory: out of bounds")
)

// PointerSize is the size of a native pointer on this platform.
const PointerSize = unsafe.Sizeof(uintptr(0))

// Handle is the address of an object owned by the host process.
type Handle uintptr

// Null is the zero handle.
const Null Handle = 0

// IsNull reports whether the handle is zero.
func (h Handle) IsNull() bool { return h == 0 }

// Validate returns ErrInvalidHandle for a null handle.
func (h Handle) Validate() error {
	if h == 0 {
		return ErrInvalidHandle
	}
	return nil
}

// Add returns the handle offset by off bytes.
func (h Handle) Add(off uintptr) Handle { return h + Handle(off) }

// Pointer converts the handle to an unsafe.Pointer.
func (h Handle) Pointer() unsafe.Pointer {
	//nolint:govet // Host addresses are not Go heap pointers.
	return unsafe.Pointer(uintptr(h))
}

func (h Handle) String() string { return fmt.Sprintf("0x%x", uintptr(h)) }

// HandleOf returns the handle for a pointer.
func HandleOf[T any](p *T) Handle {
	return Handle(uintptr(unsafe.Pointer(p)))
}

// Read copies the value of type T at h+off.
func Read[T any](h Handle, off uintptr) (T, error) {
	var zero T
	if err := h.Validate(); err != nil {
		return zero, err
	}
	return *(*T)(h.Add(off).Pointer()), nil
}

// Write stores v at h+off. The write is visible to the host immediately.
func Write[T any](h Handle, off uintptr, v T) error {
	if err := h.Validate(); err != nil {
		return err
	}
	*(*T)(h.Add(off).Pointer()) = v
	return nil
}

// Ref returns a pointer aliasing the native value at h+off.
func Ref[T any](h Handle, off uintptr) (*T, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return (*T)(h.Add(off).Pointer()), nil
}

// ReadPointer reads a pointer-sized field at h+off and returns it as a handle.
// A null stored pointer is returned as Null without error.
func ReadPointer(h Handle, off uintptr) (Handle, error) {
	p, err := Read[uintptr](h, off)
	if err != nil {
		return Null, err
	}
	return Handle(p), nil
}

// Bytes returns a slice aliasing n bytes at h.
func Bytes(h Handle, n int) ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrOutOfBounds, n)
	}
	if n == 0 {
		return nil, nil
	}
	return unsafe.Slice((*byte)(h.Pointer()), n), nil
}

// CString reads a NUL-terminated string at h, scanning at most max bytes.
// The result is copied into Go memory. A string without terminator within
// max bytes fails with ErrOutOfBounds.
func CString(h Handle, max int) (string, error) {
	if err := h.Validate(); err != nil {
		return "", err
	}
	for i := 0; i < max; i++ {
		if *(*byte)(h.Add(uintptr(i)).Pointer()) == 0 {
			return string(unsafe.Slice((*byte)(h.Pointer()), i)), nil
		}
	}
	return "", fmt.Errorf("%w: no terminator within %d bytes at %s", ErrOutOfBounds, max, h)
}

// CStringIn reads a NUL-terminated string stored inline in a fixed buffer of
// size bytes. An unterminated buffer yields all size bytes.
func CStringIn(h Handle, size int) (string, error) {
	buf, err := Bytes(h, size)
	if err != nil {
		return "", err
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf), nil
}
