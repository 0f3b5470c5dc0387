package schema

import (
	"fmt"
	"unsafe"

	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

// FixedArray is a bounded view over contiguous native elements. Accesses at
// or past Len fail with memory.ErrOutOfBounds instead of touching adjacent
// memory.
type FixedArray[T any] struct {
	base   memory.Handle
	length int
}

// NewFixedArray creates a view of length elements at base.
func NewFixedArray[T any](base memory.Handle, length int) FixedArray[T] {
	return FixedArray[T]{base: base, length: length}
}

// Len returns the element count.
func (a FixedArray[T]) Len() int { return a.length }

// Handle returns the address of the first element.
func (a FixedArray[T]) Handle() memory.Handle { return a.base }

func (a FixedArray[T]) addr(i int) (memory.Handle, error) {
	if err := a.base.Validate(); err != nil {
		return memory.Null, err
	}
	if i < 0 || i >= a.length {
		return memory.Null, fmt.Errorf("%w: index %d, length %d", memory.ErrOutOfBounds, i, a.length)
	}
	return a.base.Add(uintptr(i) * sizeOf[T]()), nil
}

// At reads element i.
func (a FixedArray[T]) At(i int) (T, error) {
	var zero T
	p, err := a.addr(i)
	if err != nil {
		return zero, err
	}
	return memory.Read[T](p, 0)
}

// Set writes element i.
func (a FixedArray[T]) Set(i int, v T) error {
	p, err := a.addr(i)
	if err != nil {
		return err
	}
	return memory.Write(p, 0, v)
}

// Ref returns a pointer aliasing element i.
func (a FixedArray[T]) Ref(i int) (*T, error) {
	p, err := a.addr(i)
	if err != nil {
		return nil, err
	}
	return memory.Ref[T](p, 0)
}

// Slice returns a Go slice aliasing the whole array. Its length and
// capacity are Len, so indexing past the end panics rather than reading
// neighbouring fields.
func (a FixedArray[T]) Slice() ([]T, error) {
	if err := a.base.Validate(); err != nil {
		return nil, err
	}
	if a.length == 0 {
		return nil, nil
	}
	return unsafe.Slice((*T)(a.base.Pointer()), a.length), nil
}
