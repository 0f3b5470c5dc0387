package schema

import (
	"fmt"

	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/vfunc"
)

// ValueByName reads a field whose type is only known at run time, as
// script bridges do. The result's Go type is dt.GoType(), except that
// String yields a Go string and Pointer a memory.Handle.
func ValueByName(s *System, h memory.Handle, dt vfunc.DataType, class, field string) (any, error) {
	switch dt {
	case vfunc.Bool:
		return GetScalar[bool](s, h, class, field)
	case vfunc.Char:
		return GetScalar[int8](s, h, class, field)
	case vfunc.UChar:
		return GetScalar[uint8](s, h, class, field)
	case vfunc.Short:
		return GetScalar[int16](s, h, class, field)
	case vfunc.UShort:
		return GetScalar[uint16](s, h, class, field)
	case vfunc.Int:
		return GetScalar[int32](s, h, class, field)
	case vfunc.UInt:
		return GetScalar[uint32](s, h, class, field)
	case vfunc.Long:
		if vfunc.Long.Size() == 4 {
			return GetScalar[int32](s, h, class, field)
		}
		return GetScalar[int64](s, h, class, field)
	case vfunc.ULong:
		if vfunc.ULong.Size() == 4 {
			return GetScalar[uint32](s, h, class, field)
		}
		return GetScalar[uint64](s, h, class, field)
	case vfunc.LongLong:
		return GetScalar[int64](s, h, class, field)
	case vfunc.ULongLong:
		return GetScalar[uint64](s, h, class, field)
	case vfunc.Float:
		return GetScalar[float32](s, h, class, field)
	case vfunc.Double:
		return GetScalar[float64](s, h, class, field)
	case vfunc.Pointer:
		p, _, err := GetPointer(s, h, class, field)
		return p, err
	case vfunc.String:
		return GetString(s, h, class, field)
	}
	return nil, &FieldError{Class: class, Field: field, Err: fmt.Errorf("%w: cannot read %s", ErrTypeSizeMismatch, dt)}
}

// SetValueByName writes a field whose type is only known at run time. v
// must be convertible to dt's Go carrier type.
func SetValueByName(s *System, h memory.Handle, dt vfunc.DataType, class, field string, v any) error {
	mismatch := func() error {
		return &FieldError{Class: class, Field: field,
			Err: fmt.Errorf("%w: cannot store %T as %s", ErrTypeSizeMismatch, v, dt)}
	}

	switch dt {
	case vfunc.String:
		str, ok := v.(string)
		if !ok {
			return mismatch()
		}
		return SetString(s, h, class, field, str)
	case vfunc.Pointer:
		switch p := v.(type) {
		case memory.Handle:
			return SetScalar(s, h, class, field, uintptr(p))
		case uintptr:
			return SetScalar(s, h, class, field, p)
		}
		return mismatch()
	case vfunc.Bool:
		b, ok := v.(bool)
		if !ok {
			return mismatch()
		}
		return SetScalar(s, h, class, field, b)
	case vfunc.Float:
		f, ok := toFloat(v)
		if !ok {
			return mismatch()
		}
		return SetScalar(s, h, class, field, float32(f))
	case vfunc.Double:
		f, ok := toFloat(v)
		if !ok {
			return mismatch()
		}
		return SetScalar(s, h, class, field, f)
	}

	n, neg, ok := toInt(v)
	if !ok || !dt.Valid() || dt == vfunc.Void {
		return mismatch()
	}
	if !fitsInt(dt, n, neg) {
		return &FieldError{Class: class, Field: field,
			Err: fmt.Errorf("%w: %v out of range for %s", ErrTypeSizeMismatch, v, dt)}
	}
	switch dt.Size() {
	case 1:
		return SetScalar(s, h, class, field, uint8(n))
	case 2:
		return SetScalar(s, h, class, field, uint16(n))
	case 4:
		return SetScalar(s, h, class, field, uint32(n))
	default:
		return SetScalar(s, h, class, field, n)
	}
}

func toFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}

// toInt returns the two's complement bits of any Go integer and whether
// it is negative.
func toInt(v any) (bits uint64, neg bool, ok bool) {
	switch n := v.(type) {
	case int:
		return uint64(n), n < 0, true
	case int8:
		return uint64(n), n < 0, true
	case int16:
		return uint64(n), n < 0, true
	case int32:
		return uint64(n), n < 0, true
	case int64:
		return uint64(n), n < 0, true
	case uint:
		return uint64(n), false, true
	case uint8:
		return uint64(n), false, true
	case uint16:
		return uint64(n), false, true
	case uint32:
		return uint64(n), false, true
	case uint64:
		return n, false, true
	case uintptr:
		return uint64(n), false, true
	}
	return 0, false, false
}

func signed(dt vfunc.DataType) bool {
	switch dt {
	case vfunc.Char, vfunc.Short, vfunc.Int, vfunc.Long, vfunc.LongLong:
		return true
	}
	return false
}

// fitsInt reports whether the integer (bits, neg) is representable in dt.
func fitsInt(dt vfunc.DataType, bits uint64, neg bool) bool {
	width := dt.Size() * 8
	if signed(dt) {
		if neg {
			return width == 64 || int64(bits) >= -1<<(width-1)
		}
		return bits <= 1<<(width-1)-1
	}
	if neg {
		return false
	}
	return width == 64 || bits < 1<<width
}
