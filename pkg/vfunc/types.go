package vfunc

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"unsafe"
)

// DataType is the native type vocabulary for arguments, returns and
// dynamically typed schema reads.
type DataType int

const (
	Void DataType = iota
	Bool
	Char
	UChar
	Short
	UShort
	Int
	UInt
	Long
	ULong
	LongLong
	ULongLong
	Float
	Double
	Pointer
	String
)

var dataTypeNames = [...]string{
	Void:      "void",
	Bool:      "bool",
	Char:      "char",
	UChar:     "uchar",
	Short:     "short",
	UShort:    "ushort",
	Int:       "int",
	UInt:      "uint",
	Long:      "long",
	ULong:     "ulong",
	LongLong:  "longlong",
	ULongLong: "ulonglong",
	Float:     "float",
	Double:    "double",
	Pointer:   "pointer",
	String:    "string",
}

func (d DataType) String() string {
	if d < 0 || int(d) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(d))
	}
	return dataTypeNames[d]
}

// Valid reports whether d is a known data type.
func (d DataType) Valid() bool { return d >= Void && d <= String }

// ParseDataType maps a type name to a DataType.
func ParseDataType(name string) (DataType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range dataTypeNames {
		if n == name {
			return DataType(i), nil
		}
	}
	return Void, fmt.Errorf("unknown data type %q", name)
}

// longSize is sizeof(long): 4 on Windows (LLP64), pointer-sized elsewhere.
var longSize = func() uintptr {
	if runtime.GOOS == "windows" {
		return 4
	}
	return unsafe.Sizeof(uintptr(0))
}()

// Size returns the native size of d in bytes. Void is 0.
func (d DataType) Size() uintptr {
	switch d {
	case Bool, Char, UChar:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float:
		return 4
	case Long, ULong:
		return longSize
	case LongLong, ULongLong, Double:
		return 8
	case Pointer, String:
		return unsafe.Sizeof(uintptr(0))
	}
	return 0
}

// IsFloat reports whether d is passed in floating point registers.
func (d DataType) IsFloat() bool { return d == Float || d == Double }

// GoType returns the Go type used to carry d across the native boundary.
// Long and ULong follow the platform's sizeof(long). String is carried as a
// Go string and converted to and from a NUL-terminated char* at the call.
func (d DataType) GoType() reflect.Type {
	switch d {
	case Bool:
		return reflect.TypeOf((*bool)(nil)).Elem()
	case Char:
		return reflect.TypeOf((*int8)(nil)).Elem()
	case UChar:
		return reflect.TypeOf((*uint8)(nil)).Elem()
	case Short:
		return reflect.TypeOf((*int16)(nil)).Elem()
	case UShort:
		return reflect.TypeOf((*uint16)(nil)).Elem()
	case Int:
		return reflect.TypeOf((*int32)(nil)).Elem()
	case UInt:
		return reflect.TypeOf((*uint32)(nil)).Elem()
	case Long:
		if longSize == 4 {
			return reflect.TypeOf((*int32)(nil)).Elem()
		}
		return reflect.TypeOf((*int64)(nil)).Elem()
	case ULong:
		if longSize == 4 {
			return reflect.TypeOf((*uint32)(nil)).Elem()
		}
		return reflect.TypeOf((*uint64)(nil)).Elem()
	case LongLong:
		return reflect.TypeOf((*int64)(nil)).Elem()
	case ULongLong:
		return reflect.TypeOf((*uint64)(nil)).Elem()
	case Float:
		return reflect.TypeOf((*float32)(nil)).Elem()
	case Double:
		return reflect.TypeOf((*float64)(nil)).Elem()
	case Pointer:
		return reflect.TypeOf((*uintptr)(nil)).Elem()
	case String:
		return reflect.TypeOf((*string)(nil)).Elem()
	}
	return nil
}

// Convention is a native calling convention.
type Convention int

const (
	CDecl Convention = iota
	ThisCall
	StdCall
	FastCall
	// Custom marks functions with a non-standard convention. They can be
	// described but not called.
	Custom
)

func (c Convention) String() string {
	switch c {
	case CDecl:
		return "cdecl"
	case ThisCall:
		return "thiscall"
	case StdCall:
		return "stdcall"
	case FastCall:
		return "fastcall"
	case Custom:
		return "custom"
	}
	return fmt.Sprintf("Convention(%d)", int(c))
}

// IsCallable reports whether a function with this convention can be
// invoked. On 64-bit targets thiscall, stdcall and fastcall collapse into
// the platform C convention; stdcall and fastcall only exist on Windows.
func (c Convention) IsCallable() bool {
	switch c {
	case CDecl, ThisCall:
		return true
	case StdCall, FastCall:
		return runtime.GOOS == "windows"
	}
	return false
}
