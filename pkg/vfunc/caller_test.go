package vfunc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

func TestGoCaller_BindConvertsNamedTypes(t *testing.T) {
	c := NewGoCaller()
	addr := c.Register(func(h memory.Handle, n int32) memory.Handle { return h.Add(uintptr(n)) })

	var fn func(uintptr, int32) uintptr
	require.NoError(t, c.Bind(&fn, addr))
	assert.Equal(t, uintptr(0x1010), fn(0x1000, 0x10))

	got, ok := c.Lookup(addr)
	require.True(t, ok)
	assert.IsType(t, func(memory.Handle, int32) memory.Handle { return 0 }, got)
}

func TestGoCaller_Errors(t *testing.T) {
	c := NewGoCaller()
	addr := c.Register(func(a int32) int32 { return a })

	var wrongArity func(int32, int32) int32
	assert.ErrorIs(t, c.Bind(&wrongArity, addr), ErrSignatureMismatch)

	var wrongWidth func(int64) int32
	assert.ErrorIs(t, c.Bind(&wrongWidth, addr), ErrSignatureMismatch)

	var fine func(int32) int32
	assert.Error(t, c.Bind(&fine, addr+0x1000), "unregistered address")

	_, err := c.Callback("not a func")
	assert.Error(t, err)
	assert.Panics(t, func() { c.Register(3) })
}

func TestGoCaller_DistinctAddresses(t *testing.T) {
	c := NewGoCaller()
	a := c.Register(func() {})
	b, err := c.Callback(func() {})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsNull())
}

func TestDataTypes(t *testing.T) {
	dt, err := ParseDataType(" Float ")
	require.NoError(t, err)
	assert.Equal(t, Float, dt)
	assert.True(t, dt.IsFloat())
	assert.Equal(t, uintptr(4), dt.Size())
	assert.Equal(t, "float", dt.String())

	_, err = ParseDataType("quaternion")
	assert.Error(t, err)

	assert.Equal(t, memory.PointerSize, Pointer.Size())
	assert.Zero(t, Void.Size())
	assert.Nil(t, Void.GoType())
	assert.False(t, DataType(-1).Valid())
	assert.True(t, CDecl.IsCallable())
	assert.False(t, Custom.IsCallable())
}
