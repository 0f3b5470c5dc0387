package vfunc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustZerooo/CounterStrikeSharp/internal/testutil"
)

func TestDefaultRegistry(t *testing.T) {
	caller := NewGoCaller()
	impl := caller.Register(func(this uintptr) int32 { return 7 })
	want := NewRegistry(WithCaller(caller))
	require.NoError(t, InitDefault(func() (*Registry, error) { return want, nil }))

	got, err := Default()
	require.NoError(t, err)
	assert.Same(t, want, got)

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, got, again)

	assert.ErrorIs(t, InitDefault(func() (*Registry, error) { return nil, nil }), ErrAlreadyInitialized)

	obj := testutil.VTable(t, uintptr(impl))
	fn, err := FromVTable(obj, 0, Sig(Int))
	require.NoError(t, err)
	res, err := fn.Call()
	require.NoError(t, err)
	assert.Equal(t, int32(7), res)
}
