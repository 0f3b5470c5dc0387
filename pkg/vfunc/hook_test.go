package vfunc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustZerooo/CounterStrikeSharp/internal/testutil"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

func TestHookVTable_DetourAndOriginal(t *testing.T) {
	reg, caller := newTestRegistry()
	health := caller.Register(func(this uintptr, dmg int32) int32 { return 100 - dmg })
	obj := testutil.VTable(t, uintptr(health))

	fn, err := reg.FromVTable(obj, 0, Sig(Int, Int))
	require.NoError(t, err)
	takeDamage, err := BindAs[func(int32) int32](fn)
	require.NoError(t, err)
	require.Equal(t, int32(90), takeDamage(10))

	var original func(uintptr, int32) int32
	var seen uintptr
	hook, err := reg.HookVTable(obj, 0, Sig(Int, Int), func(this uintptr, dmg int32) int32 {
		seen = this
		return original(this, dmg/2)
	})
	require.NoError(t, err)
	require.NoError(t, hook.Original().Bind(&original))
	assert.True(t, hook.Active())

	assert.Equal(t, int32(95), takeDamage(10), "existing bindings go through the detour")
	assert.Equal(t, uintptr(obj), seen)

	require.NoError(t, hook.Unhook())
	assert.False(t, hook.Active())
	assert.Equal(t, int32(90), takeDamage(10))
	assert.NoError(t, hook.Unhook(), "second unhook is a no-op")

	addr, err := fn.Addr()
	require.NoError(t, err)
	assert.Equal(t, health, addr)
}

func TestHookVTable_LeavesForeignHookInPlace(t *testing.T) {
	reg, caller := newTestRegistry()
	orig := caller.Register(func(this uintptr) {})
	other := caller.Register(func(this uintptr) {})
	obj := testutil.VTable(t, uintptr(orig))

	hook, err := reg.HookVTable(obj, 0, Sig(Void), func(this uintptr) {})
	require.NoError(t, err)

	table, err := memory.ReadPointer(obj, 0)
	require.NoError(t, err)
	require.NoError(t, memory.Write(table, 0, uintptr(other)))

	require.NoError(t, hook.Unhook())
	cur, err := memory.ReadPointer(table, 0)
	require.NoError(t, err)
	assert.Equal(t, other, cur)
}

func TestHookVTable_Errors(t *testing.T) {
	reg, caller := newTestRegistry()
	obj := testutil.VTable(t, filler(caller, 2)...)

	_, err := reg.HookVTable(obj, 0, Sig(Int, Int), func(dmg int32) int32 { return 0 })
	assert.ErrorIs(t, err, ErrSignatureMismatch, "detour must take the object first")

	_, err = reg.HookVTable(obj, 0, Sig(Void), 42)
	assert.ErrorIs(t, err, ErrSignatureMismatch)

	_, err = reg.HookVTable(obj, 5, Sig(Void), func(this uintptr) {})
	assert.ErrorIs(t, err, ErrInvalidVTableIndex)

	_, err = reg.HookVTable(memory.Null, 0, Sig(Void), func(this uintptr) {})
	assert.ErrorIs(t, err, memory.ErrInvalidHandle)
}

func TestHookVTable_FailedRestoreStaysActive(t *testing.T) {
	reg, caller := newTestRegistry()
	orig := caller.Register(func(this uintptr) {})
	obj := testutil.VTable(t, uintptr(orig))

	hook, err := reg.HookVTable(obj, 0, Sig(Void), func(this uintptr) {})
	require.NoError(t, err)

	patchPointer = func(memory.Handle, uintptr, memory.Perm) (uintptr, error) {
		return 0, errors.New("mprotect: permission denied")
	}
	t.Cleanup(func() { patchPointer = memory.PatchPointer })

	assert.Error(t, hook.Unhook())
	assert.True(t, hook.Active(), "detour is still installed")

	patchPointer = memory.PatchPointer
	require.NoError(t, hook.Unhook())
	assert.False(t, hook.Active())

	table, err := memory.ReadPointer(obj, 0)
	require.NoError(t, err)
	cur, err := memory.ReadPointer(table, 0)
	require.NoError(t, err)
	assert.Equal(t, orig, cur)
}
