package vfunc

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustZerooo/CounterStrikeSharp/internal/disasm"
	"github.com/JustZerooo/CounterStrikeSharp/internal/testutil"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/gamedata"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/sigscan"
)

func newTestRegistry(opts ...Option) (*Registry, *GoCaller) {
	caller := NewGoCaller()
	return NewRegistry(append([]Option{WithCaller(caller)}, opts...)...), caller
}

// filler returns n distinct non-null slot values.
func filler(c *GoCaller, n int) []uintptr {
	slots := make([]uintptr, n)
	for i := range slots {
		slots[i] = uintptr(c.Register(func(this uintptr) {}))
	}
	return slots
}

func TestFromVTable_PassesReceiver(t *testing.T) {
	reg, caller := newTestRegistry()

	var gotThis uintptr
	double := caller.Register(func(this uintptr, x int32) int32 {
		gotThis = this
		return x * 2
	})
	obj := testutil.VTable(t, append(filler(caller, 1), uintptr(double))...)

	fn, err := reg.FromVTable(obj, 1, Sig(Int, Int))
	require.NoError(t, err)

	var call func(int32) int32
	require.NoError(t, fn.Bind(&call))
	assert.Equal(t, int32(42), call(21))
	assert.Equal(t, uintptr(obj), gotThis)

	res, err := fn.Call(5)
	require.NoError(t, err)
	assert.Equal(t, int32(10), res)

	idx, ok := fn.VTableIndex()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, obj, fn.Receiver())
	assert.Equal(t, []DataType{Pointer, Int}, fn.NativeArgs())
}

func TestFromVTable_GameEventManager(t *testing.T) {
	reg, caller := newTestRegistry()

	slots := filler(caller, 92)
	slots[91] = uintptr(caller.Register(func(this uintptr) uintptr {
		return this + 0x1008
	}))
	obj := testutil.VTable(t, slots...)

	fn, err := reg.FromVTable(obj, 91, Sig(Pointer))
	require.NoError(t, err)

	get, err := BindAs[func() uintptr](fn)
	require.NoError(t, err)
	manager := memory.Handle(get() - 8)
	assert.Equal(t, obj.Add(0x1000), manager)
}

func TestFromVTable_InvalidIndex(t *testing.T) {
	reg, caller := newTestRegistry()
	slots := filler(caller, 3)

	obj := testutil.VTable(t, slots...)
	_, err := reg.FromVTable(obj, 3, Sig(Void))
	assert.ErrorIs(t, err, ErrInvalidVTableIndex)
	_, err = reg.FromVTable(obj, -1, Sig(Void))
	assert.ErrorIs(t, err, ErrInvalidVTableIndex)

	holey := testutil.VTable(t, slots[0], 0, slots[2])
	_, err = reg.FromVTable(holey, 2, Sig(Void))
	assert.ErrorIs(t, err, ErrInvalidVTableIndex, "slots after a null entry are not part of the table")

	noTable := testutil.Alloc(t, 8)
	_, err = reg.FromVTable(noTable, 0, Sig(Void))
	assert.ErrorIs(t, err, ErrInvalidVTableIndex)

	_, err = reg.FromVTable(memory.Null, 0, Sig(Void))
	assert.ErrorIs(t, err, memory.ErrInvalidHandle)
}

func TestFromVTable_ExecutableCheck(t *testing.T) {
	code := testutil.Alloc(t, 64)
	mod := &memory.Module{
		Name: "server",
		Path: "/bin/libserver.so",
		Base: code,
		Segments: []memory.Segment{{
			Region: memory.Region{Base: code, Size: 64},
			Perm:   memory.PermRead | memory.PermExec,
		}},
	}
	reg, _ := newTestRegistry(WithModules(memory.NewModuleMap(mod)))

	// The third slot points at data, ending the table.
	obj := testutil.VTable(t, uintptr(code), uintptr(code.Add(16)), 0xdead0000)
	layout, err := reg.Layout(obj)
	require.NoError(t, err)
	assert.Equal(t, 2, layout.Count())

	_, err = reg.FromVTable(obj, 2, Sig(Void))
	assert.ErrorIs(t, err, ErrInvalidVTableIndex)
}

func TestLayout_ReloadsModulesForLateLibrary(t *testing.T) {
	code := testutil.Alloc(t, 64)
	late := memory.NewModuleMap(&memory.Module{
		Name: "matchmaking",
		Path: "/game/bin/linuxsteamrt64/libmatchmaking.so",
		Base: code,
		Segments: []memory.Segment{{
			Region: memory.Region{Base: code, Size: 64},
			Perm:   memory.PermRead | memory.PermExec,
		}},
	})
	loads := 0
	reg, _ := newTestRegistry(
		WithModules(memory.NewModuleMap()),
		WithModuleLoader(func() (*memory.ModuleMap, error) {
			loads++
			return late, nil
		}),
	)

	obj := testutil.VTable(t, uintptr(code), uintptr(code.Add(8)), 0xdead0000)
	layout, err := reg.Layout(obj)
	require.NoError(t, err)
	assert.Equal(t, 2, layout.Count())
	assert.Equal(t, 1, loads)

	fn, err := reg.FromVTable(obj, 1, Sig(Void))
	require.NoError(t, err)
	addr, err := fn.Addr()
	require.NoError(t, err)
	assert.Equal(t, code.Add(8), addr)
}

func TestLayout_EmptyIsNotCached(t *testing.T) {
	code := testutil.Alloc(t, 64)
	reg, _ := newTestRegistry(WithModules(memory.NewModuleMap()))

	obj := testutil.VTable(t, uintptr(code))
	layout, err := reg.Layout(obj)
	require.NoError(t, err)
	assert.Zero(t, layout.Count())
	assert.Zero(t, reg.layouts.len())

	_, err = reg.FromVTable(obj, 0, Sig(Void))
	assert.ErrorIs(t, err, ErrInvalidVTableIndex)
}

func TestLayout_SharedPerVTable(t *testing.T) {
	reg, caller := newTestRegistry()
	a := testutil.VTable(t, filler(caller, 4)...)
	table, err := memory.ReadPointer(a, 0)
	require.NoError(t, err)
	b := testutil.Alloc(t, 8)
	require.NoError(t, memory.Write(b, 0, uintptr(table)))

	la, err := reg.Layout(a)
	require.NoError(t, err)
	lb, err := reg.Layout(b)
	require.NoError(t, err)
	assert.Same(t, la, lb)
	assert.Equal(t, 1, reg.layouts.len())
	assert.Equal(t, 4, la.Count())
}

func TestLayout_MaxSlots(t *testing.T) {
	reg, caller := newTestRegistry(WithMaxSlots(2))
	obj := testutil.VTable(t, filler(caller, 5)...)
	layout, err := reg.Layout(obj)
	require.NoError(t, err)
	assert.Equal(t, 2, layout.Count())
}

func TestFromVTable_SlotReadAtCallTime(t *testing.T) {
	reg, caller := newTestRegistry()
	one := caller.Register(func(this uintptr) int32 { return 1 })
	two := caller.Register(func(this uintptr) int32 { return 2 })
	obj := testutil.VTable(t, uintptr(one))

	fn, err := reg.FromVTable(obj, 0, Sig(Int))
	require.NoError(t, err)
	get, err := BindAs[func() int32](fn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), get())

	table, err := memory.ReadPointer(obj, 0)
	require.NoError(t, err)
	require.NoError(t, memory.Write(table, 0, uintptr(two)))
	assert.Equal(t, int32(2), get())

	addr, err := fn.Addr()
	require.NoError(t, err)
	assert.Equal(t, two, addr)
}

func TestBind_RejectsMismatches(t *testing.T) {
	reg, caller := newTestRegistry()
	impl := caller.Register(func(this uintptr, a int32, b float32) float64 { return 0 })
	obj := testutil.VTable(t, uintptr(impl))
	fn, err := reg.FromVTable(obj, 0, Sig(Double, Int, Float))
	require.NoError(t, err)

	tests := []struct {
		name string
		fptr any
	}{
		{"too few args", new(func(int32) float64)},
		{"too many args", new(func(int32, float32, int32) float64)},
		{"int for float", new(func(int32, int32) float64)},
		{"float for int", new(func(float32, float32) float64)},
		{"wider int", new(func(int64, float32) float64)},
		{"narrow result", new(func(int32, float32) float32)},
		{"no result", new(func(int32, float32))},
		{"two results", new(func(int32, float32) (float64, error))},
		{"variadic", new(func(int32, ...float32) float64)},
		{"not a func", new(int)},
		{"not a pointer", func(int32, float32) float64 { return 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, fn.Bind(tt.fptr), ErrSignatureMismatch)
		})
	}

	var ok func(int32, float32) float64
	assert.NoError(t, fn.Bind(&ok))

	type entityIndex int32
	var named func(entityIndex, float32) float64
	assert.NoError(t, fn.Bind(&named), "named types of the right width bind")
}

func TestBind_VoidFunction(t *testing.T) {
	reg, caller := newTestRegistry()
	var got uintptr
	impl := caller.Register(func(this, pos uintptr) { got = pos })
	obj := testutil.VTable(t, uintptr(impl))
	fn, err := reg.FromVTable(obj, 0, Sig(Void, Pointer))
	require.NoError(t, err)

	var withResult func(uintptr) int32
	assert.ErrorIs(t, fn.Bind(&withResult), ErrSignatureMismatch)

	teleport, err := BindAs[func(memory.Handle)](fn)
	require.NoError(t, err)
	teleport(0x1234)
	assert.Equal(t, uintptr(0x1234), got)

	res, err := fn.Call(nil)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Zero(t, got)
}

func TestCall_ArgumentErrors(t *testing.T) {
	reg, caller := newTestRegistry()
	impl := caller.Register(func(this uintptr, x int32) int32 { return x })
	obj := testutil.VTable(t, uintptr(impl))
	fn, err := reg.FromVTable(obj, 0, Sig(Int, Int))
	require.NoError(t, err)

	_, err = fn.Call()
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	_, err = fn.Call(1.5)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	_, err = fn.Call("7")
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	_, err = fn.Call(nil)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestSignature_Validation(t *testing.T) {
	reg, caller := newTestRegistry()
	obj := testutil.VTable(t, filler(caller, 1)...)

	_, err := reg.FromVTable(obj, 0, Sig(Void, Int, Void))
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	_, err = reg.FromVTable(obj, 0, Sig(DataType(99)))
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	_, err = reg.FromAddress(memory.Null, Sig(Void))
	assert.ErrorIs(t, err, memory.ErrInvalidHandle)
}

func TestCustomConventionNotCallable(t *testing.T) {
	reg, caller := newTestRegistry()
	obj := testutil.VTable(t, filler(caller, 1)...)
	fn, err := reg.FromVTable(obj, 0, Signature{Return: Void, Convention: Custom})
	require.NoError(t, err, "describing the function is allowed")
	assert.False(t, fn.IsCallable())

	var call func()
	assert.ErrorIs(t, fn.Bind(&call), ErrNotCallable)
	_, err = fn.Call()
	assert.ErrorIs(t, err, ErrNotCallable)
}

// newServerModule maps code and a vtable into a fake "server" module.
func newServerModule(t *testing.T, code []byte) (*memory.ModuleMap, memory.Handle, memory.Handle) {
	t.Helper()
	text := testutil.AllocBytes(t, code)
	obj := testutil.VTable(t, uintptr(text))
	table, err := memory.ReadPointer(obj, 0)
	require.NoError(t, err)

	mod := &memory.Module{
		Name: "server",
		Path: "/game/bin/linuxsteamrt64/libserver.so",
		Base: min(text, table),
		Segments: []memory.Segment{
			{Region: memory.Region{Base: text, Size: uintptr(len(code))}, Perm: memory.PermRead | memory.PermExec},
			{Region: memory.Region{Base: table, Size: memory.PointerSize}, Perm: memory.PermRead},
		},
	}
	return memory.NewModuleMap(mod), text, obj
}

var serverCode = []byte{
	0xCC, 0xCC, 0x55, 0x48, 0x89, 0xE5, 0x41, 0x57, 0xC3, // target at 2
	0x55, 0x48, 0x89, 0xE5, 0x41, 0x56, 0xC3,
}

func TestFromSignature_ResolvesInReceiverModule(t *testing.T) {
	mm, text, obj := newServerModule(t, serverCode)
	reg, _ := newTestRegistry(WithModules(mm))

	fn, err := reg.FromSignature(obj, `\x55\x48\x89\xE5\x41\x57`, Sig(Void))
	require.NoError(t, err)
	addr, err := fn.Addr()
	require.NoError(t, err)
	assert.Equal(t, text.Add(2), addr)
	assert.Equal(t, obj, fn.Receiver())

	_, err = reg.FromSignature(obj, `\x90\x90\x90`, Sig(Void))
	assert.ErrorIs(t, err, gamedata.ErrUnresolvedSymbol)
	assert.ErrorIs(t, err, sigscan.ErrNoMatch)

	_, err = reg.FromSignature(obj, `\x55\x48\x89\xE5\x41\x2A`, Sig(Void))
	assert.ErrorIs(t, err, gamedata.ErrUnresolvedSymbol)
	assert.ErrorIs(t, err, sigscan.ErrAmbiguousMatch)
	var me *sigscan.MatchError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, 2, me.Count)

	_, err = reg.FromSignature(obj, `\xZZ`, Sig(Void))
	assert.ErrorIs(t, err, gamedata.ErrUnresolvedSymbol)
	assert.ErrorIs(t, err, sigscan.ErrInvalidPattern)
}

func TestFromSignature_ReceiverOutsideModules(t *testing.T) {
	mm, _, _ := newServerModule(t, serverCode)
	reg, _ := newTestRegistry(WithModules(mm))

	stray := testutil.VTable(t, 0x1)
	_, err := reg.FromSignature(stray, `\x55\x48`, Sig(Void))
	assert.ErrorIs(t, err, gamedata.ErrUnresolvedSymbol)
	assert.ErrorIs(t, err, memory.ErrModuleNotFound)

	_, err = reg.FromSignature(memory.Null, `\x55\x48`, Sig(Void))
	assert.ErrorIs(t, err, memory.ErrInvalidHandle)
}

func TestFromSignature_ReloadsModules(t *testing.T) {
	mm, text, obj := newServerModule(t, serverCode)
	loads := 0
	reg, _ := newTestRegistry(
		WithModules(memory.NewModuleMap()),
		WithModuleLoader(func() (*memory.ModuleMap, error) {
			loads++
			return mm, nil
		}),
	)

	fn, err := reg.FromSignature(obj, `\x55\x48\x89\xE5\x41\x57`, Sig(Void))
	require.NoError(t, err)
	addr, err := fn.Addr()
	require.NoError(t, err)
	assert.Equal(t, text.Add(2), addr)

	fn, err = reg.FromLibrarySignature("server", "55 48 89 E5 41 56", Sig(Void))
	require.NoError(t, err)
	addr, err = fn.Addr()
	require.NoError(t, err)
	assert.Equal(t, text.Add(9), addr)
	assert.Equal(t, 1, loads, "the refreshed snapshot is kept")

	_, err = reg.FromLibrarySignature("engine2", "55 48", Sig(Void))
	assert.ErrorIs(t, err, memory.ErrModuleNotFound)
	assert.Equal(t, 2, loads, "a miss reloads once")
}

func TestFromSignature_ReloadFailureKeepsSnapshot(t *testing.T) {
	mm, _, _ := newServerModule(t, serverCode)
	reg, _ := newTestRegistry(
		WithModules(mm),
		WithModuleLoader(func() (*memory.ModuleMap, error) { return nil, errors.New("maps unreadable") }),
	)

	_, err := reg.FromLibrarySignature("engine2", "55 48", Sig(Void))
	assert.ErrorIs(t, err, memory.ErrModuleNotFound)

	_, err = reg.FromLibrarySignature("server", "55 48 89 E5 41 56", Sig(Void))
	assert.NoError(t, err)
}

func TestFromLibrarySignature(t *testing.T) {
	mm, text, _ := newServerModule(t, serverCode)
	reg, _ := newTestRegistry(WithModules(mm))

	fn, err := reg.FromLibrarySignature("server", "55 48 89 E5 41 56", Sig(Void))
	require.NoError(t, err)
	addr, err := fn.Addr()
	require.NoError(t, err)
	assert.Equal(t, text.Add(9), addr)
	assert.True(t, fn.Receiver().IsNull())

	_, err = reg.FromLibrarySignature("engine2", "55 48", Sig(Void))
	assert.ErrorIs(t, err, gamedata.ErrUnresolvedSymbol)
	assert.ErrorIs(t, err, memory.ErrModuleNotFound)
}

func TestFromGameData(t *testing.T) {
	caller := NewGoCaller()
	slots := filler(caller, 92)
	slots[91] = uintptr(caller.Register(func(this uintptr) uintptr { return this + 8 }))
	obj := testutil.VTable(t, slots...)

	index := 91
	table := gamedata.New(gamedata.File{
		"GameEventManager": {Offsets: &gamedata.Offsets{Linux: &index}},
	}, gamedata.WithPlatform(gamedata.Linux))
	reg := NewRegistry(WithCaller(caller), WithGameData(table))

	fn, err := reg.FromGameData("GameEventManager", obj, Sig(Pointer))
	require.NoError(t, err)
	assert.Equal(t, "GameEventManager", fn.Name())
	res, err := fn.Call()
	require.NoError(t, err)
	assert.Equal(t, uintptr(obj)+8, res)

	_, err = reg.FromGameData("Nope", obj, Sig(Pointer))
	assert.ErrorIs(t, err, gamedata.ErrUnresolvedSymbol)
}

func TestFollowThunks(t *testing.T) {
	code := make([]byte, 32)
	switch disasm.HostArch() {
	case disasm.AMD64:
		// jmp rel32 +3
		copy(code, []byte{0xE9, 0x03, 0x00, 0x00, 0x00, 0xCC, 0xCC, 0xCC, 0x55})
	case disasm.ARM64:
		binary.LittleEndian.PutUint32(code, 0x14000000|(8>>2))
	default:
		t.Skip("no decoder for this architecture")
	}
	text := testutil.AllocBytes(t, code)
	mod := &memory.Module{
		Name: "server", Path: "/bin/libserver.so", Base: text,
		Segments: []memory.Segment{{
			Region: memory.Region{Base: text, Size: uintptr(len(code))},
			Perm:   memory.PermRead | memory.PermExec,
		}},
	}
	reg, _ := newTestRegistry(WithModules(memory.NewModuleMap(mod)))

	target, hops := reg.FollowThunks(text)
	assert.Equal(t, 1, hops)
	assert.Equal(t, text.Add(8), target)

	unmapped := memory.Handle(0x1000)
	target, hops = reg.FollowThunks(unmapped)
	assert.Equal(t, unmapped, target)
	assert.Zero(t, hops)
}
