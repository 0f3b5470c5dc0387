package testutil

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

// Alloc maps size bytes of zeroed anonymous memory outside the Go heap and
// returns its handle. The mapping is released when the test ends.
func Alloc(t testing.TB, size int) memory.Handle {
	t.Helper()

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	require.NoError(t, err, "mmap %d bytes", size)

	t.Cleanup(func() {
		if err := unix.Munmap(mem); err != nil {
			t.Errorf("munmap: %v", err)
		}
	})

	return memory.Handle(uintptr(unsafe.Pointer(&mem[0])))
}

// AllocBytes copies b into fresh native memory.
func AllocBytes(t testing.TB, b []byte) memory.Handle {
	t.Helper()

	h := Alloc(t, max(len(b), 1))
	dst, err := memory.Bytes(h, len(b))
	require.NoError(t, err)
	copy(dst, b)
	return h
}

// CString copies s plus a NUL terminator into native memory.
func CString(t testing.TB, s string) memory.Handle {
	t.Helper()
	return AllocBytes(t, append([]byte(s), 0))
}

// VTable builds a native object whose first word points at a table of the
// given slot values, and returns the object handle.
func VTable(t testing.TB, slots ...uintptr) memory.Handle {
	t.Helper()

	table := Alloc(t, max(len(slots), 1)*int(memory.PointerSize))
	for i, s := range slots {
		require.NoError(t, memory.Write(table, uintptr(i)*memory.PointerSize, s))
	}
	obj := Alloc(t, int(memory.PointerSize))
	require.NoError(t, memory.Write(obj, 0, uintptr(table)))
	return obj
}
