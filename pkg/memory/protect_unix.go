//go:build unix

package memory

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PageSize is the system page size.
var PageSize = uintptr(unix.Getpagesize())

func protFlags(p Perm) int {
	prot := unix.PROT_NONE
	if p&PermRead != 0 {
		prot |= unix.PROT_READ
	}
	if p&PermWrite != 0 {
		prot |= unix.PROT_WRITE
	}
	if p&PermExec != 0 {
		prot |= unix.PROT_EXEC
	}
	return prot
}

// pages returns the page-aligned slice covering [h, h+n).
func pages(h Handle, n uintptr) []byte {
	start := uintptr(h) &^ (PageSize - 1)
	end := (uintptr(h) + n + PageSize - 1) &^ (PageSize - 1)
	//nolint:govet // Host addresses are not Go heap pointers.
	return unsafe.Slice((*byte)(unsafe.Pointer(start)), end-start)
}

// Protect changes the protection of the pages covering [h, h+n).
func Protect(h Handle, n uintptr, p Perm) error {
	if err := h.Validate(); err != nil {
		return err
	}
	if err := unix.Mprotect(pages(h, n), protFlags(p)); err != nil {
		return fmt.Errorf("mprotect %s+%d %s: %w", h, n, p, err)
	}
	return nil
}

// PatchPointer overwrites the pointer stored at h, temporarily making its page
// writable, and restores the page to restore afterwards. It returns the
// previous value. Used to swap vtable slots that live in read-only data.
func PatchPointer(h Handle, v uintptr, restore Perm) (uintptr, error) {
	if err := Protect(h, PointerSize, PermRead|PermWrite); err != nil {
		return 0, err
	}
	slot := (*uintptr)(h.Pointer())
	old := *slot
	*slot = v
	if restore == PermRead|PermWrite {
		return old, nil
	}
	if err := Protect(h, PointerSize, restore); err != nil {
		return old, err
	}
	return old, nil
}
