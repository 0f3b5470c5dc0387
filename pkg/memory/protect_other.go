//go:build !unix

package memory

// PageSize is the system page size.
var PageSize uintptr = 4096

// Protect is not supported on this platform.
func Protect(h Handle, n uintptr, p Perm) error {
	if err := h.Validate(); err != nil {
		return err
	}
	return ErrUnsupportedPlatform
}

// PatchPointer is not supported on this platform.
func PatchPointer(h Handle, v uintptr, restore Perm) (uintptr, error) {
	if err := h.Validate(); err != nil {
		return 0, err
	}
	return 0, ErrUnsupportedPlatform
}
