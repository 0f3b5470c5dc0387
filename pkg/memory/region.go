package memory

import (
	"fmt"
)

// Region is a bounded byte range inside native memory.
type Region struct {
	Base Handle
	Size uintptr
}

// End returns the first address past the region.
func (r Region) End() Handle { return r.Base.Add(r.Size) }

// Contains reports whether h lies inside the region.
func (r Region) Contains(h Handle) bool {
	return h >= r.Base && h < r.End()
}

// Check validates that [off, off+n) is inside the region and the base is
// non-null.
func (r Region) Check(off, n uintptr) error {
	if err := r.Base.Validate(); err != nil {
		return err
	}
	if off > r.Size || n > r.Size-off {
		return fmt.Errorf("%w: [%d, %d) exceeds region of %d bytes at %s",
			ErrOutOfBounds, off, off+n, r.Size, r.Base)
	}
	return nil
}

// Bytes returns a slice aliasing the whole region.
func (r Region) Bytes() ([]byte, error) {
	if r.Size == 0 {
		return nil, r.Base.Validate()
	}
	return Bytes(r.Base, int(r.Size))
}

func (r Region) String() string {
	return fmt.Sprintf("%s-%s", r.Base, r.End())
}
