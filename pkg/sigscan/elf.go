package sigscan

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"

	"github.com/JustZerooo/CounterStrikeSharp/internal/constants"
	"github.com/JustZerooo/CounterStrikeSharp/internal/safe"
)

// ErrNotELF is returned when a library file cannot be parsed as ELF.
var ErrNotELF = errors.New("sigscan: not an ELF file")

// ImageSegment is an executable PT_LOAD segment read from disk.
type ImageSegment struct {
	Vaddr uint64
	Data  []byte
}

// Image is the executable code of a library file, loaded for offline
// scanning (checking gamedata signatures against a new build without
// running the host).
type Image struct {
	Path     string
	Segments []ImageSegment
	hash     uint64
}

// OpenImage reads the executable PT_LOAD segments of an ELF library.
func OpenImage(path string) (*Image, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotELF, path, err)
	}
	defer ef.Close() // nolint:errcheck

	img := &Image{Path: path}
	h := xxh3.New()
	for _, p := range ef.Progs {
		if p.Type != elf.PT_LOAD || p.Flags&elf.PF_X == 0 {
			continue
		}
		data := make([]byte, p.Filesz)
		if _, err := p.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read segment at 0x%x: %w", p.Vaddr, err)
		}
		img.Segments = append(img.Segments, ImageSegment{Vaddr: p.Vaddr, Data: data})
		_, _ = h.Write(data)
	}
	if len(img.Segments) == 0 {
		return nil, fmt.Errorf("%w: %s has no executable segments", ErrNotELF, path)
	}
	img.hash = h.Sum64()
	return img, nil
}

// NewImage builds an image from in-memory segments.
func NewImage(path string, segs ...ImageSegment) *Image {
	h := xxh3.New()
	for _, s := range segs {
		_, _ = h.Write(s.Data)
	}
	return &Image{Path: path, Segments: segs, hash: h.Sum64()}
}

// Hash is the xxh3 hash of the image's code, used as a cache key.
func (img *Image) Hash() uint64 { return img.hash }

// Scan returns the virtual address of the single match of p.
func (img *Image) Scan(p Pattern) (uint64, error) {
	var (
		found   uint64
		count   int
		offsets []int
	)
	for _, seg := range img.Segments {
		p.each(seg.Data, func(off int) bool {
			count++
			if count == 1 {
				found = seg.Vaddr + uint64(off)
			}
			if len(offsets) < constants.DefaultMaxReportedMatches {
				base, _ := safe.Uint64ToInt(seg.Vaddr)
				offsets = append(offsets, base+off)
			}
			return true
		})
	}
	if count != 1 {
		return 0, &MatchError{Pattern: p.String(), Module: img.Path, Count: count, Offsets: offsets}
	}
	return found, nil
}

// Bytes returns up to n bytes of code starting at virtual address va.
func (img *Image) Bytes(va uint64, n int) ([]byte, bool) {
	for _, seg := range img.Segments {
		if va < seg.Vaddr || va >= seg.Vaddr+uint64(len(seg.Data)) {
			continue
		}
		start := va - seg.Vaddr
		end := min(start+uint64(n), uint64(len(seg.Data)))
		return seg.Data[start:end], true
	}
	return nil, false
}
