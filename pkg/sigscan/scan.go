package sigscan

import (
	"errors"
	"fmt"

	"github.com/JustZerooo/CounterStrikeSharp/internal/constants"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

var (
	// ErrNoMatch is returned when a pattern does not occur in the scanned range.
	ErrNoMatch = errors.New("sigscan: no match")

	// ErrAmbiguousMatch is returned when a pattern occurs more than once.
	ErrAmbiguousMatch = errors.New("sigscan: ambiguous match")
)

// MatchError describes a failed scan. It unwraps to ErrNoMatch or
// ErrAmbiguousMatch depending on Count.
type MatchError struct {
	Pattern string
	// Module names the scanned library, if known.
	Module string
	Count  int
	// Offsets holds the first few match offsets of an ambiguous scan.
	Offsets []int
}

func (e *MatchError) Error() string {
	where := ""
	if e.Module != "" {
		where = " in " + e.Module
	}
	if e.Count == 0 {
		return fmt.Sprintf("sigscan: pattern %q%s: no match", e.Pattern, where)
	}
	return fmt.Sprintf("sigscan: pattern %q%s: %d matches", e.Pattern, where, e.Count)
}

func (e *MatchError) Unwrap() error {
	if e.Count == 0 {
		return ErrNoMatch
	}
	return ErrAmbiguousMatch
}

// Scan returns the offset of the single occurrence of p in data.
func Scan(data []byte, p Pattern) (int, error) {
	var (
		count   int
		offsets []int
	)
	p.each(data, func(off int) bool {
		count++
		if len(offsets) < constants.DefaultMaxReportedMatches {
			offsets = append(offsets, off)
		}
		return true
	})
	if count != 1 {
		return 0, &MatchError{Pattern: p.String(), Count: count, Offsets: offsets}
	}
	return offsets[0], nil
}

// ScanModule scans the executable segments of a loaded module and returns
// the absolute address of the single match.
func ScanModule(mod *memory.Module, p Pattern) (memory.Handle, error) {
	var (
		found   memory.Handle
		count   int
		offsets []int
	)
	for _, seg := range mod.ExecSegments() {
		data, err := seg.Bytes()
		if err != nil {
			return memory.Null, fmt.Errorf("read %s segment %s: %w", mod.Name, seg, err)
		}
		p.each(data, func(off int) bool {
			count++
			if count == 1 {
				found = seg.Base.Add(uintptr(off))
			}
			if len(offsets) < constants.DefaultMaxReportedMatches {
				rel := int(seg.Base - mod.Base)
				offsets = append(offsets, rel+off)
			}
			return true
		})
	}
	if count != 1 {
		return memory.Null, &MatchError{Pattern: p.String(), Module: mod.Name, Count: count, Offsets: offsets}
	}
	return found, nil
}

// ScanModuleString parses sig and scans mod for it.
func ScanModuleString(mod *memory.Module, sig string) (memory.Handle, error) {
	p, err := Parse(sig)
	if err != nil {
		return memory.Null, err
	}
	return ScanModule(mod, p)
}
