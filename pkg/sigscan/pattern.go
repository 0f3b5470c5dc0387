// Package sigscan locates code in a loaded library by byte pattern.
//
// A signature is a sequence of byte values and wildcards. Two textual forms
// are accepted: the escaped form used by gamedata files
// ("\x55\x48\x89\xE5\x2A\x2A", where \x2A is a wildcard) and the spaced hex
// form ("55 48 89 E5 ? ??"). A scan succeeds only when the pattern occurs
// exactly once; zero or several occurrences are reported as distinct errors
// so a drifted signature is never silently bound to the wrong code.
package sigscan

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPattern is returned for signatures that cannot be parsed.
var ErrInvalidPattern = errors.New("sigscan: invalid pattern")

// Wildcard is the byte value that the escaped form treats as "any byte".
const Wildcard = 0x2A

// Pattern is a parsed signature. The zero value matches nothing.
type Pattern struct {
	value []byte
	// fixed[i] is false where value[i] is a wildcard.
	fixed []bool
	// anchor is the index of the first fixed byte.
	anchor int
}

// Parse parses a signature in either supported form.
func Parse(sig string) (Pattern, error) {
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return Pattern{}, fmt.Errorf("%w: empty", ErrInvalidPattern)
	}
	if strings.Contains(sig, `\x`) {
		return parseEscaped(sig)
	}
	return parseSpaced(sig)
}

// MustParse is like Parse but panics on error. Intended for literals.
func MustParse(sig string) Pattern {
	p, err := Parse(sig)
	if err != nil {
		panic(err)
	}
	return p
}

func parseEscaped(sig string) (Pattern, error) {
	var p Pattern
	rest := sig
	for rest != "" {
		if len(rest) < 4 || rest[0] != '\\' || (rest[1] != 'x' && rest[1] != 'X') {
			return Pattern{}, fmt.Errorf("%w: expected \\xNN at %q", ErrInvalidPattern, rest)
		}
		b, err := strconv.ParseUint(rest[2:4], 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: bad byte %q", ErrInvalidPattern, rest[:4])
		}
		p.value = append(p.value, byte(b))
		p.fixed = append(p.fixed, b != Wildcard)
		rest = rest[4:]
	}
	return p.finish(sig)
}

func parseSpaced(sig string) (Pattern, error) {
	var p Pattern
	for _, tok := range strings.Fields(sig) {
		if tok == "?" || tok == "??" {
			p.value = append(p.value, 0)
			p.fixed = append(p.fixed, false)
			continue
		}
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil || len(tok) != 2 {
			return Pattern{}, fmt.Errorf("%w: bad byte %q", ErrInvalidPattern, tok)
		}
		p.value = append(p.value, byte(b))
		p.fixed = append(p.fixed, true)
	}
	return p.finish(sig)
}

func (p Pattern) finish(sig string) (Pattern, error) {
	p.anchor = -1
	for i, f := range p.fixed {
		if f {
			p.anchor = i
			break
		}
	}
	if p.anchor < 0 {
		return Pattern{}, fmt.Errorf("%w: %q has no fixed bytes", ErrInvalidPattern, sig)
	}
	return p, nil
}

// Len returns the pattern length in bytes.
func (p Pattern) Len() int { return len(p.value) }

// String returns the canonical spaced form.
func (p Pattern) String() string {
	var sb strings.Builder
	for i, v := range p.value {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if !p.fixed[i] {
			sb.WriteString("??")
			continue
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}

// MatchAt reports whether the pattern occurs in data at offset i.
func (p Pattern) MatchAt(data []byte, i int) bool {
	if len(p.value) == 0 || i < 0 || i+len(p.value) > len(data) {
		return false
	}
	window := data[i : i+len(p.value)]
	for j, v := range p.value {
		if p.fixed[j] && window[j] != v {
			return false
		}
	}
	return true
}

// each calls fn with every match offset in ascending order until fn
// returns false.
func (p Pattern) each(data []byte, fn func(off int) bool) {
	if len(p.value) == 0 {
		return
	}
	first := p.value[p.anchor]
	last := len(data) - len(p.value)
	for i := 0; i <= last; {
		// Jump to the next occurrence of the anchor byte.
		j := bytes.IndexByte(data[i+p.anchor:last+p.anchor+1], first)
		if j < 0 {
			return
		}
		i += j
		if p.MatchAt(data, i) && !fn(i) {
			return
		}
		i++
	}
}

// FindAll returns the offsets of up to limit matches in ascending order.
// A limit <= 0 returns every match.
func (p Pattern) FindAll(data []byte, limit int) []int {
	var out []int
	p.each(data, func(off int) bool {
		out = append(out, off)
		return limit <= 0 || len(out) < limit
	})
	return out
}

// Count returns the number of matches in data.
func (p Pattern) Count(data []byte) int {
	n := 0
	p.each(data, func(int) bool {
		n++
		return true
	})
	return n
}
