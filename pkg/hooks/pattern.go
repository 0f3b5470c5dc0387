package hooks

import (
	"errors"
	"fmt"
)

// Wildcard matches any entity or output name. It only acts as a wildcard
// when it is the whole token: "weapon_*" matches the literal name.
const Wildcard = "*"

// ErrInvalidPattern is returned for empty pattern tokens.
var ErrInvalidPattern = errors.New("hooks: invalid pattern")

// Pattern selects the outputs a handler receives.
type Pattern struct {
	Entity string
	Output string
}

// NewPattern validates and returns a pattern.
func NewPattern(entity, output string) (Pattern, error) {
	p := Pattern{Entity: entity, Output: output}
	return p, p.Validate()
}

// Validate rejects empty tokens.
func (p Pattern) Validate() error {
	if p.Entity == "" || p.Output == "" {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, p.String())
	}
	return nil
}

// Matches reports whether an output fired by entity matches. Comparison is
// case-sensitive.
func (p Pattern) Matches(entity, output string) bool {
	return matchToken(p.Entity, entity) && matchToken(p.Output, output)
}

func matchToken(pattern, name string) bool {
	return pattern == Wildcard || pattern == name
}

func (p Pattern) String() string { return p.Entity + ":" + p.Output }
