// Package hooks dispatches host events to plugin handlers.
//
// Handlers are registered against (entity, output) patterns and run in
// registration order. Every matching handler runs; the event's result is
// the strongest any of them returned. A handler that panics or returns an
// error is reported to its owner and counts as Continue.
package hooks

import (
	"fmt"
	"strings"
)

// HookResult tells the host how to proceed after an event. Values are
// ordered by strength.
type HookResult int

const (
	// Continue lets the host proceed normally.
	Continue HookResult = iota
	// Changed signals that the handler modified the event's parameters.
	Changed
	// Handled suppresses the host's own handling.
	Handled
	// Stop suppresses the host's handling and any later hook stage.
	Stop
)

func (r HookResult) String() string {
	switch r {
	case Continue:
		return "Continue"
	case Changed:
		return "Changed"
	case Handled:
		return "Handled"
	case Stop:
		return "Stop"
	}
	return fmt.Sprintf("HookResult(%d)", int(r))
}

// Valid reports whether r is one of the defined results.
func (r HookResult) Valid() bool { return r >= Continue && r <= Stop }

// Max returns the stronger of two results.
func Max(a, b HookResult) HookResult {
	if b > a {
		return b
	}
	return a
}

// ParseHookResult parses a result name, case-insensitively.
func ParseHookResult(s string) (HookResult, error) {
	for r := Continue; r <= Stop; r++ {
		if strings.EqualFold(s, r.String()) {
			return r, nil
		}
	}
	return Continue, fmt.Errorf("unknown hook result %q", s)
}
