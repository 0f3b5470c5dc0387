package config

import (
	"fmt"
	"strings"

	"github.com/JustZerooo/CounterStrikeSharp/internal/logging"
)

// ValidationError is one rejected config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// MultiValidationError collects every rejected field of a Config.
type MultiValidationError struct {
	Errors []ValidationError
}

func (e *MultiValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no validation errors"
	case 1:
		return e.Errors[0].Error()
	}

	lines := []string{fmt.Sprintf("validation failed with %d errors:", len(e.Errors))}
	for i := range e.Errors {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, e.Errors[i].Error()))
	}
	return strings.Join(lines, "\n") + "\n"
}

// rule rejects a field when ok returns false.
type rule struct {
	field   string
	message string
	ok      func(*Config) bool
}

var rules = []rule{
	{
		field:   "log.level",
		message: "log level must be one of: trace, debug, info, warn, error",
		ok:      func(c *Config) bool { return logging.ValidLevel(c.Log.Level) },
	},
	{
		field:   "gamedata.platform",
		message: "platform must be 'linux' or 'windows'",
		ok: func(c *Config) bool {
			return c.GameData.Platform == "linux" || c.GameData.Platform == "windows"
		},
	},
	{
		field:   "scan.cache_size",
		message: "scan cache size must be positive",
		ok:      func(c *Config) bool { return c.Scan.CacheSize > 0 },
	},
	{
		field:   "scan.max_vtable_slots",
		message: "max vtable slots must be positive",
		ok:      func(c *Config) bool { return c.Scan.MaxVTableSlots > 0 },
	},
	{
		field:   "scan.libraries",
		message: "library directories must not be empty",
		ok: func(c *Config) bool {
			for _, dir := range c.Scan.Libraries {
				if strings.TrimSpace(dir) == "" {
					return false
				}
			}
			return true
		},
	},
}

// Validate checks every field and reports all failures at once as a
// *MultiValidationError.
func (c *Config) Validate() error {
	var errs []ValidationError
	for _, r := range rules {
		if !r.ok(c) {
			errs = append(errs, ValidationError{Field: r.field, Message: r.message})
		}
	}
	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}
