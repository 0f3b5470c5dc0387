// Package schema resolves (class, field) names published by the host's
// schema dump to byte offsets, and exposes typed views over those fields.
//
// Every accessor takes the base handle of a native object, validates it,
// resolves the field and then reads, writes or aliases base+offset
// directly. Views never own memory and never cache what they read.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnresolvedField is returned when a (class, field) pair is unknown.
	ErrUnresolvedField = errors.New("schema: unresolved field")

	// ErrTypeSizeMismatch is returned when the requested Go type does not
	// have the size the schema records for the field.
	ErrTypeSizeMismatch = errors.New("schema: type size mismatch")
)

// FieldError attaches the class and field names to an accessor failure.
type FieldError struct {
	Class string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s::%s: %v", e.Class, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Kind is the semantic type of a field.
type Kind string

const (
	KindScalar     Kind = "scalar"
	KindFixedArray Kind = "array"
	KindPointer    Kind = "pointer"
	KindObject     Kind = "object"
	// KindString is an inline NUL-terminated char buffer.
	KindString Kind = "string"
	// KindStringPtr is a char* to a NUL-terminated string.
	KindStringPtr Kind = "string_ptr"
)

// Field is a resolved schema field.
type Field struct {
	Offset uintptr `json:"offset" yaml:"offset"`
	// Size is the field size in bytes, 0 when the dump does not record it.
	Size uintptr `json:"size,omitempty" yaml:"size,omitempty"`
	Kind Kind    `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Type is the native type name, informational.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	// Length is the element count of fixed arrays, 0 when unknown.
	Length int `json:"length,omitempty" yaml:"length,omitempty"`
}

// Resolver looks fields up in the host's schema system.
type Resolver interface {
	ResolveField(class, field string) (Field, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(class, field string) (Field, bool)

func (f ResolverFunc) ResolveField(class, field string) (Field, bool) { return f(class, field) }

// Dump is a schema dump: class name -> field name -> field.
type Dump map[string]map[string]Field

func (d Dump) ResolveField(class, field string) (Field, bool) {
	f, ok := d[class][field]
	return f, ok
}

// Classes returns the class names in sorted order.
func (d Dump) Classes() []string {
	out := make([]string, 0, len(d))
	for c := range d {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Fields returns the field names of a class in offset order.
func (d Dump) Fields(class string) []string {
	fields := d[class]
	out := make([]string, 0, len(fields))
	for f := range fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := fields[out[i]], fields[out[j]]
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return out[i] < out[j]
	})
	return out
}

// ReadDump reads a dump file; .yaml and .yml are YAML, anything else JSON.
func ReadDump(path string) (Dump, error) {
	//nolint:gosec // G304: Path comes from configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	var d Dump
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &d)
	default:
		err = json.Unmarshal(data, &d)
	}
	if err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", path, err)
	}
	if d == nil {
		d = Dump{}
	}
	return d, nil
}

type fieldKey struct{ class, field string }

type fieldResult struct {
	field Field
	ok    bool
}

// System resolves and memoises schema fields.
type System struct {
	source Resolver
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[fieldKey]fieldResult
}

// NewSystem creates a system backed by a resolver.
func NewSystem(source Resolver, logger zerolog.Logger) *System {
	return &System{
		source: source,
		logger: logger.With().Str("component", "schema").Logger(),
		cache:  make(map[fieldKey]fieldResult),
	}
}

// Load creates a system from a dump file.
func Load(path string, logger zerolog.Logger) (*System, error) {
	d, err := ReadDump(path)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", path).Int("classes", len(d)).Msg("Loaded schema dump")
	return NewSystem(d, logger), nil
}

// Field resolves (class, field). Results, including misses, are memoised.
func (s *System) Field(class, field string) (Field, error) {
	key := fieldKey{class, field}

	s.mu.RLock()
	r, ok := s.cache[key]
	s.mu.RUnlock()

	if !ok {
		f, found := s.source.ResolveField(class, field)
		r = fieldResult{field: f, ok: found}

		s.mu.Lock()
		if prev, raced := s.cache[key]; raced {
			r = prev
		} else {
			s.cache[key] = r
		}
		s.mu.Unlock()

		if !found {
			s.logger.Debug().Str("class", class).Str("field", field).Msg("Unresolved schema field")
		}
	}

	if !r.ok {
		return Field{}, &FieldError{Class: class, Field: field, Err: ErrUnresolvedField}
	}
	return r.field, nil
}

// Offset resolves the offset of (class, field).
func (s *System) Offset(class, field string) (uintptr, error) {
	f, err := s.Field(class, field)
	if err != nil {
		return 0, err
	}
	return f.Offset, nil
}
