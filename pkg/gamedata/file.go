package gamedata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Platform selects the per-platform values of an entry.
type Platform string

const (
	Linux   Platform = "linux"
	Windows Platform = "windows"
)

// Signatures holds the byte patterns of an entry and the library they are
// scanned in.
type Signatures struct {
	Library string `json:"library" yaml:"library" jsonschema:"description=Short library name such as server or engine2"`
	Linux   string `json:"linux,omitempty" yaml:"linux,omitempty" jsonschema:"description=Escaped byte pattern where \\x2A is a wildcard"`
	Windows string `json:"windows,omitempty" yaml:"windows,omitempty"`
}

// For returns the pattern for a platform.
func (s *Signatures) For(p Platform) string {
	if s == nil {
		return ""
	}
	if p == Windows {
		return s.Windows
	}
	return s.Linux
}

// Offsets holds the per-platform integer values of an entry: vtable
// indices or member offsets.
type Offsets struct {
	Linux   *int `json:"linux,omitempty" yaml:"linux,omitempty"`
	Windows *int `json:"windows,omitempty" yaml:"windows,omitempty"`
}

// For returns the offset for a platform.
func (o *Offsets) For(p Platform) (int, bool) {
	if o == nil {
		return 0, false
	}
	v := o.Linux
	if p == Windows {
		v = o.Windows
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Definition is one named entry of a gamedata file.
type Definition struct {
	Signatures *Signatures `json:"signatures,omitempty" yaml:"signatures,omitempty"`
	Offsets    *Offsets    `json:"offsets,omitempty" yaml:"offsets,omitempty"`
}

// File is the decoded form of a gamedata file.
type File map[string]Definition

// Names returns the entry names in sorted order.
func (f File) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Format is a gamedata file encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf picks the encoding from a file extension. Anything that is not
// .yaml or .yml is read as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Decode parses gamedata content.
func Decode(data []byte, format Format) (File, error) {
	var f File
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode gamedata: %w", err)
	}
	if f == nil {
		f = File{}
	}
	return f, nil
}

// ReadFile reads and decodes a gamedata file.
func ReadFile(path string) (File, []byte, error) {
	//nolint:gosec // G304: Path comes from configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read gamedata: %w", err)
	}
	f, err := Decode(data, FormatOf(path))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, data, nil
}
