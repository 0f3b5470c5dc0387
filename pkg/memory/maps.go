package memory

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrModuleNotFound is returned when no loaded module matches a name.
	ErrModuleNotFound = errors.New("memory: module not found")

	// ErrUnsupportedPlatform is returned where module enumeration or page
	// protection is not implemented for the running OS.
	ErrUnsupportedPlatform = errors.New("memory: not supported on " + runtime.GOOS)
)

// Perm describes the protection of a mapped segment.
type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec
)

func (p Perm) String() string {
	b := []byte("---")
	if p&PermRead != 0 {
		b[0] = 'r'
	}
	if p&PermWrite != 0 {
		b[1] = 'w'
	}
	if p&PermExec != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// Segment is one mapping of a module.
type Segment struct {
	Region
	Perm Perm
	// FileOffset is the offset of the mapping inside the backing file.
	FileOffset uint64
}

// Module is a shared object or executable loaded into the process.
type Module struct {
	// Name is the short library name ("server" for libserver.so).
	Name string
	// Path is the backing file path.
	Path string
	// Base is the lowest mapped address.
	Base Handle
	// Segments are the module's mappings in address order.
	Segments []Segment
}

// End returns the first address past the highest mapping.
func (m *Module) End() Handle {
	if len(m.Segments) == 0 {
		return m.Base
	}
	return m.Segments[len(m.Segments)-1].End()
}

// Contains reports whether h is inside any mapping of the module.
func (m *Module) Contains(h Handle) bool {
	for _, s := range m.Segments {
		if s.Contains(h) {
			return true
		}
	}
	return false
}

// ExecSegments returns the readable executable mappings, the ones signature
// scans run over.
func (m *Module) ExecSegments() []Segment {
	var out []Segment
	for _, s := range m.Segments {
		if s.Perm&PermExec != 0 && s.Perm&PermRead != 0 {
			out = append(out, s)
		}
	}
	return out
}

// ModuleMap is a snapshot of the modules loaded in a process.
type ModuleMap struct {
	modules []*Module
}

// NewModuleMap builds a map from already-parsed modules.
func NewModuleMap(modules ...*Module) *ModuleMap {
	sorted := append([]*Module(nil), modules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Base < sorted[j].Base })
	return &ModuleMap{modules: sorted}
}

// Modules returns the modules in base address order.
func (mm *ModuleMap) Modules() []*Module { return mm.modules }

// Find returns the module whose short name, file name or path equals name.
func (mm *ModuleMap) Find(name string) (*Module, error) {
	for _, m := range mm.modules {
		if m.Name == name || m.Path == name || filepath.Base(m.Path) == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}

// ModuleFor returns the module containing h.
func (mm *ModuleMap) ModuleFor(h Handle) (*Module, bool) {
	for _, m := range mm.modules {
		if m.Contains(h) {
			return m, true
		}
	}
	return nil, false
}

// IsExecutable reports whether h lies in an executable mapping.
func (mm *ModuleMap) IsExecutable(h Handle) bool {
	for _, m := range mm.modules {
		for _, s := range m.Segments {
			if s.Perm&PermExec != 0 && s.Contains(h) {
				return true
			}
		}
	}
	return false
}

// SegmentAt returns the mapping containing h.
func (mm *ModuleMap) SegmentAt(h Handle) (Segment, bool) {
	for _, m := range mm.modules {
		for _, s := range m.Segments {
			if s.Contains(h) {
				return s, true
			}
		}
	}
	return Segment{}, false
}

// PermAt returns the protection of the mapping containing h.
func (mm *ModuleMap) PermAt(h Handle) (Perm, bool) {
	s, ok := mm.SegmentAt(h)
	return s.Perm, ok
}

// ModuleName derives the short library name from a file path:
// "/game/bin/linuxsteamrt64/libserver.so" -> "server".
func ModuleName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimPrefix(name, "lib")
	if i := strings.Index(name, ".so"); i > 0 {
		name = name[:i]
	}
	name = strings.TrimSuffix(name, ".dll")
	return name
}

// ParseMaps parses the /proc/<pid>/maps format. Anonymous and pseudo
// mappings ([heap], [stack], ...) are skipped.
func ParseMaps(r io.Reader) (*ModuleMap, error) {
	byPath := make(map[string]*Module)
	var order []string

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		path := strings.Join(fields[5:], " ")
		if !strings.HasPrefix(path, "/") {
			continue
		}
		path = strings.TrimSuffix(path, " (deleted)")

		seg, err := parseMapsLine(fields)
		if err != nil {
			return nil, fmt.Errorf("maps line %d: %w", line, err)
		}

		m, ok := byPath[path]
		if !ok {
			m = &Module{Name: ModuleName(path), Path: path, Base: seg.Base}
			byPath[path] = m
			order = append(order, path)
		}
		if seg.Base < m.Base {
			m.Base = seg.Base
		}
		m.Segments = append(m.Segments, seg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read maps: %w", err)
	}

	modules := make([]*Module, 0, len(order))
	for _, p := range order {
		m := byPath[p]
		sort.Slice(m.Segments, func(i, j int) bool { return m.Segments[i].Base < m.Segments[j].Base })
		modules = append(modules, m)
	}
	return NewModuleMap(modules...), nil
}

func parseMapsLine(fields []string) (Segment, error) {
	lo, hi, ok := strings.Cut(fields[0], "-")
	if !ok {
		return Segment{}, fmt.Errorf("malformed range %q", fields[0])
	}
	start, err := strconv.ParseUint(lo, 16, 64)
	if err != nil {
		return Segment{}, fmt.Errorf("range start: %w", err)
	}
	end, err := strconv.ParseUint(hi, 16, 64)
	if err != nil {
		return Segment{}, fmt.Errorf("range end: %w", err)
	}
	if end < start {
		return Segment{}, fmt.Errorf("inverted range %q", fields[0])
	}
	off, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return Segment{}, fmt.Errorf("file offset: %w", err)
	}

	var perm Perm
	if strings.Contains(fields[1], "r") {
		perm |= PermRead
	}
	if strings.Contains(fields[1], "w") {
		perm |= PermWrite
	}
	if strings.Contains(fields[1], "x") {
		perm |= PermExec
	}

	return Segment{
		Region:     Region{Base: Handle(start), Size: uintptr(end - start)},
		Perm:       perm,
		FileOffset: off,
	}, nil
}
