// Package entity provides typed views over the host's entity classes.
//
// Views hold a borrowed handle and read through the schema system on
// every access; they never copy entity state.
package entity

import (
	"fmt"
	"sync"

	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/schema"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/vfunc"
)

// Runtime bundles the services entity views need.
type Runtime struct {
	Schema *schema.System
	Funcs  *vfunc.Registry

	mu     sync.Mutex
	protos map[protoKey]*vfunc.Function
}

type protoKey struct {
	name  string
	table memory.Handle
}

// NewRuntime creates a runtime over a schema system and function registry.
func NewRuntime(s *schema.System, funcs *vfunc.Registry) *Runtime {
	return &Runtime{Schema: s, Funcs: funcs, protos: make(map[protoKey]*vfunc.Function)}
}

// DefaultRuntime returns a runtime over the process-wide schema system and
// function registry.
func DefaultRuntime() (*Runtime, error) {
	s, err := schema.Default()
	if err != nil {
		return nil, err
	}
	funcs, err := vfunc.Default()
	if err != nil {
		return nil, err
	}
	return NewRuntime(s, funcs), nil
}

// member returns the gamedata function name bound to obj. Functions are
// resolved once per vtable and shared by every object using it.
func (rt *Runtime) member(name string, obj memory.Handle, sig vfunc.Signature) (*vfunc.Function, error) {
	table, err := memory.ReadPointer(obj, 0)
	if err != nil {
		return nil, err
	}
	key := protoKey{name: name, table: table}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if f, ok := rt.protos[key]; ok {
		return f.WithReceiver(obj), nil
	}
	f, err := rt.Funcs.FromGameData(name, obj, sig)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	rt.protos[key] = f
	return f, nil
}
