// Package engine locates engine singletons reachable from the host's
// exported interfaces.
package engine

import (
	"fmt"

	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/vfunc"
)

const (
	// gameEventManagerIndex is the ISource2Server slot returning the
	// address just past the game event manager's base.
	gameEventManagerIndex  = 91
	gameEventManagerAdjust = 8
)

// Interfaces holds the host interface pointers the runtime starts from.
type Interfaces struct {
	// Server is the ISource2Server instance (Source2Server001).
	Server memory.Handle
}

// GameEventManager returns the IGameEventManager2 instance: the result of
// server vtable slot 91, minus 8.
func GameEventManager(funcs *vfunc.Registry, server memory.Handle) (memory.Handle, error) {
	fn, err := funcs.FromVTable(server, gameEventManagerIndex, vfunc.Sig(vfunc.Pointer))
	if err != nil {
		return memory.Null, fmt.Errorf("game event manager: %w", err)
	}
	get, err := vfunc.BindAs[func() uintptr](fn)
	if err != nil {
		return memory.Null, fmt.Errorf("game event manager: %w", err)
	}
	p := memory.Handle(get())
	if p.IsNull() {
		return memory.Null, fmt.Errorf("game event manager: %w", memory.ErrInvalidHandle)
	}
	return p - gameEventManagerAdjust, nil
}

// Globals are the engine singletons resolved at startup.
type Globals struct {
	Server           memory.Handle
	GameEventManager memory.Handle
}

// Resolve locates every global from the interfaces.
func Resolve(funcs *vfunc.Registry, ifaces Interfaces) (*Globals, error) {
	if err := ifaces.Server.Validate(); err != nil {
		return nil, fmt.Errorf("server interface: %w", err)
	}
	gem, err := GameEventManager(funcs, ifaces.Server)
	if err != nil {
		return nil, err
	}
	return &Globals{Server: ifaces.Server, GameEventManager: gem}, nil
}
