package hooks

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	cerrors "github.com/JustZerooo/CounterStrikeSharp/internal/errors"
)

// ErrHandlerFault marks errors raised by a handler during dispatch.
var ErrHandlerFault = errors.New("hooks: handler fault")

// HandlerFault describes one failed handler invocation.
type HandlerFault struct {
	Owner   string
	ID      HookID
	Pattern Pattern
	// Event is the output the handler was invoked for. It is nil for
	// function hooks.
	Event *OutputEvent
	// Hook names the hooked function for function hooks.
	Hook string
	Err  error
}

func (f *HandlerFault) Error() string {
	where := f.Hook
	if f.Event != nil {
		where = f.Event.Entity + ":" + f.Event.Output
	}
	return fmt.Sprintf("hook %d of %s on %s: %v", f.ID, f.Owner, where, f.Err)
}

func (f *HandlerFault) Unwrap() error { return f.Err }

// Is matches ErrHandlerFault.
func (f *HandlerFault) Is(target error) bool { return target == ErrHandlerFault }

// Panicked reports whether the handler panicked rather than returning an
// error.
func (f *HandlerFault) Panicked() bool { return cerrors.IsPanic(f.Err) }

// FaultReporter receives handler faults. Each fault is reported exactly
// once, synchronously on the dispatching thread.
type FaultReporter interface {
	ReportFault(f *HandlerFault)
}

// FaultReporterFunc adapts a function to FaultReporter.
type FaultReporterFunc func(f *HandlerFault)

// ReportFault implements FaultReporter.
func (fn FaultReporterFunc) ReportFault(f *HandlerFault) { fn(f) }

// LogReporter writes faults to a zerolog logger at error level.
type LogReporter struct {
	Logger zerolog.Logger
}

// ReportFault implements FaultReporter.
func (r LogReporter) ReportFault(f *HandlerFault) {
	ev := r.Logger.Error().
		Err(f.Err).
		Str("owner", f.Owner).
		Uint64("hook_id", uint64(f.ID))
	if f.Event != nil {
		ev = ev.Str("entity", f.Event.Entity).Str("output", f.Event.Output)
	} else {
		ev = ev.Str("hook", f.Hook)
	}
	var pe *cerrors.PanicError
	if errors.As(f.Err, &pe) {
		ev = ev.Bytes("stack", pe.Stack)
	}
	ev.Msg("Hook handler failed")
}
