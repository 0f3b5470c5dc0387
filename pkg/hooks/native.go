package hooks

import (
	"github.com/JustZerooo/CounterStrikeSharp/internal/constants"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/vfunc"
)

// NativeOutputCallback returns a native function pointer for the host's
// output listener. The host calls it as
//
//	int32_t fn(const char *classname, const char *output,
//	           void *activator, void *caller, float delay)
//
// and receives the aggregated HookResult.
func (e *Engine) NativeOutputCallback(c vfunc.Caller) (memory.Handle, error) {
	return c.Callback(e.fireNative)
}

func (e *Engine) fireNative(classname, output, activator, caller uintptr, delay float32) int32 {
	entity, err := memory.CString(memory.Handle(classname), constants.DefaultMaxCStringLen)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Output fired with unreadable classname")
		return int32(Continue)
	}
	name, err := memory.CString(memory.Handle(output), constants.DefaultMaxCStringLen)
	if err != nil {
		e.logger.Warn().Err(err).Str("entity", entity).Msg("Output fired with unreadable name")
		return int32(Continue)
	}
	return int32(e.FireOutput(OutputEvent{
		Entity:    entity,
		Output:    name,
		Activator: memory.Handle(activator),
		Caller:    memory.Handle(caller),
		Delay:     delay,
	}))
}
