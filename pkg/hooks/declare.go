package hooks

// OutputHook declares a handler together with its pattern, for registering
// a plugin's hooks as one unit.
type OutputHook struct {
	Entity  string
	Output  string
	Name    string
	Handler Handler
}

// OutputHookProvider is implemented by plugins that declare their output
// hooks instead of registering them imperatively.
type OutputHookProvider interface {
	OutputHooks() []OutputHook
}

// RegisterDeclared registers hooks in slice order. Either every hook is
// registered or, when any declaration is invalid, none is.
func (e *Engine) RegisterDeclared(owner string, hooks []OutputHook) ([]HookID, error) {
	if len(hooks) == 0 {
		return nil, nil
	}
	return e.register(owner, hooks)
}

// RegisterProvider registers the hooks p declares.
func (e *Engine) RegisterProvider(owner string, p OutputHookProvider) ([]HookID, error) {
	return e.RegisterDeclared(owner, p.OutputHooks())
}
