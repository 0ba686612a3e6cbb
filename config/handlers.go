package config

import (
	"github.com/0xVanfer/tg-flow/flow"
)

// HandlerRegistry holds the functions declarative flows refer to by name.
// Logic lives in code; configuration only wires it together.
type HandlerRegistry struct {
	// Texts produce state content.
	Texts map[string]flow.TextFunc

	// Keyboards produce state keyboards.
	Keyboards map[string]flow.KeyboardFunc

	// Hooks run on state enter and exit.
	Hooks map[string]flow.HookFunc

	// Buttons handle individual button presses.
	Buttons map[string]flow.ButtonHandler

	// ButtonFuncs override button resolution for a whole state.
	ButtonFuncs map[string]flow.ButtonFunc

	// Inputs handle accepted text input.
	Inputs map[string]flow.InputFunc

	// Items fetch collections for paginated states.
	Items map[string]flow.ItemsFunc

	// Formatters render one item of a paginated collection.
	Formatters map[string]func(item any, index int) string

	// ItemButtons build the button for one item of a paginated collection.
	ItemButtons map[string]func(item any, index int) flow.Button

	// Validators check text input.
	Validators map[string]flow.Validator
}

// NewHandlerRegistry creates a new empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		Texts:       make(map[string]flow.TextFunc),
		Keyboards:   make(map[string]flow.KeyboardFunc),
		Hooks:       make(map[string]flow.HookFunc),
		Buttons:     make(map[string]flow.ButtonHandler),
		ButtonFuncs: make(map[string]flow.ButtonFunc),
		Inputs:      make(map[string]flow.InputFunc),
		Items:       make(map[string]flow.ItemsFunc),
		Formatters:  make(map[string]func(any, int) string),
		ItemButtons: make(map[string]func(any, int) flow.Button),
		Validators:  make(map[string]flow.Validator),
	}
}

// RegisterText registers a content producer by name.
func (r *HandlerRegistry) RegisterText(name string, fn flow.TextFunc) *HandlerRegistry {
	r.Texts[name] = fn
	return r
}

// RegisterKeyboard registers a keyboard producer by name.
func (r *HandlerRegistry) RegisterKeyboard(name string, fn flow.KeyboardFunc) *HandlerRegistry {
	r.Keyboards[name] = fn
	return r
}

// RegisterHook registers an enter/exit hook by name.
func (r *HandlerRegistry) RegisterHook(name string, fn flow.HookFunc) *HandlerRegistry {
	r.Hooks[name] = fn
	return r
}

// RegisterButton registers a button handler by name.
func (r *HandlerRegistry) RegisterButton(name string, fn flow.ButtonHandler) *HandlerRegistry {
	r.Buttons[name] = fn
	return r
}

// RegisterButtonFunc registers a state-wide button resolver by name.
func (r *HandlerRegistry) RegisterButtonFunc(name string, fn flow.ButtonFunc) *HandlerRegistry {
	r.ButtonFuncs[name] = fn
	return r
}

// RegisterInput registers a text input handler by name.
func (r *HandlerRegistry) RegisterInput(name string, fn flow.InputFunc) *HandlerRegistry {
	r.Inputs[name] = fn
	return r
}

// RegisterItems registers a collection fetcher by name.
func (r *HandlerRegistry) RegisterItems(name string, fn flow.ItemsFunc) *HandlerRegistry {
	r.Items[name] = fn
	return r
}

// RegisterFormatter registers an item formatter by name.
func (r *HandlerRegistry) RegisterFormatter(name string, fn func(item any, index int) string) *HandlerRegistry {
	r.Formatters[name] = fn
	return r
}

// RegisterItemButton registers an item button builder by name.
func (r *HandlerRegistry) RegisterItemButton(name string, fn func(item any, index int) flow.Button) *HandlerRegistry {
	r.ItemButtons[name] = fn
	return r
}

// RegisterValidator registers a validator by name.
func (r *HandlerRegistry) RegisterValidator(name string, v flow.Validator) *HandlerRegistry {
	r.Validators[name] = v
	return r
}
