package config

import (
	"fmt"
	"time"

	"github.com/0xVanfer/tg-flow/flow"
)

// FlowConfig declares a flow in configuration.
// Static parts (texts, buttons, transitions) are written inline; dynamic parts refer to
// functions in a HandlerRegistry by name.
type FlowConfig struct {
	// Name identifies the flow. Filled from the map key when empty.
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Start is the id of the first state.
	Start string `json:"start" yaml:"start" mapstructure:"start"`

	// TTL bounds how long one run may live. Overrides the bot default if set.
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`

	// InitialData seeds the flow data of every run.
	InitialData map[string]any `json:"initial_data" yaml:"initial_data" mapstructure:"initial_data"`

	// States lists the states in order.
	States []*StateConfig `json:"states" yaml:"states" mapstructure:"states"`
}

// StateConfig declares one state.
type StateConfig struct {
	ID     string `json:"id" yaml:"id" mapstructure:"id"`
	Text   string `json:"text" yaml:"text" mapstructure:"text"`
	Type   string `json:"type" yaml:"type" mapstructure:"type"`     // button, text_input or mixed
	Action string `json:"action" yaml:"action" mapstructure:"action"` // send, edit or auto

	// Timeout for the await of this state.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// Buttons are static keyboard rows.
	Buttons [][]ButtonConfig `json:"buttons" yaml:"buttons" mapstructure:"buttons"`

	// Next maps button tokens to state ids.
	Next map[string]string `json:"next" yaml:"next" mapstructure:"next"`

	Back     string   `json:"back" yaml:"back" mapstructure:"back"`
	Exit     []string `json:"exit" yaml:"exit" mapstructure:"exit"`
	Terminal bool     `json:"terminal" yaml:"terminal" mapstructure:"terminal"`

	Validation  *ValidationConfig `json:"validation" yaml:"validation" mapstructure:"validation"`
	InputPrompt string            `json:"input_prompt" yaml:"input_prompt" mapstructure:"input_prompt"`
	StoreAs     string            `json:"store_as" yaml:"store_as" mapstructure:"store_as"`
	DefaultNext string            `json:"default_next" yaml:"default_next" mapstructure:"default_next"`

	Pagination *PaginationConfig `json:"pagination" yaml:"pagination" mapstructure:"pagination"`

	EnterNotification string        `json:"enter_notification" yaml:"enter_notification" mapstructure:"enter_notification"`
	ExitNotification  string        `json:"exit_notification" yaml:"exit_notification" mapstructure:"exit_notification"`
	NotificationStyle string        `json:"notification_style" yaml:"notification_style" mapstructure:"notification_style"`
	AutoDelete        time.Duration `json:"auto_delete" yaml:"auto_delete" mapstructure:"auto_delete"`

	// Names of registered functions.
	TextHandler     string `json:"text_handler" yaml:"text_handler" mapstructure:"text_handler"`
	KeyboardHandler string `json:"keyboard_handler" yaml:"keyboard_handler" mapstructure:"keyboard_handler"`
	InputHandler    string `json:"input_handler" yaml:"input_handler" mapstructure:"input_handler"`
	ButtonHandler   string `json:"button_handler" yaml:"button_handler" mapstructure:"button_handler"`
	OnEnter         string `json:"on_enter" yaml:"on_enter" mapstructure:"on_enter"`
	OnExit          string `json:"on_exit" yaml:"on_exit" mapstructure:"on_exit"`
}

// ButtonConfig declares a single button.
type ButtonConfig struct {
	Text     string `json:"text" yaml:"text" mapstructure:"text"`
	Callback string `json:"callback" yaml:"callback" mapstructure:"callback"`
	URL      string `json:"url" yaml:"url" mapstructure:"url"`
	Handler  string `json:"handler" yaml:"handler" mapstructure:"handler"` // Registered button handler
}

// ValidationConfig declares the validator of a text state.
type ValidationConfig struct {
	// Type is number, text, regex or custom.
	Type string `json:"type" yaml:"type" mapstructure:"type"`

	Min          *float64 `json:"min" yaml:"min" mapstructure:"min"`
	Max          *float64 `json:"max" yaml:"max" mapstructure:"max"`
	ExclusiveMin bool     `json:"exclusive_min" yaml:"exclusive_min" mapstructure:"exclusive_min"`
	ExclusiveMax bool     `json:"exclusive_max" yaml:"exclusive_max" mapstructure:"exclusive_max"`

	MinLength int `json:"min_length" yaml:"min_length" mapstructure:"min_length"`
	MaxLength int `json:"max_length" yaml:"max_length" mapstructure:"max_length"`

	Pattern  string `json:"pattern" yaml:"pattern" mapstructure:"pattern"`
	ErrorMsg string `json:"error_msg" yaml:"error_msg" mapstructure:"error_msg"`

	// Custom is the name of a registered validator.
	Custom string `json:"custom" yaml:"custom" mapstructure:"custom"`
}

// PaginationConfig declares the list of a paginated state.
type PaginationConfig struct {
	PageSize        int    `json:"page_size" yaml:"page_size" mapstructure:"page_size"`
	ShowPageNumbers *bool  `json:"show_page_numbers" yaml:"show_page_numbers" mapstructure:"show_page_numbers"`
	CloseText       string `json:"close_text" yaml:"close_text" mapstructure:"close_text"`
	Items           string `json:"items" yaml:"items" mapstructure:"items"`             // Registered items fetcher
	Formatter       string `json:"formatter" yaml:"formatter" mapstructure:"formatter"` // Registered formatter
	ItemButton      string `json:"item_button" yaml:"item_button" mapstructure:"item_button"`
}

// Validate checks structure without resolving handler names.
func (f *FlowConfig) Validate() error {
	if f == nil || f.Start == "" || len(f.States) == 0 {
		return ErrInvalidFlow
	}
	seen := make(map[string]bool, len(f.States))
	for _, s := range f.States {
		if s == nil || s.ID == "" {
			return ErrInvalidState
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidState, s.ID)
		}
		seen[s.ID] = true
	}
	if !seen[f.Start] {
		return fmt.Errorf("%w: start %q", ErrStateNotFound, f.Start)
	}
	for _, s := range f.States {
		for token, target := range s.Next {
			if !seen[target] && target != flow.Exit {
				return fmt.Errorf("%w: %q from button %q of %q", ErrStateNotFound, target, token, s.ID)
			}
		}
	}
	return nil
}

// GetTTL returns the flow's TTL or the provided default if not set.
func (f *FlowConfig) GetTTL(defaultTTL time.Duration) time.Duration {
	if f.TTL > 0 {
		return f.TTL
	}
	return defaultTTL
}

// Build compiles the declaration into a flow, resolving function names in reg.
func (f *FlowConfig) Build(reg *HandlerRegistry, opts ...flow.Option) (*flow.Flow, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = NewHandlerRegistry()
	}

	fl := flow.New(f.Name, opts...)
	for _, sc := range f.States {
		def, err := sc.definition(reg)
		if err != nil {
			return nil, err
		}
		if err := fl.Add(def); err != nil {
			return nil, err
		}
	}
	if err := fl.Validate(); err != nil {
		return nil, err
	}
	return fl, nil
}

func lookup[T any](m map[string]T, name, kind, state string) (T, error) {
	var zero T
	if name == "" {
		return zero, nil
	}
	v, ok := m[name]
	if !ok {
		return zero, fmt.Errorf("%w: %s %q in state %q", ErrHandlerNotFound, kind, name, state)
	}
	return v, nil
}

func (s *StateConfig) definition(reg *HandlerRegistry) (flow.Definition, error) {
	d := flow.Definition{
		ID:                s.ID,
		Text:              s.Text,
		Type:              flow.StateType(s.Type),
		Action:            flow.MessageAction(s.Action),
		Timeout:           s.Timeout,
		NextStates:        s.Next,
		BackButton:        s.Back,
		ExitButtons:       s.Exit,
		Terminal:          s.Terminal,
		InputPrompt:       s.InputPrompt,
		StoreAs:           s.StoreAs,
		DefaultNext:       s.DefaultNext,
		EnterNotification: s.EnterNotification,
		ExitNotification:  s.ExitNotification,
		NotificationStyle: flow.NotificationStyle(s.NotificationStyle),
		AutoDelete:        s.AutoDelete,
	}

	var err error
	if d.TextFunc, err = lookup(reg.Texts, s.TextHandler, "text", s.ID); err != nil {
		return d, err
	}
	if d.KeyboardFunc, err = lookup(reg.Keyboards, s.KeyboardHandler, "keyboard", s.ID); err != nil {
		return d, err
	}
	if d.OnInput, err = lookup(reg.Inputs, s.InputHandler, "input", s.ID); err != nil {
		return d, err
	}
	if d.OnButton, err = lookup(reg.ButtonFuncs, s.ButtonHandler, "button", s.ID); err != nil {
		return d, err
	}
	if d.OnEnter, err = lookup(reg.Hooks, s.OnEnter, "hook", s.ID); err != nil {
		return d, err
	}
	if d.OnExit, err = lookup(reg.Hooks, s.OnExit, "hook", s.ID); err != nil {
		return d, err
	}

	for _, row := range s.Buttons {
		var buttons []flow.Button
		for _, bc := range row {
			b := flow.Button{Text: bc.Text, Data: bc.Callback, URL: bc.URL}
			if b.Handler, err = lookup(reg.Buttons, bc.Handler, "button", s.ID); err != nil {
				return d, err
			}
			buttons = append(buttons, b)
		}
		if len(buttons) > 0 {
			d.Keyboard = append(d.Keyboard, buttons)
		}
	}

	if s.Validation != nil {
		if d.Validator, err = s.Validation.validator(reg, s.ID); err != nil {
			return d, err
		}
	}

	if p := s.Pagination; p != nil {
		items, err := lookup(reg.Items, p.Items, "items", s.ID)
		if err != nil {
			return d, err
		}
		pc := flow.DefaultPagination(items)
		pc.PageSize = p.PageSize
		if p.ShowPageNumbers != nil {
			pc.ShowPageNumbers = *p.ShowPageNumbers
		}
		if p.CloseText != "" {
			pc.CloseText = p.CloseText
		}
		if pc.FormatItem, err = lookup(reg.Formatters, p.Formatter, "formatter", s.ID); err != nil {
			return d, err
		}
		if pc.ItemButton, err = lookup(reg.ItemButtons, p.ItemButton, "item button", s.ID); err != nil {
			return d, err
		}
		d.Pagination = pc
	}
	return d, nil
}

func (v *ValidationConfig) validator(reg *HandlerRegistry, state string) (flow.Validator, error) {
	switch v.Type {
	case "number":
		n := flow.Numeric()
		n.Min, n.Max = v.Min, v.Max
		n.ExclusiveMin, n.ExclusiveMax = v.ExclusiveMin, v.ExclusiveMax
		if v.ErrorMsg != "" {
			n.Message = v.ErrorMsg
		}
		return n, nil
	case "text":
		return flow.TextLength(v.MinLength, v.MaxLength), nil
	case "regex":
		re, err := flow.Regex(v.Pattern, v.ErrorMsg)
		if err != nil {
			return nil, fmt.Errorf("%w: state %q: %v", ErrInvalidState, state, err)
		}
		return re, nil
	case "custom":
		val, ok := reg.Validators[v.Custom]
		if !ok {
			return nil, fmt.Errorf("%w: %q in state %q", ErrValidatorNotFound, v.Custom, state)
		}
		return val, nil
	}
	return nil, fmt.Errorf("%w: state %q: unknown validation type %q", ErrInvalidState, state, v.Type)
}
