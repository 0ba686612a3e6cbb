// Package flow implements a declarative dialogue engine for chat bots.
//
// A Flow is a set of states (Definition) interpreted by Run: render the current state,
// wait for a button press or a text reply, resolve the next state, repeat until the run
// exits, times out or fails.
package flow

import (
	"context"
	"time"
)

// StateType controls what kind of input a state waits for.
type StateType string

const (
	// StateButton waits only for a button press.
	StateButton StateType = "button"
	// StateText waits only for a text message.
	StateText StateType = "text_input"
	// StateMixed waits for either, whichever arrives first.
	StateMixed StateType = "mixed"
)

// MessageAction controls how a state is rendered.
type MessageAction string

const (
	// ActionSend always posts a new message.
	ActionSend MessageAction = "send"
	// ActionEdit edits the previous message of the run, sending when there is none.
	ActionEdit MessageAction = "edit"
	// ActionAuto edits the previous message if it is still editable, else sends.
	ActionAuto MessageAction = "auto"
)

// NotificationStyle controls how enter/exit notifications are shown.
type NotificationStyle string

const (
	// PopupBrief answers the pending button press with a short toast.
	PopupBrief NotificationStyle = "popup_brief"
	// PopupAlert answers the pending button press with a modal alert.
	PopupAlert NotificationStyle = "popup_alert"
	// MessageTemp sends a message that deletes itself after a delay.
	MessageTemp NotificationStyle = "message_temp"
	// MessagePerm sends a message that stays.
	MessagePerm NotificationStyle = "message_perm"
)

// Exit may be returned by any handler to end the run successfully.
const Exit = "__exit__"

// Defaults applied to definitions at registration.
const (
	DefaultTimeout      = 120 * time.Second
	DefaultInputTimeout = 60 * time.Second
	DefaultAutoDelete   = 3 * time.Second
)

// DefaultCancelKeywords end text input like a back button.
var DefaultCancelKeywords = []string{"/cancel", "cancel"}

// ButtonHandler runs when its button is pressed and returns the next state id.
// An empty result keeps the run on the current state.
type ButtonHandler func(ctx context.Context, s *State, api any, userID int64) (string, error)

// Button is one inline keyboard button.
type Button struct {
	Text    string        // Label
	Data    string        // Callback token
	URL     string        // Opens a link instead of sending a token
	Handler ButtonHandler // Optional handler, wins over OnButton and NextStates
}

// Keyboard is an ordered grid of buttons.
type Keyboard [][]Button

// Find returns the button carrying data.
func (k Keyboard) Find(data string) (Button, bool) {
	for _, row := range k {
		for _, b := range row {
			if b.URL == "" && b.Data == data {
				return b, true
			}
		}
	}
	return Button{}, false
}

// Len returns the number of buttons.
func (k Keyboard) Len() int {
	n := 0
	for _, row := range k {
		n += len(row)
	}
	return n
}

// Builder function types. All receive the run context, flow state, the opaque api value
// passed to Run and the user id.
type (
	// TextFunc produces message content.
	TextFunc func(ctx context.Context, s *State, api any, userID int64) (string, error)
	// KeyboardFunc produces a keyboard.
	KeyboardFunc func(ctx context.Context, s *State, api any, userID int64) (Keyboard, error)
	// HookFunc is called on state enter and exit.
	HookFunc func(ctx context.Context, s *State, api any, userID int64) error
	// ButtonFunc overrides button resolution for a state; "" falls through to NextStates.
	ButtonFunc func(ctx context.Context, data string, s *State, api any, userID int64) (string, error)
	// InputFunc handles accepted text input; "" keeps the run on the current state.
	InputFunc func(ctx context.Context, text string, s *State, api any, userID int64) (string, error)
	// ItemsFunc fetches the collection a paginated state lists.
	ItemsFunc func(ctx context.Context, s *State, api any, userID int64) ([]any, error)
)

// Definition describes one conversational state.
type Definition struct {
	ID string // Unique within a flow

	Text         string       // Static content
	TextFunc     TextFunc     // Dynamic content, evaluated on every render
	Keyboard     Keyboard     // Static keyboard
	KeyboardFunc KeyboardFunc // Dynamic keyboard, evaluated on every render

	Type    StateType     // Defaults to StateButton
	Action  MessageAction // Defaults to ActionAuto
	Timeout time.Duration // Await timeout, defaults to DefaultTimeout (DefaultInputTimeout for text)

	NextStates  map[string]string // Button token to next state id
	BackButton  string            // Token that pops history
	ExitButtons []string          // Tokens that end the run successfully
	Terminal    bool              // End the run with success right after rendering

	Validator      Validator // Optional check for text input
	InputPrompt    string    // Appended to the content of text states
	StoreAs        string    // flow data key for accepted input, defaults to ID
	CancelKeywords []string  // Text that acts like back, defaults to DefaultCancelKeywords
	DefaultNext    string    // Next state for accepted input when OnInput is nil
	OnInput        InputFunc

	Pagination *PaginationConfig

	EnterNotification string
	ExitNotification  string
	NotificationStyle NotificationStyle // Defaults to PopupBrief
	AutoDelete        time.Duration     // For MessageTemp notifications: 0 means DefaultAutoDelete, negative keeps the message

	KeepButtonsOnExit bool // Leave the keyboard on the message when an exit button is pressed

	OnEnter  HookFunc
	OnExit   HookFunc
	OnButton ButtonFunc
}

// IsExit reports whether data is one of the state's exit tokens.
func (d *Definition) IsExit(data string) bool {
	for _, e := range d.ExitButtons {
		if e == data {
			return true
		}
	}
	return false
}

func (d *Definition) storageKey() string {
	if d.StoreAs != "" {
		return d.StoreAs
	}
	return d.ID
}

func (d *Definition) acceptsText() bool {
	return d.Type == StateText || d.Type == StateMixed
}

func (d *Definition) hasKeyboard() bool {
	return d.Keyboard != nil || d.KeyboardFunc != nil || d.Pagination != nil
}

// canExit reports whether a run could end from this state. Handlers may return Exit,
// so any state with one counts.
func (d *Definition) canExit() bool {
	if len(d.ExitButtons) > 0 || d.Terminal || d.BackButton != "" ||
		(d.Pagination != nil && d.Pagination.CloseText != "") ||
		(d.acceptsText() && len(d.CancelKeywords) > 0) ||
		d.OnButton != nil || d.OnInput != nil || d.KeyboardFunc != nil {
		return true
	}
	for _, next := range d.NextStates {
		if next == Exit {
			return true
		}
	}
	for _, row := range d.Keyboard {
		for _, b := range row {
			if b.Handler != nil {
				return true
			}
		}
	}
	return false
}

// normalize fills defaults and checks the definition for structural problems.
func (d *Definition) normalize() error {
	if d.ID == "" {
		return configErr("", "state id is empty")
	}
	if d.ID == Exit {
		return configErr(d.ID, "state id is reserved")
	}
	if d.Text == "" && d.TextFunc == nil {
		return configErr(d.ID, "either Text or TextFunc is required")
	}
	if d.Type == "" {
		d.Type = StateButton
	}
	switch d.Type {
	case StateButton:
		if d.OnInput != nil {
			return configErr(d.ID, "button state must not set OnInput")
		}
	case StateMixed:
		if !d.hasKeyboard() {
			return configErr(d.ID, "mixed state requires a keyboard")
		}
		if d.OnInput == nil {
			return configErr(d.ID, "mixed state requires OnInput")
		}
	case StateText:
	default:
		return configErr(d.ID, "unknown state type %q", d.Type)
	}
	if d.Action == "" {
		d.Action = ActionAuto
	}
	switch d.Action {
	case ActionSend, ActionEdit, ActionAuto:
	default:
		return configErr(d.ID, "unknown action %q", d.Action)
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
		if d.Type == StateText {
			d.Timeout = DefaultInputTimeout
		}
	}
	if d.Pagination != nil {
		if d.Pagination.Items == nil {
			return configErr(d.ID, "pagination requires an items builder")
		}
		d.Pagination.normalize()
	}
	if d.NotificationStyle == "" {
		d.NotificationStyle = PopupBrief
	}
	if d.AutoDelete == 0 {
		d.AutoDelete = DefaultAutoDelete
	}
	if d.acceptsText() && d.CancelKeywords == nil {
		d.CancelKeywords = DefaultCancelKeywords
	}
	return nil
}
