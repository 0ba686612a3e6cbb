package flowutil

import (
	"fmt"

	"github.com/0xVanfer/tg-flow/flow"
)

// DefaultExitButtons are the exit tokens MakeState sets when none are given.
var DefaultExitButtons = []string{CloseData, CancelData, DoneData}

// MakeState fills in what can be inferred from a partial definition:
//   - the type is mixed when OnInput and a keyboard are set, text when only OnInput is
//     set and button otherwise
//   - nil ExitButtons become DefaultExitButtons; an empty non nil slice means none
//
// Exactly one of Text and TextFunc and at most one of Keyboard and KeyboardFunc may be set.
func MakeState(d flow.Definition) (flow.Definition, error) {
	if (d.Text == "") == (d.TextFunc == nil) {
		return d, fmt.Errorf("make state %q: set exactly one of Text and TextFunc", d.ID)
	}
	if d.Keyboard != nil && d.KeyboardFunc != nil {
		return d, fmt.Errorf("make state %q: set at most one of Keyboard and KeyboardFunc", d.ID)
	}

	if d.Type == "" {
		hasKeyboard := d.Keyboard != nil || d.KeyboardFunc != nil
		switch {
		case d.OnInput != nil && hasKeyboard:
			d.Type = flow.StateMixed
		case d.OnInput != nil:
			d.Type = flow.StateText
		default:
			d.Type = flow.StateButton
		}
	}
	if d.ExitButtons == nil {
		d.ExitButtons = append([]string(nil), DefaultExitButtons...)
	}
	return d, nil
}

// MustMakeState is like MakeState but panics on error.
func MustMakeState(d flow.Definition) flow.Definition {
	d, err := MakeState(d)
	if err != nil {
		panic(err)
	}
	return d
}
