package flowutil

import (
	"github.com/0xVanfer/tg-flow/core"
	"github.com/0xVanfer/tg-flow/flow"
)

// Default ids of the standard exit states.
const (
	CancelledID = "exit_cancelled"
	SuccessID   = "exit_success"
)

// ExitState returns a terminal state that edits the current message to text, removing
// its buttons, and ends the run. Handlers navigate to it to close a flow cleanly.
func ExitState(id, text string) flow.Definition {
	return flow.Definition{
		ID:       id,
		Text:     text,
		Action:   flow.ActionEdit,
		Terminal: true,
	}
}

// ExitStateFunc is ExitState with dynamic text.
func ExitStateFunc(id string, text flow.TextFunc) flow.Definition {
	return flow.Definition{
		ID:       id,
		TextFunc: text,
		Action:   flow.ActionEdit,
		Terminal: true,
	}
}

// Cancelled returns the standard cancellation exit state. Empty arguments use the
// defaults.
func Cancelled(id, message string) flow.Definition {
	if id == "" {
		id = CancelledID
	}
	if message == "" {
		message = core.NewBuilder().Bold("❌ Cancelled").Ln().Ln().Text("No changes were made.").String()
	}
	return ExitState(id, message)
}

// Success returns the standard success exit state. Empty arguments use the defaults.
func Success(id, message string) flow.Definition {
	if id == "" {
		id = SuccessID
	}
	if message == "" {
		message = core.NewBuilder().Bold("✅ Success").Ln().Ln().Text("Operation completed successfully.").String()
	}
	return ExitState(id, message)
}
