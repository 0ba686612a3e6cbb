package flowutil

import (
	"time"

	"github.com/0xVanfer/tg-flow/core"
	"github.com/0xVanfer/tg-flow/flow"
)

// Confirmation is a yes/no question that leads to one of two states.
type Confirmation struct {
	ID           string
	Question     string
	ConfirmState string // Next state on confirm
	CancelState  string // Next state on cancel
	ConfirmText  string // Defaults to "✅ Yes, confirm"
	CancelText   string // Defaults to "❌ No, cancel"
	Warning      string // Optional line below the question
	Timeout      time.Duration
}

// State builds the confirmation state. It edits the current message.
func (c Confirmation) State() flow.Definition {
	confirm, cancel := c.ConfirmText, c.CancelText
	if confirm == "" {
		confirm = "✅ Yes, confirm"
	}
	if cancel == "" {
		cancel = "❌ No, cancel"
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	b := core.NewBuilder().Bold("⚠️ Confirmation Required").Ln().Ln().Text(c.Question)
	if c.Warning != "" {
		b.Ln().Ln().Text(c.Warning)
	}

	return flow.Definition{
		ID:     c.ID,
		Text:   b.String(),
		Action: flow.ActionEdit,
		Keyboard: flow.Keyboard{
			{{Text: confirm, Data: ConfirmData}},
			{{Text: cancel, Data: CancelData}},
		},
		Timeout: timeout,
		NextStates: map[string]string{
			ConfirmData: c.ConfirmState,
			CancelData:  c.CancelState,
		},
	}
}

// AddConfirmation registers a confirmation state on f.
func AddConfirmation(f *flow.Flow, c Confirmation) error {
	return f.Add(c.State())
}
