// Package flowtest provides a scripted in-memory flow.Transport for tests.
package flowtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/0xVanfer/tg-flow/flow"
)

// Call is one recorded transport call.
type Call struct {
	Op       string // send, edit, delete or answer
	Text     string
	Keyboard flow.Keyboard
	Ref      flow.MessageRef
	Alert    bool
}

// Awaiter supplies input instead of the script.
type Awaiter interface {
	AwaitButton(ctx context.Context, userID int64, timeout time.Duration) (flow.ButtonPress, error)
	AwaitText(ctx context.Context, userID int64, timeout time.Duration) (flow.TextReply, error)
	AwaitEither(ctx context.Context, userID int64, timeout time.Duration) (flow.Input, error)
}

// Transport records outgoing calls and replays scripted input.
// When the script is exhausted, awaits time out immediately.
type Transport struct {
	Awaiter     Awaiter // Optional live input source
	NotEditable bool    // Editable reports false for every message
	FailEdits   int     // Number of upcoming edits that fail
	FailSends   int     // Number of upcoming sends that fail

	mu     sync.Mutex
	script []flow.Input
	calls  []Call
	nextID int
}

// New creates a transport replaying inputs in order.
func New(inputs ...flow.Input) *Transport {
	return &Transport{script: inputs}
}

// Button scripts a button press.
func Button(data string) flow.Input {
	return flow.Input{Kind: flow.InputButton, Button: flow.ButtonPress{Data: data}}
}

// Text scripts a text reply.
func Text(text string) flow.Input {
	return flow.Input{Kind: flow.InputText, Text: flow.TextReply{Text: text}}
}

// Push appends inputs to the script.
func (t *Transport) Push(inputs ...flow.Input) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.script = append(t.script, inputs...)
}

// Calls returns a copy of every recorded call.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// Ops returns recorded calls with the given op.
func (t *Transport) Ops(op string) []Call {
	var out []Call
	for _, c := range t.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Last returns the last send or edit, which is what the user currently sees.
func (t *Transport) Last() Call {
	calls := t.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Op == "send" || calls[i].Op == "edit" {
			return calls[i]
		}
	}
	return Call{}
}

func (t *Transport) record(c Call) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, c)
}

// Send implements flow.Transport.
func (t *Transport) Send(_ context.Context, userID int64, text string, kb flow.Keyboard) (flow.MessageRef, error) {
	t.mu.Lock()
	if t.FailSends > 0 {
		t.FailSends--
		t.mu.Unlock()
		return flow.MessageRef{}, errors.New("send refused")
	}
	t.nextID++
	ref := flow.MessageRef{ChatID: userID, MessageID: t.nextID, SentAt: time.Now()}
	t.mu.Unlock()

	t.record(Call{Op: "send", Text: text, Keyboard: kb, Ref: ref})
	return ref, nil
}

// Edit implements flow.Transport.
func (t *Transport) Edit(_ context.Context, ref flow.MessageRef, text string, kb flow.Keyboard) (flow.MessageRef, error) {
	t.mu.Lock()
	if t.FailEdits > 0 {
		t.FailEdits--
		t.mu.Unlock()
		return flow.MessageRef{}, errors.New("message can't be edited")
	}
	t.mu.Unlock()

	t.record(Call{Op: "edit", Text: text, Keyboard: kb, Ref: ref})
	return ref, nil
}

// Delete implements flow.Transport.
func (t *Transport) Delete(_ context.Context, ref flow.MessageRef) error {
	t.record(Call{Op: "delete", Ref: ref})
	return nil
}

// Editable implements flow.Transport.
func (t *Transport) Editable(flow.MessageRef) bool {
	return !t.NotEditable
}

// Answer implements flow.Transport.
func (t *Transport) Answer(_ context.Context, press flow.ButtonPress, text string, alert bool) error {
	t.record(Call{Op: "answer", Text: text, Ref: press.Message, Alert: alert})
	return nil
}

func (t *Transport) next(accept func(flow.Input) bool) (flow.Input, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.script) > 0 {
		in := t.script[0]
		t.script = t.script[1:]
		if accept(in) {
			return in, nil
		}
	}
	return flow.Input{}, fmt.Errorf("script exhausted: %w", flow.ErrTimeout)
}

// AwaitButton implements flow.Transport. Scripted text is skipped.
func (t *Transport) AwaitButton(ctx context.Context, userID int64, timeout time.Duration) (flow.ButtonPress, error) {
	if t.Awaiter != nil {
		return t.Awaiter.AwaitButton(ctx, userID, timeout)
	}
	in, err := t.next(func(in flow.Input) bool { return in.Kind == flow.InputButton })
	return in.Button, err
}

// AwaitText implements flow.Transport. Scripted presses are skipped.
func (t *Transport) AwaitText(ctx context.Context, userID int64, timeout time.Duration) (flow.TextReply, error) {
	if t.Awaiter != nil {
		return t.Awaiter.AwaitText(ctx, userID, timeout)
	}
	in, err := t.next(func(in flow.Input) bool { return in.Kind == flow.InputText })
	return in.Text, err
}

// AwaitEither implements flow.Transport.
func (t *Transport) AwaitEither(ctx context.Context, userID int64, timeout time.Duration) (flow.Input, error) {
	if t.Awaiter != nil {
		return t.Awaiter.AwaitEither(ctx, userID, timeout)
	}
	return t.next(func(flow.Input) bool { return true })
}
