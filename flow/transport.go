package flow

import (
	"context"
	"time"
)

// MessageRef identifies a rendered chat message.
type MessageRef struct {
	ChatID    int64     // Chat the message lives in
	MessageID int       // Message ID inside the chat
	SentAt    time.Time // When the message was first sent
}

// IsZero reports whether the reference points to no message.
func (r MessageRef) IsZero() bool {
	return r.MessageID == 0
}

// ButtonPress is a callback query delivered to a waiting run.
type ButtonPress struct {
	ID      string     // Callback query ID, used to answer the press
	Data    string     // Callback token carried by the button
	Message MessageRef // Message the button belongs to
}

// TextReply is a free-text message delivered to a waiting run.
type TextReply struct {
	Text    string     // Message text as typed by the user
	Message MessageRef // The user's message
}

// InputKind tells which waiter resolved a MIXED await.
type InputKind string

const (
	// InputButton marks a resolved button press.
	InputButton InputKind = "button"
	// InputText marks a resolved text reply.
	InputText InputKind = "text"
)

// Input is the result of AwaitEither. Exactly one of Button or Text is set.
type Input struct {
	Kind   InputKind
	Button ButtonPress
	Text   TextReply
}

// Transport is the messaging service a flow run talks to.
//
// Await methods return an error wrapping ErrTimeout when nothing arrives within timeout,
// and ctx.Err() when the context is cancelled first.
type Transport interface {
	// Send posts a new message to the user's chat.
	Send(ctx context.Context, userID int64, text string, kb Keyboard) (MessageRef, error)
	// Edit replaces the text and keyboard of an existing message.
	Edit(ctx context.Context, ref MessageRef, text string, kb Keyboard) (MessageRef, error)
	// Delete removes a message.
	Delete(ctx context.Context, ref MessageRef) error
	// Editable reports whether ref can still be edited.
	Editable(ref MessageRef) bool
	// Answer acknowledges a button press, optionally showing a popup.
	Answer(ctx context.Context, press ButtonPress, text string, alert bool) error

	// AwaitButton waits for the next button press from the user.
	AwaitButton(ctx context.Context, userID int64, timeout time.Duration) (ButtonPress, error)
	// AwaitText waits for the next text message from the user.
	AwaitText(ctx context.Context, userID int64, timeout time.Duration) (TextReply, error)
	// AwaitEither waits for whichever of a button press or a text message arrives first.
	// Both waiters are registered before either can resolve and only one result is consumed.
	AwaitEither(ctx context.Context, userID int64, timeout time.Duration) (Input, error)
}
