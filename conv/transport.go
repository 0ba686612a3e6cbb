package conv

import (
	"context"
	"time"

	"github.com/mymmrac/telego"

	"github.com/0xVanfer/tg-flow/core"
	"github.com/0xVanfer/tg-flow/flow"
)

// EditWindow is how long Telegram lets a bot edit its own messages.
const EditWindow = 48 * time.Hour

// Sender is the subset of core.Bot the transport uses.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *telego.InlineKeyboardMarkup) (*telego.Message, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, keyboard *telego.InlineKeyboardMarkup) (*telego.Message, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
	AnswerCallbackWithAlert(ctx context.Context, callbackID string, text string) error
}

// Transport implements flow.Transport over Telegram. Outgoing calls go through the
// Sender; input comes from the Manager, which the update router feeds.
type Transport struct {
	bot Sender
	mgr *Manager
}

var _ flow.Transport = (*Transport)(nil)

// NewTransport creates a transport. bot is usually a *core.Bot.
func NewTransport(bot Sender, mgr *Manager) *Transport {
	return &Transport{bot: bot, mgr: mgr}
}

// Send implements flow.Transport. Flows run in private chats, so the user id is the chat id.
func (t *Transport) Send(ctx context.Context, userID int64, text string, kb flow.Keyboard) (flow.MessageRef, error) {
	msg, err := t.bot.SendMessage(ctx, userID, text, core.Markup(kb))
	if err != nil {
		return flow.MessageRef{}, err
	}
	return messageRef(msg, userID), nil
}

// Edit implements flow.Transport.
func (t *Transport) Edit(ctx context.Context, ref flow.MessageRef, text string, kb flow.Keyboard) (flow.MessageRef, error) {
	if _, err := t.bot.EditMessage(ctx, ref.ChatID, ref.MessageID, text, core.Markup(kb)); err != nil {
		return flow.MessageRef{}, err
	}
	return ref, nil
}

// Delete implements flow.Transport.
func (t *Transport) Delete(ctx context.Context, ref flow.MessageRef) error {
	return t.bot.DeleteMessage(ctx, ref.ChatID, ref.MessageID)
}

// Editable implements flow.Transport.
func (t *Transport) Editable(ref flow.MessageRef) bool {
	if ref.IsZero() {
		return false
	}
	return ref.SentAt.IsZero() || time.Since(ref.SentAt) < EditWindow
}

// Answer implements flow.Transport.
func (t *Transport) Answer(ctx context.Context, press flow.ButtonPress, text string, alert bool) error {
	if press.ID == "" {
		return nil
	}
	if alert {
		return t.bot.AnswerCallbackWithAlert(ctx, press.ID, text)
	}
	return t.bot.AnswerCallback(ctx, press.ID, text)
}

// AwaitButton implements flow.Transport.
func (t *Transport) AwaitButton(ctx context.Context, userID int64, timeout time.Duration) (flow.ButtonPress, error) {
	return t.mgr.AwaitButton(ctx, userID, timeout)
}

// AwaitText implements flow.Transport.
func (t *Transport) AwaitText(ctx context.Context, userID int64, timeout time.Duration) (flow.TextReply, error) {
	return t.mgr.AwaitText(ctx, userID, timeout)
}

// AwaitEither implements flow.Transport.
func (t *Transport) AwaitEither(ctx context.Context, userID int64, timeout time.Duration) (flow.Input, error) {
	return t.mgr.AwaitEither(ctx, userID, timeout)
}

func messageRef(msg *telego.Message, chatID int64) flow.MessageRef {
	if msg == nil {
		return flow.MessageRef{ChatID: chatID}
	}
	return flow.MessageRef{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		SentAt:    time.Unix(msg.Date, 0),
	}
}

// MessageRef converts an incoming telego message into a flow reference.
func MessageRef(msg telego.MaybeInaccessibleMessage) flow.MessageRef {
	if msg == nil {
		return flow.MessageRef{}
	}
	ref := flow.MessageRef{
		ChatID:    msg.GetChat().ID,
		MessageID: msg.GetMessageID(),
	}
	if m, ok := msg.(*telego.Message); ok {
		ref.SentAt = time.Unix(m.Date, 0)
	}
	return ref
}
