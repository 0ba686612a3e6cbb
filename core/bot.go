// Package core wraps the telego library with the handful of Telegram operations the
// flow engine needs: sending, editing and deleting HTML messages with inline keyboards
// and answering callback queries.
package core

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoutil"
)

// AuthFunc decides whether a user may talk to the bot.
type AuthFunc func(ctx context.Context, userID int64, username string) bool

// ErrNoBot is returned by Bot methods when no telego client is attached.
var ErrNoBot = errors.New("telegram bot is not initialised")

// Bot wraps telego.Bot. All methods are safe for concurrent use.
type Bot struct {
	bot       *telego.Bot  // Underlying telego client
	parseMode string       // Parse mode for outgoing text, e.g. telego.ModeHTML
	authFunc  AuthFunc     // Optional user filter
	mu        sync.RWMutex // Guards authFunc
}

// NewBot creates a bot for token. parseMode defaults to HTML.
func NewBot(token, parseMode string, opts ...telego.BotOption) (*Bot, error) {
	b, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, err
	}
	return Wrap(b, parseMode), nil
}

// Wrap adapts an existing telego client.
func Wrap(b *telego.Bot, parseMode string) *Bot {
	if parseMode == "" {
		parseMode = telego.ModeHTML
	}
	return &Bot{bot: b, parseMode: parseMode}
}

// SetAuthFunc sets the user filter.
func (b *Bot) SetAuthFunc(fn AuthFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authFunc = fn
}

// CheckAuth reports whether the user passes the filter. Without a filter everyone passes.
func (b *Bot) CheckAuth(ctx context.Context, userID int64, username string) bool {
	b.mu.RLock()
	fn := b.authFunc
	b.mu.RUnlock()
	if fn == nil {
		return true
	}
	return fn(ctx, userID, username)
}

// Telego returns the underlying client.
func (b *Bot) Telego() *telego.Bot {
	return b.bot
}

// ParseMode returns the parse mode used for outgoing text.
func (b *Bot) ParseMode() string {
	return b.parseMode
}

// SendMessage posts text with an optional inline keyboard.
// Link previews are disabled.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string, keyboard *telego.InlineKeyboardMarkup) (*telego.Message, error) {
	if b.bot == nil {
		return nil, ErrNoBot
	}

	params := &telego.SendMessageParams{
		ChatID:    telegoutil.ID(chatID),
		Text:      FitMessage(text),
		ParseMode: b.parseMode,
		LinkPreviewOptions: &telego.LinkPreviewOptions{
			IsDisabled: true,
		},
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	return b.bot.SendMessage(ctx, params)
}

// EditMessage replaces the text and keyboard of a message. A nil keyboard removes the
// buttons. Editing a message into identical content is not an error.
func (b *Bot) EditMessage(ctx context.Context, chatID int64, messageID int, text string, keyboard *telego.InlineKeyboardMarkup) (*telego.Message, error) {
	if b.bot == nil {
		return nil, ErrNoBot
	}

	params := &telego.EditMessageTextParams{
		ChatID:    telegoutil.ID(chatID),
		MessageID: messageID,
		Text:      FitMessage(text),
		ParseMode: b.parseMode,
		LinkPreviewOptions: &telego.LinkPreviewOptions{
			IsDisabled: true,
		},
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	msg, err := b.bot.EditMessageText(ctx, params)
	if err != nil && IsNotModified(err) {
		return nil, nil
	}
	return msg, err
}

// DeleteMessage deletes a message.
func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if b.bot == nil {
		return ErrNoBot
	}
	return b.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    telegoutil.ID(chatID),
		MessageID: messageID,
	})
}

// AnswerCallback acknowledges a callback query, showing text as a toast when set.
func (b *Bot) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if b.bot == nil {
		return ErrNoBot
	}
	return b.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
}

// AnswerCallbackWithAlert acknowledges a callback query with a modal alert.
func (b *Bot) AnswerCallbackWithAlert(ctx context.Context, callbackID string, text string) error {
	if b.bot == nil {
		return ErrNoBot
	}
	return b.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
}

// SetMyCommands registers the command menu.
func (b *Bot) SetMyCommands(ctx context.Context, commands []telego.BotCommand) error {
	if b.bot == nil {
		return ErrNoBot
	}
	return b.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands})
}

// DeleteMyCommands clears the command menu.
func (b *Bot) DeleteMyCommands(ctx context.Context) error {
	if b.bot == nil {
		return ErrNoBot
	}
	return b.bot.DeleteMyCommands(ctx, nil)
}

// IsNotModified reports whether err is Telegram's answer to an edit that changes nothing.
func IsNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
