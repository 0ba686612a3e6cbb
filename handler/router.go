// Package handler routes Telegram updates. Button presses and text messages go to the
// flow run waiting for them; everything else goes to registered command, callback and
// message handlers.
package handler

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"github.com/0xVanfer/tg-flow/conv"
	"github.com/0xVanfer/tg-flow/flow"
)

// CommandHandler handles a bot command. args is the text after the command.
type CommandHandler func(ctx context.Context, msg telego.Message, args string) error

// CallbackHandler handles a callback query no run was waiting for.
type CallbackHandler func(ctx context.Context, query telego.CallbackQuery) error

// MessageHandler handles a text message no run was waiting for.
type MessageHandler func(ctx context.Context, msg telego.Message) error

// Bot is the subset of core.Bot the router uses.
type Bot interface {
	CheckAuth(ctx context.Context, userID int64, username string) bool
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// ExpiredText answers presses on buttons nobody is waiting for.
const ExpiredText = "This menu has expired."

// Router dispatches updates. It is safe for concurrent use.
type Router struct {
	bot  Bot
	conv *conv.Manager
	log  *slog.Logger

	commandHandlers  map[string]CommandHandler  // By command name without slash
	callbackHandlers map[string]CallbackHandler // By exact data
	prefixHandlers   map[string]CallbackHandler // By data prefix
	messageHandler   MessageHandler             // Fallback for text

	mu sync.RWMutex
}

// NewRouter creates a router delivering input to mgr.
func NewRouter(bot Bot, mgr *conv.Manager, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		bot:              bot,
		conv:             mgr,
		log:              log.With("component", "router"),
		commandHandlers:  make(map[string]CommandHandler),
		callbackHandlers: make(map[string]CallbackHandler),
		prefixHandlers:   make(map[string]CallbackHandler),
	}
}

// RegisterCommand registers a handler for a command, with or without leading slash.
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commandHandlers[strings.TrimPrefix(command, "/")] = handler
}

// Commands returns the registered command names.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.commandHandlers))
	for c := range r.commandHandlers {
		out = append(out, c)
	}
	return out
}

// RegisterCallback registers a handler for exact callback data.
func (r *Router) RegisterCallback(data string, handler CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbackHandlers[data] = handler
}

// RegisterCallbackPrefix registers a handler for callback data starting with prefix.
func (r *Router) RegisterCallbackPrefix(prefix string, handler CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixHandlers[prefix] = handler
}

// SetMessageHandler sets the fallback for text no run is waiting for.
func (r *Router) SetMessageHandler(handler MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messageHandler = handler
}

// SetupHandler registers the routing rules on a telego bot handler.
func (r *Router) SetupHandler(bh *th.BotHandler) {
	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		r.HandleCommand(ctx, message)
		return nil
	}, func(_ context.Context, update telego.Update) bool {
		return update.Message != nil && strings.HasPrefix(update.Message.Text, "/")
	})

	bh.HandleCallbackQuery(func(ctx *th.Context, query telego.CallbackQuery) error {
		r.HandleCallback(ctx, query)
		return nil
	})

	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		r.HandleMessage(ctx, message)
		return nil
	}, func(_ context.Context, update telego.Update) bool {
		return update.Message != nil && update.Message.Text != "" && !strings.HasPrefix(update.Message.Text, "/")
	})
}

// HandleCommand runs the command's handler. Unknown commands are offered to a run
// waiting for text, which lets "/cancel" reach it.
func (r *Router) HandleCommand(ctx context.Context, msg telego.Message) {
	if msg.From == nil || !r.bot.CheckAuth(ctx, msg.From.ID, msg.From.Username) {
		return
	}

	command, args := parseCommand(msg.Text)
	r.log.Debug("command received", "command", command, "user_id", msg.From.ID)

	r.mu.RLock()
	handler, ok := r.commandHandlers[command]
	r.mu.RUnlock()

	if !ok {
		if !r.conv.DeliverText(msg.From.ID, textReply(msg)) {
			r.log.Debug("no handler for command", "command", command)
		}
		return
	}
	if err := handler(ctx, msg, args); err != nil {
		r.log.Error("command handler failed", "command", command, "error", err)
	}
}

// HandleCallback delivers a press to the waiting run, or falls back to registered
// callback handlers.
func (r *Router) HandleCallback(ctx context.Context, query telego.CallbackQuery) {
	if !r.bot.CheckAuth(ctx, query.From.ID, query.From.Username) {
		_ = r.bot.AnswerCallback(ctx, query.ID, "")
		return
	}

	press := flow.ButtonPress{
		ID:      query.ID,
		Data:    query.Data,
		Message: conv.MessageRef(query.Message),
	}
	if r.conv.DeliverButton(query.From.ID, press) {
		return
	}

	r.mu.RLock()
	handler, ok := r.callbackHandlers[query.Data]
	if !ok {
		for prefix, h := range r.prefixHandlers {
			if strings.HasPrefix(query.Data, prefix) {
				handler, ok = h, true
				break
			}
		}
	}
	r.mu.RUnlock()

	if !ok {
		r.log.Debug("stale callback", "data", query.Data, "user_id", query.From.ID)
		_ = r.bot.AnswerCallback(ctx, query.ID, ExpiredText)
		return
	}
	if err := handler(ctx, query); err != nil {
		r.log.Error("callback handler failed", "data", query.Data, "error", err)
	}
}

// HandleMessage delivers text to the waiting run, or to the fallback handler.
func (r *Router) HandleMessage(ctx context.Context, msg telego.Message) {
	if msg.From == nil || !r.bot.CheckAuth(ctx, msg.From.ID, msg.From.Username) {
		return
	}
	if r.conv.DeliverText(msg.From.ID, textReply(msg)) {
		return
	}

	r.mu.RLock()
	handler := r.messageHandler
	r.mu.RUnlock()

	if handler == nil {
		return
	}
	if err := handler(ctx, msg); err != nil {
		r.log.Error("message handler failed", "error", err)
	}
}

func textReply(msg telego.Message) flow.TextReply {
	return flow.TextReply{Text: msg.Text, Message: conv.MessageRef(&msg)}
}

// parseCommand splits "/cmd@bot args" into "cmd" and "args".
func parseCommand(text string) (string, string) {
	head, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	command := strings.TrimPrefix(head, "/")
	if i := strings.Index(command, "@"); i != -1 {
		command = command[:i]
	}
	return command, strings.TrimSpace(args)
}
