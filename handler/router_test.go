package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xVanfer/tg-flow/conv"
	"github.com/0xVanfer/tg-flow/flow"
)

type fakeBot struct {
	mu      sync.Mutex
	denied  map[int64]bool
	answers []string
}

func (b *fakeBot) CheckAuth(_ context.Context, userID int64, _ string) bool {
	return !b.denied[userID]
}

func (b *fakeBot) AnswerCallback(_ context.Context, id, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers = append(b.answers, id+"|"+text)
	return nil
}

func newTestRouter() (*Router, *fakeBot, *conv.Manager) {
	bot := &fakeBot{denied: map[int64]bool{}}
	mgr := conv.NewManager(time.Minute, nil)
	return NewRouter(bot, mgr, nil), bot, mgr
}

func message(userID int64, text string) telego.Message {
	return telego.Message{
		MessageID: 10,
		From:      &telego.User{ID: userID, Username: "ada"},
		Chat:      telego.Chat{ID: userID},
		Text:      text,
	}
}

func callback(userID int64, data string) telego.CallbackQuery {
	return telego.CallbackQuery{ID: "q-" + data, From: telego.User{ID: userID}, Data: data}
}

func waitFor(t *testing.T, mgr *conv.Manager, userID int64) {
	t.Helper()
	require.Eventually(t, func() bool { return mgr.Waiting(userID) }, time.Second, time.Millisecond)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text, command, args string
	}{
		{"/start", "start", ""},
		{"/coffee  latte  ", "coffee", "latte"},
		{"/coffee@tgflow_bot oat milk", "coffee", "oat milk"},
		{"  /cancel", "cancel", ""},
	}
	for _, tt := range tests {
		command, args := parseCommand(tt.text)
		assert.Equal(t, tt.command, command, tt.text)
		assert.Equal(t, tt.args, args, tt.text)
	}
}

func TestRouter_Command(t *testing.T) {
	r, _, _ := newTestRouter()
	var got string
	r.RegisterCommand("/coffee", func(_ context.Context, _ telego.Message, args string) error {
		got = args
		return nil
	})
	r.RegisterCommand("fail", func(context.Context, telego.Message, string) error {
		return errors.New("boom")
	})

	r.HandleCommand(context.Background(), message(1, "/coffee latte"))
	assert.Equal(t, "latte", got)
	assert.ElementsMatch(t, []string{"coffee", "fail"}, r.Commands())

	// Errors are logged, not propagated.
	r.HandleCommand(context.Background(), message(1, "/fail"))
}

func TestRouter_UnknownCommandReachesRun(t *testing.T) {
	r, _, mgr := newTestRouter()

	done := make(chan flow.TextReply, 1)
	go func() {
		reply, _ := mgr.AwaitText(context.Background(), 1, time.Second)
		done <- reply
	}()
	waitFor(t, mgr, 1)

	r.HandleCommand(context.Background(), message(1, "/cancel"))
	reply := <-done
	assert.Equal(t, "/cancel", reply.Text)
	assert.Equal(t, 10, reply.Message.MessageID)
}

func TestRouter_CallbackToWaitingRun(t *testing.T) {
	r, bot, mgr := newTestRouter()

	done := make(chan flow.ButtonPress, 1)
	go func() {
		press, _ := mgr.AwaitButton(context.Background(), 1, time.Second)
		done <- press
	}()
	waitFor(t, mgr, 1)

	r.HandleCallback(context.Background(), callback(1, "latte"))
	press := <-done
	assert.Equal(t, "latte", press.Data)
	assert.Equal(t, "q-latte", press.ID)
	assert.Empty(t, bot.answers, "the run answers its own presses")
}

func TestRouter_CallbackHandlers(t *testing.T) {
	r, bot, _ := newTestRouter()
	var exact, prefixed []string
	r.RegisterCallback("menu", func(_ context.Context, q telego.CallbackQuery) error {
		exact = append(exact, q.Data)
		return nil
	})
	r.RegisterCallbackPrefix("order:", func(_ context.Context, q telego.CallbackQuery) error {
		prefixed = append(prefixed, q.Data)
		return nil
	})

	ctx := context.Background()
	r.HandleCallback(ctx, callback(1, "menu"))
	r.HandleCallback(ctx, callback(1, "order:7"))
	r.HandleCallback(ctx, callback(1, "old_button"))

	assert.Equal(t, []string{"menu"}, exact)
	assert.Equal(t, []string{"order:7"}, prefixed)
	assert.Equal(t, []string{"q-old_button|" + ExpiredText}, bot.answers)
}

func TestRouter_Unauthorized(t *testing.T) {
	r, bot, mgr := newTestRouter()
	bot.denied[2] = true
	called := false
	r.RegisterCommand("coffee", func(context.Context, telego.Message, string) error {
		called = true
		return nil
	})
	r.SetMessageHandler(func(context.Context, telego.Message) error {
		called = true
		return nil
	})

	ctx := context.Background()
	r.HandleCommand(ctx, message(2, "/coffee"))
	r.HandleMessage(ctx, message(2, "hello"))
	r.HandleCallback(ctx, callback(2, "latte"))

	assert.False(t, called)
	assert.Equal(t, []string{"q-latte|"}, bot.answers, "presses are still acknowledged")
	assert.False(t, mgr.Waiting(2))
}

func TestRouter_MessageFallback(t *testing.T) {
	r, _, mgr := newTestRouter()
	var fallback []string
	r.SetMessageHandler(func(_ context.Context, msg telego.Message) error {
		fallback = append(fallback, msg.Text)
		return nil
	})

	done := make(chan string, 1)
	go func() {
		reply, _ := mgr.AwaitText(context.Background(), 1, time.Second)
		done <- reply.Text
	}()
	waitFor(t, mgr, 1)

	ctx := context.Background()
	r.HandleMessage(ctx, message(1, "to the run"))
	assert.Equal(t, "to the run", <-done)

	r.HandleMessage(ctx, message(1, "nobody waits"))
	assert.Equal(t, []string{"nobody waits"}, fallback)

	// Messages without a sender are ignored.
	r.HandleMessage(ctx, telego.Message{Text: "channel post"})
	assert.Len(t, fallback, 1)
}
