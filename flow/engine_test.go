package flow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xVanfer/tg-flow/flow"
	"github.com/0xVanfer/tg-flow/flow/flowtest"
)

type recorder struct {
	flow.NopObserver

	mu       sync.Mutex
	entered  []string
	rendered []string
	outcome  flow.Outcome
}

func (r *recorder) StateEntered(_, stateID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entered = append(r.entered, stateID)
}

func (r *recorder) Rendered(_, stateID string, _ flow.MessageAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, stateID)
}

func (r *recorder) RunFinished(_ string, outcome flow.Outcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcome = outcome
}

func menuFlow(obs flow.Observer) *flow.Flow {
	return flow.New("menu", flow.WithObserver(obs)).MustAdd(
		flow.Definition{
			ID:   "main",
			Text: "Main menu",
			Keyboard: flow.Keyboard{
				{{Text: "List", Data: "list"}},
				{{Text: "Close", Data: "close"}},
			},
			NextStates:  map[string]string{"list": "list"},
			ExitButtons: []string{"close"},
		},
		flow.Definition{
			ID:         "list",
			Text:       "The list",
			Keyboard:   flow.Keyboard{{{Text: "Back", Data: "back"}}},
			BackButton: "back",
		},
	)
}

func TestRun_ExitButton(t *testing.T) {
	obs := &recorder{}
	tr := flowtest.New(flowtest.Button("close"))

	ok, err := menuFlow(obs).Run(context.Background(), tr, 7, nil, "main")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, flow.OutcomeCompleted, obs.outcome)

	sends := tr.Ops("send")
	require.Len(t, sends, 1)
	assert.Equal(t, "Main menu", sends[0].Text)
	assert.Equal(t, 2, sends[0].Keyboard.Len())

	// Buttons are removed from the last message on exit.
	last := tr.Last()
	assert.Equal(t, "edit", last.Op)
	assert.Equal(t, "Main menu", last.Text)
	assert.Nil(t, last.Keyboard)
	assert.Len(t, tr.Ops("answer"), 1)
}

func TestRun_ListAndBack(t *testing.T) {
	obs := &recorder{}
	tr := flowtest.New(
		flowtest.Button("list"),
		flowtest.Button("back"),
		flowtest.Button("close"),
	)

	ok, err := menuFlow(obs).Run(context.Background(), tr, 7, nil, "main")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{"main", "list", "main"}, obs.rendered)
	assert.Equal(t, []string{"main", "list", "main"}, obs.entered)
	assert.Len(t, tr.Ops("send"), 1, "later renders edit the first message")
	assert.Len(t, tr.Ops("answer"), 3, "every press is answered once")
}

func TestRun_BackWithoutHistoryExits(t *testing.T) {
	f := flow.New("solo").MustAdd(flow.Definition{
		ID:         "only",
		Text:       "Nothing here",
		Keyboard:   flow.Keyboard{{{Text: "Back", Data: "back"}}},
		BackButton: "back",
	})
	tr := flowtest.New(flowtest.Button("back"))

	ok, err := f.Run(context.Background(), tr, 1, nil, "only")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_HistoryAcrossThreeStates(t *testing.T) {
	obs := &recorder{}
	var seen []string
	f := flow.New("deep", flow.WithObserver(obs)).MustAdd(
		flow.Definition{
			ID: "a", Text: "A",
			Keyboard:    flow.Keyboard{{{Text: "B", Data: "b"}}},
			NextStates:  map[string]string{"b": "b"},
			ExitButtons: []string{"close"},
		},
		flow.Definition{
			ID: "b", Text: "B",
			Keyboard:   flow.Keyboard{{{Text: "C", Data: "c"}}},
			NextStates: map[string]string{"c": "c"},
			BackButton: "back",
		},
		flow.Definition{
			ID: "c",
			TextFunc: func(_ context.Context, s *flow.State, _ any, _ int64) (string, error) {
				seen = append(seen, s.Previous())
				return "C", nil
			},
			BackButton: "back",
		},
	)
	tr := flowtest.New(
		flowtest.Button("b"),
		flowtest.Button("c"),
		flowtest.Button("back"),
		flowtest.Button("back"),
		flowtest.Button("close"),
	)

	ok, err := f.Run(context.Background(), tr, 1, nil, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c", "b", "a"}, obs.rendered)
	assert.Equal(t, []string{"b"}, seen)
}

func TestRun_ValidatorRejectsUntilValid(t *testing.T) {
	obs := &recorder{}
	var stored any
	f := flow.New("amount", flow.WithObserver(obs)).MustAdd(
		flow.Definition{
			ID:          "amount",
			Text:        "How much?",
			Type:        flow.StateText,
			Validator:   flow.Numeric(flow.Min(1)),
			DefaultNext: "done",
		},
		flow.Definition{
			ID: "done",
			TextFunc: func(_ context.Context, s *flow.State, _ any, _ int64) (string, error) {
				stored, _ = s.Get("amount")
				return "Thanks", nil
			},
			Terminal: true,
		},
	)
	tr := flowtest.New(
		flowtest.Text("abc"),
		flowtest.Text("0"),
		flowtest.Text("5"),
	)

	ok, err := f.Run(context.Background(), tr, 1, nil, "amount")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5.0, stored)

	assert.Equal(t, []string{"amount", "done"}, obs.entered)
	assert.Equal(t, []string{"amount", "amount", "amount", "done"}, obs.rendered)

	var notices []string
	for _, c := range tr.Ops("send") {
		notices = append(notices, c.Text)
	}
	assert.Contains(t, notices, "❌ Please enter a valid number")
	assert.Contains(t, notices, "❌ Value must be at least 1")
}

func TestRun_StoreAsAndOnInput(t *testing.T) {
	var name string
	f := flow.New("name").MustAdd(
		flow.Definition{
			ID:          "ask",
			Text:        "Your name?",
			Type:        flow.StateText,
			StoreAs:     "user_name",
			InputPrompt: "Type it below",
			OnInput: func(_ context.Context, text string, s *flow.State, _ any, _ int64) (string, error) {
				name = s.GetString("user_name")
				return flow.Exit, nil
			},
		},
	)
	tr := flowtest.New(flowtest.Text("Ada"))

	ok, err := f.Run(context.Background(), tr, 1, nil, "ask")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ada", name)
	assert.Equal(t, "Your name?\n\nType it below", tr.Ops("send")[0].Text)
}

func TestRun_CancelKeyword(t *testing.T) {
	f := flow.New("cancel").MustAdd(flow.Definition{
		ID:   "ask",
		Text: "Your name?",
		Type: flow.StateText,
		OnInput: func(context.Context, string, *flow.State, any, int64) (string, error) {
			return "", errors.New("must not be called")
		},
	})
	tr := flowtest.New(flowtest.Text(" CANCEL "))

	ok, err := f.Run(context.Background(), tr, 1, nil, "ask")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_TerminalState(t *testing.T) {
	exited := false
	f := flow.New("receipt").MustAdd(flow.Definition{
		ID:       "receipt",
		Text:     "Paid",
		Terminal: true,
		OnExit: func(context.Context, *flow.State, any, int64) error {
			exited = true
			return nil
		},
	})
	tr := flowtest.New()

	ok, err := f.Run(context.Background(), tr, 1, nil, "receipt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, exited)
	assert.Len(t, tr.Calls(), 1)
}

func TestRun_HandlerReturnsExit(t *testing.T) {
	f := flow.New("exit").MustAdd(flow.Definition{
		ID:   "main",
		Text: "Main",
		Keyboard: flow.Keyboard{{{
			Text: "Done",
			Data: "done",
			Handler: func(context.Context, *flow.State, any, int64) (string, error) {
				return flow.Exit, nil
			},
		}}},
	})
	tr := flowtest.New(flowtest.Button("done"))

	ok, err := f.Run(context.Background(), tr, 1, nil, "main")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_ButtonHandlerWinsOverOnButton(t *testing.T) {
	var order []string
	f := flow.New("precedence").MustAdd(
		flow.Definition{
			ID:   "main",
			Text: "Main",
			Keyboard: flow.Keyboard{{{
				Text: "Go",
				Data: "go",
				Handler: func(context.Context, *flow.State, any, int64) (string, error) {
					order = append(order, "handler")
					return "next", nil
				},
			}}},
			OnButton: func(context.Context, string, *flow.State, any, int64) (string, error) {
				order = append(order, "on_button")
				return "", nil
			},
			NextStates: map[string]string{"go": "main"},
		},
		flow.Definition{ID: "next", Text: "Next", Terminal: true},
	)
	tr := flowtest.New(flowtest.Button("go"))

	ok, err := f.Run(context.Background(), tr, 1, nil, "main")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"handler"}, order)
}

func TestRun_OnButtonFallsThroughToNextStates(t *testing.T) {
	obs := &recorder{}
	f := flow.New("fallthrough", flow.WithObserver(obs)).MustAdd(
		flow.Definition{
			ID:       "main",
			Text:     "Main",
			Keyboard: flow.Keyboard{{{Text: "Go", Data: "go"}}},
			OnButton: func(context.Context, string, *flow.State, any, int64) (string, error) {
				return "", nil
			},
			NextStates: map[string]string{"go": "next"},
		},
		flow.Definition{ID: "next", Text: "Next", Terminal: true},
	)
	tr := flowtest.New(flowtest.Button("go"))

	ok, err := f.Run(context.Background(), tr, 1, nil, "main")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"main", "next"}, obs.rendered)
}

func TestRun_EditFallsBackToSend(t *testing.T) {
	tr := flowtest.New(flowtest.Button("list"), flowtest.Button("back"), flowtest.Button("close"))
	tr.FailEdits = 1

	ok, err := menuFlow(nil).Run(context.Background(), tr, 7, nil, "main")
	require.NoError(t, err)
	assert.True(t, ok)

	sends := tr.Ops("send")
	require.Len(t, sends, 2)
	assert.Equal(t, "The list", sends[1].Text)
}

func TestRun_SendActionAlwaysSends(t *testing.T) {
	f := flow.New("send").MustAdd(
		flow.Definition{
			ID: "a", Text: "A", Action: flow.ActionSend,
			Keyboard:    flow.Keyboard{{{Text: "B", Data: "b"}}},
			NextStates:  map[string]string{"b": "b"},
			ExitButtons: []string{"close"},
		},
		flow.Definition{ID: "b", Text: "B", Action: flow.ActionSend, Terminal: true},
	)
	tr := flowtest.New(flowtest.Button("b"))

	ok, err := f.Run(context.Background(), tr, 1, nil, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, tr.Ops("send"), 2)
	assert.Empty(t, tr.Ops("edit"))
}

func TestRun_Timeout(t *testing.T) {
	obs := &recorder{}
	tr := flowtest.New()

	ok, err := menuFlow(obs).Run(context.Background(), tr, 7, nil, "main")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, flow.OutcomeTimeout, obs.outcome)

	deletes := tr.Ops("delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, tr.Ops("send")[0].Ref, deletes[0].Ref)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := flowtest.New()
	tr.Awaiter = blockingAwaiter{}
	cancel()

	ok, err := menuFlow(nil).Run(ctx, tr, 7, nil, "main")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_HandlerError(t *testing.T) {
	boom := errors.New("database down")
	f := flow.New("broken").MustAdd(flow.Definition{
		ID:       "main",
		Text:     "Main",
		Keyboard: flow.Keyboard{{{Text: "Go", Data: "go"}}},
		OnButton: func(context.Context, string, *flow.State, any, int64) (string, error) {
			return "", boom
		},
	})
	tr := flowtest.New(flowtest.Button("go"))

	ok, err := f.Run(context.Background(), tr, 1, nil, "main")
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, flow.ErrHandler)
	assert.ErrorIs(t, err, boom)

	var herr *flow.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "main", herr.StateID)

	sends := tr.Ops("send")
	require.Len(t, sends, 2)
	assert.Equal(t, flow.DefaultFailureMessage, sends[1].Text)
	assert.Len(t, tr.Ops("answer"), 1)
}

func TestRun_SendFailure(t *testing.T) {
	tr := flowtest.New()
	tr.FailSends = 1

	ok, err := menuFlow(nil).Run(context.Background(), tr, 7, nil, "main")
	assert.False(t, ok)
	assert.ErrorIs(t, err, flow.ErrTransport)
}

func TestRun_UnknownStart(t *testing.T) {
	ok, err := menuFlow(nil).Run(context.Background(), flowtest.New(), 7, nil, "missing")
	assert.False(t, ok)

	var cerr *flow.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "missing", cerr.StateID)
	assert.ErrorIs(t, err, flow.ErrConfiguration)
}

func TestRun_InitialDataAndRunID(t *testing.T) {
	var runID, coffee string
	f := flow.New("seed").MustAdd(flow.Definition{
		ID: "main",
		TextFunc: func(_ context.Context, s *flow.State, _ any, _ int64) (string, error) {
			runID = s.RunID
			coffee = s.GetString("coffee")
			return "Hi", nil
		},
		Terminal: true,
	})

	_, err := f.Run(context.Background(), flowtest.New(), 1, nil, "main",
		flow.WithRunID("run-1"),
		flow.WithInitialData(map[string]any{"coffee": "espresso"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	assert.Equal(t, "espresso", coffee)
}

func TestRun_PopupNotifications(t *testing.T) {
	f := flow.New("notify").MustAdd(
		flow.Definition{
			ID:          "main",
			Text:        "Main",
			Keyboard:    flow.Keyboard{{{Text: "Save", Data: "save"}}},
			NextStates:  map[string]string{"save": "saved"},
			ExitButtons: []string{"close"},
		},
		flow.Definition{
			ID:                "saved",
			Text:              "Saved",
			Keyboard:          flow.Keyboard{{{Text: "Close", Data: "close"}}},
			ExitButtons:       []string{"close"},
			EnterNotification: "✅ Saved",
			ExitNotification:  "Bye",
			NotificationStyle: flow.PopupAlert,
		},
	)
	tr := flowtest.New(flowtest.Button("save"), flowtest.Button("close"))

	ok, err := f.Run(context.Background(), tr, 1, nil, "main")
	require.NoError(t, err)
	assert.True(t, ok)

	answers := tr.Ops("answer")
	require.Len(t, answers, 2)
	assert.Equal(t, "✅ Saved", answers[0].Text)
	assert.True(t, answers[0].Alert)
	assert.Equal(t, "Bye", answers[1].Text)
}

func TestRun_TempNotificationAutoDelete(t *testing.T) {
	run := func(autoDelete time.Duration) *flowtest.Transport {
		f := flow.New("temp").MustAdd(flow.Definition{
			ID:                "done",
			Text:              "Done",
			Terminal:          true,
			EnterNotification: "Noted",
			NotificationStyle: flow.MessageTemp,
			AutoDelete:        autoDelete,
		})
		tr := flowtest.New()
		ok, err := f.Run(context.Background(), tr, 1, nil, "done")
		require.NoError(t, err)
		require.True(t, ok)
		return tr
	}

	t.Run("positive delay deletes", func(t *testing.T) {
		tr := run(10 * time.Millisecond)
		require.Len(t, tr.Ops("send"), 2)
		assert.Eventually(t, func() bool { return len(tr.Ops("delete")) == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("negative delay keeps the message", func(t *testing.T) {
		tr := run(-1)
		sends := tr.Ops("send")
		require.Len(t, sends, 2)
		assert.Equal(t, "Noted", sends[1].Text)
		assert.Never(t, func() bool { return len(tr.Ops("delete")) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	})
}

func mixedFlow() *flow.Flow {
	return flow.New("mixed").MustAdd(
		flow.Definition{
			ID:         "pick",
			Text:       "Pick or type",
			Type:       flow.StateMixed,
			Keyboard:   flow.Keyboard{{{Text: "Default", Data: "default"}}},
			NextStates: map[string]string{"default": "done"},
			OnInput: func(context.Context, string, *flow.State, any, int64) (string, error) {
				return "done", nil
			},
		},
		flow.Definition{
			ID: "done",
			TextFunc: func(_ context.Context, s *flow.State, _ any, _ int64) (string, error) {
				if v := s.GetString("pick"); v != "" {
					return "Typed " + v, nil
				}
				return "Default", nil
			},
			Terminal: true,
		},
	)
}

func TestRun_MixedAcceptsText(t *testing.T) {
	tr := flowtest.New(flowtest.Text("oat milk"))

	ok, err := mixedFlow().Run(context.Background(), tr, 1, nil, "pick")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Typed oat milk", tr.Last().Text)
	assert.Empty(t, tr.Ops("answer"))
}

func TestRun_MixedAcceptsButton(t *testing.T) {
	tr := flowtest.New(flowtest.Button("default"), flowtest.Text("ignored"))

	ok, err := mixedFlow().Run(context.Background(), tr, 1, nil, "pick")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Default", tr.Last().Text)
	assert.Len(t, tr.Ops("answer"), 1)
}

func TestFlow_AddRejectsBadDefinitions(t *testing.T) {
	cases := map[string]flow.Definition{
		"empty id":      {Text: "x"},
		"reserved id":   {ID: flow.Exit, Text: "x"},
		"no content":    {ID: "a"},
		"unknown type":  {ID: "a", Text: "x", Type: "voice"},
		"button input":  {ID: "a", Text: "x", OnInput: func(context.Context, string, *flow.State, any, int64) (string, error) { return "", nil }},
		"mixed no kb":   {ID: "a", Text: "x", Type: flow.StateMixed},
		"pager no item": {ID: "a", Text: "x", Pagination: &flow.PaginationConfig{}},
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			err := flow.New("bad").Add(def)
			assert.ErrorIs(t, err, flow.ErrConfiguration)
		})
	}

	f := flow.New("dup")
	require.NoError(t, f.Add(flow.Definition{ID: "a", Text: "x", Terminal: true}))
	assert.ErrorIs(t, f.Add(flow.Definition{ID: "a", Text: "y"}), flow.ErrConfiguration)
}

func TestFlow_AddFillsDefaults(t *testing.T) {
	f := flow.New("defaults").MustAdd(
		flow.Definition{ID: "b", Text: "x", Terminal: true},
		flow.Definition{ID: "t", Text: "x", Type: flow.StateText},
	)

	b, ok := f.Get("b")
	require.True(t, ok)
	assert.Equal(t, flow.StateButton, b.Type)
	assert.Equal(t, flow.ActionAuto, b.Action)
	assert.Equal(t, flow.DefaultTimeout, b.Timeout)
	assert.Equal(t, flow.PopupBrief, b.NotificationStyle)
	assert.Equal(t, flow.DefaultAutoDelete, b.AutoDelete)

	txt, _ := f.Get("t")
	assert.Equal(t, flow.DefaultInputTimeout, txt.Timeout)
	assert.Equal(t, flow.DefaultCancelKeywords, txt.CancelKeywords)
	assert.Equal(t, []string{"b", "t"}, f.States())
}

func TestFlow_Validate(t *testing.T) {
	dangling := flow.New("dangling").MustAdd(flow.Definition{
		ID:          "a",
		Text:        "x",
		NextStates:  map[string]string{"go": "nowhere"},
		ExitButtons: []string{"close"},
	})
	assert.ErrorIs(t, dangling.Validate(), flow.ErrConfiguration)

	trap := flow.New("trap").MustAdd(flow.Definition{
		ID:         "a",
		Text:       "x",
		NextStates: map[string]string{"go": "a"},
	})
	assert.ErrorIs(t, trap.Validate(), flow.ErrConfiguration)

	assert.ErrorIs(t, flow.New("empty").Validate(), flow.ErrConfiguration)
	assert.NoError(t, menuFlow(nil).Validate())
}

// blockingAwaiter waits until the context ends.
type blockingAwaiter struct{}

func (blockingAwaiter) AwaitButton(ctx context.Context, _ int64, _ time.Duration) (flow.ButtonPress, error) {
	<-ctx.Done()
	return flow.ButtonPress{}, ctx.Err()
}

func (blockingAwaiter) AwaitText(ctx context.Context, _ int64, _ time.Duration) (flow.TextReply, error) {
	<-ctx.Done()
	return flow.TextReply{}, ctx.Err()
}

func (blockingAwaiter) AwaitEither(ctx context.Context, _ int64, _ time.Duration) (flow.Input, error) {
	<-ctx.Done()
	return flow.Input{}, ctx.Err()
}
