package flowutil_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xVanfer/tg-flow/flow"
	"github.com/0xVanfer/tg-flow/flow/flowtest"
	"github.com/0xVanfer/tg-flow/flowutil"
)

func TestConfirmation_Run(t *testing.T) {
	f := flow.New("delete").MustAdd(
		flow.Definition{
			ID:          "main",
			Text:        "Credit #4",
			Keyboard:    flow.Keyboard{{{Text: "Delete", Data: "delete"}}, flowutil.Close()},
			NextStates:  map[string]string{"delete": "confirm"},
			ExitButtons: []string{flowutil.CloseData},
		},
		flowutil.Confirmation{
			ID:           "confirm",
			Question:     "Delete this credit?",
			Warning:      "This cannot be undone.",
			ConfirmState: flowutil.SuccessID,
			CancelState:  flowutil.CancelledID,
		}.State(),
		flowutil.Success("", ""),
		flowutil.Cancelled("", ""),
	)

	tr := flowtest.New(flowtest.Button("delete"), flowtest.Button(flowutil.ConfirmData))
	ok, err := f.Run(context.Background(), tr, 1, nil, "main")
	require.NoError(t, err)
	assert.True(t, ok)

	edits := tr.Ops("edit")
	require.Len(t, edits, 2)
	assert.Equal(t, "<b>⚠️ Confirmation Required</b>\n\nDelete this credit?\n\nThis cannot be undone.", edits[0].Text)
	assert.Equal(t, 2, edits[0].Keyboard.Len())
	assert.Equal(t, "<b>✅ Success</b>\n\nOperation completed successfully.", edits[1].Text)
	assert.Nil(t, edits[1].Keyboard, "exit states remove the buttons")
}

func TestConfirmation_Cancel(t *testing.T) {
	f := flow.New("delete").MustAdd(
		flowutil.Confirmation{ID: "confirm", Question: "Sure?", ConfirmState: "done", CancelState: "stop"}.State(),
		flowutil.ExitState("done", "Done"),
		flowutil.Cancelled("stop", "Stopped"),
	)

	tr := flowtest.New(flowtest.Button(flowutil.CancelData))
	ok, err := f.Run(context.Background(), tr, 1, nil, "confirm")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Stopped", tr.Last().Text)
}

func TestMakeState(t *testing.T) {
	input := func(context.Context, string, *flow.State, any, int64) (string, error) { return "", nil }

	d, err := flowutil.MakeState(flow.Definition{ID: "a", Text: "A"})
	require.NoError(t, err)
	assert.Equal(t, flow.StateButton, d.Type)
	assert.Equal(t, []string{"close", "cancel", "done"}, d.ExitButtons)

	d, err = flowutil.MakeState(flow.Definition{ID: "b", Text: "B", OnInput: input})
	require.NoError(t, err)
	assert.Equal(t, flow.StateText, d.Type)

	d, err = flowutil.MakeState(flow.Definition{ID: "c", Text: "C", OnInput: input, Keyboard: flowutil.YesNo(), ExitButtons: []string{}})
	require.NoError(t, err)
	assert.Equal(t, flow.StateMixed, d.Type)
	assert.Empty(t, d.ExitButtons)

	_, err = flowutil.MakeState(flow.Definition{ID: "d"})
	assert.Error(t, err)

	_, err = flowutil.MakeState(flow.Definition{ID: "e", Text: "E", TextFunc: flowutil.Static("E")})
	assert.Error(t, err)

	assert.Panics(t, func() {
		flowutil.MustMakeState(flow.Definition{ID: "f", Text: "F", Keyboard: flowutil.YesNo(), KeyboardFunc: func(context.Context, *flow.State, any, int64) (flow.Keyboard, error) { return nil, nil }})
	})
}

func TestTextBuilders(t *testing.T) {
	s := flow.NewState("run", 1)
	s.Set("name", "Ada")
	s.Set("cups", 3)

	text, err := flowutil.Static("hi")(context.Background(), s, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	text, _ = flowutil.FromData("name", "-")(context.Background(), s, nil, 1)
	assert.Equal(t, "Ada", text)
	text, _ = flowutil.FromData("cups", "-")(context.Background(), s, nil, 1)
	assert.Equal(t, "3", text)
	text, _ = flowutil.FromData("missing", "-")(context.Background(), s, nil, 1)
	assert.Equal(t, "-", text)
}

func TestDynamicList(t *testing.T) {
	fetches := 0
	list := &flowutil.DynamicList{
		ListID:   "coffees",
		DetailID: "coffee",
		Fetch: func(context.Context, *flow.State, any, int64) ([]any, error) {
			fetches++
			return []any{"1", "2", "3"}, nil
		},
		ItemButton: func(item any) flow.Button {
			return flow.Button{Text: "Coffee " + item.(string), Data: "coffee:" + item.(string)}
		},
	}

	f := flow.New("browse")
	require.NoError(t, f.Add(flow.Definition{
		ID:          "main",
		Text:        "Main",
		Keyboard:    flowutil.Single("Browse", "browse"),
		NextStates:  map[string]string{"browse": "coffees"},
		ExitButtons: []string{flowutil.CloseData},
	}))
	require.NoError(t, list.AddTo(f))
	require.NoError(t, f.Add(flowutil.ExitStateFunc("coffee", func(_ context.Context, s *flow.State, _ any, _ int64) (string, error) {
		return fmt.Sprintf("Coffee %s", list.SelectedID(s)), nil
	})))

	tr := flowtest.New(flowtest.Button("browse"), flowtest.Button("coffee:2"))
	ok, err := f.Run(context.Background(), tr, 1, nil, "main")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, "Coffee 2", tr.Last().Text)

	screen := tr.Ops("edit")[0]
	assert.Equal(t, "<b>Select an item:</b>\n\n3 item(s) available", screen.Text)
	require.Len(t, screen.Keyboard, 3)
	assert.Len(t, screen.Keyboard[0], 2)
	assert.Equal(t, flowutil.BackData, screen.Keyboard[2][0].Data)
}

func TestDynamicList_Back(t *testing.T) {
	list := &flowutil.DynamicList{
		ListID:       "coffees",
		DetailID:     "coffee",
		EmptyMessage: "No coffee yet",
		Fetch: func(context.Context, *flow.State, any, int64) ([]any, error) {
			return nil, nil
		},
		ItemButton: func(any) flow.Button { return flow.Button{} },
	}
	f := flow.New("browse").MustAdd(
		flow.Definition{
			ID:          "main",
			Text:        "Main",
			Keyboard:    flowutil.Single("Browse", "browse"),
			NextStates:  map[string]string{"browse": "coffees"},
			ExitButtons: []string{flowutil.CloseData},
		},
		list.State(),
	)

	tr := flowtest.New(flowtest.Button("browse"), flowtest.Button(flowutil.BackData), flowtest.Button(flowutil.CloseData))
	ok, err := f.Run(context.Background(), tr, 1, nil, "main")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "No coffee yet", tr.Ops("edit")[0].Text)
	assert.Equal(t, "Main", tr.Last().Text)
}
