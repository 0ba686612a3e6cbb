package flow_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xVanfer/tg-flow/flow"
	"github.com/0xVanfer/tg-flow/flow/flowtest"
)

func numbers(n int) []any {
	items := make([]any, n)
	for i := range items {
		items[i] = i + 1
	}
	return items
}

func tokens(kb flow.Keyboard) []string {
	var out []string
	for _, row := range kb {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

func TestPaginate(t *testing.T) {
	items := numbers(25)

	p := flow.Paginate(items, 0, 10)
	assert.Equal(t, 3, p.Total)
	assert.Len(t, p.Items, 10)
	assert.False(t, p.HasPrev())
	assert.True(t, p.HasNext())

	p = flow.Paginate(items, 2, 10)
	assert.Len(t, p.Items, 5)
	assert.Equal(t, 20, p.First)
	assert.True(t, p.HasPrev())
	assert.False(t, p.HasNext())

	// Out of range indexes are clamped.
	assert.Equal(t, 2, flow.Paginate(items, 9, 10).Index)
	assert.Equal(t, 0, flow.Paginate(items, -3, 10).Index)

	empty := flow.Paginate(nil, 4, 10)
	assert.Equal(t, 1, empty.Total)
	assert.Equal(t, 0, empty.Index)
	assert.Empty(t, empty.Items)
}

func pagedFlow(fetches *int, obs flow.Observer) *flow.Flow {
	pager := flow.DefaultPagination(func(context.Context, *flow.State, any, int64) ([]any, error) {
		*fetches++
		return numbers(25), nil
	})
	pager.FormatItem = func(item any, index int) string {
		return fmt.Sprintf("%d. item %v", index+1, item)
	}
	return flow.New("paged", flow.WithObserver(obs)).MustAdd(flow.Definition{
		ID:         "list",
		Text:       "Coffees",
		Pagination: pager,
	})
}

func TestRun_Pagination(t *testing.T) {
	fetches := 0
	obs := &recorder{}
	tr := flowtest.New(
		flowtest.Button(flow.PageNext),
		flowtest.Button(flow.PageNext),
		flowtest.Button(flow.PagePrev),
		flowtest.Button("close"),
	)

	ok, err := pagedFlow(&fetches, obs).Run(context.Background(), tr, 1, nil, "list")
	require.NoError(t, err)
	assert.True(t, ok)

	var screens []flowtest.Call
	for _, c := range tr.Calls() {
		if (c.Op == "send" || c.Op == "edit") && c.Keyboard != nil {
			screens = append(screens, c)
		}
	}
	require.Len(t, screens, 4)

	assert.Equal(t, []string{flow.PageInfo, flow.PageNext, "close"}, tokens(screens[0].Keyboard))
	assert.Equal(t, "Page 1/3", screens[0].Keyboard[0][0].Text)
	assert.True(t, strings.HasPrefix(screens[0].Text, "Coffees\n\n1. item 1\n"))
	assert.Equal(t, 11, strings.Count(screens[0].Text, "\n"))

	assert.Equal(t, []string{flow.PagePrev, flow.PageInfo, flow.PageNext, "close"}, tokens(screens[1].Keyboard))

	assert.Equal(t, []string{flow.PagePrev, flow.PageInfo, "close"}, tokens(screens[2].Keyboard))
	assert.Contains(t, screens[2].Text, "25. item 25")
	assert.NotContains(t, screens[2].Text, "20. item 20")

	assert.Equal(t, "Page 2/3", screens[3].Keyboard[0][1].Text)

	assert.Equal(t, 1, fetches, "items are cached while the state is active")
	assert.Equal(t, []string{"list"}, obs.entered)
}

func TestRun_PaginationItemButtons(t *testing.T) {
	var picked string
	pager := flow.DefaultPagination(func(context.Context, *flow.State, any, int64) ([]any, error) {
		return []any{"latte", "mocha"}, nil
	})
	pager.ItemButton = func(item any, _ int) flow.Button {
		return flow.Button{Text: item.(string), Data: "pick:" + item.(string)}
	}
	f := flow.New("menu").MustAdd(flow.Definition{
		ID:         "list",
		Text:       "Menu",
		Pagination: pager,
		OnButton: func(_ context.Context, data string, _ *flow.State, _ any, _ int64) (string, error) {
			picked = strings.TrimPrefix(data, "pick:")
			return flow.Exit, nil
		},
	})
	tr := flowtest.New(flowtest.Button("pick:mocha"))

	ok, err := f.Run(context.Background(), tr, 1, nil, "list")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "mocha", picked)

	// One row per item, no navigation on a single page, then close.
	kb := tr.Ops("send")[0].Keyboard
	require.Len(t, kb, 3)
	assert.Equal(t, "pick:latte", kb[0][0].Data)
	assert.Equal(t, "pick:mocha", kb[1][0].Data)
	assert.Equal(t, "close", kb[2][0].Data)
}

func TestRun_PageResetsOnReentry(t *testing.T) {
	fetches := 0
	pager := flow.DefaultPagination(func(context.Context, *flow.State, any, int64) ([]any, error) {
		fetches++
		return numbers(25), nil
	})
	f := flow.New("reentry").MustAdd(
		flow.Definition{
			ID:          "home",
			Text:        "Home",
			Keyboard:    flow.Keyboard{{{Text: "List", Data: "list"}}},
			NextStates:  map[string]string{"list": "list"},
			ExitButtons: []string{"bye"},
		},
		flow.Definition{
			ID:         "list",
			Text:       "List",
			Pagination: pager,
			Keyboard:   flow.Keyboard{{{Text: "Back", Data: "back"}}},
			BackButton: "back",
		},
	)
	tr := flowtest.New(
		flowtest.Button("list"),
		flowtest.Button(flow.PageNext),
		flowtest.Button("back"),
		flowtest.Button("list"),
		flowtest.Button("back"),
		flowtest.Button("bye"),
	)

	ok, err := f.Run(context.Background(), tr, 1, nil, "home")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, fetches)

	var pages []string
	for _, c := range tr.Calls() {
		for _, row := range c.Keyboard {
			for _, b := range row {
				if b.Data == flow.PageInfo {
					pages = append(pages, b.Text)
				}
			}
		}
	}
	assert.Equal(t, []string{"Page 1/3", "Page 2/3", "Page 1/3"}, pages)
}

func TestRun_PageSurvivesBack(t *testing.T) {
	fetches := 0
	pager := flow.DefaultPagination(func(context.Context, *flow.State, any, int64) ([]any, error) {
		fetches++
		return numbers(25), nil
	})
	f := flow.New("detail").MustAdd(
		flow.Definition{
			ID:          "list",
			Text:        "List",
			Pagination:  pager,
			Keyboard:    flow.Keyboard{{{Text: "Open", Data: "open"}}},
			NextStates:  map[string]string{"open": "detail"},
			ExitButtons: []string{"close"},
		},
		flow.Definition{
			ID:         "detail",
			Text:       "Item",
			Keyboard:   flow.Keyboard{{{Text: "Back", Data: "back"}}},
			BackButton: "back",
		},
	)
	tr := flowtest.New(
		flowtest.Button(flow.PageNext),
		flowtest.Button("open"),
		flowtest.Button("back"),
		flowtest.Button("close"),
	)

	ok, err := f.Run(context.Background(), tr, 1, nil, "list")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, fetches, "items are reused after back")

	var pages []string
	for _, c := range tr.Calls() {
		for _, row := range c.Keyboard {
			for _, b := range row {
				if b.Data == flow.PageInfo {
					pages = append(pages, b.Text)
				}
			}
		}
	}
	assert.Equal(t, []string{"Page 1/3", "Page 2/3", "Page 2/3"}, pages)
}
