package flowutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xVanfer/tg-flow/core"
	"github.com/0xVanfer/tg-flow/flow"
)

// DynamicList is the "list items, pick one, show details" pattern. It builds the list
// state; the detail state is added by the caller and reads the pick with SelectedID.
//
// Item buttons must carry "prefix:id" data; the part after the first colon is the id.
type DynamicList struct {
	ListID       string
	DetailID     string
	BackState    string // Target of the back button, defaults to "main"
	Fetch        flow.ItemsFunc
	ItemButton   func(item any) flow.Button
	PerRow       int    // Defaults to 2
	Title        string // Defaults to "Select an item:"
	EmptyMessage string // Defaults to DefaultEmptyMessage
}

func (l *DynamicList) cacheKey() string    { return l.ListID + "_items" }
func (l *DynamicList) selectedKey() string { return l.DetailID + "_selected_id" }

// SelectedID returns the id picked in the list.
func (l *DynamicList) SelectedID(s *flow.State) string {
	return s.GetString(l.selectedKey())
}

// Invalidate drops the cached items so the list fetches them again.
func (l *DynamicList) Invalidate(s *flow.State) {
	Invalidate(s, l.cacheKey())
}

func (l *DynamicList) items(ctx context.Context, s *flow.State, api any, userID int64) ([]any, error) {
	return GetOrFetch(ctx, s, l.cacheKey(), func(ctx context.Context) ([]any, error) {
		return l.Fetch(ctx, s, api, userID)
	})
}

// State builds the list state.
func (l *DynamicList) State() flow.Definition {
	back := l.BackState
	if back == "" {
		back = "main"
	}
	title := l.Title
	if title == "" {
		title = "Select an item:"
	}
	empty := l.EmptyMessage
	if empty == "" {
		empty = DefaultEmptyMessage
	}

	return flow.Definition{
		ID:     l.ListID,
		Action: flow.ActionEdit,
		TextFunc: func(ctx context.Context, s *flow.State, api any, userID int64) (string, error) {
			items, err := l.items(ctx, s, api, userID)
			if err != nil {
				return "", err
			}
			if len(items) == 0 {
				return empty, nil
			}
			return core.NewBuilder().Header(title).Text(fmt.Sprintf("%d item(s) available", len(items))).String(), nil
		},
		KeyboardFunc: func(ctx context.Context, s *flow.State, api any, userID int64) (flow.Keyboard, error) {
			items, err := l.items(ctx, s, api, userID)
			if err != nil {
				return nil, err
			}
			buttons := make([]flow.Button, 0, len(items))
			for _, item := range items {
				buttons = append(buttons, l.ItemButton(item))
			}
			return NewGrid(l.PerRow).Build(buttons, nil, flow.Keyboard{Back()}), nil
		},
		OnButton: func(_ context.Context, data string, s *flow.State, _ any, _ int64) (string, error) {
			_, id, ok := strings.Cut(data, ":")
			if !ok {
				return "", nil
			}
			s.Set(l.selectedKey(), id)
			return l.DetailID, nil
		},
		NextStates: map[string]string{BackData: back},
	}
}

// AddTo registers the list state on f.
func (l *DynamicList) AddTo(f *flow.Flow) error {
	return f.Add(l.State())
}
