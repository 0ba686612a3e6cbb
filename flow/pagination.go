package flow

import (
	"context"
	"strconv"
	"strings"
)

// Pagination control tokens.
const (
	PagePrev = "page_prev"
	PageNext = "page_next"
	PageInfo = "page_info"
)

// PaginationConfig describes how a state lists a collection across pages.
type PaginationConfig struct {
	PageSize        int    // Items per page, defaults to 10
	ShowPageNumbers bool   // Show the page info button between prev and next
	PrevText        string // Defaults to "◀️ Previous"
	NextText        string // Defaults to "Next ▶️"
	CloseText       string // Label of the trailing close row, "" for none
	CloseData       string // Token of the close button, defaults to "close"
	PageInfoFormat  string // Supports {current} and {total}, defaults to "Page {current}/{total}"

	Items      ItemsFunc                        // Fetches the whole collection
	FormatItem func(item any, index int) string // Text line per item, optional
	ItemButton func(item any, index int) Button // Button row per item, optional
}

// DefaultPagination returns a config with the default labels.
func DefaultPagination(items ItemsFunc) *PaginationConfig {
	p := &PaginationConfig{
		ShowPageNumbers: true,
		CloseText:       "❌ Close",
		Items:           items,
	}
	p.normalize()
	return p
}

func (p *PaginationConfig) normalize() {
	if p.PageSize <= 0 {
		p.PageSize = 10
	}
	if p.PrevText == "" {
		p.PrevText = "◀️ Previous"
	}
	if p.NextText == "" {
		p.NextText = "Next ▶️"
	}
	if p.CloseData == "" {
		p.CloseData = "close"
	}
	if p.PageInfoFormat == "" {
		p.PageInfoFormat = "Page {current}/{total}"
	}
}

// Page is one rendered slice of a paginated collection.
type Page struct {
	Index int   // Zero based page index after clamping
	Total int   // Number of pages, at least 1
	Items []any // Items on this page
	First int   // Index of Items[0] in the whole collection
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Index > 0 }

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool { return p.Index < p.Total-1 }

// Paginate slices items into the page at index, clamping index to valid bounds.
func Paginate(items []any, index, size int) Page {
	if size <= 0 {
		size = 10
	}
	total := (len(items) + size - 1) / size
	if total == 0 {
		total = 1
	}
	if index >= total {
		index = total - 1
	}
	if index < 0 {
		index = 0
	}
	start := index * size
	end := min(start+size, len(items))
	if start > end {
		start = end
	}
	return Page{Index: index, Total: total, Items: items[start:end], First: start}
}

func pageKey(stateID string) string  { return "__page:" + stateID }
func itemsKey(stateID string) string { return "__items:" + stateID }

// resetPage drops the page index and cached items of a state.
func resetPage(s *State, stateID string) {
	s.Clear(pageKey(stateID), itemsKey(stateID))
}

// turnPage moves the page index of a state by delta.
func turnPage(s *State, stateID string, delta int) {
	s.Set(pageKey(stateID), s.GetInt(pageKey(stateID))+delta)
}

// renderPage fetches (or reuses) the collection and returns the text and keyboard additions
// for the current page.
func (p *PaginationConfig) renderPage(ctx context.Context, d *Definition, s *State, api any, userID int64) (string, Keyboard, error) {
	var items []any
	if cached, ok := s.Get(itemsKey(d.ID)); ok {
		items, _ = cached.([]any)
	} else {
		fetched, err := p.Items(ctx, s, api, userID)
		if err != nil {
			return "", nil, err
		}
		items = fetched
		s.Set(itemsKey(d.ID), items)
	}

	page := Paginate(items, s.GetInt(pageKey(d.ID)), p.PageSize)
	s.Set(pageKey(d.ID), page.Index)

	var lines []string
	var kb Keyboard
	for i, item := range page.Items {
		idx := page.First + i
		if p.FormatItem != nil {
			lines = append(lines, p.FormatItem(item, idx))
		}
		if p.ItemButton != nil {
			kb = append(kb, []Button{p.ItemButton(item, idx)})
		}
	}

	var nav []Button
	if page.HasPrev() {
		nav = append(nav, Button{Text: p.PrevText, Data: PagePrev})
	}
	if p.ShowPageNumbers && page.Total > 1 {
		info := strings.NewReplacer(
			"{current}", strconv.Itoa(page.Index+1),
			"{total}", strconv.Itoa(page.Total),
		).Replace(p.PageInfoFormat)
		nav = append(nav, Button{Text: info, Data: PageInfo})
	}
	if page.HasNext() {
		nav = append(nav, Button{Text: p.NextText, Data: PageNext})
	}
	if len(nav) > 0 {
		kb = append(kb, nav)
	}
	return strings.Join(lines, "\n"), kb, nil
}

// RefreshItems drops the cached collection of a paginated state so the next render
// fetches it again. The page index is kept and clamped if the collection shrank.
func RefreshItems(s *State, stateID string) {
	s.Clear(itemsKey(stateID))
}
