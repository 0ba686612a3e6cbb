package flowutil

import (
	"github.com/mattn/go-runewidth"

	"github.com/0xVanfer/tg-flow/core"
)

// DefaultEmptyMessage is shown by ListBuilder when there is nothing to list.
const DefaultEmptyMessage = "No items found"

// valueWidth is the column width of right aligned values.
const valueWidth = 10

// Entry is one "label: value" line.
type Entry struct {
	Label string
	Value string
}

// Group is a titled block of entries with an optional subtotal.
type Group struct {
	Name    string
	Entries []Entry
	Summary string
}

// ListBuilder formats entries as HTML message text.
type ListBuilder struct {
	// EmptyMessage replaces the entries when there are none.
	EmptyMessage string

	// AlignValues renders entries in monospace with labels padded and values right aligned.
	AlignValues bool
}

// NewListBuilder creates a builder with the default empty message.
func NewListBuilder() *ListBuilder {
	return &ListBuilder{EmptyMessage: DefaultEmptyMessage}
}

// Build renders an optional bold title, the entries and an optional bold summary.
func (l *ListBuilder) Build(title string, entries []Entry, summary string) string {
	b := core.NewBuilder()
	if title != "" {
		b.Header(title)
	}
	if len(entries) == 0 {
		b.Line(l.emptyMessage())
	} else {
		l.entries(b, "", entries)
	}
	if summary != "" {
		b.Ln().Bold(summary)
	}
	return b.String()
}

// BuildGrouped renders groups in order, each with its entries and subtotal, followed by
// an optional overall summary.
func (l *ListBuilder) BuildGrouped(title string, groups []Group, summary string) string {
	b := core.NewBuilder()
	if title != "" {
		b.Header(title)
	}
	if len(groups) == 0 {
		b.Line(l.emptyMessage())
	}
	for _, g := range groups {
		b.Bold(g.Name).Ln()
		l.entries(b, "  ", g.Entries)
		if g.Summary != "" {
			b.Text("  ").Bold(g.Summary).Ln()
		}
		b.Ln()
	}
	if summary != "" {
		b.Bold(summary)
	}
	return b.String()
}

func (l *ListBuilder) entries(b *core.Builder, indent string, entries []Entry) {
	if !l.AlignValues {
		for _, e := range entries {
			b.Text(indent + "• " + e.Label + ": " + e.Value).Ln()
		}
		return
	}

	width := 0
	for _, e := range entries {
		width = max(width, runewidth.StringWidth(e.Label))
	}
	for _, e := range entries {
		line := runewidth.FillRight(e.Label, width) + "  " + runewidth.FillLeft(e.Value, valueWidth)
		b.Text(indent + "• ").Code(line).Ln()
	}
}

func (l *ListBuilder) emptyMessage() string {
	if l.EmptyMessage == "" {
		return DefaultEmptyMessage
	}
	return l.EmptyMessage
}
