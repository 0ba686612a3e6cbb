package core

import (
	"fmt"
	"html"
	"strings"
)

// Builder assembles HTML formatted message text. Every piece of caller text is escaped,
// so values coming from users or the database are safe to pass in.
type Builder struct {
	text strings.Builder
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) wrap(tag, text string) *Builder {
	fmt.Fprintf(&b.text, "<%s>%s</%s>", tag, html.EscapeString(text), tag)
	return b
}

// Text appends plain text.
func (b *Builder) Text(text string) *Builder {
	b.text.WriteString(html.EscapeString(text))
	return b
}

// Raw appends text that is already valid HTML.
func (b *Builder) Raw(markup string) *Builder {
	b.text.WriteString(markup)
	return b
}

// Line appends text followed by a newline.
func (b *Builder) Line(text string) *Builder {
	return b.Text(text).Ln()
}

// Ln appends a newline.
func (b *Builder) Ln() *Builder {
	b.text.WriteByte('\n')
	return b
}

// Bold appends bold text.
func (b *Builder) Bold(text string) *Builder { return b.wrap("b", text) }

// Italic appends italic text.
func (b *Builder) Italic(text string) *Builder { return b.wrap("i", text) }

// Code appends inline monospace text.
func (b *Builder) Code(text string) *Builder { return b.wrap("code", text) }

// Pre appends a monospace block.
func (b *Builder) Pre(text string) *Builder { return b.wrap("pre", text) }

// Strikethrough appends crossed out text.
func (b *Builder) Strikethrough(text string) *Builder { return b.wrap("s", text) }

// Link appends a hyperlink.
func (b *Builder) Link(text, url string) *Builder {
	fmt.Fprintf(&b.text, `<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(text))
	return b
}

// Header appends a bold line followed by a blank line.
func (b *Builder) Header(text string) *Builder {
	return b.Bold(text).Ln().Ln()
}

// KeyValue appends "key: value" with a bold key.
func (b *Builder) KeyValue(key, value string) *Builder {
	return b.Bold(key + ": ").Line(value)
}

// List appends a bulleted list.
func (b *Builder) List(items ...string) *Builder {
	for _, item := range items {
		b.Text("• ").Line(item)
	}
	return b
}

// NumberedList appends a numbered list.
func (b *Builder) NumberedList(items ...string) *Builder {
	for i, item := range items {
		b.Text(fmt.Sprintf("%d. ", i+1)).Line(item)
	}
	return b
}

// Separator appends a horizontal rule.
func (b *Builder) Separator() *Builder {
	return b.Line("━━━━━━━━━━━━━━━")
}

// Len returns the length of the built text in bytes.
func (b *Builder) Len() int {
	return b.text.Len()
}

// String returns the built text without trailing newlines.
func (b *Builder) String() string {
	return strings.TrimRight(b.text.String(), "\n")
}
