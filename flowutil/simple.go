package flowutil

import (
	"context"
	"fmt"

	"github.com/0xVanfer/tg-flow/flow"
)

// Static returns a text builder that always yields text.
func Static(text string) flow.TextFunc {
	return func(context.Context, *flow.State, any, int64) (string, error) {
		return text, nil
	}
}

// FromData returns a text builder that yields the flow data value under key, formatted
// with %v, or def when the key is missing.
func FromData(key, def string) flow.TextFunc {
	return func(_ context.Context, s *flow.State, _ any, _ int64) (string, error) {
		v, ok := s.Get(key)
		if !ok {
			return def, nil
		}
		if str, ok := v.(string); ok {
			return str, nil
		}
		return fmt.Sprint(v), nil
	}
}

// YesNo returns a one row keyboard with yes and no buttons.
func YesNo() flow.Keyboard {
	return flow.Keyboard{{
		{Text: "✅ Yes", Data: "yes"},
		{Text: "❌ No", Data: "no"},
	}}
}

// Single returns a keyboard with one button.
func Single(text, data string) flow.Keyboard {
	return flow.Keyboard{{{Text: text, Data: data}}}
}
