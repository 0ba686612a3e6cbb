package core

import (
	"unicode/utf16"
)

// MaxMessageLength is Telegram's message limit in UTF-16 code units.
const MaxMessageLength = 4096

// ellipsis marks text cut by FitMessage.
const ellipsis = "\n…"

// FitMessage returns text unchanged when it fits into one message. Longer text is cut at
// the last line break that fits, so HTML tags opened and closed on one line stay balanced.
func FitMessage(text string) string {
	if UTF16Length(text) <= MaxMessageLength {
		return text
	}

	limit := MaxMessageLength - UTF16Length(ellipsis)
	runes := []rune(text)
	units, cut, lastBreak := 0, 0, -1
	for i, r := range runes {
		units += len(utf16.Encode([]rune{r}))
		if units > limit {
			break
		}
		cut = i + 1
		if r == '\n' {
			lastBreak = i
		}
	}
	if lastBreak > 0 {
		cut = lastBreak
	}
	return string(runes[:cut]) + ellipsis
}

// UTF16Length returns the length of s in UTF-16 code units, the unit Telegram counts in.
func UTF16Length(s string) int {
	return len(utf16.Encode([]rune(s)))
}
