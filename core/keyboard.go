package core

import (
	"strings"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoutil"

	"github.com/0xVanfer/tg-flow/flow"
)

// MaxCallbackData is Telegram's limit for callback data, in bytes.
const MaxCallbackData = 64

// Markup converts a flow keyboard into a telego inline keyboard.
// An empty keyboard yields nil, which removes buttons on edit.
func Markup(kb flow.Keyboard) *telego.InlineKeyboardMarkup {
	if kb.Len() == 0 {
		return nil
	}
	rows := make([][]telego.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		if len(row) == 0 {
			continue
		}
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, Button(b))
		}
		rows = append(rows, buttons)
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// Button converts a single flow button. Callback data longer than Telegram allows is
// cut at MaxCallbackData bytes.
func Button(b flow.Button) telego.InlineKeyboardButton {
	if b.URL != "" {
		return telegoutil.InlineKeyboardButton(b.Text).WithURL(b.URL)
	}
	data := b.Data
	if len(data) > MaxCallbackData {
		data = data[:MaxCallbackData]
	}
	return telegoutil.InlineKeyboardButton(b.Text).WithCallbackData(data)
}

// ParseCallbackData strips prefix from data.
func ParseCallbackData(data, prefix string) string {
	return strings.TrimPrefix(data, prefix)
}
