// Package flowutil contains builders for recurring flow patterns: navigation rows, button
// grids, formatted lists, confirmation and exit states, staged edits and money input.
package flowutil

import "github.com/0xVanfer/tg-flow/flow"

// Callback tokens of the navigation buttons.
const (
	BackData    = "back"
	PrevData    = "prev"
	NextData    = "next"
	CloseData   = "close"
	CancelData  = "cancel"
	ConfirmData = "confirm"
	DoneData    = "done"
	UndoData    = "undo"
	SaveData    = "save"
)

// Default labels of the navigation buttons.
const (
	BackText    = "◁ Back"
	PrevText    = "◁ Prev"
	NextText    = "Next ▷"
	CloseText   = "❌ Close"
	CancelText  = "❌ Cancel"
	ConfirmText = "✅ Confirm"
	UndoText    = "↩ Undo"
	SaveText    = "💾 Save"
)

// Row returns a keyboard row of buttons. Each navigation helper returns a row so it can
// be used as is or merged with another one:
//
//	kb := flow.Keyboard{
//		{{Text: "Option", Data: "opt"}},
//		flowutil.Row(flowutil.Back()[0], flowutil.Close()[0]),
//	}
func Row(buttons ...flow.Button) []flow.Button {
	return buttons
}

// Back returns a back button row.
func Back() []flow.Button { return Row(flow.Button{Text: BackText, Data: BackData}) }

// Prev returns a previous button row.
func Prev() []flow.Button { return Row(flow.Button{Text: PrevText, Data: PrevData}) }

// Next returns a next button row.
func Next() []flow.Button { return Row(flow.Button{Text: NextText, Data: NextData}) }

// Close returns a close button row.
func Close() []flow.Button { return Row(flow.Button{Text: CloseText, Data: CloseData}) }

// Cancel returns a cancel button row.
func Cancel() []flow.Button { return Row(flow.Button{Text: CancelText, Data: CancelData}) }

// Undo returns an undo button row.
func Undo() []flow.Button { return Row(flow.Button{Text: UndoText, Data: UndoData}) }

// Save returns a save button row.
func Save() []flow.Button { return Row(flow.Button{Text: SaveText, Data: SaveData}) }

// BackAndClose returns back and close in one row.
func BackAndClose() []flow.Button { return append(Back(), Close()...) }

// BackAndNext returns back and next in one row.
func BackAndNext() []flow.Button { return append(Back(), Next()...) }

// UndoAndSave returns undo and save in one row.
func UndoAndSave() []flow.Button { return append(Undo(), Save()...) }

// SaveAndCancel returns save and cancel in one row.
func SaveAndCancel() []flow.Button { return append(Save(), Cancel()...) }

// CancelAndConfirm returns cancel and confirm in one row.
func CancelAndConfirm() []flow.Button {
	return Row(flow.Button{Text: CancelText, Data: CancelData}, flow.Button{Text: ConfirmText, Data: ConfirmData})
}
