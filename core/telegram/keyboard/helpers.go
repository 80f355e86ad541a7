// Package keyboard builds reply keyboards for conversation prompts.
package keyboard

import tele "gopkg.in/telebot.v4"

// DefaultPerRow is the number of buttons placed on one keyboard row.
const DefaultPerRow = 2

// RemoveKeyboard returns a markup that hides the keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true, Selective: true}
}

// ReplyButtons builds a resizable reply keyboard from rows of labels.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, Selective: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// ReplyLabels lays out labels with up to n per row.
func ReplyLabels(labels []string, n int) *tele.ReplyMarkup {
	return ReplyButtons(Chunk(labels, n)...)
}

// Chunk splits labels into rows with up to n entries each; n <= 1 puts one per row.
func Chunk(labels []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	rows := make([][]string, 0, (len(labels)+n-1)/n)
	for i := 0; i < len(labels); i += n {
		end := min(i+n, len(labels))
		rows = append(rows, labels[i:end])
	}
	return rows
}
