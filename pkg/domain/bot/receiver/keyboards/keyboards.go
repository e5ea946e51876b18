package keyboards

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Keyboard collects rows of inline buttons.
type Keyboard struct {
	rows [][]tgbotapi.InlineKeyboardButton
}

func New() *Keyboard {
	return &Keyboard{}
}

func Button(text, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

// Marked prefixes the label of the selected button.
func Marked(selected bool, text string) string {
	if selected {
		return "• " + text
	}
	return text
}

// Row appends one row; empty rows are skipped.
func (k *Keyboard) Row(buttons ...tgbotapi.InlineKeyboardButton) *Keyboard {
	if len(buttons) > 0 {
		k.rows = append(k.rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return k
}

// Grid lays buttons out perRow to a row.
func (k *Keyboard) Grid(perRow int, buttons ...tgbotapi.InlineKeyboardButton) *Keyboard {
	if perRow < 1 {
		perRow = 1
	}
	for len(buttons) > 0 {
		n := perRow
		if n > len(buttons) {
			n = len(buttons)
		}
		k.Row(buttons[:n]...)
		buttons = buttons[n:]
	}
	return k
}

func (k *Keyboard) Len() int {
	return len(k.rows)
}

// Markup always carries a non-nil keyboard so an edit can clear old buttons.
func (k *Keyboard) Markup() tgbotapi.InlineKeyboardMarkup {
	rows := k.rows
	if rows == nil {
		rows = [][]tgbotapi.InlineKeyboardButton{}
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
