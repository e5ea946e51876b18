package notice

import (
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
)

// Level decides the marker the notice is rendered with.
type Level int

const (
	Info Level = iota
	Success
	Warning
	Danger
)

// Notice is an inline alert shown above a screen until the next action.
type Notice struct {
	Text  string
	Level Level
}

func (n Notice) Empty() bool { return n.Text == "" }

func New(level Level, text string) Notice {
	return Notice{Text: text, Level: level}
}

// FromError renders validation failures as warnings and everything else as errors.
// A non-empty prefix is joined with the user-facing message.
func FromError(prefix string, err error) Notice {
	if err == nil {
		return Notice{}
	}
	text := errs.Message(err)
	if prefix != "" {
		text = prefix + ": " + text
	}
	if errs.Is(err, errs.KindValidation) {
		return Notice{Text: text, Level: Warning}
	}
	return Notice{Text: text, Level: Danger}
}

// Icon is the emoji prefix used in chat messages.
func (n Notice) Icon() string {
	switch n.Level {
	case Success:
		return "✅"
	case Warning:
		return "⚠️"
	case Danger:
		return "❌"
	default:
		return "ℹ️"
	}
}
