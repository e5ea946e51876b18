package week

import (
	"time"

	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
)

// WorkDays is the number of selectable days shown for a week (Monday to Friday).
const WorkDays = 5

// Direction of week paging.
type Direction int

const (
	Prev Direction = -1
	Next Direction = 1
)

// Midnight drops the time of day, keeping the calendar date in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MondayOf returns midnight of the Monday of the week containing t.
func MondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return Midnight(t).AddDate(0, 0, -offset)
}

// InitialSelectedDate skips a weekend to the next Monday; weekdays are kept as is.
func InitialSelectedDate(today time.Time) time.Time {
	switch today.Weekday() {
	case time.Saturday:
		return MondayOf(today.AddDate(0, 0, 2))
	case time.Sunday:
		return MondayOf(today.AddDate(0, 0, 1))
	default:
		return Midnight(today)
	}
}

// SameDay compares calendar dates only.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Day is one button of the day selector.
type Day struct {
	Date     time.Time
	Selected bool
	Today    bool
}

// Navigator keeps the visible week and the selected day.
type Navigator struct {
	weekStart time.Time
	selected  time.Time
	now       func() time.Time
}

// New opens the navigator on the week of InitialSelectedDate(now()).
func New(now func() time.Time) *Navigator {
	if now == nil {
		now = time.Now
	}
	selected := InitialSelectedDate(now())
	return &Navigator{
		weekStart: MondayOf(selected),
		selected:  selected,
		now:       now,
	}
}

func (n *Navigator) WeekStart() time.Time { return n.weekStart }

func (n *Navigator) WeekEnd() time.Time { return n.weekStart.AddDate(0, 0, WorkDays-1) }

func (n *Navigator) Selected() time.Time { return n.selected }

// Page moves the window by one week and resets the selection to its Monday.
func (n *Navigator) Page(dir Direction) {
	if dir != Prev {
		dir = Next
	}
	n.weekStart = MondayOf(n.weekStart.AddDate(0, 0, 7*int(dir)))
	n.selected = n.weekStart
}

// Select picks one of the visible weekdays.
func (n *Navigator) Select(day time.Time) error {
	for i := 0; i < WorkDays; i++ {
		d := n.weekStart.AddDate(0, 0, i)
		if SameDay(d, day) {
			n.selected = d
			return nil
		}
	}
	return errs.Validation("Выберите день текущей недели").Arg("day", day.Format("2006-01-02"))
}

// Days returns the five buttons Monday..Friday of the visible week.
func (n *Navigator) Days() []Day {
	today := Midnight(n.now().In(n.weekStart.Location()))
	days := make([]Day, 0, WorkDays)
	for i := 0; i < WorkDays; i++ {
		d := n.weekStart.AddDate(0, 0, i)
		days = append(days, Day{
			Date:     d,
			Selected: SameDay(d, n.selected),
			Today:    SameDay(d, today),
		})
	}
	return days
}
