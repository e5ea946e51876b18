package booking

import (
	"strconv"
	"time"

	"github.com/napryag/tg_desk_bot/pkg/repository/model"
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
)

// Tier is the display tier of a desk card for the selected date.
type Tier int

const (
	Available Tier = iota
	PartiallyBooked
	FullyBooked
)

// TierOf counts booked slots: none, one or both.
func TierOf(d model.Desk) Tier {
	booked := 0
	if !d.AvailabilitySlots.AM.IsFree() {
		booked++
	}
	if !d.AvailabilitySlots.PM.IsFree() {
		booked++
	}
	switch booked {
	case 0:
		return Available
	case 1:
		return PartiallyBooked
	default:
		return FullyBooked
	}
}

// Choice is what the user picks in the booking dialog.
type Choice string

const (
	ChoiceAM   Choice = "AM"
	ChoicePM   Choice = "PM"
	ChoiceFull Choice = "FULL"
)

// ParseChoice accepts only AM, PM or FULL.
func ParseChoice(s string) (Choice, error) {
	switch c := Choice(s); c {
	case ChoiceAM, ChoicePM, ChoiceFull:
		return c, nil
	}
	return "", errs.Validation("Неизвестный вариант времени").Arg("choice", s)
}

// Dialog is the booking dialog for one desk on one date. Slot states are the ones
// seen when the dialog was opened.
type Dialog struct {
	Desk   model.Desk
	Day    time.Time
	Choice Choice
	Err    error
}

// NewDialog preselects AM if free, else PM if free, else AM (disabled).
func NewDialog(desk model.Desk, day time.Time) *Dialog {
	d := &Dialog{Desk: desk, Day: day, Choice: ChoiceAM}
	slots := desk.AvailabilitySlots
	if !slots.AM.IsFree() && slots.PM.IsFree() {
		d.Choice = ChoicePM
	}
	return d
}

// Enabled reports whether c can be picked.
func (d *Dialog) Enabled(c Choice) bool {
	slots := d.Desk.AvailabilitySlots
	switch c {
	case ChoiceAM:
		return slots.AM.IsFree()
	case ChoicePM:
		return slots.PM.IsFree()
	case ChoiceFull:
		return slots.AM.IsFree() && slots.PM.IsFree()
	}
	return false
}

// Choose switches the selection; disabled options are refused.
func (d *Dialog) Choose(c Choice) error {
	if !d.Enabled(c) {
		return errs.Validation("Этот вариант уже занят").Arg("choice", string(c))
	}
	d.Choice = c
	d.Err = nil
	return nil
}

func (d *Dialog) CanSubmit() bool {
	return d.Enabled(d.Choice)
}

// Slots lists the slot bookings the current choice expands to, in call order.
func (d *Dialog) Slots() []model.TimeSlot {
	switch d.Choice {
	case ChoicePM:
		return []model.TimeSlot{model.SlotPM}
	case ChoiceFull:
		return []model.TimeSlot{model.SlotAM, model.SlotPM}
	default:
		return []model.TimeSlot{model.SlotAM}
	}
}

// SlotTitle is the Russian name of a half-day slot.
func SlotTitle(s model.TimeSlot) string {
	switch s {
	case model.SlotAM:
		return "Утро"
	case model.SlotPM:
		return "Вечер"
	}
	return string(s)
}

// DeskTitle falls back to the id when a desk has no name.
func DeskTitle(id int64, name string) string {
	if name != "" {
		return name
	}
	return "Стол " + strconv.FormatInt(id, 10)
}
