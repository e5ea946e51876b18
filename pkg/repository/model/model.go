package model

import (
	"context"
	"strings"
	"time"
)

// DateFormat is the calendar date format used on the wire.
const DateFormat = "2006-01-02"

// Identity is who the bot acts for: the Telegram user or the fallback identity.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

type UserProfile struct {
	TgID                 int64  `json:"tg_id"`
	DisplayName          string `json:"display_name"`
	TelegramUsername     string `json:"telegram_username"`
	TelegramFirstName    string `json:"telegram_first_name"`
	TelegramLastName     string `json:"telegram_last_name"`
	EffectiveDisplayName string `json:"effective_display_name"`
}

// IsComplete reports whether the user already picked a display name.
func (p *UserProfile) IsComplete() bool {
	return p != nil && strings.TrimSpace(p.DisplayName) != ""
}

// HasAnyName reports whether other users would see some name for this profile.
func (p *UserProfile) HasAnyName() bool {
	return p != nil && (strings.TrimSpace(p.DisplayName) != "" || p.TelegramFirstName != "")
}

// Name is the name shown in greetings: effective name from the server, or a local fallback.
func (p *UserProfile) Name() string {
	switch {
	case p == nil:
		return ""
	case p.EffectiveDisplayName != "":
		return p.EffectiveDisplayName
	case strings.TrimSpace(p.DisplayName) != "":
		return strings.TrimSpace(p.DisplayName)
	case p.TelegramFirstName != "":
		return strings.TrimSpace(p.TelegramFirstName + " " + p.TelegramLastName)
	default:
		return p.TelegramUsername
	}
}

type Office struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TimeSlot is one of the two bookable halves of a day.
type TimeSlot string

const (
	SlotAM TimeSlot = "AM"
	SlotPM TimeSlot = "PM"
)

type SlotStatus string

const (
	StatusFree   SlotStatus = "free"
	StatusBooked SlotStatus = "booked"
)

type SlotAvailability struct {
	Status          SlotStatus `json:"status"`
	UserDisplayName string     `json:"user_display_name,omitempty"`
}

func (s SlotAvailability) IsFree() bool {
	return s.Status == StatusFree
}

// Occupant is the name of whoever holds the slot; empty while the slot is free.
func (s SlotAvailability) Occupant() string {
	if s.Status != StatusBooked {
		return ""
	}
	return s.UserDisplayName
}

type AvailabilitySlots struct {
	AM SlotAvailability `json:"AM"`
	PM SlotAvailability `json:"PM"`
}

// Get returns the availability of a single slot.
func (a AvailabilitySlots) Get(slot TimeSlot) SlotAvailability {
	if slot == SlotPM {
		return a.PM
	}
	return a.AM
}

// Desk availability is scoped to the date it was fetched for.
type Desk struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	OfficeName        string            `json:"office_name"`
	AvailabilitySlots AvailabilitySlots `json:"availability_slots"`
}

type AdminDesk struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	OfficeID   int64  `json:"office_id"`
	OfficeName string `json:"office_name"`
}

type Booking struct {
	ID              int64    `json:"id"`
	DeskID          int64    `json:"desk_id"`
	DeskName        string   `json:"desk_name"`
	OfficeName      string   `json:"office_name"`
	BookingDate     string   `json:"booking_date"`
	TimeSlot        TimeSlot `json:"time_slot"`
	UserDisplayName string   `json:"user_display_name,omitempty"`
}

// Day returns the booking date as a calendar date. The server value is read in UTC and only
// its date components are kept, so the shown day never shifts with the local zone.
func (b Booking) Day() (time.Time, error) {
	return ParseDate(b.BookingDate)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns midnight UTC of that date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateFormat, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// FormatDate renders the calendar components of t without converting zones.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// Repo is the remote booking backend. Every call is a single request; nothing is cached.
type Repo interface {
	// Профиль
	FetchUserProfile(ctx context.Context, who Identity) (*UserProfile, error)
	UpdateUserProfile(ctx context.Context, who Identity, displayName string) (*UserProfile, error)

	// Каталоги
	ListOffices(ctx context.Context) ([]Office, error)
	ListDesks(ctx context.Context, officeID int64, day time.Time) ([]Desk, error)

	// Бронирование
	BookDesk(ctx context.Context, who Identity, deskID int64, day time.Time, slot TimeSlot) (*Booking, error)
	ListUserBookings(ctx context.Context, who Identity, start, end *time.Time) ([]Booking, error)
	CancelBooking(ctx context.Context, who Identity, bookingID int64) error

	// Администрирование
	AddDesk(ctx context.Context, admin Identity, officeID int64, name string) (*AdminDesk, error)
	RemoveDesk(ctx context.Context, admin Identity, deskID int64) error
	AddOffice(ctx context.Context, admin Identity, name string) (*Office, error)
	RemoveOffice(ctx context.Context, admin Identity, officeID int64) error
	ListAdminDesks(ctx context.Context, admin Identity) ([]AdminDesk, error)
}
