package mybookings

import (
	"context"
	"sync"
	"time"

	"github.com/napryag/tg_desk_bot/pkg/domain/notice"
	"github.com/napryag/tg_desk_bot/pkg/domain/week"
	"github.com/napryag/tg_desk_bot/pkg/repository/model"
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
)

const (
	msgBadRange    = "Пожалуйста, выберите корректный диапазон дат."
	msgEmpty       = "Нет броней за выбранный период."
	msgCancelled   = "Бронь успешно отменена"
	msgCancelError = "Ошибка при отмене брони"
	msgUnknown     = "Бронь не найдена, обновите список."
	msgNoPending   = "Нет брони для отмены."
)

var emptyNotice = notice.New(notice.Info, msgEmpty)

// DefaultSpan is how far the initial range reaches past today.
const DefaultSpan = 7

type Repository interface {
	ListUserBookings(ctx context.Context, who model.Identity, start, end *time.Time) ([]model.Booking, error)
	CancelBooking(ctx context.Context, who model.Identity, bookingID int64) error
}

// Range is an inclusive pair of calendar dates.
type Range struct {
	From time.Time
	To   time.Time
}

// DefaultRange is today .. today+7.
func DefaultRange(today time.Time) Range {
	from := week.Midnight(today)
	return Range{From: from, To: from.AddDate(0, 0, DefaultSpan)}
}

// ParseRange requires both dates as YYYY-MM-DD with from <= to.
func ParseRange(from, to string) (Range, error) {
	if from == "" || to == "" {
		return Range{}, errs.Validation(msgBadRange)
	}
	f, err := time.Parse(model.DateFormat, from)
	if err != nil {
		return Range{}, errs.Validation(msgBadRange).Arg("from", from).Wrap(err)
	}
	t, err := time.Parse(model.DateFormat, to)
	if err != nil {
		return Range{}, errs.Validation(msgBadRange).Arg("to", to).Wrap(err)
	}
	if f.After(t) {
		return Range{}, errs.Validation(msgBadRange).Arg("from", from).Arg("to", to)
	}
	return Range{From: f, To: t}, nil
}

// View is the "my bookings" tab.
type View struct {
	repo   Repository
	logger zerolog.Logger

	mu       sync.Mutex
	rng      Range
	bookings []model.Booking
	err      error
	notice   notice.Notice
	pending  *model.Booking
}

func NewView(repo Repository, now func() time.Time, logger zerolog.Logger) *View {
	if now == nil {
		now = time.Now
	}
	return &View{
		repo:   repo,
		logger: logger.With().Str("component", "mybookings").Logger(),
		rng:    DefaultRange(now()),
	}
}

type Snapshot struct {
	Range    Range
	Bookings []model.Booking
	Err      error
	Notice   notice.Notice
	Pending  *model.Booking
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Snapshot{
		Range:    v.rng,
		Bookings: append([]model.Booking(nil), v.bookings...),
		Err:      v.err,
		Notice:   v.notice,
	}
	if v.pending != nil {
		b := *v.pending
		s.Pending = &b
	}
	return s
}

// Load fetches bookings for the current range.
func (v *View) Load(ctx context.Context, who model.Identity) error {
	v.mu.Lock()
	rng := v.rng
	v.err = nil
	v.mu.Unlock()

	out, err := v.repo.ListUserBookings(ctx, who, &rng.From, &rng.To)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.logger.Warn().Err(err).Int64("tg_id", who.ID).Msg("bookings load failed")
		v.bookings = nil
		v.err = err
		return err
	}
	v.bookings = out
	switch {
	case len(out) == 0 && v.notice.Empty():
		v.notice = emptyNotice
	case len(out) > 0 && v.notice == emptyNotice:
		v.notice = notice.Notice{}
	}
	return nil
}

// Enter opens the tab afresh: notices and a pending cancel from an earlier visit are dropped.
func (v *View) Enter(ctx context.Context, who model.Identity) error {
	v.mu.Lock()
	v.notice = notice.Notice{}
	v.pending = nil
	v.mu.Unlock()
	return v.Load(ctx, who)
}

// SetRange validates a new range and reloads. An invalid range clears the list without a request.
func (v *View) SetRange(ctx context.Context, who model.Identity, from, to string) error {
	rng, err := ParseRange(from, to)

	v.mu.Lock()
	v.notice = notice.Notice{}
	v.pending = nil
	if err != nil {
		v.bookings = nil
		v.err = err
		v.mu.Unlock()
		return err
	}
	v.rng = rng
	v.mu.Unlock()

	return v.Load(ctx, who)
}

// Reload refetches the current range, dropping notices.
func (v *View) Reload(ctx context.Context, who model.Identity) error {
	v.mu.Lock()
	v.notice = notice.Notice{}
	v.mu.Unlock()
	return v.Load(ctx, who)
}

// RequestCancel asks for confirmation before cancelling a listed booking.
func (v *View) RequestCancel(bookingID int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.bookings {
		if v.bookings[i].ID == bookingID {
			b := v.bookings[i]
			v.pending = &b
			return nil
		}
	}
	return errs.Validation(msgUnknown).Arg("booking_id", bookingID)
}

func (v *View) AbortCancel() {
	v.mu.Lock()
	v.pending = nil
	v.mu.Unlock()
}

// ConfirmCancel cancels the pending booking and reloads the list on success.
func (v *View) ConfirmCancel(ctx context.Context, who model.Identity) error {
	v.mu.Lock()
	pending := v.pending
	v.pending = nil
	v.mu.Unlock()
	if pending == nil {
		return errs.Validation(msgNoPending)
	}

	if err := v.repo.CancelBooking(ctx, who, pending.ID); err != nil {
		v.logger.Warn().Err(err).Int64("booking_id", pending.ID).Msg("cancel failed")
		v.mu.Lock()
		v.notice = notice.FromError(msgCancelError, err)
		v.mu.Unlock()
		return err
	}

	v.logger.Info().Int64("tg_id", who.ID).Int64("booking_id", pending.ID).Msg("booking cancelled")
	v.mu.Lock()
	v.notice = notice.New(notice.Success, msgCancelled)
	v.mu.Unlock()
	return v.Load(ctx, who)
}
