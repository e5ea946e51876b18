package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/napryag/tg_desk_bot/pkg/domain/notice"
	"github.com/napryag/tg_desk_bot/pkg/domain/week"
	"github.com/napryag/tg_desk_bot/pkg/metrics"
	"github.com/napryag/tg_desk_bot/pkg/repository/model"
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
)

const (
	msgNameNotSet   = "Пожалуйста, сначала установите ваше имя в профиле (кнопка «✏️ Имя»)."
	msgNoDialog     = "Ошибка: не выбран стол или время."
	msgDeskNotFound = "Стол не найден, обновите список."
	msgDeskFull     = "Стол полностью занят на выбранную дату."
	msgSlotTaken    = "Выбранное время уже занято."
	msgPartial      = "Утро забронировано, но бронь на вечер не удалась"
)

// Flow is the state of the booking tab: office, week, desks and the booking dialog.
// It is safe for concurrent use; desk loads are sequenced so only the latest
// request may update the list.
type Flow struct {
	repo   Repository
	logger zerolog.Logger

	mu       sync.Mutex
	nav      *week.Navigator
	offices  []model.Office
	officeID int64
	desks    []model.Desk
	loading  bool
	loadErr  error
	dialog   *Dialog
	notice   notice.Notice
	seq      uint64
}

// NewFlow creates the flow with the week window derived from now.
func NewFlow(repo Repository, now func() time.Time, logger zerolog.Logger) *Flow {
	return &Flow{
		repo:   repo,
		logger: logger.With().Str("component", "booking").Logger(),
		nav:    week.New(now),
	}
}

// View is a consistent copy of the flow state for rendering.
type View struct {
	Offices   []model.Office
	OfficeID  int64
	WeekStart time.Time
	WeekEnd   time.Time
	Selected  time.Time
	Days      []week.Day
	Desks     []model.Desk
	Loading   bool
	LoadErr   error
	Dialog    *Dialog
	Notice    notice.Notice
}

// OfficeName returns the name of the selected office, if known.
func (v View) OfficeName() string {
	for _, o := range v.Offices {
		if o.ID == v.OfficeID {
			return o.Name
		}
	}
	return ""
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{
		Offices:   append([]model.Office(nil), f.offices...),
		OfficeID:  f.officeID,
		WeekStart: f.nav.WeekStart(),
		WeekEnd:   f.nav.WeekEnd(),
		Selected:  f.nav.Selected(),
		Days:      f.nav.Days(),
		Desks:     append([]model.Desk(nil), f.desks...),
		Loading:   f.loading,
		LoadErr:   f.loadErr,
		Notice:    f.notice,
	}
	if f.dialog != nil {
		d := *f.dialog
		v.Dialog = &d
	}
	return v
}

// LoadOffices fetches the office list for the picker.
func (f *Flow) LoadOffices(ctx context.Context) error {
	offices, err := f.repo.ListOffices(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.notice = notice.FromError("Ошибка загрузки офисов", err)
		return err
	}
	f.offices = offices
	return nil
}

// SelectOffice switches the office and reloads desks. Zero clears the desk list.
func (f *Flow) SelectOffice(ctx context.Context, officeID int64) error {
	f.mu.Lock()
	f.officeID = officeID
	f.dialog = nil
	f.notice = notice.Notice{}
	f.mu.Unlock()

	return f.loadDesks(ctx)
}

// SelectDay picks one of the visible weekdays and reloads desks.
func (f *Flow) SelectDay(ctx context.Context, day time.Time) error {
	f.mu.Lock()
	if err := f.nav.Select(day); err != nil {
		f.notice = notice.FromError("", err)
		f.mu.Unlock()
		return err
	}
	f.dialog = nil
	f.notice = notice.Notice{}
	f.mu.Unlock()

	return f.loadDesks(ctx)
}

// PageWeek moves the visible week and reloads desks for its Monday.
func (f *Flow) PageWeek(ctx context.Context, dir week.Direction) error {
	f.mu.Lock()
	f.nav.Page(dir)
	f.dialog = nil
	f.notice = notice.Notice{}
	f.mu.Unlock()

	return f.loadDesks(ctx)
}

// Reload refetches desks for the current office and date.
func (f *Flow) Reload(ctx context.Context) error {
	f.mu.Lock()
	f.notice = notice.Notice{}
	f.mu.Unlock()

	return f.loadDesks(ctx)
}

func (f *Flow) loadDesks(ctx context.Context) error {
	f.mu.Lock()
	f.seq++
	token := f.seq
	officeID, day := f.officeID, f.nav.Selected()
	if officeID == 0 {
		f.desks = nil
		f.loadErr = nil
		f.loading = false
		f.mu.Unlock()
		return nil
	}
	f.loading = true
	f.mu.Unlock()

	desks, err := f.repo.ListDesks(ctx, officeID, day)

	f.mu.Lock()
	defer f.mu.Unlock()
	if token != f.seq {
		metrics.StaleResponsesTotal.Inc()
		f.logger.Debug().
			Uint64("token", token).
			Uint64("latest", f.seq).
			Int64("office_id", officeID).
			Msg("stale desk list dropped")
		return nil
	}
	f.loading = false
	if err != nil {
		f.desks = nil
		f.loadErr = err
		return err
	}
	f.desks = desks
	f.loadErr = nil
	return nil
}

// OpenDialog opens the booking dialog for a desk of the current list.
// A profile without any name is refused before anything else.
func (f *Flow) OpenDialog(profile *model.UserProfile, deskID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notice = notice.Notice{}
	if !profile.HasAnyName() {
		err := errs.Validation(msgNameNotSet)
		f.notice = notice.FromError("", err)
		return err
	}

	desk, ok := f.findDesk(deskID)
	if !ok {
		err := errs.Validation(msgDeskNotFound).Arg("desk_id", deskID)
		f.notice = notice.FromError("", err)
		return err
	}
	if TierOf(desk) == FullyBooked {
		err := errs.Validation(msgDeskFull).Arg("desk_id", deskID)
		f.notice = notice.FromError("", err)
		return err
	}

	f.dialog = NewDialog(desk, f.nav.Selected())
	return nil
}

// Choose changes the slot choice of the open dialog.
func (f *Flow) Choose(c Choice) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dialog == nil {
		return errs.Validation(msgNoDialog)
	}
	if err := f.dialog.Choose(c); err != nil {
		f.dialog.Err = err
		return err
	}
	return nil
}

// CloseDialog drops the dialog without booking.
func (f *Flow) CloseDialog() {
	f.mu.Lock()
	f.dialog = nil
	f.mu.Unlock()
}

// Outcome lists the slots that were actually booked by Submit.
type Outcome struct {
	Booked []model.TimeSlot
}

// Partial reports that only part of a full-day booking went through.
func (o Outcome) Partial(c Choice) bool {
	return c == ChoiceFull && len(o.Booked) == 1
}

// Submit books the dialog's choice. FULL is two sequential calls, AM then PM; when PM fails
// after AM succeeded the AM booking is kept and the error says so.
func (f *Flow) Submit(ctx context.Context, who model.Identity) (Outcome, error) {
	f.mu.Lock()
	dialog := f.dialog
	if dialog == nil {
		f.mu.Unlock()
		return Outcome{}, errs.Validation(msgNoDialog)
	}
	if !dialog.CanSubmit() {
		dialog.Err = errs.Validation(msgSlotTaken).Arg("choice", string(dialog.Choice))
		f.mu.Unlock()
		return Outcome{}, dialog.Err
	}
	desk, day, choice := dialog.Desk, dialog.Day, dialog.Choice
	slots := dialog.Slots()
	f.notice = notice.Notice{}
	f.mu.Unlock()

	var out Outcome
	var err error
	for _, slot := range slots {
		if _, err = f.repo.BookDesk(ctx, who, desk.ID, day, slot); err != nil {
			metrics.BookingsTotal.WithLabelValues(string(slot), "error").Inc()
			break
		}
		metrics.BookingsTotal.WithLabelValues(string(slot), "ok").Inc()
		out.Booked = append(out.Booked, slot)
	}

	log := f.logger.With().
		Int64("tg_id", who.ID).
		Int64("desk_id", desk.ID).
		Str("date", model.FormatDate(day)).
		Str("choice", string(choice)).
		Logger()

	switch {
	case err == nil:
		log.Info().Msg("desk booked")
		f.mu.Lock()
		f.notice = notice.New(notice.Success, successText(desk, choice))
		if f.dialog == dialog {
			f.dialog = nil
		}
		f.mu.Unlock()
		_ = f.loadDesks(ctx)
		return out, nil

	case out.Partial(choice):
		log.Warn().Err(err).Msg("full day booking stopped after AM")
		partial := errs.New(fmt.Sprintf("%s: %s", msgPartial, errs.Message(err))).
			WithKind(errs.KindServer).
			Arg("desk_id", desk.ID).
			Wrap(err)
		_ = f.loadDesks(ctx)

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.dialog != dialog {
			f.notice = notice.FromError("", partial)
			return out, partial
		}
		// остаётся только неудавшаяся половина дня
		if fresh, ok := f.findDesk(desk.ID); ok && TierOf(fresh) != FullyBooked && week.SameDay(f.nav.Selected(), day) {
			f.dialog = NewDialog(fresh, day)
			f.dialog.Err = partial
		} else {
			f.dialog = nil
			f.notice = notice.FromError("", partial)
		}
		return out, partial

	default:
		log.Warn().Err(err).Msg("booking failed")
		f.mu.Lock()
		if f.dialog == dialog {
			dialog.Err = err
		}
		f.mu.Unlock()
		return out, err
	}
}

func (f *Flow) findDesk(id int64) (model.Desk, bool) {
	for _, d := range f.desks {
		if d.ID == id {
			return d, true
		}
	}
	return model.Desk{}, false
}

func successText(desk model.Desk, c Choice) string {
	title := desk.Name
	if title == "" {
		title = fmt.Sprintf("#%d", desk.ID)
	}
	switch c {
	case ChoiceFull:
		return fmt.Sprintf("Стол %s забронирован на весь день!", title)
	case ChoicePM:
		return fmt.Sprintf("Стол %s забронирован на вечер!", title)
	default:
		return fmt.Sprintf("Стол %s забронирован на утро!", title)
	}
}
