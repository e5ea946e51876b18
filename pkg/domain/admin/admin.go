package admin

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/napryag/tg_desk_bot/pkg/domain/notice"
	"github.com/napryag/tg_desk_bot/pkg/repository/model"
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	msgPickOfficeForDesk = "Выберите офис для добавления стола"
	msgEnterDeskName     = "Введите название стола"
	msgEnterOfficeName   = "Введите название офиса"
	msgPickDesk          = "Выберите стол для удаления"
	msgPickOffice        = "Выберите офис для удаления"
	msgNothingPending    = "Нет действия для подтверждения."
)

// Authorizer decides who may open the admin tab.
type Authorizer func(tgID int64) bool

// AllowList authorizes exactly the given Telegram ids.
func AllowList(ids ...int64) Authorizer {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(tgID int64) bool {
		_, ok := set[tgID]
		return ok
	}
}

type Repository interface {
	ListOffices(ctx context.Context) ([]model.Office, error)
	ListAdminDesks(ctx context.Context, admin model.Identity) ([]model.AdminDesk, error)
	AddDesk(ctx context.Context, admin model.Identity, officeID int64, name string) (*model.AdminDesk, error)
	RemoveDesk(ctx context.Context, admin model.Identity, deskID int64) error
	AddOffice(ctx context.Context, admin model.Identity, name string) (*model.Office, error)
	RemoveOffice(ctx context.Context, admin model.Identity, officeID int64) error
}

// Action is a destructive operation waiting for confirmation.
type Action int

const (
	RemoveDesk Action = iota + 1
	RemoveOffice
)

type Pending struct {
	Action Action
	ID     int64
	Name   string
}

// Prompt is the confirmation question for the pending action.
func (p Pending) Prompt() string {
	if p.Action == RemoveOffice {
		return "Удалить этот офис? Сначала удалите все столы в нем (бэкенд может это проверить)."
	}
	return "Удалить этот стол? Все бронирования будут отменены."
}

type deskForm struct {
	OfficeID int64  `validate:"required,gt=0"`
	Name     string `validate:"required"`
}

type officeForm struct {
	Name string `validate:"required"`
}

// View is the admin tab: offices, all desks and the four management actions.
type View struct {
	repo     Repository
	validate *validator.Validate
	logger   zerolog.Logger

	mu      sync.Mutex
	offices []model.Office
	desks   []model.AdminDesk
	notice  notice.Notice
	pending *Pending
}

func NewView(repo Repository, logger zerolog.Logger) *View {
	return &View{
		repo:     repo,
		validate: validator.New(),
		logger:   logger.With().Str("component", "admin").Logger(),
	}
}

type Snapshot struct {
	Offices []model.Office
	Desks   []model.AdminDesk
	Notice  notice.Notice
	Pending *Pending
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Snapshot{
		Offices: append([]model.Office(nil), v.offices...),
		Desks:   append([]model.AdminDesk(nil), v.desks...),
		Notice:  v.notice,
	}
	if v.pending != nil {
		p := *v.pending
		s.Pending = &p
	}
	return s
}

// Load fetches offices and desks in parallel.
func (v *View) Load(ctx context.Context, admin model.Identity) error {
	var (
		offices []model.Office
		desks   []model.AdminDesk
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		offices, err = v.repo.ListOffices(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		desks, err = v.repo.ListAdminDesks(gctx, admin)
		return err
	})
	err := g.Wait()

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.logger.Warn().Err(err).Int64("admin_id", admin.ID).Msg("admin data load failed")
		v.notice = notice.FromError("Ошибка загрузки данных", err)
		return err
	}
	v.offices = offices
	v.desks = desks
	return nil
}

// Enter opens the tab afresh, without notices or a pending removal left from an earlier visit.
func (v *View) Enter(ctx context.Context, admin model.Identity) error {
	v.mu.Lock()
	v.notice = notice.Notice{}
	v.pending = nil
	v.mu.Unlock()
	return v.Load(ctx, admin)
}

func (v *View) AddDesk(ctx context.Context, admin model.Identity, officeID int64, name string) error {
	form := deskForm{OfficeID: officeID, Name: strings.TrimSpace(name)}
	if err := v.validate.Struct(form); err != nil {
		msg := msgEnterDeskName
		if form.OfficeID <= 0 {
			msg = msgPickOfficeForDesk
		}
		return v.refuse(errs.Validation(msg).Wrap(err))
	}

	d, err := v.repo.AddDesk(ctx, admin, form.OfficeID, form.Name)
	if err != nil {
		return v.fail(ctx, admin, "Ошибка добавления стола", err)
	}
	return v.done(ctx, admin, fmt.Sprintf("Стол %q добавлен (ID: %d)", form.Name, d.ID))
}

func (v *View) AddOffice(ctx context.Context, admin model.Identity, name string) error {
	form := officeForm{Name: strings.TrimSpace(name)}
	if err := v.validate.Struct(form); err != nil {
		return v.refuse(errs.Validation(msgEnterOfficeName).Wrap(err))
	}

	o, err := v.repo.AddOffice(ctx, admin, form.Name)
	if err != nil {
		return v.fail(ctx, admin, "Ошибка добавления офиса", err)
	}
	return v.done(ctx, admin, fmt.Sprintf("Офис %q добавлен (ID: %d)", form.Name, o.ID))
}

// RequestRemoveDesk asks for confirmation before removing a desk.
func (v *View) RequestRemoveDesk(deskID int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, d := range v.desks {
		if d.ID == deskID {
			v.pending = &Pending{Action: RemoveDesk, ID: d.ID, Name: d.Name}
			return nil
		}
	}
	err := errs.Validation(msgPickDesk).Arg("desk_id", deskID)
	v.notice = notice.FromError("", err)
	return err
}

// RequestRemoveOffice asks for confirmation before removing an office.
func (v *View) RequestRemoveOffice(officeID int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, o := range v.offices {
		if o.ID == officeID {
			v.pending = &Pending{Action: RemoveOffice, ID: o.ID, Name: o.Name}
			return nil
		}
	}
	err := errs.Validation(msgPickOffice).Arg("office_id", officeID)
	v.notice = notice.FromError("", err)
	return err
}

func (v *View) Abort() {
	v.mu.Lock()
	v.pending = nil
	v.mu.Unlock()
}

// Confirm executes the pending removal.
func (v *View) Confirm(ctx context.Context, admin model.Identity) error {
	v.mu.Lock()
	p := v.pending
	v.pending = nil
	v.mu.Unlock()
	if p == nil {
		return errs.Validation(msgNothingPending)
	}

	switch p.Action {
	case RemoveOffice:
		if err := v.repo.RemoveOffice(ctx, admin, p.ID); err != nil {
			return v.fail(ctx, admin, "Ошибка удаления офиса", err)
		}
		return v.done(ctx, admin, fmt.Sprintf("Офис %q удален", titleOr(p.Name, p.ID)))
	default:
		if err := v.repo.RemoveDesk(ctx, admin, p.ID); err != nil {
			return v.fail(ctx, admin, "Ошибка удаления стола", err)
		}
		return v.done(ctx, admin, fmt.Sprintf("Стол %q удален", titleOr(p.Name, p.ID)))
	}
}

func (v *View) refuse(err error) error {
	v.mu.Lock()
	v.notice = notice.FromError("", err)
	v.mu.Unlock()
	return err
}

// fail reports a failed action and still refreshes both lists.
func (v *View) fail(ctx context.Context, admin model.Identity, prefix string, err error) error {
	v.logger.Warn().Err(err).Int64("admin_id", admin.ID).Msg(prefix)
	_ = v.Load(ctx, admin)
	v.mu.Lock()
	v.notice = notice.FromError(prefix, err)
	v.mu.Unlock()
	return err
}

func (v *View) done(ctx context.Context, admin model.Identity, text string) error {
	v.logger.Info().Int64("admin_id", admin.ID).Msg(text)
	v.mu.Lock()
	v.notice = notice.New(notice.Success, text)
	v.mu.Unlock()
	return v.Load(ctx, admin)
}

func titleOr(name string, id int64) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("ID %d", id)
}
