package profile

import (
	"context"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/napryag/tg_desk_bot/pkg/repository/model"
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
)

const (
	msgLoadFailed  = "Не удалось загрузить профиль"
	msgNameInvalid = "Имя должно быть от 2 до 50 символов."
	msgNotReady    = "Профиль ещё не загружен."
)

// Repository is the part of the backend the profile needs.
type Repository interface {
	FetchUserProfile(ctx context.Context, who model.Identity) (*model.UserProfile, error)
	UpdateUserProfile(ctx context.Context, who model.Identity, displayName string) (*model.UserProfile, error)
}

type State int

const (
	Loading State = iota
	Failed
	SetupRequired
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Failed:
		return "error"
	case SetupRequired:
		return "setup_required"
	case Ready:
		return "ready"
	}
	return "unknown"
}

type nameForm struct {
	Name string `validate:"required,min=2,max=50"`
}

// Controller gates the app behind a loaded profile with a display name.
type Controller struct {
	repo     Repository
	validate *validator.Validate
	logger   zerolog.Logger

	mu      sync.Mutex
	state   State
	editing bool
	profile *model.UserProfile
	loadErr error
	formErr error
}

func NewController(repo Repository, logger zerolog.Logger) *Controller {
	return &Controller{
		repo:     repo,
		validate: validator.New(),
		logger:   logger.With().Str("component", "profile").Logger(),
		state:    Loading,
	}
}

// Snapshot is a copy of the controller state for rendering.
type Snapshot struct {
	State   State
	Editing bool
	Profile *model.UserProfile
	LoadErr error
	FormErr error
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:   c.state,
		Editing: c.editing,
		LoadErr: c.loadErr,
		FormErr: c.formErr,
	}
	if c.profile != nil {
		p := *c.profile
		s.Profile = &p
	}
	return s
}

// Profile returns the current profile or nil.
func (c *Controller) Profile() *model.UserProfile {
	return c.Snapshot().Profile
}

// AwaitsName reports whether the next free text is a display name.
func (c *Controller) AwaitsName() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == SetupRequired || c.editing
}

// Load fetches the profile and decides between setup and the main app.
func (c *Controller) Load(ctx context.Context, who model.Identity) error {
	c.mu.Lock()
	c.state = Loading
	c.editing = false
	c.loadErr = nil
	c.formErr = nil
	c.mu.Unlock()

	p, err := c.repo.FetchUserProfile(ctx, who)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Warn().Err(err).Int64("tg_id", who.ID).Msg("profile load failed")
		c.state = Failed
		c.loadErr = errs.New(msgLoadFailed+": "+errs.Message(err)).
			WithKind(errs.KindOf(err)).
			Arg("tg_id", who.ID).
			Wrap(err)
		return c.loadErr
	}

	c.profile = p
	if p.IsComplete() {
		c.state = Ready
	} else {
		c.state = SetupRequired
	}
	c.logger.Debug().Int64("tg_id", who.ID).Stringer("state", c.state).Msg("profile loaded")
	return nil
}

// Retry reloads after a failed load; in any other state it does nothing.
func (c *Controller) Retry(ctx context.Context, who model.Identity) error {
	c.mu.Lock()
	failed := c.state == Failed
	c.mu.Unlock()
	if !failed {
		return nil
	}
	return c.Load(ctx, who)
}

func (c *Controller) OpenEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Ready {
		return errs.Validation(msgNotReady).Arg("state", c.state.String())
	}
	c.editing = true
	c.formErr = nil
	return nil
}

// CloseEdit leaves the edit overlay. The initial setup cannot be closed.
func (c *Controller) CloseEdit() {
	c.mu.Lock()
	c.editing = false
	c.formErr = nil
	c.mu.Unlock()
}

// Submit saves a new display name. Invalid names never reach the server;
// on any failure the current screen stays with an inline error.
func (c *Controller) Submit(ctx context.Context, who model.Identity, name string) error {
	name = strings.TrimSpace(name)

	c.mu.Lock()
	if c.state != SetupRequired && !(c.state == Ready && c.editing) {
		c.mu.Unlock()
		return errs.Validation(msgNotReady).Arg("state", c.state.String())
	}
	if err := c.validate.Struct(nameForm{Name: name}); err != nil {
		c.formErr = errs.Validation(msgNameInvalid).Wrap(err)
		c.mu.Unlock()
		return c.formErr
	}
	c.formErr = nil
	c.mu.Unlock()

	p, err := c.repo.UpdateUserProfile(ctx, who, name)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Warn().Err(err).Int64("tg_id", who.ID).Msg("profile update failed")
		c.formErr = err
		return err
	}
	c.profile = p
	c.state = Ready
	c.editing = false
	c.logger.Info().Int64("tg_id", who.ID).Msg("display name updated")
	return nil
}
