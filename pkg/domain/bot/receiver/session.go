package receiver

import (
	"sync"
	"time"

	"github.com/napryag/tg_desk_bot/pkg/domain/admin"
	"github.com/napryag/tg_desk_bot/pkg/domain/booking"
	"github.com/napryag/tg_desk_bot/pkg/domain/mybookings"
	"github.com/napryag/tg_desk_bot/pkg/domain/notice"
	"github.com/napryag/tg_desk_bot/pkg/domain/profile"
	"github.com/napryag/tg_desk_bot/pkg/metrics"
	"github.com/napryag/tg_desk_bot/pkg/repository/model"
	"github.com/rs/zerolog"
)

// ---------- FSM ----------

type Tab int

const (
	TabBook Tab = iota
	TabMy
	TabAdmin
)

// Input is the kind of free text the session waits for.
type Input int

const (
	InputNone Input = iota
	InputRange
	InputOfficeName
	InputDeskName
)

type AdminScreen int

const (
	AdminMenu AdminScreen = iota
	AdminPickOfficeForDesk
	AdminPickDesk
	AdminPickOffice
)

// Deps builds the per-user views.
type Deps struct {
	Repo   model.Repo
	Now    func() time.Time
	Logger zerolog.Logger
}

type Session struct {
	mu sync.Mutex

	Identity  model.Identity
	IsAdmin   bool
	ChatID    int64
	MessageID int

	Tab          Tab
	Input        Input
	AdminScreen  AdminScreen
	DeskOfficeID int64
	Notice       notice.Notice

	Profile *profile.Controller
	Booking *booking.Flow
	My      *mybookings.View
	Admin   *admin.View

	deps    Deps
	started bool
}

func newSession(deps Deps) *Session {
	s := &Session{deps: deps}
	s.ResetFlow()
	return s
}

// Go switches the tab and drops any half-finished input.
func (s *Session) Go(to Tab) {
	s.Tab = to
	s.Input = InputNone
	s.AdminScreen = AdminMenu
	s.DeskOfficeID = 0
}

// ResetFlow starts over with fresh views, as on /start.
func (s *Session) ResetFlow() {
	s.Go(TabBook)
	s.Notice = notice.Notice{}
	s.started = false
	s.Profile = profile.NewController(s.deps.Repo, s.deps.Logger)
	s.Booking = booking.NewFlow(s.deps.Repo, s.deps.Now, s.deps.Logger)
	s.My = mybookings.NewView(s.deps.Repo, s.deps.Now, s.deps.Logger)
	s.Admin = admin.NewView(s.deps.Repo, s.deps.Logger)
}

// AwaitsInput reports whether the next text message is an answer rather than noise.
func (s *Session) AwaitsInput() bool {
	return s.Input != InputNone || s.Profile.AwaitsName()
}

// ---------- Session store (in-memory, потокобезопасно) ----------

type Store struct {
	mu   sync.RWMutex
	m    map[int64]*Session
	deps Deps
}

func NewStore(deps Deps) *Store {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Store{m: make(map[int64]*Session), deps: deps}
}

func (s *Store) Get(userID int64) *Session {
	s.mu.RLock()
	sess, ok := s.m[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.m[userID]; ok {
		return sess
	}
	se := newSession(s.deps)
	s.m[userID] = se
	metrics.ActiveSessions.Set(float64(len(s.m)))
	return se
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
