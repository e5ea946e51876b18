package receiver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/tg_desk_bot/pkg/domain/admin"
	"github.com/napryag/tg_desk_bot/pkg/domain/identity"
	"github.com/napryag/tg_desk_bot/pkg/repository/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- fakes ----------

type fakeRepo struct {
	mu       sync.Mutex
	profile  model.UserProfile
	offices  []model.Office
	desks    []model.Desk
	bookings []model.Booking
	calls    []string
}

func (r *fakeRepo) record(c string) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *fakeRepo) called(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (r *fakeRepo) FetchUserProfile(context.Context, model.Identity) (*model.UserProfile, error) {
	r.record("fetch-profile")
	p := r.profile
	return &p, nil
}

func (r *fakeRepo) UpdateUserProfile(_ context.Context, _ model.Identity, name string) (*model.UserProfile, error) {
	r.record("update-profile " + name)
	r.profile.DisplayName = name
	r.profile.EffectiveDisplayName = name
	p := r.profile
	return &p, nil
}

func (r *fakeRepo) ListOffices(context.Context) ([]model.Office, error) {
	r.record("offices")
	return r.offices, nil
}

func (r *fakeRepo) ListDesks(_ context.Context, officeID int64, day time.Time) ([]model.Desk, error) {
	r.record("desks " + model.FormatDate(day))
	return append([]model.Desk(nil), r.desks...), nil
}

func (r *fakeRepo) BookDesk(_ context.Context, _ model.Identity, deskID int64, day time.Time, slot model.TimeSlot) (*model.Booking, error) {
	r.record("book " + model.FormatDate(day) + " " + string(slot))
	return &model.Booking{ID: 1, DeskID: deskID, TimeSlot: slot}, nil
}

func (r *fakeRepo) ListUserBookings(context.Context, model.Identity, *time.Time, *time.Time) ([]model.Booking, error) {
	r.record("bookings")
	return r.bookings, nil
}

func (r *fakeRepo) CancelBooking(_ context.Context, _ model.Identity, id int64) error {
	r.record("cancel")
	return nil
}

func (r *fakeRepo) AddDesk(_ context.Context, _ model.Identity, officeID int64, name string) (*model.AdminDesk, error) {
	r.record("add-desk " + name)
	return &model.AdminDesk{ID: 5, Name: name, OfficeID: officeID}, nil
}

func (r *fakeRepo) RemoveDesk(context.Context, model.Identity, int64) error {
	r.record("remove-desk")
	return nil
}

func (r *fakeRepo) AddOffice(_ context.Context, _ model.Identity, name string) (*model.Office, error) {
	r.record("add-office " + name)
	return &model.Office{ID: 9, Name: name}, nil
}

func (r *fakeRepo) RemoveOffice(context.Context, model.Identity, int64) error {
	r.record("remove-office")
	return nil
}

func (r *fakeRepo) ListAdminDesks(context.Context, model.Identity) ([]model.AdminDesk, error) {
	r.record("admin-desks")
	return nil, nil
}

type edit struct {
	text string
	kb   tgbotapi.InlineKeyboardMarkup
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	edits    []edit
}

func (s *fakeSender) Send(_ context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return tgbotapi.Message{MessageID: 500, Chat: &tgbotapi.Chat{ID: 1}}, nil
}

func (s *fakeSender) Request(_ context.Context, c tgbotapi.Chattable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, c)
	return nil
}

func (s *fakeSender) Edit(_ context.Context, _ int64, _ int, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, edit{text: text, kb: kb})
	return nil
}

func (s *fakeSender) last(t *testing.T) edit {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.edits)
	return s.edits[len(s.edits)-1]
}

// ---------- helpers ----------

const userID = 42

var monday = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

var (
	free  = model.SlotAvailability{Status: model.StatusFree}
	alice = model.SlotAvailability{Status: model.StatusBooked, UserDisplayName: "Alice"}
)

func newRepo() *fakeRepo {
	return &fakeRepo{
		profile: model.UserProfile{TgID: userID, DisplayName: "Ваня", EffectiveDisplayName: "Ваня"},
		offices: []model.Office{{ID: 1, Name: "HQ"}},
		desks: []model.Desk{
			{ID: 10, Name: "D1", OfficeName: "HQ", AvailabilitySlots: model.AvailabilitySlots{AM: free, PM: alice}},
			{ID: 11, Name: "D2", OfficeName: "HQ", AvailabilitySlots: model.AvailabilitySlots{AM: free, PM: free}},
		},
	}
}

func newHandler(repo *fakeRepo, admins ...int64) (*Handler, *fakeSender) {
	out := &fakeSender{}
	store := NewStore(Deps{Repo: repo, Now: func() time.Time { return monday }, Logger: zerolog.Nop()})
	h := NewHandler(store, identity.NewResolver(model.Identity{}), admin.AllowList(admins...), out, zerolog.Nop())
	h.RemindTTL = 0
	return h, out
}

func user() *tgbotapi.User {
	return &tgbotapi.User{ID: userID, FirstName: "Ivan", UserName: "ivan"}
}

func command(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      user(),
		Chat:      &tgbotapi.Chat{ID: 1},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func text(s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      user(),
		Chat:      &tgbotapi.Chat{ID: 1},
		Text:      s,
	}}
}

func press(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    user(),
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 500, Chat: &tgbotapi.Chat{ID: 1}},
	}}
}

func buttons(kb tgbotapi.InlineKeyboardMarkup, prefix string) []string {
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil && strings.HasPrefix(*b.CallbackData, prefix) {
				out = append(out, *b.CallbackData)
			}
		}
	}
	return out
}

// ---------- tests ----------

func TestStart_ShowsApp(t *testing.T) {
	repo := newRepo()
	h, out := newHandler(repo)

	h.Handle(context.Background(), command("/start"))

	require.Len(t, out.sent, 1)
	msg, ok := out.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Привет, <b>Ваня</b>!")
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)

	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, []string{"o:1"}, buttons(kb, POffice))
	assert.Empty(t, buttons(kb, CbTabAdmin), "no admin tab for regular users")
	assert.Equal(t, 1, repo.called("offices"))

	sess := h.store.Get(userID)
	assert.Equal(t, 500, sess.MessageID)
}

func TestSetup_NameByText(t *testing.T) {
	repo := newRepo()
	repo.profile = model.UserProfile{TgID: userID, TelegramFirstName: "Ivan"}
	h, out := newHandler(repo)

	h.Handle(context.Background(), command("/start"))
	msg := out.sent[0].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Добро пожаловать!")
	assert.Equal(t, 0, repo.called("offices"))

	h.Handle(context.Background(), text("я"))
	assert.Equal(t, 0, repo.called("update-profile"))
	assert.Contains(t, out.last(t).text, "Имя должно быть от 2 до 50 символов.")

	h.Handle(context.Background(), text("  Ваня "))
	assert.Equal(t, 1, repo.called("update-profile Ваня"))
	assert.Contains(t, out.last(t).text, "Привет, <b>Ваня</b>!")
	assert.Equal(t, 1, repo.called("offices"))
}

func TestStrayText_Reminds(t *testing.T) {
	h, out := newHandler(newRepo())
	h.Handle(context.Background(), command("/start"))

	h.Handle(context.Background(), text("hello"))

	require.Len(t, out.sent, 2)
	assert.Equal(t, "Пожалуйста, используйте кнопки 👆", out.sent[1].(tgbotapi.MessageConfig).Text)
	_, isDelete := out.requests[len(out.requests)-1].(tgbotapi.DeleteMessageConfig)
	assert.True(t, isDelete)
}

func TestBookingTab_WeekAndDays(t *testing.T) {
	repo := newRepo()
	h, out := newHandler(repo)
	h.Handle(context.Background(), command("/start"))

	h.Handle(context.Background(), press("o:1"))
	e := out.last(t)
	assert.Contains(t, e.text, "Офис: HQ")
	assert.Contains(t, e.text, "Дата: Пн, 10.06.2024")
	assert.Contains(t, e.text, "🟡 D1: утро свободно, вечер занято (Alice)")
	assert.Equal(t, []string{"d:2024-06-10", "d:2024-06-11", "d:2024-06-12", "d:2024-06-13", "d:2024-06-14"}, buttons(e.kb, PDay))
	assert.Equal(t, []string{"desk:10", "desk:11"}, buttons(e.kb, PDesk))

	h.Handle(context.Background(), press(CbWeekNext))
	assert.Equal(t, "d:2024-06-17", buttons(out.last(t).kb, PDay)[0])
	assert.Equal(t, 1, repo.called("desks 2024-06-17"))

	h.Handle(context.Background(), press("d:2024-06-19"))
	assert.Contains(t, out.last(t).text, "Дата: Ср, 19.06.2024")
}

func TestBookingDialog_FullDay(t *testing.T) {
	repo := newRepo()
	h, out := newHandler(repo)
	h.Handle(context.Background(), command("/start"))
	h.Handle(context.Background(), press("o:1"))

	h.Handle(context.Background(), press("desk:10"))
	e := out.last(t)
	assert.Contains(t, e.text, "Бронирование: D1")
	assert.Contains(t, e.text, "Выбрано: Утро")
	assert.Equal(t, []string{"s:AM", "s:PM", "s:FULL"}, buttons(e.kb, PSlot))

	h.Handle(context.Background(), press("s:FULL"))
	assert.Contains(t, out.last(t).text, "Этот вариант уже занят")
	assert.Equal(t, 0, repo.called("book"))

	h.Handle(context.Background(), press(CbDialogClose))
	h.Handle(context.Background(), press("desk:11"))
	h.Handle(context.Background(), press("s:FULL"))
	h.Handle(context.Background(), press(CbBook))

	repo.mu.Lock()
	var books []string
	for _, c := range repo.calls {
		if strings.HasPrefix(c, "book") {
			books = append(books, c)
		}
	}
	repo.mu.Unlock()
	assert.Equal(t, []string{"book 2024-06-10 AM", "book 2024-06-10 PM"}, books)
	assert.Contains(t, out.last(t).text, "Стол D2 забронирован на весь день!")
}

func TestAdmin_Gated(t *testing.T) {
	repo := newRepo()
	h, out := newHandler(repo)
	h.Handle(context.Background(), command("/start"))

	h.Handle(context.Background(), press(CbAdminAddOffice))
	assert.Contains(t, out.last(t).text, "Нет доступа к администрированию.")

	h.Handle(context.Background(), text("Annex"))
	assert.Equal(t, 0, repo.called("add-office"))
}

func TestAdmin_AddOfficeByText(t *testing.T) {
	repo := newRepo()
	h, out := newHandler(repo, userID)
	h.Handle(context.Background(), command("/start"))

	kb := out.sent[0].(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	assert.Equal(t, []string{CbTabAdmin}, buttons(kb, CbTabAdmin))

	h.Handle(context.Background(), press(CbTabAdmin))
	h.Handle(context.Background(), press(CbAdminAddOffice))
	assert.Contains(t, out.last(t).text, "Отправьте название нового офиса.")

	h.Handle(context.Background(), text("Annex"))
	assert.Equal(t, 1, repo.called("add-office Annex"))
	assert.Contains(t, out.last(t).text, `Офис &#34;Annex&#34; добавлен (ID: 9)`)
	assert.Equal(t, InputNone, h.store.Get(userID).Input)
}

func TestMyBookings_RangeInput(t *testing.T) {
	repo := newRepo()
	h, out := newHandler(repo)
	h.Handle(context.Background(), command("/start"))

	h.Handle(context.Background(), press(CbTabMy))
	assert.Contains(t, out.last(t).text, "Нет броней за выбранный период.")

	h.Handle(context.Background(), press(CbMyRange))
	h.Handle(context.Background(), text("2024-06-20 2024-06-10"))
	assert.Contains(t, out.last(t).text, "Пожалуйста, выберите корректный диапазон дат.")
	assert.Equal(t, 1, repo.called("bookings"))

	h.Handle(context.Background(), text("2024-06-01 2024-06-30"))
	assert.Equal(t, 2, repo.called("bookings"))
	assert.Contains(t, out.last(t).text, "Период: 01.06.2024 – 30.06.2024")
}

func TestUnknownButton(t *testing.T) {
	h, out := newHandler(newRepo())
	h.Handle(context.Background(), command("/start"))

	h.Handle(context.Background(), press("zzz"))
	assert.Contains(t, out.last(t).text, "Кнопка устарела")
}

func TestCallback_AfterRestartLoadsProfile(t *testing.T) {
	repo := newRepo()
	h, out := newHandler(repo)

	h.Handle(context.Background(), press("o:1"))
	assert.Equal(t, 1, repo.called("fetch-profile"))
	assert.Contains(t, out.last(t).text, "Офис: HQ")
}

func TestMyBookings_LongListIsCapped(t *testing.T) {
	repo := newRepo()
	for i := 0; i < MaxListed+15; i++ {
		repo.bookings = append(repo.bookings, model.Booking{
			ID:          int64(i + 1),
			DeskName:    fmt.Sprintf("D%d", i),
			OfficeName:  "HQ",
			BookingDate: monday.AddDate(0, 0, i/2).Format(model.DateFormat),
			TimeSlot:    model.SlotAM,
		})
	}
	h, out := newHandler(repo)
	h.Handle(context.Background(), command("/start"))

	h.Handle(context.Background(), press(CbTabMy))
	last := out.last(t)
	assert.Len(t, buttons(last.kb, PCancel), MaxListed)
	assert.Equal(t, MaxListed, strings.Count(last.text, "• "))
	assert.Contains(t, last.text, "Показаны первые 30 из 45.")
	assert.Less(t, len([]rune(last.text)), 4096)
}

func TestMyBookings_EnterAgainDropsEmptyNotice(t *testing.T) {
	repo := newRepo()
	h, out := newHandler(repo)
	h.Handle(context.Background(), command("/start"))

	h.Handle(context.Background(), press(CbTabMy))
	assert.Contains(t, out.last(t).text, "Нет броней за выбранный период.")

	repo.bookings = []model.Booking{{ID: 1, DeskName: "D2", OfficeName: "HQ", BookingDate: "2024-06-10", TimeSlot: model.SlotAM}}
	h.Handle(context.Background(), press(CbTabBook))
	h.Handle(context.Background(), press(CbTabMy))

	last := out.last(t)
	assert.NotContains(t, last.text, "Нет броней за выбранный период.")
	assert.Equal(t, []string{"c:1"}, buttons(last.kb, PCancel))
}
