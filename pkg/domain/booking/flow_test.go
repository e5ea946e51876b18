package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/napryag/tg_desk_bot/pkg/domain/notice"
	"github.com/napryag/tg_desk_bot/pkg/domain/week"
	"github.com/napryag/tg_desk_bot/pkg/repository/model"
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookCall struct {
	deskID int64
	day    string
	slot   model.TimeSlot
}

type fakeRepo struct {
	mu        sync.Mutex
	offices   []model.Office
	desks     map[int64][]model.Desk
	listCalls []int64
	bookCalls []bookCall
	bookErr   map[model.TimeSlot]error
	listHook  func(officeID int64)
}

func (r *fakeRepo) ListOffices(context.Context) ([]model.Office, error) {
	return r.offices, nil
}

func (r *fakeRepo) ListDesks(_ context.Context, officeID int64, _ time.Time) ([]model.Desk, error) {
	if r.listHook != nil {
		r.listHook(officeID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls = append(r.listCalls, officeID)
	return append([]model.Desk(nil), r.desks[officeID]...), nil
}

func (r *fakeRepo) BookDesk(_ context.Context, _ model.Identity, deskID int64, day time.Time, slot model.TimeSlot) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookCalls = append(r.bookCalls, bookCall{deskID: deskID, day: model.FormatDate(day), slot: slot})
	if err := r.bookErr[slot]; err != nil {
		return nil, err
	}
	// сервер отмечает слот занятым
	for officeID, desks := range r.desks {
		for i := range desks {
			if desks[i].ID != deskID {
				continue
			}
			a := model.SlotAvailability{Status: model.StatusBooked, UserDisplayName: "Me"}
			if slot == model.SlotAM {
				r.desks[officeID][i].AvailabilitySlots.AM = a
			} else {
				r.desks[officeID][i].AvailabilitySlots.PM = a
			}
		}
	}
	return &model.Booking{ID: int64(len(r.bookCalls)), DeskID: deskID, TimeSlot: slot}, nil
}

var (
	free   = model.SlotAvailability{Status: model.StatusFree}
	byBob  = model.SlotAvailability{Status: model.StatusBooked, UserDisplayName: "Bob"}
	byAlic = model.SlotAvailability{Status: model.StatusBooked, UserDisplayName: "Alice"}

	me      = model.Identity{ID: 42, FirstName: "Ivan"}
	profile = &model.UserProfile{TgID: 42, DisplayName: "Ivan"}
	hqDate  = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) // Monday
)

func desk(id int64, name string, am, pm model.SlotAvailability) model.Desk {
	return model.Desk{ID: id, Name: name, OfficeName: "HQ", AvailabilitySlots: model.AvailabilitySlots{AM: am, PM: pm}}
}

func newRepo() *fakeRepo {
	return &fakeRepo{
		offices: []model.Office{{ID: 1, Name: "HQ"}, {ID: 2, Name: "Annex"}},
		desks: map[int64][]model.Desk{
			1: {
				desk(10, "D1", free, byAlic),
				desk(11, "D2", free, free),
				desk(12, "D3", byBob, byAlic),
			},
			2: {desk(20, "A1", free, free)},
		},
		bookErr: map[model.TimeSlot]error{},
	}
}

func newFlow(t *testing.T, repo *fakeRepo) *Flow {
	t.Helper()
	f := NewFlow(repo, func() time.Time { return hqDate }, zerolog.Nop())
	require.NoError(t, f.LoadOffices(context.Background()))
	require.NoError(t, f.SelectOffice(context.Background(), 1))
	return f
}

func TestTierOf(t *testing.T) {
	assert.Equal(t, Available, TierOf(desk(1, "", free, free)))
	assert.Equal(t, PartiallyBooked, TierOf(desk(1, "", free, byBob)))
	assert.Equal(t, PartiallyBooked, TierOf(desk(1, "", byBob, free)))
	assert.Equal(t, FullyBooked, TierOf(desk(1, "", byBob, byAlic)))
}

func TestNewDialog_Preselect(t *testing.T) {
	tests := []struct {
		name string
		desk model.Desk
		want Choice
		full bool
	}{
		{name: "all free", desk: desk(1, "", free, free), want: ChoiceAM, full: true},
		{name: "am taken", desk: desk(1, "", byBob, free), want: ChoicePM},
		{name: "pm taken", desk: desk(1, "", free, byBob), want: ChoiceAM},
		{name: "all taken", desk: desk(1, "", byBob, byBob), want: ChoiceAM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDialog(tt.desk, hqDate)
			assert.Equal(t, tt.want, d.Choice)
			assert.Equal(t, tt.full, d.Enabled(ChoiceFull))
		})
	}

	taken := NewDialog(desk(1, "", byBob, byBob), hqDate)
	assert.False(t, taken.CanSubmit())
}

func TestParseChoice(t *testing.T) {
	c, err := ParseChoice("FULL")
	require.NoError(t, err)
	assert.Equal(t, ChoiceFull, c)

	_, err = ParseChoice("EVENING")
	assert.True(t, errs.Is(err, errs.KindValidation))
}

// офис HQ, понедельник 2024-06-10, D1: утро свободно, вечер занят Alice
func TestScenario_PartiallyBookedDesk(t *testing.T) {
	f := newFlow(t, newRepo())

	v := f.View()
	require.Len(t, v.Desks, 3)
	assert.Equal(t, "HQ", v.OfficeName())
	assert.Equal(t, "2024-06-10", model.FormatDate(v.Selected))
	assert.Equal(t, PartiallyBooked, TierOf(v.Desks[0]))

	require.NoError(t, f.OpenDialog(profile, 10))
	v = f.View()
	require.NotNil(t, v.Dialog)
	assert.Equal(t, ChoiceAM, v.Dialog.Choice)
	assert.False(t, v.Dialog.Enabled(ChoiceFull))
	assert.False(t, v.Dialog.Enabled(ChoicePM))

	err := f.Choose(ChoiceFull)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Equal(t, ChoiceAM, f.View().Dialog.Choice)
}

func TestSelectOffice_ZeroClearsWithoutRequest(t *testing.T) {
	repo := newRepo()
	f := newFlow(t, repo)
	require.Len(t, repo.listCalls, 1)

	require.NoError(t, f.SelectOffice(context.Background(), 0))
	assert.Empty(t, f.View().Desks)
	assert.Len(t, repo.listCalls, 1)
}

func TestSubmit_FullDay(t *testing.T) {
	repo := newRepo()
	f := newFlow(t, repo)

	require.NoError(t, f.OpenDialog(profile, 11))
	require.NoError(t, f.Choose(ChoiceFull))

	out, err := f.Submit(context.Background(), me)
	require.NoError(t, err)
	assert.Equal(t, []model.TimeSlot{model.SlotAM, model.SlotPM}, out.Booked)

	assert.Equal(t, []bookCall{
		{deskID: 11, day: "2024-06-10", slot: model.SlotAM},
		{deskID: 11, day: "2024-06-10", slot: model.SlotPM},
	}, repo.bookCalls)

	v := f.View()
	assert.Nil(t, v.Dialog)
	assert.Equal(t, notice.Success, v.Notice.Level)
	assert.Equal(t, "Стол D2 забронирован на весь день!", v.Notice.Text)
	// список перезагружен после брони
	assert.Len(t, repo.listCalls, 2)
	assert.Equal(t, FullyBooked, TierOf(v.Desks[1]))
}

func TestSubmit_SingleSlot(t *testing.T) {
	repo := newRepo()
	f := newFlow(t, repo)

	require.NoError(t, f.OpenDialog(profile, 11))
	require.NoError(t, f.Choose(ChoicePM))

	out, err := f.Submit(context.Background(), me)
	require.NoError(t, err)
	assert.Equal(t, []model.TimeSlot{model.SlotPM}, out.Booked)
	assert.Equal(t, "Стол D2 забронирован на вечер!", f.View().Notice.Text)
}

func TestSubmit_PartialFailure(t *testing.T) {
	repo := newRepo()
	repo.bookErr[model.SlotPM] = errs.Server("Слот уже занят")
	f := newFlow(t, repo)

	require.NoError(t, f.OpenDialog(profile, 11))
	require.NoError(t, f.Choose(ChoiceFull))

	out, err := f.Submit(context.Background(), me)
	require.Error(t, err)
	assert.True(t, out.Partial(ChoiceFull))
	assert.Equal(t, "Утро забронировано, но бронь на вечер не удалась: Слот уже занят", errs.Message(err))
	assert.Len(t, repo.bookCalls, 2)

	// без отката: в списке утро занято, диалог предлагает только вечер
	v := f.View()
	require.NotNil(t, v.Dialog)
	assert.Equal(t, ChoicePM, v.Dialog.Choice)
	assert.False(t, v.Dialog.Enabled(ChoiceAM))
	assert.Equal(t, err, v.Dialog.Err)
	assert.Equal(t, PartiallyBooked, TierOf(v.Desks[1]))
}

func TestSubmit_FailureKeepsDialogOpen(t *testing.T) {
	repo := newRepo()
	repo.bookErr[model.SlotAM] = errs.Server("Нельзя бронировать прошедшие даты")
	f := newFlow(t, repo)

	require.NoError(t, f.OpenDialog(profile, 11))
	_, err := f.Submit(context.Background(), me)
	require.Error(t, err)

	v := f.View()
	require.NotNil(t, v.Dialog)
	assert.Equal(t, "Нельзя бронировать прошедшие даты", errs.Message(v.Dialog.Err))
	assert.Len(t, repo.listCalls, 1, "no reload after failure")
}

func TestOpenDialog_Guards(t *testing.T) {
	repo := newRepo()
	f := newFlow(t, repo)

	err := f.OpenDialog(&model.UserProfile{TgID: 42}, 11)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Equal(t, notice.Warning, f.View().Notice.Level)
	assert.Nil(t, f.View().Dialog)

	// имени из Telegram достаточно
	require.NoError(t, f.OpenDialog(&model.UserProfile{TgID: 42, TelegramFirstName: "Ivan"}, 11))

	assert.Error(t, f.OpenDialog(profile, 12), "fully booked desk")
	assert.Error(t, f.OpenDialog(profile, 999), "unknown desk")
	assert.Empty(t, repo.bookCalls)
}

func TestSubmit_WithoutDialog(t *testing.T) {
	f := newFlow(t, newRepo())
	_, err := f.Submit(context.Background(), me)
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestPageWeek_ReloadsForMonday(t *testing.T) {
	repo := newRepo()
	f := newFlow(t, repo)

	require.NoError(t, f.OpenDialog(profile, 11))
	require.NoError(t, f.PageWeek(context.Background(), week.Next))

	v := f.View()
	assert.Nil(t, v.Dialog)
	assert.Equal(t, "2024-06-17", model.FormatDate(v.Selected))
	assert.Len(t, repo.listCalls, 2)

	require.NoError(t, f.SelectDay(context.Background(), time.Date(2024, 6, 19, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-06-19", model.FormatDate(f.View().Selected))
	assert.Len(t, repo.listCalls, 3)
}

func TestLoadDesks_StaleResponseDropped(t *testing.T) {
	repo := newRepo()
	f := NewFlow(repo, func() time.Time { return hqDate }, zerolog.Nop())

	started := make(chan struct{})
	release := make(chan struct{})
	repo.listHook = func(officeID int64) {
		if officeID == 1 {
			close(started)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() { done <- f.SelectOffice(context.Background(), 1) }()
	<-started

	// пользователь переключил офис, пока первый запрос ещё идёт
	require.NoError(t, f.SelectOffice(context.Background(), 2))
	close(release)
	require.NoError(t, <-done)

	v := f.View()
	assert.Equal(t, int64(2), v.OfficeID)
	require.Len(t, v.Desks, 1)
	assert.Equal(t, "A1", v.Desks[0].Name)
	assert.False(t, v.Loading)
}
