package booking

import (
	"context"
	"time"

	"github.com/napryag/tg_desk_bot/pkg/repository/model"
)

// Repository is the part of the backend the booking tab needs.
type Repository interface {
	ListOffices(ctx context.Context) ([]model.Office, error)
	ListDesks(ctx context.Context, officeID int64, day time.Time) ([]model.Desk, error)
	BookDesk(ctx context.Context, who model.Identity, deskID int64, day time.Time, slot model.TimeSlot) (*model.Booking, error)
}
