package deskapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/napryag/tg_desk_bot/pkg/repository/model"
)

var _ model.Repo = (*Client)(nil)

type updateProfileRequest struct {
	TgID              int64  `json:"tg_id"`
	DisplayName       string `json:"display_name"`
	TelegramUsername  string `json:"telegram_username,omitempty"`
	TelegramFirstName string `json:"telegram_first_name,omitempty"`
	TelegramLastName  string `json:"telegram_last_name,omitempty"`
}

type bookRequest struct {
	DeskID            int64          `json:"desk_id"`
	TgID              int64          `json:"tg_id"`
	BookingDate       string         `json:"booking_date"`
	TimeSlot          model.TimeSlot `json:"time_slot"`
	TelegramUsername  string         `json:"telegram_username,omitempty"`
	TelegramFirstName string         `json:"telegram_first_name,omitempty"`
	TelegramLastName  string         `json:"telegram_last_name,omitempty"`
}

type cancelRequest struct {
	BookingID int64 `json:"booking_id"`
	TgID      int64 `json:"tg_id"`
}

type addDeskRequest struct {
	OfficeID int64  `json:"office_id"`
	DeskName string `json:"desk_name"`
}

type removeDeskRequest struct {
	DeskID int64 `json:"desk_id"`
}

type addOfficeRequest struct {
	Name string `json:"name"`
}

type removeOfficeRequest struct {
	OfficeID int64 `json:"office_id"`
}

func adminQuery(admin model.Identity) url.Values {
	return url.Values{"tg_id_admin": {strconv.FormatInt(admin.ID, 10)}}
}

// FetchUserProfile GET /users/profile
func (c *Client) FetchUserProfile(ctx context.Context, who model.Identity) (*model.UserProfile, error) {
	q := url.Values{"tg_id": {strconv.FormatInt(who.ID, 10)}}
	if who.Username != "" {
		q.Set("tg_username", who.Username)
	}
	if who.FirstName != "" {
		q.Set("tg_first_name", who.FirstName)
	}
	if who.LastName != "" {
		q.Set("tg_last_name", who.LastName)
	}

	var p model.UserProfile
	err := c.do(ctx, call{
		operation: "fetch_profile",
		method:    http.MethodGet,
		path:      "/users/profile",
		query:     q,
		fallback:  msgFetchProfile,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateUserProfile PUT /users/profile
func (c *Client) UpdateUserProfile(ctx context.Context, who model.Identity, displayName string) (*model.UserProfile, error) {
	var p model.UserProfile
	err := c.do(ctx, call{
		operation: "update_profile",
		method:    http.MethodPut,
		path:      "/users/profile",
		body: updateProfileRequest{
			TgID:              who.ID,
			DisplayName:       displayName,
			TelegramUsername:  who.Username,
			TelegramFirstName: who.FirstName,
			TelegramLastName:  who.LastName,
		},
		fallback: msgUpdateProfile,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListOffices GET /offices
func (c *Client) ListOffices(ctx context.Context) ([]model.Office, error) {
	var out []model.Office
	err := c.do(ctx, call{
		operation: "list_offices",
		method:    http.MethodGet,
		path:      "/offices",
		fallback:  msgListOffices,
	}, &out)
	return out, err
}

// ListDesks GET /desks/{officeId}?date_str=YYYY-MM-DD
func (c *Client) ListDesks(ctx context.Context, officeID int64, day time.Time) ([]model.Desk, error) {
	var out []model.Desk
	err := c.do(ctx, call{
		operation: "list_desks",
		method:    http.MethodGet,
		path:      fmt.Sprintf("/desks/%d", officeID),
		query:     url.Values{"date_str": {model.FormatDate(day)}},
		fallback:  msgListDesks,
	}, &out)
	return out, err
}

// BookDesk POST /book
func (c *Client) BookDesk(ctx context.Context, who model.Identity, deskID int64, day time.Time, slot model.TimeSlot) (*model.Booking, error) {
	var b model.Booking
	err := c.do(ctx, call{
		operation: "book_desk",
		method:    http.MethodPost,
		path:      "/book",
		body: bookRequest{
			DeskID:            deskID,
			TgID:              who.ID,
			BookingDate:       model.FormatDate(day),
			TimeSlot:          slot,
			TelegramUsername:  who.Username,
			TelegramFirstName: who.FirstName,
			TelegramLastName:  who.LastName,
		},
		fallback: msgBookDesk,
	}, &b)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListUserBookings GET /my-bookings
func (c *Client) ListUserBookings(ctx context.Context, who model.Identity, start, end *time.Time) ([]model.Booking, error) {
	q := url.Values{"tg_id": {strconv.FormatInt(who.ID, 10)}}
	if start != nil {
		q.Set("start_date", model.FormatDate(*start))
	}
	if end != nil {
		q.Set("end_date", model.FormatDate(*end))
	}

	var out []model.Booking
	err := c.do(ctx, call{
		operation: "list_bookings",
		method:    http.MethodGet,
		path:      "/my-bookings",
		query:     q,
		fallback:  msgListBookings,
	}, &out)
	return out, err
}

// CancelBooking POST /cancel-booking
func (c *Client) CancelBooking(ctx context.Context, who model.Identity, bookingID int64) error {
	return c.do(ctx, call{
		operation: "cancel_booking",
		method:    http.MethodPost,
		path:      "/cancel-booking",
		body:      cancelRequest{BookingID: bookingID, TgID: who.ID},
		fallback:  msgCancelBooking,
	}, nil)
}

// AddDesk POST /admin/add-desk
func (c *Client) AddDesk(ctx context.Context, admin model.Identity, officeID int64, name string) (*model.AdminDesk, error) {
	var d model.AdminDesk
	err := c.do(ctx, call{
		operation: "admin_add_desk",
		method:    http.MethodPost,
		path:      "/admin/add-desk",
		query:     adminQuery(admin),
		body:      addDeskRequest{OfficeID: officeID, DeskName: name},
		fallback:  msgAddDesk,
	}, &d)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// RemoveDesk POST /admin/remove-desk
func (c *Client) RemoveDesk(ctx context.Context, admin model.Identity, deskID int64) error {
	return c.do(ctx, call{
		operation: "admin_remove_desk",
		method:    http.MethodPost,
		path:      "/admin/remove-desk",
		query:     adminQuery(admin),
		body:      removeDeskRequest{DeskID: deskID},
		fallback:  msgRemoveDesk,
	}, nil)
}

// AddOffice POST /admin/add-office
func (c *Client) AddOffice(ctx context.Context, admin model.Identity, name string) (*model.Office, error) {
	var o model.Office
	err := c.do(ctx, call{
		operation: "admin_add_office",
		method:    http.MethodPost,
		path:      "/admin/add-office",
		query:     adminQuery(admin),
		body:      addOfficeRequest{Name: name},
		fallback:  msgAddOffice,
	}, &o)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// RemoveOffice POST /admin/remove-office
func (c *Client) RemoveOffice(ctx context.Context, admin model.Identity, officeID int64) error {
	return c.do(ctx, call{
		operation: "admin_remove_office",
		method:    http.MethodPost,
		path:      "/admin/remove-office",
		query:     adminQuery(admin),
		body:      removeOfficeRequest{OfficeID: officeID},
		fallback:  msgRemoveOffice,
	}, nil)
}

// ListAdminDesks GET /admin/desks
func (c *Client) ListAdminDesks(ctx context.Context, admin model.Identity) ([]model.AdminDesk, error) {
	var out []model.AdminDesk
	err := c.do(ctx, call{
		operation: "admin_list_desks",
		method:    http.MethodGet,
		path:      "/admin/desks",
		query:     adminQuery(admin),
		fallback:  msgListAdminDesks,
	}, &out)
	return out, err
}
