package deskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/napryag/tg_desk_bot/pkg/metrics"
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
)

// Default messages per call site, shown when the server gives no detail.
const (
	msgFetchProfile   = "Ошибка загрузки профиля пользователя"
	msgUpdateProfile  = "Ошибка обновления профиля"
	msgListOffices    = "Ошибка загрузки офисов"
	msgListDesks      = "Ошибка загрузки столов"
	msgBookDesk       = "Ошибка бронирования"
	msgListBookings   = "Ошибка загрузки бронирований"
	msgCancelBooking  = "Ошибка отмены бронирования"
	msgAddDesk        = "Ошибка добавления стола"
	msgRemoveDesk     = "Ошибка удаления стола"
	msgAddOffice      = "Ошибка добавления офиса"
	msgRemoveOffice   = "Ошибка удаления офиса"
	msgListAdminDesks = "Ошибка загрузки столов для админа"
)

// Client talks to the desk booking backend over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "deskapi").Logger(),
	}
}

type call struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any
	fallback  string
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// do executes one request and decodes a 2xx body into out (if out is not nil).
func (c *Client) do(ctx context.Context, cl call, out any) error {
	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return errs.New("failed to encode request").Arg("operation", cl.operation).Wrap(err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return errs.New("failed to create request").Arg("operation", cl.operation).Wrap(err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APIRequestDuration.WithLabelValues(cl.operation).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(cl.operation, "error").Inc()
		c.logger.Warn().Err(err).Str("op", cl.operation).Str("request_id", reqID).Msg("request failed")
		return errs.Network(cl.fallback).Arg("operation", cl.operation).Wrap(err)
	}
	defer resp.Body.Close()

	metrics.APIRequestsTotal.WithLabelValues(cl.operation, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Debug().
		Str("op", cl.operation).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(started)).
		Msg("request done")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp, cl)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Network(cl.fallback).Arg("operation", cl.operation).Wrap(err)
	}
	return nil
}

// statusError turns a non-2xx response into a server error carrying the backend detail,
// or the call site default when there is none.
func (c *Client) statusError(resp *http.Response, cl call) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	message := cl.fallback
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		if detail := detailText(eb.Detail); detail != "" {
			message = detail
		}
	}

	c.logger.Warn().
		Str("op", cl.operation).
		Int("status", resp.StatusCode).
		Str("message", message).
		Msg("backend returned error")

	return errs.Server(message).
		Arg("operation", cl.operation).
		Arg("status", resp.StatusCode)
}

// detailText accepts only a string detail; structured validation details are not shown.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
