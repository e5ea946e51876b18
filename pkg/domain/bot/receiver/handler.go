package receiver

import (
	"context"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/tg_desk_bot/pkg/domain/admin"
	"github.com/napryag/tg_desk_bot/pkg/domain/booking"
	"github.com/napryag/tg_desk_bot/pkg/domain/identity"
	"github.com/napryag/tg_desk_bot/pkg/domain/notice"
	"github.com/napryag/tg_desk_bot/pkg/domain/profile"
	"github.com/napryag/tg_desk_bot/pkg/domain/week"
	"github.com/napryag/tg_desk_bot/pkg/metrics"
	"github.com/napryag/tg_desk_bot/pkg/repository/model"
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
)

const (
	msgUseButtons    = "Пожалуйста, используйте кнопки 👆"
	msgPressStart    = "Нажмите /start, чтобы открыть бронирование."
	msgNoAccess      = "Нет доступа к администрированию."
	msgUnknownButton = "Кнопка устарела, обновите экран."

	// DefaultRemindTTL is how long the "use buttons" reminder stays in the chat.
	DefaultRemindTTL = 5 * time.Second
)

// Sender delivers messages to Telegram.
type Sender interface {
	Send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(ctx context.Context, c tgbotapi.Chattable) error
	Edit(ctx context.Context, chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error
}

type Handler struct {
	store     *Store
	resolver  *identity.Resolver
	authorize admin.Authorizer
	out       Sender
	logger    zerolog.Logger

	RemindTTL time.Duration
}

func NewHandler(store *Store, resolver *identity.Resolver, authorize admin.Authorizer, out Sender, logger zerolog.Logger) *Handler {
	if authorize == nil {
		authorize = admin.AllowList()
	}
	return &Handler{
		store:     store,
		resolver:  resolver,
		authorize: authorize,
		out:       out,
		logger:    logger.With().Str("component", "receiver").Logger(),
		RemindTTL: DefaultRemindTTL,
	}
}

func updateKind(u tgbotapi.Update) string {
	switch {
	case u.Message != nil && u.Message.IsCommand():
		return "command"
	case u.Message != nil:
		return "message"
	case u.CallbackQuery != nil:
		return "callback"
	default:
		return "other"
	}
}

// Handle processes one update. Updates of the same user are handled one at a time.
func (h *Handler) Handle(ctx context.Context, update tgbotapi.Update) {
	kind := updateKind(update)
	started := time.Now()
	defer func() {
		metrics.UpdatesTotal.WithLabelValues(kind).Inc()
		metrics.UpdateDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	}()

	if kind == "other" {
		return
	}

	who := h.resolver.FromUpdate(update)
	sess := h.store.Get(who.ID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Identity = who
	sess.IsAdmin = h.authorize(who.ID)

	log := h.logger.With().Int64("tg_id", who.ID).Str("kind", kind).Logger()
	ctx = log.WithContext(ctx)

	if m := update.Message; m != nil {
		h.handleMessage(ctx, sess, m)
		return
	}
	h.handleCallback(ctx, sess, update.CallbackQuery)
}

func (h *Handler) handleMessage(ctx context.Context, sess *Session, m *tgbotapi.Message) {
	if m.IsCommand() && m.Command() == "start" {
		h.start(ctx, sess, m)
		return
	}

	if m.Text == "" || !sess.AwaitsInput() || sess.MessageID == 0 {
		h.remind(ctx, m, sess.MessageID == 0)
		return
	}

	h.delete(ctx, m.Chat.ID, m.MessageID)
	sess.Notice = notice.Notice{}
	h.handleInput(ctx, sess, m.Text)
	h.render(ctx, sess)
}

// start shows a fresh app message; the old one is left as is.
func (h *Handler) start(ctx context.Context, sess *Session, m *tgbotapi.Message) {
	h.delete(ctx, m.Chat.ID, m.MessageID)

	sess.ResetFlow()
	sess.ChatID = m.Chat.ID
	sess.MessageID = 0
	h.loadProfile(ctx, sess)

	msg := tgbotapi.NewMessage(m.Chat.ID, RenderText(sess))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = RenderKeyboard(sess)
	sent, err := h.out.Send(ctx, msg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("send start menu error")
		return
	}
	sess.MessageID = sent.MessageID
}

func (h *Handler) loadProfile(ctx context.Context, sess *Session) {
	if err := sess.Profile.Load(ctx, sess.Identity); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("profile not loaded")
		return
	}
	h.enterApp(ctx, sess)
}

// enterApp loads the booking tab once the profile is usable.
func (h *Handler) enterApp(ctx context.Context, sess *Session) {
	if sess.started || sess.Profile.Snapshot().State != profile.Ready {
		return
	}
	sess.started = true
	if err := sess.Booking.LoadOffices(ctx); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("offices not loaded")
	}
}

// remind deletes stray text and asks to use the buttons; the reminder removes itself.
func (h *Handler) remind(ctx context.Context, m *tgbotapi.Message, noApp bool) {
	h.delete(ctx, m.Chat.ID, m.MessageID)

	text := msgUseButtons
	if noApp {
		text = msgPressStart
	}
	sent, err := h.out.Send(ctx, tgbotapi.NewMessage(m.Chat.ID, text))
	if err != nil || h.RemindTTL <= 0 {
		return
	}
	go func(chatID int64, mid int) {
		select {
		case <-ctx.Done():
		case <-time.After(h.RemindTTL):
			h.delete(ctx, chatID, mid)
		}
	}(sent.Chat.ID, sent.MessageID)
}

func (h *Handler) handleInput(ctx context.Context, sess *Session, text string) {
	who := sess.Identity
	log := zerolog.Ctx(ctx)

	switch {
	case sess.Profile.AwaitsName():
		if err := sess.Profile.Submit(ctx, who, text); err != nil {
			log.Debug().Err(err).Msg("name rejected")
			return
		}
		h.enterApp(ctx, sess)

	case sess.Input == InputRange:
		fields := strings.Fields(text)
		for len(fields) < 2 {
			fields = append(fields, "")
		}
		err := sess.My.SetRange(ctx, who, fields[0], fields[1])
		if errs.Is(err, errs.KindValidation) {
			return
		}
		sess.Input = InputNone

	case sess.Input == InputOfficeName && sess.IsAdmin:
		if err := sess.Admin.AddOffice(ctx, who, text); errs.Is(err, errs.KindValidation) {
			return
		}
		sess.Input = InputNone
		sess.AdminScreen = AdminMenu

	case sess.Input == InputDeskName && sess.IsAdmin:
		if err := sess.Admin.AddDesk(ctx, who, sess.DeskOfficeID, text); errs.Is(err, errs.KindValidation) {
			return
		}
		sess.Input = InputNone
		sess.AdminScreen = AdminMenu
		sess.DeskOfficeID = 0

	default:
		sess.Input = InputNone
	}
}

func (h *Handler) handleCallback(ctx context.Context, sess *Session, cq *tgbotapi.CallbackQuery) {
	defer func() {
		if err := h.out.Request(ctx, tgbotapi.NewCallback(cq.ID, "")); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("answer callback failed")
		}
	}()
	if cq.Message == nil {
		return
	}
	sess.ChatID = cq.Message.Chat.ID
	sess.MessageID = cq.Message.MessageID
	sess.Notice = notice.Notice{}

	// после перезапуска бота сессия пустая
	if sess.Profile.Snapshot().State == profile.Loading {
		h.loadProfile(ctx, sess)
	}

	if err := h.dispatch(ctx, sess, cq.Data); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("data", cq.Data).Msg("callback rejected")
	}
	h.render(ctx, sess)
}

// dispatch applies one button press. Errors are already reflected in the views.
func (h *Handler) dispatch(ctx context.Context, sess *Session, data string) error {
	who := sess.Identity
	ps := sess.Profile.Snapshot()

	if data == CbNoop {
		return nil
	}
	if data == CbProfileRetry {
		err := sess.Profile.Retry(ctx, who)
		h.enterApp(ctx, sess)
		return err
	}
	if ps.State != profile.Ready {
		return nil
	}
	if isAdminCallback(data) && !sess.IsAdmin {
		sess.Go(TabBook)
		return h.refuse(sess, errs.Validation(msgNoAccess).Arg("data", data))
	}

	switch {
	case data == CbProfileEdit:
		return sess.Profile.OpenEdit()
	case data == CbProfileCancel:
		sess.Profile.CloseEdit()
		return nil

	case data == CbTabBook:
		sess.Go(TabBook)
		return nil
	case data == CbTabMy:
		sess.Go(TabMy)
		return sess.My.Enter(ctx, who)
	case data == CbTabAdmin:
		sess.Go(TabAdmin)
		return sess.Admin.Enter(ctx, who)

	case data == CbWeekPrev:
		return sess.Booking.PageWeek(ctx, week.Prev)
	case data == CbWeekNext:
		return sess.Booking.PageWeek(ctx, week.Next)
	case data == CbReload:
		return sess.Booking.Reload(ctx)
	case data == CbBook:
		_, err := sess.Booking.Submit(ctx, who)
		return err
	case data == CbDialogClose:
		sess.Booking.CloseDialog()
		return nil

	case data == CbMyRange:
		sess.Input = InputRange
		return nil
	case data == CbMyReload:
		return sess.My.Reload(ctx, who)

	case data == CbInputCancel:
		sess.Input = InputNone
		sess.AdminScreen = AdminMenu
		sess.DeskOfficeID = 0
		return nil
	case data == CbYes:
		if sess.Tab == TabAdmin {
			return sess.Admin.Confirm(ctx, who)
		}
		return sess.My.ConfirmCancel(ctx, who)
	case data == CbNo:
		sess.My.AbortCancel()
		sess.Admin.Abort()
		return nil

	case data == CbAdminAddDesk:
		sess.AdminScreen = AdminPickOfficeForDesk
		return nil
	case data == CbAdminAddOffice:
		sess.Input = InputOfficeName
		return nil
	case data == CbAdminRemoveDesk:
		sess.AdminScreen = AdminPickDesk
		return nil
	case data == CbAdminRemoveOffice:
		sess.AdminScreen = AdminPickOffice
		return nil
	case data == CbAdminBack:
		sess.AdminScreen = AdminMenu
		return nil
	case data == CbAdminReload:
		return sess.Admin.Load(ctx, who)
	}

	prefix, arg, ok := splitCallback(data)
	if !ok {
		return h.refuse(sess, errs.Validation(msgUnknownButton).Arg("data", data))
	}

	switch prefix {
	case PDay:
		day, err := time.Parse(model.DateFormat, arg)
		if err != nil {
			return h.refuse(sess, errs.Validation(msgUnknownButton).Arg("data", data).Wrap(err))
		}
		return sess.Booking.SelectDay(ctx, day)
	case PSlot:
		c, err := booking.ParseChoice(arg)
		if err != nil {
			return h.refuse(sess, err)
		}
		return sess.Booking.Choose(c)
	}

	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return h.refuse(sess, errs.Validation(msgUnknownButton).Arg("data", data).Wrap(err))
	}

	switch prefix {
	case POffice:
		return sess.Booking.SelectOffice(ctx, id)
	case PDesk:
		return sess.Booking.OpenDialog(ps.Profile, id)
	case PCancel:
		if err := sess.My.RequestCancel(id); err != nil {
			return h.refuse(sess, err)
		}
		return nil
	case PAddDeskOffice:
		sess.DeskOfficeID = id
		sess.Input = InputDeskName
		return nil
	case PRemoveDesk:
		sess.AdminScreen = AdminMenu
		return sess.Admin.RequestRemoveDesk(id)
	case PRemoveOffice:
		sess.AdminScreen = AdminMenu
		return sess.Admin.RequestRemoveOffice(id)
	}
	return h.refuse(sess, errs.Validation(msgUnknownButton).Arg("data", data))
}

var prefixes = []string{POffice, PDay, PDesk, PSlot, PCancel, PAddDeskOffice, PRemoveDesk, PRemoveOffice}

func splitCallback(data string) (string, string, bool) {
	for _, p := range prefixes {
		if v, ok := Is(data, p); ok {
			return p, v, true
		}
	}
	return "", "", false
}

func (h *Handler) refuse(sess *Session, err error) error {
	sess.Notice = notice.FromError("", err)
	return err
}

func (h *Handler) render(ctx context.Context, sess *Session) {
	if sess.MessageID == 0 {
		return
	}
	if err := h.out.Edit(ctx, sess.ChatID, sess.MessageID, RenderText(sess), RenderKeyboard(sess)); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("render failed")
	}
}

func (h *Handler) delete(ctx context.Context, chatID int64, messageID int) {
	if err := h.out.Request(ctx, tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("delete message failed")
	}
}
