package receiver

import (
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/tg_desk_bot/pkg/domain/booking"
	"github.com/napryag/tg_desk_bot/pkg/domain/bot/receiver/keyboards"
	"github.com/napryag/tg_desk_bot/pkg/domain/notice"
	"github.com/napryag/tg_desk_bot/pkg/domain/profile"
	"github.com/napryag/tg_desk_bot/pkg/domain/week"
	"github.com/napryag/tg_desk_bot/pkg/repository/model"
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
)

// MaxListed caps the bookings put on one screen so the message stays within
// Telegram's text and inline keyboard limits.
const MaxListed = 30

// listed returns the bookings to show and how many were left out.
func listed(all []model.Booking) ([]model.Booking, int) {
	if len(all) <= MaxListed {
		return all, 0
	}
	return all[:MaxListed], len(all) - MaxListed
}

var weekdays = [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

func HumanDate(t time.Time) string {
	return fmt.Sprintf("%s, %s", weekdays[t.Weekday()], t.Format("02.01.2006"))
}

func ShortDate(t time.Time) string {
	return t.Format("02.01")
}

func choiceTitle(c booking.Choice) string {
	switch c {
	case booking.ChoicePM:
		return "Вечер"
	case booking.ChoiceFull:
		return "Весь день"
	default:
		return "Утро"
	}
}

func tierIcon(t booking.Tier) string {
	switch t {
	case booking.FullyBooked:
		return "🔴"
	case booking.PartiallyBooked:
		return "🟡"
	default:
		return "🟢"
	}
}

func slotText(a model.SlotAvailability) string {
	if a.IsFree() {
		return "свободно"
	}
	if who := a.Occupant(); who != "" {
		return "занято (" + html.EscapeString(who) + ")"
	}
	return "занято"
}

func writeNotice(b *strings.Builder, n notice.Notice) {
	if n.Empty() {
		return
	}
	fmt.Fprintf(b, "%s %s\n\n", n.Icon(), html.EscapeString(n.Text))
}

func writeError(b *strings.Builder, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(b, "❌ %s\n\n", html.EscapeString(errs.Message(err)))
}

// ---------- Rendering по состоянию ----------

func RenderText(sess *Session) string {
	ps := sess.Profile.Snapshot()
	var b strings.Builder

	switch ps.State {
	case profile.Loading:
		return "Загрузка данных пользователя..."
	case profile.Failed:
		writeError(&b, ps.LoadErr)
		b.WriteString("Попробуйте перезагрузить приложение.")
		return b.String()
	case profile.SetupRequired:
		b.WriteString("<b>Добро пожаловать!</b>\n")
		b.WriteString("Пожалуйста, укажите ваше имя. Оно будет отображаться другим пользователям при бронировании.\n\n")
		writeError(&b, ps.FormErr)
		b.WriteString("Отправьте имя сообщением (от 2 до 50 символов).")
		return b.String()
	}

	if ps.Editing {
		b.WriteString("<b>Редактировать имя</b>\n")
		writeError(&b, ps.FormErr)
		b.WriteString("Введите новое имя для отображения:")
		return b.String()
	}

	fmt.Fprintf(&b, "Привет, <b>%s</b>!\n\n", html.EscapeString(ps.Profile.Name()))
	writeNotice(&b, sess.Notice)

	switch sess.Tab {
	case TabMy:
		renderMyText(&b, sess)
	case TabAdmin:
		renderAdminText(&b, sess)
	default:
		renderBookingText(&b, sess.Booking.View())
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderBookingText(b *strings.Builder, v booking.View) {
	if d := v.Dialog; d != nil {
		fmt.Fprintf(b, "<b>Бронирование: %s</b>\n", html.EscapeString(booking.DeskTitle(d.Desk.ID, d.Desk.Name)))
		fmt.Fprintf(b, "Дата: %s\n", HumanDate(d.Day))
		fmt.Fprintf(b, "Утро: %s\n", slotText(d.Desk.AvailabilitySlots.AM))
		fmt.Fprintf(b, "Вечер: %s\n", slotText(d.Desk.AvailabilitySlots.PM))
		fmt.Fprintf(b, "Выбрано: %s\n\n", choiceTitle(d.Choice))
		writeError(b, d.Err)
		return
	}

	b.WriteString("<b>Бронирование стола</b>\n")
	writeNotice(b, v.Notice)

	if v.OfficeID == 0 {
		b.WriteString("Выберите офис:")
		return
	}
	fmt.Fprintf(b, "Офис: %s\n", html.EscapeString(v.OfficeName()))
	fmt.Fprintf(b, "Неделя: %s – %s\n", ShortDate(v.WeekStart), ShortDate(v.WeekEnd))
	fmt.Fprintf(b, "Дата: %s\n\n", HumanDate(v.Selected))

	switch {
	case v.Loading:
		b.WriteString("Загрузка столов...")
	case v.LoadErr != nil:
		writeError(b, v.LoadErr)
	case len(v.Desks) == 0:
		b.WriteString("В этом офисе нет столов.")
	default:
		for _, d := range v.Desks {
			fmt.Fprintf(b, "%s %s: утро %s, вечер %s\n",
				tierIcon(booking.TierOf(d)),
				html.EscapeString(booking.DeskTitle(d.ID, d.Name)),
				slotText(d.AvailabilitySlots.AM),
				slotText(d.AvailabilitySlots.PM),
			)
		}
	}
}

func bookingLine(bk model.Booking) string {
	date := "Неверная дата"
	if day, err := bk.Day(); err == nil {
		date = day.Format("02.01.2006")
	}
	desk := bk.DeskName
	if desk == "" {
		desk = fmt.Sprintf("Стол #%d", bk.DeskID)
	}
	return fmt.Sprintf("%s (%s), %s, офис: %s",
		date, booking.SlotTitle(bk.TimeSlot), html.EscapeString(desk), html.EscapeString(bk.OfficeName))
}

func renderMyText(b *strings.Builder, sess *Session) {
	s := sess.My.Snapshot()

	b.WriteString("<b>Мои бронирования</b>\n")
	fmt.Fprintf(b, "Период: %s – %s\n\n", s.Range.From.Format("02.01.2006"), s.Range.To.Format("02.01.2006"))

	if sess.Input == InputRange {
		writeError(b, s.Err)
		b.WriteString("Отправьте период сообщением: <code>ГГГГ-ММ-ДД ГГГГ-ММ-ДД</code>")
		return
	}
	if s.Pending != nil {
		b.WriteString("Вы уверены, что хотите отменить это бронирование?\n")
		b.WriteString(bookingLine(*s.Pending))
		return
	}

	writeNotice(b, s.Notice)
	writeError(b, s.Err)
	shown, hidden := listed(s.Bookings)
	for _, bk := range shown {
		fmt.Fprintf(b, "• %s\n", bookingLine(bk))
	}
	if hidden > 0 {
		fmt.Fprintf(b, "\n<i>Показаны первые %d из %d. Сузьте период, чтобы увидеть остальные.</i>\n",
			len(shown), len(s.Bookings))
	}
}

func renderAdminText(b *strings.Builder, sess *Session) {
	s := sess.Admin.Snapshot()

	b.WriteString("<b>Администрирование</b>\n")
	writeNotice(b, s.Notice)

	if s.Pending != nil {
		fmt.Fprintf(b, "%s\n%s", s.Pending.Prompt(), html.EscapeString(s.Pending.Name))
		return
	}

	switch {
	case sess.Input == InputOfficeName:
		b.WriteString("Отправьте название нового офиса.")
	case sess.Input == InputDeskName:
		fmt.Fprintf(b, "Отправьте название стола для офиса %s.", html.EscapeString(officeName(s.Offices, sess.DeskOfficeID)))
	case sess.AdminScreen == AdminPickOfficeForDesk:
		b.WriteString("Выберите офис для добавления стола:")
	case sess.AdminScreen == AdminPickDesk:
		b.WriteString("Выберите стол для удаления:")
	case sess.AdminScreen == AdminPickOffice:
		b.WriteString("Выберите офис для удаления:")
	default:
		fmt.Fprintf(b, "Офисов: %d, столов: %d\n", len(s.Offices), len(s.Desks))
		for _, d := range s.Desks {
			fmt.Fprintf(b, "• %s (%s)\n", html.EscapeString(booking.DeskTitle(d.ID, d.Name)), html.EscapeString(d.OfficeName))
		}
	}
}

func officeName(offices []model.Office, id int64) string {
	for _, o := range offices {
		if o.ID == id {
			return o.Name
		}
	}
	return fmt.Sprintf("ID %d", id)
}

func RenderKeyboard(sess *Session) tgbotapi.InlineKeyboardMarkup {
	ps := sess.Profile.Snapshot()
	kb := keyboards.New()

	switch ps.State {
	case profile.Failed:
		return kb.Row(keyboards.Button("🔄 Попробовать снова", CbProfileRetry)).Markup()
	case profile.Loading, profile.SetupRequired:
		return kb.Markup()
	}
	if ps.Editing {
		return kb.Row(keyboards.Button("✖️ Отмена", CbProfileCancel)).Markup()
	}

	switch sess.Tab {
	case TabMy:
		myKeyboard(kb, sess)
	case TabAdmin:
		adminKeyboard(kb, sess)
	default:
		bookingKeyboard(kb, sess)
	}
	return kb.Markup()
}

func tabsRow(sess *Session) []tgbotapi.InlineKeyboardButton {
	row := []tgbotapi.InlineKeyboardButton{
		keyboards.Button(keyboards.Marked(sess.Tab == TabBook, "📅 Бронь"), CbTabBook),
		keyboards.Button(keyboards.Marked(sess.Tab == TabMy, "🗂 Мои брони"), CbTabMy),
	}
	if sess.IsAdmin {
		row = append(row, keyboards.Button(keyboards.Marked(sess.Tab == TabAdmin, "⚙️ Админ"), CbTabAdmin))
	}
	return row
}

func bookingKeyboard(kb *keyboards.Keyboard, sess *Session) {
	v := sess.Booking.View()

	if d := v.Dialog; d != nil {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 3)
		for _, c := range []booking.Choice{booking.ChoiceAM, booking.ChoicePM, booking.ChoiceFull} {
			label := choiceTitle(c)
			if !d.Enabled(c) {
				label = "🚫 " + label
			}
			row = append(row, keyboards.Button(keyboards.Marked(d.Choice == c, label), PSlot+string(c)))
		}
		kb.Row(row...)
		kb.Row(keyboards.Button("✅ Забронировать", CbBook))
		kb.Row(keyboards.Button("✖️ Закрыть", CbDialogClose))
		return
	}

	kb.Row(tabsRow(sess)...)

	offices := make([]tgbotapi.InlineKeyboardButton, 0, len(v.Offices))
	for _, o := range v.Offices {
		offices = append(offices, keyboards.Button(keyboards.Marked(o.ID == v.OfficeID, o.Name), ID(POffice, o.ID)))
	}
	kb.Grid(3, offices...)

	if v.OfficeID != 0 {
		kb.Row(
			keyboards.Button("◀️", CbWeekPrev),
			keyboards.Button(fmt.Sprintf("%s – %s", ShortDate(v.WeekStart), ShortDate(v.WeekEnd)), CbNoop),
			keyboards.Button("▶️", CbWeekNext),
		)

		days := make([]tgbotapi.InlineKeyboardButton, 0, week.WorkDays)
		for _, d := range v.Days {
			label := fmt.Sprintf("%s %s", weekdays[d.Date.Weekday()], d.Date.Format("02"))
			if d.Today {
				label += "*"
			}
			days = append(days, keyboards.Button(keyboards.Marked(d.Selected, label), PDay+model.FormatDate(d.Date)))
		}
		kb.Row(days...)

		desks := make([]tgbotapi.InlineKeyboardButton, 0, len(v.Desks))
		for _, d := range v.Desks {
			label := tierIcon(booking.TierOf(d)) + " " + booking.DeskTitle(d.ID, d.Name)
			desks = append(desks, keyboards.Button(label, ID(PDesk, d.ID)))
		}
		kb.Grid(2, desks...)
	}

	kb.Row(
		keyboards.Button("🔄 Обновить", CbReload),
		keyboards.Button("✏️ Имя", CbProfileEdit),
	)
}

func myKeyboard(kb *keyboards.Keyboard, sess *Session) {
	s := sess.My.Snapshot()

	if sess.Input == InputRange {
		kb.Row(keyboards.Button("✖️ Отмена", CbInputCancel))
		return
	}
	if s.Pending != nil {
		kb.Row(
			keyboards.Button("Да, отменить", CbYes),
			keyboards.Button("Нет", CbNo),
		)
		return
	}

	kb.Row(tabsRow(sess)...)
	shown, _ := listed(s.Bookings)
	for _, bk := range shown {
		label := fmt.Sprintf("❌ Отменить: %s", booking.SlotTitle(bk.TimeSlot))
		if day, err := bk.Day(); err == nil {
			label = fmt.Sprintf("❌ Отменить: %s %s", ShortDate(day), booking.SlotTitle(bk.TimeSlot))
		}
		kb.Row(keyboards.Button(label, ID(PCancel, bk.ID)))
	}
	kb.Row(
		keyboards.Button("📆 Период", CbMyRange),
		keyboards.Button("🔄 Обновить", CbMyReload),
	)
}

func adminKeyboard(kb *keyboards.Keyboard, sess *Session) {
	s := sess.Admin.Snapshot()

	if s.Pending != nil {
		kb.Row(
			keyboards.Button("Да, удалить", CbYes),
			keyboards.Button("Нет", CbNo),
		)
		return
	}
	if sess.Input != InputNone {
		kb.Row(keyboards.Button("✖️ Отмена", CbInputCancel))
		return
	}

	switch sess.AdminScreen {
	case AdminPickOfficeForDesk, AdminPickOffice:
		prefix := PAddDeskOffice
		if sess.AdminScreen == AdminPickOffice {
			prefix = PRemoveOffice
		}
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(s.Offices))
		for _, o := range s.Offices {
			buttons = append(buttons, keyboards.Button(o.Name, ID(prefix, o.ID)))
		}
		kb.Grid(2, buttons...)
		kb.Row(keyboards.Button("⬅️ Назад", CbAdminBack))
		return
	case AdminPickDesk:
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(s.Desks))
		for _, d := range s.Desks {
			label := fmt.Sprintf("%s (%s)", booking.DeskTitle(d.ID, d.Name), d.OfficeName)
			buttons = append(buttons, keyboards.Button(label, ID(PRemoveDesk, d.ID)))
		}
		kb.Grid(2, buttons...)
		kb.Row(keyboards.Button("⬅️ Назад", CbAdminBack))
		return
	}

	kb.Row(tabsRow(sess)...)
	kb.Row(
		keyboards.Button("➕ Стол", CbAdminAddDesk),
		keyboards.Button("➕ Офис", CbAdminAddOffice),
	)
	kb.Row(
		keyboards.Button("🗑 Стол", CbAdminRemoveDesk),
		keyboards.Button("🗑 Офис", CbAdminRemoveOffice),
	)
	kb.Row(keyboards.Button("🔄 Обновить", CbAdminReload))
}
