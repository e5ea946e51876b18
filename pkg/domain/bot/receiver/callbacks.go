package receiver

import (
	"strconv"
	"strings"
)

// ---------- Callback keys ----------

const (
	CbNoop = "noop"

	CbTabBook  = "tab:book"
	CbTabMy    = "tab:my"
	CbTabAdmin = "tab:admin"

	CbProfileEdit   = "profile:edit"
	CbProfileCancel = "profile:cancel"
	CbProfileRetry  = "profile:retry"

	CbWeekPrev    = "w:prev"
	CbWeekNext    = "w:next"
	CbBook        = "bk"
	CbDialogClose = "dlg:close"
	CbReload      = "reload"

	CbMyRange  = "my:range"
	CbMyReload = "my:reload"

	CbYes         = "yes"
	CbNo          = "no"
	CbInputCancel = "input:cancel"

	CbAdminAddDesk      = "a:add-desk"
	CbAdminAddOffice    = "a:add-office"
	CbAdminRemoveDesk   = "a:rm-desk"
	CbAdminRemoveOffice = "a:rm-office"
	CbAdminBack         = "a:back"
	CbAdminReload       = "a:reload"

	POffice        = "o:"    // o:1
	PDay           = "d:"    // d:2024-06-10
	PDesk          = "desk:" // desk:5
	PSlot          = "s:"    // s:FULL
	PCancel        = "c:"    // c:99
	PAddDeskOffice = "ao:"   // ao:1
	PRemoveDesk    = "rd:"   // rd:5
	PRemoveOffice  = "ro:"   // ro:1

	padmin = "a:"
)

func Is(k, prefix string) (string, bool) {
	if strings.HasPrefix(k, prefix) {
		return strings.TrimPrefix(k, prefix), true
	}
	return "", false
}

func ID(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

func isAdminCallback(data string) bool {
	for _, p := range []string{padmin, PAddDeskOffice, PRemoveDesk, PRemoveOffice} {
		if strings.HasPrefix(data, p) {
			return true
		}
	}
	return data == CbTabAdmin
}
