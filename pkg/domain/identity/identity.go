package identity

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/tg_desk_bot/pkg/repository/model"
)

// DefaultFallbackID is used when no Telegram user is attached to an update.
const DefaultFallbackID int64 = 123456789

// Resolver maps the Telegram sender of an update to the identity the backend knows.
type Resolver struct {
	fallback model.Identity
}

// NewResolver returns a resolver with the given placeholder identity.
// A zero fallback id is replaced with DefaultFallbackID.
func NewResolver(fallback model.Identity) *Resolver {
	if fallback.ID == 0 {
		fallback.ID = DefaultFallbackID
	}
	return &Resolver{fallback: fallback}
}

// Resolve never fails: a missing user is a normal condition and yields the fallback identity.
func (r *Resolver) Resolve(u *tgbotapi.User) model.Identity {
	if u == nil || u.ID == 0 {
		return r.fallback
	}
	return model.Identity{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// FromUpdate picks the sender of a message or callback query.
func (r *Resolver) FromUpdate(update tgbotapi.Update) model.Identity {
	return r.Resolve(update.SentFrom())
}
