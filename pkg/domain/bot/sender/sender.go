package sender

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/tg_desk_bot/pkg/metrics"
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// BotAPI is the part of *tgbotapi.BotAPI used for outgoing requests.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Processor struct {
	config  ProcessorConfig
	logger  zerolog.Logger
	limiter *rate.Limiter

	bot BotAPI
}

func New(config ProcessorConfig, logger zerolog.Logger, bot BotAPI) *Processor {
	config = config.withDefaults()

	limit := rate.Inf
	if config.RatePerSecond > 0 {
		limit = rate.Limit(config.RatePerSecond)
	}
	return &Processor{
		config:  config,
		logger:  logger.With().Str("component", "sender").Logger(),
		limiter: rate.NewLimiter(limit, 1),
		bot:     bot,
	}
}

// Send delivers a message or an edit and returns the resulting message.
func (p *Processor) Send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	var msg tgbotapi.Message
	err := p.retry(ctx, "send", func() error {
		var err error
		msg, err = p.bot.Send(c)
		return err
	})
	return msg, err
}

// Request is Send for methods without a message in the response (callbacks, deletes).
func (p *Processor) Request(ctx context.Context, c tgbotapi.Chattable) error {
	return p.retry(ctx, "request", func() error {
		_, err := p.bot.Request(c)
		return err
	})
}

// Edit replaces the text and inline keyboard of an existing message.
func (p *Processor) Edit(ctx context.Context, chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := p.Send(ctx, edit)
	return err
}

func (p *Processor) retry(ctx context.Context, op string, fn func() error) error {
	p.logger.Trace().Str("op", op).Msg("In")
	defer p.logger.Trace().Str("op", op).Msg("Out")

	var err error
	delay := p.config.BaseDelay
	for i := 0; i < p.config.Retries; i++ {
		if werr := p.limiter.Wait(ctx); werr != nil {
			return errs.New("send cancelled").Wrap(werr)
		}

		err = fn()
		if err == nil || notModified(err) {
			metrics.MessagesSent.WithLabelValues("ok").Inc()
			return nil
		}

		pause, retryable := backoff(err, delay)
		if !retryable {
			break
		}
		p.logger.Warn().Err(err).Int("retry", i+1).Msg("send failed, retrying")
		if i == p.config.Retries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return errs.New("send cancelled").Wrap(ctx.Err())
		case <-time.After(pause):
		}
		delay *= 2
	}
	metrics.MessagesSent.WithLabelValues("error").Inc()
	p.logger.Error().Err(err).Str("op", op).Msg("send permanently failed")

	return errs.New("failed to send message").Arg("op", op).Wrap(err)
}

// backoff honours Telegram's retry_after and refuses to retry client errors.
func backoff(err error, delay time.Duration) (time.Duration, bool) {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return delay, true
	}
	if tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second, true
	}
	switch tgErr.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return 0, false
	}
	return delay, true
}

// notModified is Telegram's answer to an edit that changes nothing.
func notModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
