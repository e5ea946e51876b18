package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/tg_desk_bot/pkg/domain/admin"
	"github.com/napryag/tg_desk_bot/pkg/domain/bot/receiver"
	"github.com/napryag/tg_desk_bot/pkg/domain/bot/receiver/config"
	"github.com/napryag/tg_desk_bot/pkg/domain/bot/sender"
	"github.com/napryag/tg_desk_bot/pkg/domain/identity"
	"github.com/napryag/tg_desk_bot/pkg/metrics"
	"github.com/napryag/tg_desk_bot/pkg/repository/deskapi"
	"github.com/napryag/tg_desk_bot/pkg/repository/model"
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to app.yml")
	flag.Parse()

	// 1) Логгер
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	// 2) Загружаем конфиг
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Err(errs.New("failed to load config").Wrap(err)).Msg("config init")
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Err(err).Msg("log level")
			os.Exit(1)
		}
		logger = logger.Level(level)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Err(err).Msg("timezone")
		os.Exit(1)
	}

	if err := run(cfg, loc, logger); err != nil {
		logger.Error().Err(err).Msg("bot stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("bot stopped")
}

func run(cfg *config.Config, loc *time.Location, logger zerolog.Logger) error {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return errs.New("create bot api").Wrap(err)
	}
	bot.Debug = false

	logger.Info().Str("bot", bot.Self.UserName).Msg("authorized")

	// Контекст, завершающийся по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := deskapi.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)
	store := receiver.NewStore(receiver.Deps{
		Repo:   api,
		Now:    func() time.Time { return time.Now().In(loc) },
		Logger: logger,
	})
	out := sender.New(sender.ProcessorConfig{
		Retries:       cfg.SendRetries,
		RatePerSecond: cfg.SendRatePerSecond,
	}, logger, bot)
	resolver := identity.NewResolver(model.Identity{ID: cfg.FallbackUserID})
	handler := receiver.NewHandler(store, resolver, admin.AllowList(cfg.AdminIDs...), out, logger)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 10
	updates := bot.GetUpdatesChan(u)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return metrics.Serve(gctx, cfg.HTTPPort, logger)
	})

	// Останавливаем лонг-поллинг -> канал updates закроется, воркеры завершатся
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down bot")
		bot.StopReceivingUpdates()
		return nil
	})

	for i := 0; i < cfg.WorkerCount; i++ {
		g.Go(func() error {
			for update := range updates {
				handler.Handle(gctx, update)
			}
			return nil
		})
	}

	return g.Wait()
}
