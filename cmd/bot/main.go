// Package main is the entry point for the ladder bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ladder-bot/internal/bot"
	"ladder-bot/internal/config"
	"ladder-bot/internal/msgcat"
	"ladder-bot/internal/pkg/db"
	"ladder-bot/internal/pkg/lease"
	"ladder-bot/internal/pkg/lock"
	"ladder-bot/internal/repository"
	"ladder-bot/internal/scheduler"
	"ladder-bot/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := msgcat.New(cfg.Messages.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load message catalog")
	}

	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	locker := newLocker(ctx, cfg)

	api, err := bot.NewAPI(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}
	sink := bot.NewTelegramSink(api, cfg.Channels)

	players := service.NewPlayerService(store, sink, msgs)
	games := service.NewGameService(store, lock.NewKeyLock(), sink, msgs)
	matchups := service.NewMatchupService(store, sink, msgs, matchupSeed(cfg))
	signups := service.NewSignupService(store, matchups, sink, msgs, service.SignupSchedule{
		OpenWeekday:  cfg.Ladder.OpenWeekday(),
		CloseWeekday: cfg.Ladder.CloseWeekday(),
	})
	signups.SetPoster(bot.NewSignupPoster(api, cfg.Channels.Signups, msgs))
	logs := service.NewAuditLogService(store, cfg.Ladder.LogSearchLimit)

	sweeper := scheduler.NewSweeper(store, games, players, locker, sink, msgs, scheduler.Rules{
		AutoConfirmAfter: cfg.Ladder.AutoConfirmAfter,
		HostSwitchAfter:  cfg.Ladder.HostSwitchAfter,
		StaleDeleteAfter: cfg.Ladder.StaleDeleteAfter,
	})
	sched, err := scheduler.New(sweeper, signups, locker, cfg.Ladder.SweepInterval, cfg.Ladder.SignupTick)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	telegramBot := bot.New(api, &bot.Dependencies{
		Config:   cfg,
		Players:  players,
		Games:    games,
		Signups:  signups,
		Matchups: matchups,
		Logs:     logs,
		Messages: msgs,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sched.Start()
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	telegramBot.Stop()
	if err := sched.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Failed to stop scheduler")
	}
	log.Info().Msg("Bot stopped gracefully")
}

// openStore connects the configured backend and applies migrations.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func()) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), func() {}
	}

	if err := db.Migrate(cfg.Database.DSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}
	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	return repository.NewPostgresStore(pool.Pool), pool.Close
}

// newLocker shares scheduler leases through Redis when configured.
func newLocker(ctx context.Context, cfg *config.Config) lease.Locker {
	if cfg.Redis.URL == "" {
		return lease.NewLocalLocker()
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	log.Info().Str("addr", opts.Addr).Msg("Using redis for scheduler leases")
	return lease.NewRedisLocker(rdb, cfg.Redis.KeyPrefix)
}

func matchupSeed(cfg *config.Config) int64 {
	if cfg.Ladder.MatchupSeed != 0 {
		return cfg.Ladder.MatchupSeed
	}
	return time.Now().UnixNano()
}
