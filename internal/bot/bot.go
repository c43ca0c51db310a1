// Package bot wires the Telegram bot: middleware, handler registration
// and delivery of notifications.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"ladder-bot/internal/config"
	"ladder-bot/internal/handler"
	"ladder-bot/internal/model"
	"ladder-bot/internal/msgcat"
	"ladder-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	players *service.PlayerService
	users   *privateUsers

	accountHandler *handler.AccountHandler
	rankingHandler *handler.RankingHandler
	gameHandler    *handler.GameHandler
	adminHandler   *handler.AdminHandler
	signupHandler  *handler.SignupHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config   *config.Config
	Players  *service.PlayerService
	Games    *service.GameService
	Signups  *service.SignupService
	Matchups *service.MatchupService
	Logs     *service.AuditLogService
	Messages *msgcat.Catalog
}

// NewAPI connects to Telegram. The returned bot is also the transport for
// TelegramSink and SignupPoster.
func NewAPI(cfg *config.Config) (*tele.Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	timeout := cfg.Bot.PollerTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	teleBot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return teleBot, nil
}

// New registers middleware and handlers on api.
func New(api *tele.Bot, deps *Dependencies) *Bot {
	cfg := deps.Config
	b := &Bot{
		bot:     api,
		cfg:     cfg,
		players: deps.Players,
		users:   newPrivateUsers(),

		accountHandler: handler.NewAccountHandler(deps.Players, cfg),
		rankingHandler: handler.NewRankingHandler(deps.Players, cfg.Ladder.LeaderboardSize),
		gameHandler:    handler.NewGameHandler(deps.Games, deps.Players, cfg),
		adminHandler:   handler.NewAdminHandler(deps.Players, deps.Logs, cfg),
		signupHandler:  handler.NewSignupHandler(deps.Signups, deps.Matchups, deps.Messages, cfg),
	}

	b.registerMiddleware()
	b.registerHandlers()
	return b
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, b.users))
	b.bot.Use(LoggingMiddleware())
	b.bot.Use(b.syncNameMiddleware())
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/help", b.accountHandler.HandleHelp)
	b.bot.Handle("/setname", b.accountHandler.HandleSetName("/setname", model.PlatformMobile))
	b.bot.Handle("/steamname", b.accountHandler.HandleSetName("/steamname", model.PlatformSteam))

	b.bot.Handle("/top", b.rankingHandler.HandleTop)
	b.bot.Handle("/profile", b.rankingHandler.HandleProfile)

	b.bot.Handle("/rename", b.gameHandler.HandleRename)
	b.bot.Handle("/win", b.gameHandler.HandleWin)
	b.bot.Handle("/game", b.gameHandler.HandleGame)
	b.bot.Handle("/incomplete", b.gameHandler.HandleIncomplete)
	b.bot.Handle("/signups", b.signupHandler.HandleRoster)

	modGroup := b.bot.Group()
	modGroup.Use(ModeratorMiddleware(b.cfg))
	modGroup.Handle("/confirm", b.gameHandler.HandleConfirm)
	modGroup.Handle("/unwin", b.gameHandler.HandleUnwin)
	modGroup.Handle("/unstart", b.gameHandler.HandleUnstart)
	modGroup.Handle("/swaphost", b.gameHandler.HandleSwapHost)
	modGroup.Handle("/delete", b.gameHandler.HandleDelete)
	modGroup.Handle("/setrung", b.adminHandler.HandleSetRung)
	modGroup.Handle("/deactivate", b.adminHandler.HandleDeactivate)
	modGroup.Handle("/activate", b.adminHandler.HandleActivate)
	modGroup.Handle("/logs", b.adminHandler.HandleLogs)
	modGroup.Handle("/open_signups", b.signupHandler.HandleOpen)
	modGroup.Handle("/close_signups", b.signupHandler.HandleClose)

	ownerGroup := b.bot.Group()
	ownerGroup.Use(OwnerMiddleware(b.cfg))
	ownerGroup.Handle("/gen", b.signupHandler.HandleGenerate)
	ownerGroup.Handle("/purge_logs", b.adminHandler.HandlePurgeLogs)
	ownerGroup.Handle("/delete_player", b.adminHandler.HandleDeletePlayer)

	b.bot.Handle(tele.OnUserLeft, b.handleUserLeft)
	b.bot.Handle(tele.OnUserJoined, b.handleUserJoined)
	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleStart shows help for a bare /start and starts a game otherwise.
func (b *Bot) handleStart(c tele.Context) error {
	if len(c.Args()) == 0 {
		return b.accountHandler.HandleHelp(c)
	}
	return b.gameHandler.HandleStart(c)
}

// handleUserLeft deactivates players who leave a ladder group.
func (b *Bot) handleUserLeft(c tele.Context) error {
	u := c.Message().UserLeft
	if u == nil || u.IsBot {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := b.players.Deactivate(ctx, u.ID)
	if err != nil {
		log.Debug().Err(err).Int64("user_id", u.ID).Msg("Departed user not deactivated")
		return nil
	}
	log.Info().
		Int64("user_id", u.ID).
		Int64("removed_signups", res.RemovedSignups).
		Int("incomplete_games", res.Incomplete).
		Msg("Player left")
	return nil
}

// handleUserJoined reactivates returning players.
func (b *Bot) handleUserJoined(c tele.Context) error {
	u := c.Message().UserJoined
	if u == nil || u.IsBot {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := b.players.Activate(ctx, u.ID); err != nil {
		log.Debug().Err(err).Int64("user_id", u.ID).Msg("Joined user not reactivated")
	}
	return nil
}

// syncNameMiddleware keeps registered players' display names current.
func (b *Bot) syncNameMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender != nil && c.Message() != nil && !sender.IsBot {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := b.players.SyncName(ctx, sender.ID, strings.TrimSpace(sender.FirstName+" "+sender.LastName)); err != nil {
					log.Warn().Err(err).Int64("user_id", sender.ID).Msg("Failed to sync display name")
				}
				cancel()
			}
			return next(c)
		}
	}
}

// handleCallback routes inline button presses.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot v3 prefixes unique button data with \f.
	data := strings.TrimPrefix(callback.Data, "\f")
	log.Debug().Str("data", data).Msg("Callback received")

	if strings.HasPrefix(data, "signup_") {
		return b.signupHandler.HandleCallback(c, data)
	}
	return c.Respond()
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
