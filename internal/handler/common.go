// Package handler provides Telegram bot command handlers. Handlers parse
// arguments, call a service and format the reply; they hold no state.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"ladder-bot/internal/model"
	"ladder-bot/internal/msgcat"
	"ladder-bot/internal/service"
)

const requestTimeout = 15 * time.Second

// Roles reports a user's privileges.
type Roles interface {
	IsModerator(userID int64) bool
	IsOwner(userID int64) bool
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// callerOf builds the service caller for a Telegram user.
func callerOf(roles Roles, u *tele.User) service.Caller {
	return service.Caller{
		ID:          u.ID,
		IsModerator: roles.IsModerator(u.ID),
		IsOwner:     roles.IsOwner(u.ID),
	}
}

// senderName is the display name used when registering a player.
func senderName(u *tele.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

// parseGameID accepts "12" or "#12".
func parseGameID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("❌ %q is not a game number", s)
	}
	return id, nil
}

// userMessages maps service errors to replies, most specific first.
var userMessages = []struct {
	err error
	msg string
}{
	{service.ErrConflictDetected, "⚠️ The two win claims disagree, so both were cancelled. Sort it out and claim again, or ask a moderator."},
	{service.ErrGameNotFound, "❌ No game with that number."},
	{service.ErrPlayerNotFound, "❌ No matching player. Register with /setname <mobile name> or /steamname <steam name>."},
	{service.ErrAmbiguousTarget, "❌ That matches more than one player, please be more specific."},
	{service.ErrAlreadyStarted, "❌ That game has already been started."},
	{service.ErrNotStarted, "❌ That game has not been started yet."},
	{service.ErrNotClaimed, "❌ That game has no pending win claim."},
	{service.ErrNotConfirmed, "❌ That game is not confirmed."},
	{service.ErrAlreadyConfirmed, "❌ That game is already confirmed."},
	{service.ErrGameComplete, "❌ That game is already complete."},
	{service.ErrNotParticipant, "❌ You are not playing in that game."},
	{service.ErrModeratorOnly, "❌ Only moderators can do that."},
	{service.ErrOwnerOnly, "❌ Only the bot owner can do that."},
	{service.ErrNotAuthorized, "❌ Only the host or a moderator can do that."},
	{service.ErrEmptyName, "❌ Please provide a name."},
	{service.ErrNameTooLong, "❌ That name is too long."},
	{service.ErrWinnerNotSide, "❌ The winner must be one of the two players in the game."},
	{service.ErrInvalidRung, "❌ Rungs go from 1 to 12."},
	{service.ErrUnknownPlatform, "❌ Platform must be mobile or steam."},
	{service.ErrSignupsClosed, "❌ Signups are closed right now."},
	{service.ErrSignupsOpen, "❌ Signups are already open."},
	{service.ErrAlreadySignedUp, "You are already signed up."},
	{service.ErrNotSignedUp, "You were not signed up."},
	{service.ErrMissingHandle, "❌ Set your in-game name for that platform first with /setname or /steamname."},
	{service.ErrInactivePlayer, "❌ Your account is inactive. Ask a moderator."},
}

// userMessage renders err for the chat. Unknown errors get a generic reply.
func userMessage(err error) string {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "❌ Something went wrong, please try again later."
}

// replyError answers with the user-facing message for err and logs
// anything unexpected.
func replyError(c tele.Context, err error) error {
	known := false
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			known = true
			break
		}
	}
	if !known {
		log.Error().Err(err).Str("text", c.Text()).Msg("Command failed")
	}
	return c.Reply(userMessage(err))
}

func playerLabel(p *model.Player) string {
	if p == nil {
		return "?"
	}
	return p.Name
}

// formatGame renders one game line.
func formatGame(d *service.GameDetails) string {
	g := d.Game
	var b strings.Builder
	fmt.Fprintf(&b, "#%d [%s, step %d] %s (host) vs %s", g.ID, g.Platform(), g.Step, playerLabel(d.Host), playerLabel(d.Away))
	switch g.State() {
	case model.StatePending:
		b.WriteString(": not started")
	case model.StateStarted:
		fmt.Fprintf(&b, ": started as %q", g.DisplayName())
	case model.StateClaimed:
		fmt.Fprintf(&b, ": %s claims the win", winnerLabel(d))
	case model.StateConfirmed:
		fmt.Fprintf(&b, ": won by %s", winnerLabel(d))
	}
	return b.String()
}

func winnerLabel(d *service.GameDetails) string {
	if d.Game.WinnerID == nil {
		return "?"
	}
	if *d.Game.WinnerID == d.Game.HostID {
		return playerLabel(d.Host)
	}
	return playerLabel(d.Away)
}

// replyLong replies with text split to fit Telegram's message limit.
func replyLong(c tele.Context, text string) error {
	chunks := msgcat.Split(text, msgcat.MaxMessageLen)
	for i, chunk := range chunks {
		var err error
		if i == 0 {
			err = c.Reply(chunk)
		} else {
			err = c.Send(chunk)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
