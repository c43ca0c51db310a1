package handler

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"ladder-bot/internal/model"
	"ladder-bot/internal/service"
)

// AccountHandler handles player registration and in-game names.
type AccountHandler struct {
	players *service.PlayerService
	roles   Roles
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(players *service.PlayerService, roles Roles) *AccountHandler {
	return &AccountHandler{players: players, roles: roles}
}

// HandleHelp lists the player commands.
func (h *AccountHandler) HandleHelp(c tele.Context) error {
	return c.Reply("🪜 Ladder bot\n\n" +
		"/setname <name> - set your mobile in-game name\n" +
		"/steamname <name> - set your Steam in-game name\n" +
		"/profile [player] - rung and record\n" +
		"/top - leaderboard\n" +
		"/incomplete - your open games\n" +
		"/start <game> <name> - start a game you host\n" +
		"/win <game> [winner] - report a result\n" +
		"/game <game> - game details")
}

// HandleSetName returns the handler for command, which sets the name for
// platform. A moderator replying to someone's message sets that user's name.
func (h *AccountHandler) HandleSetName(command string, platform model.Platform) tele.HandlerFunc {
	return func(c tele.Context) error {
		name := strings.TrimSpace(c.Message().Payload)
		if name == "" {
			return c.Reply(fmt.Sprintf("Usage: %s <%s in-game name>, or %s none to clear it", command, platform, command))
		}

		sender := c.Sender()
		target := sender
		if reply := c.Message().ReplyTo; reply != nil && reply.Sender != nil {
			target = reply.Sender
		}

		ctx, cancel := requestContext()
		defer cancel()

		res, err := h.players.SetName(ctx, callerOf(h.roles, sender), target.ID, senderName(target), platform, name)
		if err != nil {
			return replyError(c, err)
		}

		handle := res.Player.Handle(platform)
		var msg string
		switch {
		case handle == nil:
			msg = fmt.Sprintf("✅ %s name cleared for %s.", platform, res.Player.Name)
		case res.Created:
			msg = fmt.Sprintf("🎉 Welcome to the ladder, %s! Your %s name is %q and you start on rung %d.", res.Player.Name, platform, *handle, res.Player.Rung)
		default:
			msg = fmt.Sprintf("✅ %s name for %s set to %q.", platform, res.Player.Name, *handle)
		}
		if len(res.Duplicates) > 0 {
			others := make([]string, 0, len(res.Duplicates))
			for _, p := range res.Duplicates {
				others = append(others, p.Name)
			}
			msg += fmt.Sprintf("\n⚠️ Also used by: %s", strings.Join(others, ", "))
		}
		return c.Reply(msg)
	}
}
