package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"ladder-bot/internal/model"
	"ladder-bot/internal/service"
)

// GameHandler handles commands that move a single game through its states.
type GameHandler struct {
	games   *service.GameService
	players *service.PlayerService
	roles   Roles
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(games *service.GameService, players *service.PlayerService, roles Roles) *GameHandler {
	return &GameHandler{games: games, players: players, roles: roles}
}

// HandleStart handles /start <game> <name>.
func (h *GameHandler) HandleStart(c tele.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("Usage: /start <game number> <in-game name>")
	}
	id, err := parseGameID(args[0])
	if err != nil {
		return c.Reply(err.Error())
	}

	ctx, cancel := requestContext()
	defer cancel()

	res, err := h.games.Start(ctx, callerOf(h.roles, c.Sender()), id, strings.Join(args[1:], " "))
	if err != nil {
		return replyError(c, err)
	}

	msg := fmt.Sprintf("✅ Game #%d started as %q. Good luck!", res.Game.ID, res.Game.DisplayName())
	if res.UnusualName {
		msg += "\n⚠️ That does not look like a generated game name. Use /rename if it was a typo."
	}
	return c.Reply(msg)
}

// HandleRename handles /rename <game> <name>.
func (h *GameHandler) HandleRename(c tele.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("Usage: /rename <game number> <new name>")
	}
	id, err := parseGameID(args[0])
	if err != nil {
		return c.Reply(err.Error())
	}

	ctx, cancel := requestContext()
	defer cancel()

	g, err := h.games.Rename(ctx, callerOf(h.roles, c.Sender()), id, strings.Join(args[1:], " "))
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("✅ Game #%d renamed to %q.", g.ID, g.DisplayName()))
}

// HandleWin handles /win <game> [host|away|player].
// Without a winner the sender claims the win for themselves.
func (h *GameHandler) HandleWin(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("Usage: /win <game number> [host|away|player]")
	}
	id, err := parseGameID(args[0])
	if err != nil {
		return c.Reply(err.Error())
	}

	ctx, cancel := requestContext()
	defer cancel()

	sender := c.Sender()
	winnerID := sender.ID
	if len(args) > 1 {
		winnerID, err = h.winner(ctx, id, strings.Join(args[1:], " "))
		if err != nil {
			return replyError(c, err)
		}
	}

	res, err := h.games.ClaimWin(ctx, callerOf(h.roles, sender), id, winnerID)
	if err != nil && !errors.Is(err, service.ErrConflictDetected) {
		return replyError(c, err)
	}
	if res.Change != nil {
		h.players.SettleAfter(ctx, res.Change)
	}
	return c.Reply(h.claimReply(res))
}

func (h *GameHandler) winner(ctx context.Context, gameID int64, who string) (int64, error) {
	switch strings.ToLower(who) {
	case "host", "away":
		g, err := h.games.Get(ctx, gameID)
		if err != nil {
			return 0, err
		}
		if strings.EqualFold(who, "host") {
			return g.HostID, nil
		}
		return g.AwayID, nil
	}
	p, err := h.players.Find(ctx, who)
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (h *GameHandler) claimReply(res *service.ClaimResult) string {
	g := res.Game
	switch res.Outcome {
	case service.ClaimPending:
		return fmt.Sprintf("⏳ Win claim for game #%d recorded. Waiting for the other player to confirm with /win %d.", g.ID, g.ID)
	case service.ClaimDuplicate:
		return fmt.Sprintf("You already claimed game #%d. Waiting for the other player.", g.ID)
	case service.ClaimConflict:
		return userMessage(service.ErrConflictDetected)
	}
	if res.AlreadyConfirmed {
		return fmt.Sprintf("Game #%d was already confirmed with that winner.", g.ID)
	}
	return fmt.Sprintf("✅ Game #%d confirmed.%s", g.ID, changeText(res.Change))
}

// changeText describes rung movement.
func changeText(ch *service.RungChange) string {
	if ch == nil {
		return ""
	}
	return fmt.Sprintf("\nWinner: rung %d → %d\nLoser: rung %d → %d",
		ch.WinnerBefore, ch.WinnerAfter, ch.LoserBefore, ch.LoserAfter)
}

// HandleConfirm handles /confirm [game]. Without a game it lists pending claims.
func (h *GameHandler) HandleConfirm(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	args := c.Args()
	if len(args) == 0 {
		games, err := h.games.Unconfirmed(ctx)
		if err != nil {
			return replyError(c, err)
		}
		if len(games) == 0 {
			return c.Reply("No games are waiting for confirmation.")
		}
		return replyLong(c, "⏳ Waiting for confirmation:\n\n"+h.listGames(ctx, games))
	}

	id, err := parseGameID(args[0])
	if err != nil {
		return c.Reply(err.Error())
	}
	res, err := h.games.ConfirmWin(ctx, callerOf(h.roles, c.Sender()), id)
	if err != nil {
		return replyError(c, err)
	}
	h.players.SettleAfter(ctx, res.Change)
	return c.Reply(fmt.Sprintf("✅ Game #%d confirmed.%s", res.Game.ID, changeText(res.Change)))
}

// HandleUnwin handles /unwin <game>.
func (h *GameHandler) HandleUnwin(c tele.Context) error {
	id, ok, err := h.singleGame(c, "/unwin <game number>")
	if !ok {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	res, err := h.games.Unwin(ctx, callerOf(h.roles, c.Sender()), id)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("↩️ Result of game #%d reverted, it is back to started.%s", res.Game.ID, changeText(res.Change)))
}

// HandleUnstart handles /unstart <game>.
func (h *GameHandler) HandleUnstart(c tele.Context) error {
	id, ok, err := h.singleGame(c, "/unstart <game number>")
	if !ok {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	g, err := h.games.Unstart(ctx, callerOf(h.roles, c.Sender()), id)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("↩️ Game #%d is back to not started.", g.ID))
}

// HandleSwapHost handles /swaphost <game>.
func (h *GameHandler) HandleSwapHost(c tele.Context) error {
	id, ok, err := h.singleGame(c, "/swaphost <game number>")
	if !ok {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	g, err := h.games.SwapHost(ctx, callerOf(h.roles, c.Sender()), id)
	if err != nil {
		return replyError(c, err)
	}
	host, err := h.players.Get(ctx, g.HostID)
	if err != nil {
		return c.Reply(fmt.Sprintf("🔄 Game #%d: host swapped.", g.ID))
	}
	return c.Reply(fmt.Sprintf("🔄 Game #%d: %s is now the host.", g.ID, host.Name))
}

// HandleDelete handles /delete <game> [-override].
func (h *GameHandler) HandleDelete(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("Usage: /delete <game number> [-override]")
	}
	id, err := parseGameID(args[0])
	if err != nil {
		return c.Reply(err.Error())
	}
	override := len(args) > 1 && strings.EqualFold(args[1], "-override")

	ctx, cancel := requestContext()
	defer cancel()

	g, err := h.games.Delete(ctx, callerOf(h.roles, c.Sender()), id, override)
	if errors.Is(err, service.ErrGameComplete) {
		return c.Reply(fmt.Sprintf("❌ Game #%d is complete. Use /delete %d -override to delete it anyway.", id, id))
	}
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("🗑 Game #%d deleted.", g.ID))
}

// HandleIncomplete handles /incomplete [player]. Moderators may pass "all".
func (h *GameHandler) HandleIncomplete(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	playerID := c.Sender().ID
	if q := strings.TrimSpace(c.Message().Payload); q != "" {
		if strings.EqualFold(q, "all") {
			if !h.roles.IsModerator(c.Sender().ID) {
				return replyError(c, service.ErrModeratorOnly)
			}
			playerID = 0
		} else {
			p, err := h.players.Find(ctx, q)
			if err != nil {
				return replyError(c, err)
			}
			playerID = p.ID
		}
	}

	games, err := h.games.Incomplete(ctx, playerID)
	if err != nil {
		return replyError(c, err)
	}
	if len(games) == 0 {
		return c.Reply("🎉 No incomplete games.")
	}
	return replyLong(c, fmt.Sprintf("📋 Incomplete games (%d):\n\n%s", len(games), h.listGames(ctx, games)))
}

// HandleGame handles /game <game>.
func (h *GameHandler) HandleGame(c tele.Context) error {
	id, ok, err := h.singleGame(c, "/game <game number>")
	if !ok {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	d, err := h.games.Details(ctx, id)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatGame(d))
}

// singleGame parses the only argument of a one-game command. When ok is
// false the usage reply has already been sent and err is its result.
func (h *GameHandler) singleGame(c tele.Context, usage string) (id int64, ok bool, err error) {
	args := c.Args()
	if len(args) != 1 {
		return 0, false, c.Reply("Usage: " + usage)
	}
	id, perr := parseGameID(args[0])
	if perr != nil {
		return 0, false, c.Reply(perr.Error())
	}
	return id, true, nil
}

func (h *GameHandler) listGames(ctx context.Context, games []*model.Game) string {
	lines := make([]string, 0, len(games))
	for _, g := range games {
		d := &service.GameDetails{Game: g}
		if p, err := h.players.Get(ctx, g.HostID); err == nil {
			d.Host = p
		}
		if p, err := h.players.Get(ctx, g.AwayID); err == nil {
			d.Away = p
		}
		lines = append(lines, formatGame(d))
	}
	return strings.Join(lines, "\n")
}
