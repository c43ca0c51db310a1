package handler

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"ladder-bot/internal/model"
	"ladder-bot/internal/service"
)

// RankingHandler handles leaderboard and profile commands.
type RankingHandler struct {
	players *service.PlayerService
	size    int
}

// NewRankingHandler creates a new RankingHandler showing size entries by default.
func NewRankingHandler(players *service.PlayerService, size int) *RankingHandler {
	if size <= 0 {
		size = 20
	}
	return &RankingHandler{players: players, size: size}
}

// HandleTop handles /top [n].
func (h *RankingHandler) HandleTop(c tele.Context) error {
	limit := h.size
	if args := c.Args(); len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return c.Reply("Usage: /top [count]")
		}
		limit = n
	}

	ctx, cancel := requestContext()
	defer cancel()

	players, err := h.players.Leaderboard(ctx, limit)
	if err != nil {
		return replyError(c, err)
	}
	return replyLong(c, formatLeaderboard(players))
}

func formatLeaderboard(players []*model.Player) string {
	var b strings.Builder
	b.WriteString("🏆 Ladder\n━━━━━━━━━━━━━━━\n")
	if len(players) == 0 {
		b.WriteString("No players yet")
		return b.String()
	}
	medals := []string{"🥇", "🥈", "🥉"}
	for i, p := range players {
		pos := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			pos = medals[i]
		}
		fmt.Fprintf(&b, "%s %s: rung %d (%.0f%%)\n", pos, p.Name, p.Rung, p.WinRatio*100)
	}
	return strings.TrimRight(b.String(), "\n")
}

// HandleProfile handles /profile [player].
func (h *RankingHandler) HandleProfile(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	id := c.Sender().ID
	if q := strings.TrimSpace(c.Message().Payload); q != "" {
		p, err := h.players.Find(ctx, q)
		if err != nil {
			return replyError(c, err)
		}
		id = p.ID
	}

	prof, err := h.players.Profile(ctx, id)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatProfile(prof))
}

func formatProfile(prof *service.Profile) string {
	p := prof.Player
	handle := func(h *string) string {
		if h == nil || *h == "" {
			return "-"
		}
		return *h
	}
	status := "active"
	if !p.Active {
		status = "inactive"
	}
	return fmt.Sprintf(
		"👤 %s (%s)\n"+
			"🪜 Rung: %d\n"+
			"🎮 Games: %d, wins: %d\n"+
			"📱 Mobile: %s\n"+
			"💻 Steam: %s",
		p.Name, status, p.Rung, prof.Record.Games, prof.Record.Wins,
		handle(p.MobileName), handle(p.SteamName),
	)
}
