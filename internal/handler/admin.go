package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"ladder-bot/internal/model"
	"ladder-bot/internal/service"
)

// AdminHandler handles moderator and owner commands on players and the audit log.
type AdminHandler struct {
	players *service.PlayerService
	logs    *service.AuditLogService
	roles   Roles
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(players *service.PlayerService, logs *service.AuditLogService, roles Roles) *AdminHandler {
	return &AdminHandler{players: players, logs: logs, roles: roles}
}

// HandleSetRung handles /setrung <player> <rung>.
func (h *AdminHandler) HandleSetRung(c tele.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("Usage: /setrung <player> <rung>")
	}
	rung, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		return c.Reply("❌ The rung must be a number")
	}

	ctx, cancel := requestContext()
	defer cancel()

	target, err := h.players.Find(ctx, strings.Join(args[:len(args)-1], " "))
	if err != nil {
		return replyError(c, err)
	}
	before := target.Rung
	p, err := h.players.SetRung(ctx, callerOf(h.roles, c.Sender()), target.ID, rung)
	if err != nil {
		return replyError(c, err)
	}

	log.Info().
		Int64("moderator_id", c.Sender().ID).
		Int64("player_id", p.ID).
		Int("before", before).
		Int("after", p.Rung).
		Str("operation", "set_rung").
		Msg("Moderator operation executed")

	return c.Reply(fmt.Sprintf("✅ %s moved from rung %d to %d.", p.Name, before, p.Rung))
}

// HandleDeactivate handles /deactivate <player>.
func (h *AdminHandler) HandleDeactivate(c tele.Context) error {
	q := strings.TrimSpace(c.Message().Payload)
	if q == "" {
		return c.Reply("Usage: /deactivate <player>")
	}

	ctx, cancel := requestContext()
	defer cancel()

	target, err := h.players.Find(ctx, q)
	if err != nil {
		return replyError(c, err)
	}
	res, err := h.players.Deactivate(ctx, target.ID)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf(
		"✅ %s deactivated.\nSignups removed: %d\nIncomplete games: %d",
		res.Player.Name, res.RemovedSignups, res.Incomplete,
	))
}

// HandleActivate handles /activate <player>.
func (h *AdminHandler) HandleActivate(c tele.Context) error {
	q := strings.TrimSpace(c.Message().Payload)
	if q == "" {
		return c.Reply("Usage: /activate <player>")
	}

	ctx, cancel := requestContext()
	defer cancel()

	target, err := h.players.Find(ctx, q)
	if err != nil {
		return replyError(c, err)
	}
	p, err := h.players.Activate(ctx, target.ID)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("✅ %s is active again.", p.Name))
}

// HandleDeletePlayer handles /delete_player <player>.
func (h *AdminHandler) HandleDeletePlayer(c tele.Context) error {
	q := strings.TrimSpace(c.Message().Payload)
	if q == "" {
		return c.Reply("Usage: /delete_player <player>")
	}

	ctx, cancel := requestContext()
	defer cancel()

	target, err := h.players.Find(ctx, q)
	if err != nil {
		return replyError(c, err)
	}
	if err := h.players.DeletePlayer(ctx, callerOf(h.roles, c.Sender()), target.ID); err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("🗑 %s deleted.", target.Name))
}

// HandleLogs handles /logs [game] [keywords] [-exclude].
func (h *AdminHandler) HandleLogs(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	entries, err := h.logs.Search(ctx, callerOf(h.roles, c.Sender()), c.Message().Payload)
	if err != nil {
		return replyError(c, err)
	}
	if len(entries) == 0 {
		return c.Reply("No matching log entries.")
	}
	return replyLong(c, formatLogs(entries))
}

func formatLogs(entries []*model.GameLog) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		ref := "-"
		if e.GameID != nil {
			ref = fmt.Sprintf("#%d", *e.GameID)
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", e.CreatedAt.UTC().Format("2006-01-02 15:04"), ref, e.Message))
	}
	return strings.Join(lines, "\n")
}

// HandlePurgeLogs handles /purge_logs.
func (h *AdminHandler) HandlePurgeLogs(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	n, err := h.logs.Purge(ctx, callerOf(h.roles, c.Sender()))
	if err != nil {
		return replyError(c, err)
	}
	log.Info().Int64("owner_id", c.Sender().ID).Int64("deleted", n).Msg("Audit log purged")
	return c.Reply(fmt.Sprintf("🗑 %d log entries deleted.", n))
}
