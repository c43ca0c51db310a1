package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"ladder-bot/internal/model"
	"ladder-bot/internal/msgcat"
	"ladder-bot/internal/service"
)

// Callback data of the signup buttons.
const (
	CallbackSignupMobile = "signup_mobile"
	CallbackSignupSteam  = "signup_steam"
	CallbackSignupLeave  = "signup_leave"
)

// CloseAtLayout formats window closing times for players.
const CloseAtLayout = "Monday 02 Jan 15:04 MST"

// SignupMarkup builds the buttons attached to the signup message.
func SignupMarkup() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(
		markup.Row(
			markup.Data("📱 Mobile", CallbackSignupMobile),
			markup.Data("💻 Steam", CallbackSignupSteam),
		),
		markup.Row(markup.Data("🚪 Leave", CallbackSignupLeave)),
	)
	return markup
}

// WindowText renders the signup message for a roster.
func WindowText(msgs *msgcat.Catalog, closeAt time.Time, roster *service.Roster) (string, error) {
	data := map[string]any{
		"CloseAt": closeAt.UTC().Format(CloseAtLayout),
		"Mobile":  []string{},
		"Steam":   []string{},
	}
	if roster != nil {
		data["Mobile"] = playerNames(roster.Mobile)
		data["Steam"] = playerNames(roster.Steam)
	}
	return msgs.Render("signup.window", data)
}

func playerNames(players []*model.Player) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.Name)
	}
	return out
}

// SignupHandler handles signup windows and matchup generation.
type SignupHandler struct {
	signups  *service.SignupService
	matchups *service.MatchupService
	msgs     *msgcat.Catalog
	roles    Roles
}

// NewSignupHandler creates a new SignupHandler.
func NewSignupHandler(signups *service.SignupService, matchups *service.MatchupService, msgs *msgcat.Catalog, roles Roles) *SignupHandler {
	return &SignupHandler{signups: signups, matchups: matchups, msgs: msgs, roles: roles}
}

// HandleOpen handles /open_signups [YYYY-MM-DD].
func (h *SignupHandler) HandleOpen(c tele.Context) error {
	var closeAt time.Time
	if q := strings.TrimSpace(c.Message().Payload); q != "" {
		t, err := time.Parse("2006-01-02", q)
		if err != nil {
			return c.Reply("Usage: /open_signups [closing date as YYYY-MM-DD]")
		}
		closeAt = t
	}

	ctx, cancel := requestContext()
	defer cancel()

	w, err := h.signups.Open(ctx, callerOf(h.roles, c.Sender()), closeAt)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("✅ Signups open until %s.", w.CloseAt.UTC().Format(CloseAtLayout)))
}

// HandleClose handles /close_signups.
func (h *SignupHandler) HandleClose(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	if _, err := h.signups.CloseWindow(ctx, callerOf(h.roles, c.Sender())); err != nil {
		return replyError(c, err)
	}
	return c.Reply("✅ Signups closed. Run /gen to create the games.")
}

// HandleRoster handles /signups.
func (h *SignupHandler) HandleRoster(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	r, err := h.signups.Roster(ctx)
	if err != nil {
		return replyError(c, err)
	}
	if r.Window == nil {
		return c.Reply(fmt.Sprintf("Signups are closed.\nMobile: %d, Steam: %d left over.", len(r.Mobile), len(r.Steam)))
	}
	text, err := WindowText(h.msgs, r.Window.CloseAt, r)
	if err != nil {
		return replyError(c, err)
	}
	return replyLong(c, text)
}

// HandleGenerate handles /gen.
func (h *SignupHandler) HandleGenerate(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	res, err := h.matchups.Generate(ctx, callerOf(h.roles, c.Sender()))
	if err != nil {
		return replyError(c, err)
	}
	msg := fmt.Sprintf("✅ %d games created, starting tribe level %d.", len(res.Games), res.TribeLevel)
	if len(res.Skipped) > 0 {
		msg += fmt.Sprintf("\n⚠️ %d signups skipped for inactive players or missing names.", len(res.Skipped))
	}
	return c.Reply(msg)
}

// HandleCallback handles presses on the signup buttons.
func (h *SignupHandler) HandleCallback(c tele.Context, data string) error {
	sender := c.Sender()

	ctx, cancel := requestContext()
	defer cancel()

	var (
		text string
		err  error
	)
	switch data {
	case CallbackSignupMobile:
		text, err = h.toggle(ctx, sender.ID, model.PlatformMobile)
	case CallbackSignupSteam:
		text, err = h.toggle(ctx, sender.ID, model.PlatformSteam)
	case CallbackSignupLeave:
		text, err = h.leave(ctx, sender.ID)
	default:
		return c.Respond()
	}
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: userMessage(err), ShowAlert: true})
	}
	if err := c.Respond(&tele.CallbackResponse{Text: text}); err != nil {
		log.Warn().Err(err).Msg("Failed to answer callback")
	}
	return h.refresh(ctx, c)
}

// toggle signs the player up for platform, or withdraws them if already signed up.
func (h *SignupHandler) toggle(ctx context.Context, playerID int64, platform model.Platform) (string, error) {
	_, err := h.signups.Add(ctx, playerID, platform)
	switch {
	case err == nil:
		return fmt.Sprintf("✅ Signed up for %s", platform), nil
	case errors.Is(err, service.ErrAlreadySignedUp):
		if err := h.signups.Remove(ctx, playerID, platform); err != nil {
			return "", err
		}
		return fmt.Sprintf("Removed from %s", platform), nil
	}
	return "", err
}

func (h *SignupHandler) leave(ctx context.Context, playerID int64) (string, error) {
	removed := 0
	for _, platform := range []model.Platform{model.PlatformMobile, model.PlatformSteam} {
		err := h.signups.Remove(ctx, playerID, platform)
		switch {
		case err == nil:
			removed++
		case !errors.Is(err, service.ErrNotSignedUp):
			return "", err
		}
	}
	if removed == 0 {
		return "", service.ErrNotSignedUp
	}
	return "Signups withdrawn", nil
}

// refresh redraws the signup message with the current roster.
func (h *SignupHandler) refresh(ctx context.Context, c tele.Context) error {
	r, err := h.signups.Roster(ctx)
	if err != nil || r.Window == nil {
		return err
	}
	text, err := WindowText(h.msgs, r.Window.CloseAt, r)
	if err != nil {
		return err
	}
	if err := c.Edit(text, SignupMarkup()); err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
		log.Warn().Err(err).Msg("Failed to refresh signup message")
	}
	return nil
}
