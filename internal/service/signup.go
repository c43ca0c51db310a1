package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"ladder-bot/internal/model"
	"ladder-bot/internal/msgcat"
	"ladder-bot/internal/notify"
	"ladder-bot/internal/repository"
)

// WindowPoster publishes the signup message that players press to join
// and retires it when the window closes.
type WindowPoster interface {
	PostSignupWindow(ctx context.Context, closeAt time.Time) (chatID, messageID int64, err error)
	CloseSignupWindow(ctx context.Context, chatID, messageID int64) error
}

// SignupSchedule sets when windows open and close.
type SignupSchedule struct {
	OpenWeekday  time.Weekday
	CloseWeekday time.Weekday
}

// DefaultSignupSchedule opens on Saturday and closes at the start of Monday.
var DefaultSignupSchedule = SignupSchedule{OpenWeekday: time.Saturday, CloseWeekday: time.Monday}

// Roster is the current signups grouped by platform.
type Roster struct {
	Window *model.SignupMessage
	Mobile []*model.Player
	Steam  []*model.Player
}

// TickResult reports what a signup tick did.
type TickResult struct {
	Closed  *model.SignupMessage
	Opened  *model.SignupMessage
	Matchup *MatchupResult
}

// SignupService manages weekly signup windows.
type SignupService struct {
	store    repository.Store
	matchups *MatchupService
	poster   WindowPoster
	sink     notify.Sink
	msgs     *msgcat.Catalog
	schedule SignupSchedule
	now      func() time.Time
}

// NewSignupService creates a new SignupService instance.
func NewSignupService(store repository.Store, matchups *MatchupService, sink notify.Sink, msgs *msgcat.Catalog, schedule SignupSchedule) *SignupService {
	return &SignupService{
		store:    store,
		matchups: matchups,
		sink:     sink,
		msgs:     msgs,
		schedule: schedule,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *SignupService) SetClock(now func() time.Time) { s.now = now }

// SetPoster sets where signup messages are published. Without one, windows
// open with zero message ids.
func (s *SignupService) SetPoster(p WindowPoster) { s.poster = p }

// NextWeekday returns midnight UTC of the next day after now that falls on day.
func NextWeekday(now time.Time, day time.Weekday) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	ahead := (int(day) - int(now.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return midnight.AddDate(0, 0, ahead)
}

// OpenWindow records a new open signup window. It fails with
// ErrSignupsOpen when one is already open.
func (s *SignupService) OpenWindow(ctx context.Context, chatID, messageID int64, closeAt time.Time) (*model.SignupMessage, error) {
	var out *model.SignupMessage
	err := s.store.Tx(ctx, func(tx repository.Store) error {
		_, err := tx.OpenSignupMessage(ctx)
		if err == nil {
			return ErrSignupsOpen
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		m := &model.SignupMessage{
			MessageID: messageID,
			ChatID:    chatID,
			IsOpen:    true,
			CloseAt:   closeAt,
			CreatedAt: s.now(),
		}
		if err := tx.CreateSignupMessage(ctx, m); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrSignupsOpen
			}
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("window_id", out.ID).Time("close_at", out.CloseAt).Msg("Signups opened")
	return out, nil
}

// Open posts a signup message and opens a window closing at closeAt.
// Moderator only. A zero closeAt uses the configured close weekday.
func (s *SignupService) Open(ctx context.Context, caller Caller, closeAt time.Time) (*model.SignupMessage, error) {
	if err := caller.requireModerator(); err != nil {
		return nil, err
	}
	if closeAt.IsZero() {
		closeAt = NextWeekday(s.now(), s.schedule.CloseWeekday)
	}
	if _, err := s.store.OpenSignupMessage(ctx); err == nil {
		return nil, ErrSignupsOpen
	}

	var chatID, messageID int64
	if s.poster != nil {
		var err error
		chatID, messageID, err = s.poster.PostSignupWindow(ctx, closeAt)
		if err != nil {
			return nil, fmt.Errorf("failed to post signup message: %w", err)
		}
	}
	return s.OpenWindow(ctx, chatID, messageID, closeAt)
}

// CloseWindow closes the open window. Moderator only.
func (s *SignupService) CloseWindow(ctx context.Context, caller Caller) (*model.SignupMessage, error) {
	if err := caller.requireModerator(); err != nil {
		return nil, err
	}

	var out *model.SignupMessage
	err := s.store.Tx(ctx, func(tx repository.Store) error {
		m, err := tx.OpenSignupMessage(ctx)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSignupsClosed
		}
		if err != nil {
			return err
		}
		m.IsOpen = false
		if err := tx.UpdateSignupMessage(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.poster != nil && out.MessageID != 0 {
		if err := s.poster.CloseSignupWindow(ctx, out.ChatID, out.MessageID); err != nil {
			log.Warn().Err(err).Int64("window_id", out.ID).Msg("Failed to retire signup message")
		}
	}
	log.Info().Int64("window_id", out.ID).Msg("Signups closed")
	return out, nil
}

// Add signs a player up for a platform while a window is open.
func (s *SignupService) Add(ctx context.Context, playerID int64, platform model.Platform) (*model.Signup, error) {
	if !platform.Valid() {
		return nil, ErrUnknownPlatform
	}

	var out *model.Signup
	err := s.store.Tx(ctx, func(tx repository.Store) error {
		if _, err := tx.OpenSignupMessage(ctx); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSignupsClosed
			}
			return err
		}
		p, err := tx.GetPlayer(ctx, playerID)
		if err != nil {
			return playerErr(err, playerID)
		}
		if !p.Active {
			return ErrInactivePlayer
		}
		if !p.HasPlatform(platform) {
			return fmt.Errorf("%w: %s", ErrMissingHandle, platform)
		}

		su := &model.Signup{PlayerID: playerID, Platform: platform, CreatedAt: s.now()}
		if err := tx.CreateSignup(ctx, su); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadySignedUp
			}
			return err
		}
		out = su
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Int64("player_id", playerID).Str("platform", string(platform)).Msg("Signup added")
	return out, nil
}

// Remove withdraws a player's signup while a window is open.
func (s *SignupService) Remove(ctx context.Context, playerID int64, platform model.Platform) error {
	if !platform.Valid() {
		return ErrUnknownPlatform
	}
	return s.store.Tx(ctx, func(tx repository.Store) error {
		if _, err := tx.OpenSignupMessage(ctx); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSignupsClosed
			}
			return err
		}
		if err := tx.DeleteSignup(ctx, playerID, platform); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotSignedUp
			}
			return err
		}
		return nil
	})
}

// Roster returns the signed-up players per platform.
func (s *SignupService) Roster(ctx context.Context) (*Roster, error) {
	var r Roster
	m, err := s.store.OpenSignupMessage(ctx)
	switch {
	case err == nil:
		r.Window = m
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	signups, err := s.store.ListSignups(ctx)
	if err != nil {
		return nil, err
	}
	for _, su := range signups {
		p, err := s.store.GetPlayer(ctx, su.PlayerID)
		if err != nil {
			return nil, playerErr(err, su.PlayerID)
		}
		if su.Platform == model.PlatformSteam {
			r.Steam = append(r.Steam, p)
		} else {
			r.Mobile = append(r.Mobile, p)
		}
	}
	return &r, nil
}

// Tick closes an expired window and generates matchups, or opens a new
// window on the open weekday when none is pending.
func (s *SignupService) Tick(ctx context.Context) (*TickResult, error) {
	now := s.now().UTC()
	var res TickResult

	open, err := s.store.OpenSignupMessage(ctx)
	switch {
	case err == nil:
		if now.Before(open.CloseAt) {
			return &res, nil
		}
		closed, err := s.CloseWindow(ctx, System)
		if err != nil {
			return nil, fmt.Errorf("failed to close signups: %w", err)
		}
		res.Closed = closed
		if s.matchups != nil {
			m, err := s.matchups.Generate(ctx, System)
			if err != nil {
				return &res, fmt.Errorf("failed to generate matchups: %w", err)
			}
			res.Matchup = m
		}
		return &res, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	if now.Weekday() != s.schedule.OpenWeekday {
		return &res, nil
	}
	pending, err := s.store.CountSignupMessagesClosingAfter(ctx, now)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return &res, nil
	}

	opened, err := s.Open(ctx, System, NextWeekday(now, s.schedule.CloseWeekday))
	if err != nil {
		return nil, fmt.Errorf("failed to open signups: %w", err)
	}
	res.Opened = opened
	notify.Post(ctx, s.sink, notify.ChannelAnnouncements, renderText(s.msgs, "signup.opened", map[string]any{
		"CloseAt": opened.CloseAt.Format("Monday 02 Jan 15:04 MST"),
	}))
	return &res, nil
}
