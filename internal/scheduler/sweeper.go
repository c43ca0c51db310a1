// Package scheduler runs the ladder's time-driven rules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ladder-bot/internal/model"
	"ladder-bot/internal/msgcat"
	"ladder-bot/internal/notify"
	"ladder-bot/internal/pkg/lease"
	"ladder-bot/internal/rank"
	"ladder-bot/internal/repository"
	"ladder-bot/internal/service"
)

const (
	sweepLease      = "ladder:sweep"
	signupTickLease = "ladder:signup-tick"
)

// Rules holds the sweep thresholds.
type Rules struct {
	AutoConfirmAfter time.Duration
	HostSwitchAfter  time.Duration
	StaleDeleteAfter time.Duration
}

// DefaultRules confirms unanswered claims after a day, hands hosting to the
// away player after three days and drops the game three days later.
var DefaultRules = Rules{
	AutoConfirmAfter: 24 * time.Hour,
	HostSwitchAfter:  72 * time.Hour,
	StaleDeleteAfter: 144 * time.Hour,
}

// Report summarises one sweep.
type Report struct {
	RunID         string
	Skipped       bool
	AutoConfirmed []int64
	Deleted       []int64
	Switched      []int64
	RungsFixed    []int64
	Failures      int
}

// Sweeper applies the time-driven rules to every game.
type Sweeper struct {
	store    repository.Store
	games    *service.GameService
	players  *service.PlayerService
	locker   lease.Locker
	sink     notify.Sink
	msgs     *msgcat.Catalog
	rules    Rules
	leaseTTL time.Duration
	now      func() time.Time
}

// NewSweeper creates a new Sweeper instance.
func NewSweeper(store repository.Store, games *service.GameService, players *service.PlayerService,
	locker lease.Locker, sink notify.Sink, msgs *msgcat.Catalog, rules Rules) *Sweeper {
	return &Sweeper{
		store:    store,
		games:    games,
		players:  players,
		locker:   locker,
		sink:     sink,
		msgs:     msgs,
		rules:    rules,
		leaseTTL: 5 * time.Minute,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// RunOnce performs one sweep. Another replica holding the lease makes it
// a no-op with Report.Skipped set.
func (s *Sweeper) RunOnce(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	ran, err := lease.Run(ctx, s.locker, sweepLease, s.leaseTTL, func(ctx context.Context) error {
		return s.sweep(ctx, report)
	})
	if err != nil {
		return report, err
	}
	if !ran {
		report.Skipped = true
		log.Debug().Str("run_id", report.RunID).Msg("Sweep skipped, lease held elsewhere")
		return report, nil
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("autoconfirmed", len(report.AutoConfirmed)).
		Int("deleted", len(report.Deleted)).
		Int("switched", len(report.Switched)).
		Int("rungs_fixed", len(report.RungsFixed)).
		Int("failures", report.Failures).
		Msg("Sweep finished")
	return report, nil
}

func (s *Sweeper) sweep(ctx context.Context, report *Report) error {
	now := s.now()
	acted := make(map[int64]bool)
	yes, no := true, false

	confirmBefore := now.Add(-s.rules.AutoConfirmAfter)
	claimed, err := s.store.ListGames(ctx, repository.GameFilter{
		States:        []model.GameState{model.StateClaimed},
		ClaimedBefore: &confirmBefore,
	})
	if err != nil {
		return fmt.Errorf("failed to list claimed games: %w", err)
	}
	for _, g := range claimed {
		res, ok, err := s.games.AutoConfirm(ctx, g.ID, confirmBefore)
		if err != nil {
			s.fail(ctx, report, "autoconfirm", g.ID, err)
			continue
		}
		if ok {
			acted[g.ID] = true
			report.AutoConfirmed = append(report.AutoConfirmed, g.ID)
			s.players.SettleAfter(ctx, res.Change)
		}
	}

	deleteBefore := now.Add(-s.rules.StaleDeleteAfter)
	stale, err := s.store.ListGames(ctx, repository.GameFilter{
		States:       []model.GameState{model.StatePending},
		HostSwitched: &yes,
		OpenedBefore: &deleteBefore,
	})
	if err != nil {
		return fmt.Errorf("failed to list stale games: %w", err)
	}
	for _, g := range stale {
		if acted[g.ID] {
			continue
		}
		ok, err := s.games.AutoDelete(ctx, g.ID, deleteBefore)
		if err != nil {
			s.fail(ctx, report, "delete", g.ID, err)
			continue
		}
		if ok {
			acted[g.ID] = true
			report.Deleted = append(report.Deleted, g.ID)
		}
	}

	switchBefore := now.Add(-s.rules.HostSwitchAfter)
	waiting, err := s.store.ListGames(ctx, repository.GameFilter{
		States:       []model.GameState{model.StatePending},
		HostSwitched: &no,
		OpenedBefore: &switchBefore,
	})
	if err != nil {
		return fmt.Errorf("failed to list unstarted games: %w", err)
	}
	for _, g := range waiting {
		if acted[g.ID] {
			continue
		}
		ok, err := s.games.AutoSwitchHost(ctx, g.ID, switchBefore)
		if err != nil {
			s.fail(ctx, report, "switch", g.ID, err)
			continue
		}
		if ok {
			acted[g.ID] = true
			report.Switched = append(report.Switched, g.ID)
		}
	}

	return s.auditRungs(ctx, report)
}

// auditRungs clamps any rung found outside the ladder.
func (s *Sweeper) auditRungs(ctx context.Context, report *Report) error {
	broken, err := s.store.PlayersOutOfBounds(ctx, rank.MinRung, rank.MaxRung)
	if err != nil {
		return fmt.Errorf("failed to audit rungs: %w", err)
	}
	for _, p := range broken {
		before := p.Rung
		fixed, err := s.players.SetRung(ctx, service.System, p.ID, rank.Clamp(p.Rung))
		if err != nil {
			s.fail(ctx, report, "rung", 0, err)
			continue
		}
		report.RungsFixed = append(report.RungsFixed, p.ID)
		log.Warn().Int64("player_id", p.ID).Int("before", before).Int("after", fixed.Rung).Msg("Rung outside ladder clamped")
		s.post(ctx, "scheduler.rung_fixed", map[string]any{"Name": p.Name, "Before": before, "After": fixed.Rung})
	}
	return nil
}

func (s *Sweeper) fail(ctx context.Context, report *Report, action string, gameID int64, err error) {
	report.Failures++
	log.Error().Err(err).Str("action", action).Int64("game_id", gameID).Msg("Sweep action failed")
	s.post(ctx, "scheduler.sweep_failed", map[string]any{"Action": action, "ID": gameID, "Error": err.Error()})
}

func (s *Sweeper) post(ctx context.Context, key string, data map[string]any) {
	if s.msgs == nil {
		return
	}
	text, err := s.msgs.Render(key, data)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to render message")
		return
	}
	notify.Post(ctx, s.sink, notify.ChannelLogging, text)
}
