// Package service provides the ladder's business logic.
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
	"ladder-bot/internal/pkg/lock"
	"ladder-bot/internal/rank"
	"ladder-bot/internal/repository"
)

// DefaultLockTimeout bounds how long a transition waits for a busy game.
const DefaultLockTimeout = 10 * time.Second

// ClaimOutcome describes what a win claim did.
type ClaimOutcome int

const (
	// ClaimPending means the claim was recorded and awaits the other side.
	ClaimPending ClaimOutcome = iota
	// ClaimConfirmed means the game is now confirmed and rungs moved.
	ClaimConfirmed
	// ClaimDuplicate means the claimant had already filed this claim.
	ClaimDuplicate
	// ClaimConflict means the claim disagreed with the pending one and both were dropped.
	ClaimConflict
)

func (o ClaimOutcome) String() string {
	switch o {
	case ClaimPending:
		return "pending"
	case ClaimConfirmed:
		return "confirmed"
	case ClaimDuplicate:
		return "duplicate"
	case ClaimConflict:
		return "conflict"
	}
	return "unknown"
}

// RungChange reports rung movement from a confirmation or its reversal.
type RungChange struct {
	GameID       int64
	WinnerID     int64
	LoserID      int64
	WinnerBefore int
	WinnerAfter  int
	LoserBefore  int
	LoserAfter   int
}

// StartResult is returned by Start.
type StartResult struct {
	Game *model.Game
	// UnusualName is set when the name has none of the usual generated-name words.
	UnusualName bool
}

// ClaimResult is returned by ClaimWin and ConfirmWin.
type ClaimResult struct {
	Game             *model.Game
	Outcome          ClaimOutcome
	AlreadyConfirmed bool
	Change           *RungChange
	// PreviousWinner is the winner of the claim that a conflict discarded.
	PreviousWinner int64
}

// GameDetails is a game with both sides loaded.
type GameDetails struct {
	Game *model.Game
	Host *model.Player
	Away *model.Player
}

// GameService runs the per-game state machine. Each transition holds the
// game's in-process lock and runs in one store transaction that re-reads
// the game with a row lock before validating it.
type GameService struct {
	store       repository.Store
	locks       *lock.KeyLock
	sink        notify.Sink
	msgs        *msgcat.Catalog
	now         func() time.Time
	lockTimeout time.Duration
}

// NewGameService creates a new GameService instance.
func NewGameService(store repository.Store, locks *lock.KeyLock, sink notify.Sink, msgs *msgcat.Catalog) *GameService {
	return &GameService{
		store:       store,
		locks:       locks,
		sink:        sink,
		msgs:        msgs,
		now:         time.Now,
		lockTimeout: DefaultLockTimeout,
	}
}

// SetClock replaces the time source.
func (s *GameService) SetClock(now func() time.Time) { s.now = now }

// transition loads gameID under lock and row lock and runs fn.
func (s *GameService) transition(ctx context.Context, gameID int64, fn func(tx repository.Store, g *model.Game) error) error {
	return s.locks.WithLockContext(ctx, gameID, s.lockTimeout, func() error {
		return s.store.Tx(ctx, func(tx repository.Store) error {
			g, err := tx.GetGameForUpdate(ctx, gameID)
			if err != nil {
				return gameErr(err, gameID)
			}
			return fn(tx, g)
		})
	})
}

func gameErr(err error, gameID int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrGameNotFound, gameID)
	}
	return err
}

func playerErr(err error, playerID int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrPlayerNotFound, playerID)
	}
	return err
}

func (s *GameService) audit(ctx context.Context, tx repository.Store, gameID int64, format string, args ...any) error {
	return appendLog(ctx, tx, s.now(), &gameID, fmt.Sprintf(format, args...))
}

func appendLog(ctx context.Context, st repository.LogStore, at time.Time, gameID *int64, msg string) error {
	if err := st.AppendLog(ctx, &model.GameLog{GameID: gameID, Message: msg, CreatedAt: at}); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func logTransition(g *model.Game, caller Caller, outcome string) {
	log.Info().
		Int64("game_id", g.ID).
		Int64("caller_id", caller.ID).
		Str("state", g.State().String()).
		Str("outcome", outcome).
		Msg("Game transition")
}

// Get retrieves a game by id.
func (s *GameService) Get(ctx context.Context, gameID int64) (*model.Game, error) {
	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, gameErr(err, gameID)
	}
	return g, nil
}

// Details retrieves a game together with both players.
func (s *GameService) Details(ctx context.Context, gameID int64) (*GameDetails, error) {
	g, err := s.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	host, err := s.store.GetPlayer(ctx, g.HostID)
	if err != nil {
		return nil, playerErr(err, g.HostID)
	}
	away, err := s.store.GetPlayer(ctx, g.AwayID)
	if err != nil {
		return nil, playerErr(err, g.AwayID)
	}
	return &GameDetails{Game: g, Host: host, Away: away}, nil
}

// Incomplete lists a player's unconfirmed games. A zero playerID lists
// every incomplete game.
func (s *GameService) Incomplete(ctx context.Context, playerID int64) ([]*model.Game, error) {
	return s.store.ListGames(ctx, repository.GameFilter{
		PlayerID: playerID,
		States:   []model.GameState{model.StatePending, model.StateStarted, model.StateClaimed},
	})
}

// Unconfirmed lists games with a pending win claim.
func (s *GameService) Unconfirmed(ctx context.Context) ([]*model.Game, error) {
	return s.store.ListGames(ctx, repository.GameFilter{States: []model.GameState{model.StateClaimed}})
}

// Completed lists a player's confirmed games.
func (s *GameService) Completed(ctx context.Context, playerID int64) ([]*model.Game, error) {
	return s.store.ListGames(ctx, repository.GameFilter{
		PlayerID: playerID,
		States:   []model.GameState{model.StateConfirmed},
	})
}

// Start names a pending game and marks it started.
func (s *GameService) Start(ctx context.Context, caller Caller, gameID int64, name string) (*StartResult, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	var res StartResult
	err = s.transition(ctx, gameID, func(tx repository.Store, g *model.Game) error {
		if !caller.canHost(g) {
			return fmt.Errorf("only the host can start game %d: %w", g.ID, ErrNotAuthorized)
		}
		if g.State() != model.StatePending {
			return ErrAlreadyStarted
		}

		now := s.now()
		g.Name = &name
		g.IsStarted = true
		g.StartedAt = &now
		if err := tx.UpdateGame(ctx, g); err != nil {
			return err
		}
		res = StartResult{Game: g, UnusualName: !LooksLikeGameName(name)}
		return s.audit(ctx, tx, g.ID, "Game started by %s with name %q", caller.label(), name)
	})
	if err != nil {
		return nil, err
	}

	logTransition(res.Game, caller, "started")
	return &res, nil
}

// Rename changes the name of a started, incomplete game.
func (s *GameService) Rename(ctx context.Context, caller Caller, gameID int64, name string) (*model.Game, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	var out *model.Game
	err = s.transition(ctx, gameID, func(tx repository.Store, g *model.Game) error {
		if !caller.canHost(g) {
			return fmt.Errorf("only the host can rename game %d: %w", g.ID, ErrNotAuthorized)
		}
		switch g.State() {
		case model.StatePending:
			return ErrNotStarted
		case model.StateClaimed, model.StateConfirmed:
			return ErrGameComplete
		}

		old := g.DisplayName()
		g.Name = &name
		if err := tx.UpdateGame(ctx, g); err != nil {
			return err
		}
		out = g
		return s.audit(ctx, tx, g.ID, "Game renamed from %q to %q by %s", old, name, caller.label())
	})
	if err != nil {
		return nil, err
	}

	logTransition(out, caller, "renamed")
	return out, nil
}

// ClaimWin files a win for winnerID on behalf of caller.
//
// A moderator outside the game confirms immediately. Otherwise a first claim
// for the opponent confirms immediately, a first claim for oneself waits for
// the other side, a matching second claim confirms and a disagreeing second
// claim resets the game to started. On a conflict the reset is committed and
// the result is returned together with ErrConflictDetected.
func (s *GameService) ClaimWin(ctx context.Context, caller Caller, gameID, winnerID int64) (*ClaimResult, error) {
	var res ClaimResult
	err := s.transition(ctx, gameID, func(tx repository.Store, g *model.Game) error {
		if !caller.canReport(g) {
			return fmt.Errorf("game %d: %w", g.ID, ErrNotParticipant)
		}
		if !g.IsParticipant(winnerID) {
			return ErrWinnerNotSide
		}

		state := g.State()
		switch state {
		case model.StatePending:
			return ErrNotStarted
		case model.StateConfirmed:
			if g.WinnerID != nil && *g.WinnerID == winnerID {
				res = ClaimResult{Game: g, Outcome: ClaimConfirmed, AlreadyConfirmed: true}
				return nil
			}
			return ErrAlreadyConfirmed
		}

		claimedSame := state == model.StateClaimed && g.WinnerID != nil && *g.WinnerID == winnerID
		if claimedSame && g.WinClaimedBy != nil && *g.WinClaimedBy == caller.ID {
			res = ClaimResult{Game: g, Outcome: ClaimDuplicate}
			return nil
		}

		if err := s.audit(ctx, tx, g.ID, "Win claim logged by %s for winner %s", caller.label(), playerRef(winnerID)); err != nil {
			return err
		}

		moderatorOverride := caller.IsModerator && !g.IsParticipant(caller.ID)
		switch {
		case moderatorOverride, claimedSame, state == model.StateStarted && winnerID != caller.ID:
			change, err := s.confirmWin(ctx, tx, g, winnerID)
			if err != nil {
				return err
			}
			res = ClaimResult{Game: g, Outcome: ClaimConfirmed, Change: change}
			return nil

		case state == model.StateClaimed:
			res = ClaimResult{Outcome: ClaimConflict, PreviousWinner: *g.WinnerID}
			resetClaim(g)
			if err := tx.UpdateGame(ctx, g); err != nil {
				return err
			}
			res.Game = g
			return s.audit(ctx, tx, g.ID, "Conflicting win claims; cancelling them.")

		default:
			now := s.now()
			claimant := caller.ID
			g.IsComplete = true
			g.WinnerID = &winnerID
			g.WinClaimedAt = &now
			g.WinClaimedBy = &claimant
			if err := tx.UpdateGame(ctx, g); err != nil {
				return err
			}
			res = ClaimResult{Game: g, Outcome: ClaimPending}
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	logTransition(res.Game, caller, "claim_"+res.Outcome.String())
	s.announceClaim(ctx, caller, &res)

	if res.Outcome == ClaimConflict {
		return &res, ErrConflictDetected
	}
	return &res, nil
}

// ConfirmWin confirms the pending claim on a game. Moderator only.
func (s *GameService) ConfirmWin(ctx context.Context, caller Caller, gameID int64) (*ClaimResult, error) {
	if err := caller.requireModerator(); err != nil {
		return nil, err
	}

	var res ClaimResult
	err := s.transition(ctx, gameID, func(tx repository.Store, g *model.Game) error {
		if g.State() != model.StateClaimed {
			return ErrNotClaimed
		}
		if err := s.audit(ctx, tx, g.ID, "Pending win for %s confirmed by %s", playerRef(*g.WinnerID), caller.label()); err != nil {
			return err
		}
		change, err := s.confirmWin(ctx, tx, g, *g.WinnerID)
		if err != nil {
			return err
		}
		res = ClaimResult{Game: g, Outcome: ClaimConfirmed, Change: change}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logTransition(res.Game, caller, "confirmed")
	s.announceClaim(ctx, caller, &res)
	return &res, nil
}

// resetClaim clears every completion field.
func resetClaim(g *model.Game) {
	g.WinnerID = nil
	g.IsComplete = false
	g.IsConfirmed = false
	g.WinClaimedAt = nil
	g.WinClaimedBy = nil
	g.HostStepChange = nil
	g.AwayStepChange = nil
	g.HostRungApplied = nil
	g.AwayRungApplied = nil
}

// lockSides loads both players of g with row locks, lower id first.
func lockSides(ctx context.Context, tx repository.Store, g *model.Game) (host, away *model.Player, err error) {
	first, second := g.HostID, g.AwayID
	if first > second {
		first, second = second, first
	}
	a, err := tx.GetPlayerForUpdate(ctx, first)
	if err != nil {
		return nil, nil, playerErr(err, first)
	}
	b, err := tx.GetPlayerForUpdate(ctx, second)
	if err != nil {
		return nil, nil, playerErr(err, second)
	}
	if a.ID == g.HostID {
		return a, b, nil
	}
	return b, a, nil
}

// refreshRatio recomputes a player's win ratio from confirmed games.
func refreshRatio(ctx context.Context, tx repository.Store, p *model.Player) error {
	rec, err := tx.PlayerRecord(ctx, p.ID)
	if err != nil {
		return err
	}
	p.WinRatio = rank.WinRatio(rec.Wins, rec.Games)
	return nil
}

// confirmWin marks g confirmed for winnerID and moves both rungs. It must
// run inside a transition. Confirming an already confirmed game with the
// same winner is a no-op.
func (s *GameService) confirmWin(ctx context.Context, tx repository.Store, g *model.Game, winnerID int64) (*RungChange, error) {
	if g.IsConfirmed {
		if g.WinnerID != nil && *g.WinnerID == winnerID {
			return nil, nil
		}
		return nil, ErrAlreadyConfirmed
	}
	if !g.IsParticipant(winnerID) {
		return nil, ErrWinnerNotSide
	}

	host, away, err := lockSides(ctx, tx, g)
	if err != nil {
		return nil, err
	}
	winner, loser := host, away
	if winnerID == away.ID {
		winner, loser = away, host
	}

	winRec, err := tx.PlayerRecord(ctx, winner.ID)
	if err != nil {
		return nil, err
	}
	loseRec, err := tx.PlayerRecord(ctx, loser.ID)
	if err != nil {
		return nil, err
	}

	winDelta, loseDelta := rank.StepChange(rank.PlacementActive(winRec.Games), rank.PlacementActive(loseRec.Games))
	change := &RungChange{
		GameID:       g.ID,
		WinnerID:     winner.ID,
		LoserID:      loser.ID,
		WinnerBefore: winner.Rung,
		WinnerAfter:  rank.Apply(winner.Rung, winDelta),
		LoserBefore:  loser.Rung,
		LoserAfter:   rank.Apply(loser.Rung, loseDelta),
	}
	winApplied := change.WinnerAfter - change.WinnerBefore
	loseApplied := change.LoserAfter - change.LoserBefore

	now := s.now()
	g.WinnerID = &winnerID
	g.IsComplete = true
	g.IsConfirmed = true
	g.WinClaimedBy = nil
	if g.WinClaimedAt == nil {
		g.WinClaimedAt = &now
	}
	if winner.ID == g.HostID {
		g.HostStepChange, g.AwayStepChange = &winDelta, &loseDelta
		g.HostRungApplied, g.AwayRungApplied = &winApplied, &loseApplied
	} else {
		g.HostStepChange, g.AwayStepChange = &loseDelta, &winDelta
		g.HostRungApplied, g.AwayRungApplied = &loseApplied, &winApplied
	}
	if err := tx.UpdateGame(ctx, g); err != nil {
		return nil, err
	}

	winner.Rung = change.WinnerAfter
	loser.Rung = change.LoserAfter
	for _, p := range []*model.Player{winner, loser} {
		if err := refreshRatio(ctx, tx, p); err != nil {
			return nil, err
		}
		if err := tx.UpdatePlayer(ctx, p); err != nil {
			return nil, err
		}
	}

	return change, s.audit(ctx, tx, g.ID,
		"Game confirmed with winner %s: %s rung %d -> %d, %s rung %d -> %d",
		playerRef(winner.ID), playerRef(winner.ID), change.WinnerBefore, change.WinnerAfter,
		playerRef(loser.ID), change.LoserBefore, change.LoserAfter)
}

// Unwin reverses a confirmed result and returns the game to started.
// Moderator only. The rung movement actually applied at confirmation,
// placement seeding included, is subtracted, so the reversal is exact even
// next to the ladder bounds.
func (s *GameService) Unwin(ctx context.Context, caller Caller, gameID int64) (*ClaimResult, error) {
	if err := caller.requireModerator(); err != nil {
		return nil, err
	}

	var res ClaimResult
	err := s.transition(ctx, gameID, func(tx repository.Store, g *model.Game) error {
		if g.State() != model.StateConfirmed {
			return ErrNotConfirmed
		}

		host, away, err := lockSides(ctx, tx, g)
		if err != nil {
			return err
		}

		hostDelta := appliedDelta(g.HostRungApplied, g.HostStepChange)
		awayDelta := appliedDelta(g.AwayRungApplied, g.AwayStepChange)
		winnerID := *g.WinnerID

		hostBefore, awayBefore := host.Rung, away.Rung
		host.Rung = rank.Apply(host.Rung, -hostDelta)
		away.Rung = rank.Apply(away.Rung, -awayDelta)

		resetClaim(g)
		if err := tx.UpdateGame(ctx, g); err != nil {
			return err
		}
		for _, p := range []*model.Player{host, away} {
			if err := refreshRatio(ctx, tx, p); err != nil {
				return err
			}
			if err := tx.UpdatePlayer(ctx, p); err != nil {
				return err
			}
		}

		change := &RungChange{GameID: g.ID, WinnerID: winnerID, LoserID: g.Opponent(winnerID)}
		if winnerID == host.ID {
			change.WinnerBefore, change.WinnerAfter = hostBefore, host.Rung
			change.LoserBefore, change.LoserAfter = awayBefore, away.Rung
		} else {
			change.WinnerBefore, change.WinnerAfter = awayBefore, away.Rung
			change.LoserBefore, change.LoserAfter = hostBefore, host.Rung
		}
		res = ClaimResult{Game: g, Change: change}

		return s.audit(ctx, tx, g.ID, "Win for %s reverted by %s: host rung %d -> %d, away rung %d -> %d",
			playerRef(winnerID), caller.label(), hostBefore, host.Rung, awayBefore, away.Rung)
	})
	if err != nil {
		return nil, err
	}

	logTransition(res.Game, caller, "unwin")
	return &res, nil
}

// appliedDelta prefers the recorded applied movement and falls back to the
// nominal step for games confirmed before it was recorded.
func appliedDelta(applied, nominal *int) int {
	if applied != nil {
		return *applied
	}
	if nominal != nil {
		return *nominal
	}
	return 0
}

// Unstart returns a started game to pending. Moderator only.
func (s *GameService) Unstart(ctx context.Context, caller Caller, gameID int64) (*model.Game, error) {
	if err := caller.requireModerator(); err != nil {
		return nil, err
	}

	var out *model.Game
	err := s.transition(ctx, gameID, func(tx repository.Store, g *model.Game) error {
		switch g.State() {
		case model.StatePending:
			return ErrNotStarted
		case model.StateClaimed, model.StateConfirmed:
			return ErrGameComplete
		}

		g.Name = nil
		g.IsStarted = false
		g.StartedAt = nil
		if err := tx.UpdateGame(ctx, g); err != nil {
			return err
		}
		out = g
		return s.audit(ctx, tx, g.ID, "Game unstarted by %s", caller.label())
	})
	if err != nil {
		return nil, err
	}

	logTransition(out, caller, "unstarted")
	return out, nil
}

// SwapHost exchanges host and away. Moderator only; legal until confirmed.
func (s *GameService) SwapHost(ctx context.Context, caller Caller, gameID int64) (*model.Game, error) {
	if err := caller.requireModerator(); err != nil {
		return nil, err
	}

	var out *model.Game
	err := s.transition(ctx, gameID, func(tx repository.Store, g *model.Game) error {
		if g.State() == model.StateConfirmed {
			return ErrAlreadyConfirmed
		}
		swapSides(g)
		if err := tx.UpdateGame(ctx, g); err != nil {
			return err
		}
		out = g
		return s.audit(ctx, tx, g.ID, "Host swapped by %s; %s now hosts", caller.label(), playerRef(g.HostID))
	})
	if err != nil {
		return nil, err
	}

	logTransition(out, caller, "host_swapped")
	s.announceHostSwitch(ctx, out)
	return out, nil
}

func swapSides(g *model.Game) {
	g.HostID, g.AwayID = g.AwayID, g.HostID
	g.HostStep, g.AwayStep = g.AwayStep, g.HostStep
	g.HostStepChange, g.AwayStepChange = g.AwayStepChange, g.HostStepChange
	g.HostRungApplied, g.AwayRungApplied = g.AwayRungApplied, g.HostRungApplied
	g.HostSwitched = true
}

// Delete removes a game. Moderator only; complete games need override.
func (s *GameService) Delete(ctx context.Context, caller Caller, gameID int64, override bool) (*model.Game, error) {
	if err := caller.requireModerator(); err != nil {
		return nil, err
	}

	var out *model.Game
	err := s.transition(ctx, gameID, func(tx repository.Store, g *model.Game) error {
		if g.IsComplete && !override {
			return fmt.Errorf("game %d is complete, pass the override flag to delete it: %w", g.ID, ErrGameComplete)
		}
		if err := tx.DeleteGame(ctx, g.ID); err != nil {
			return gameErr(err, g.ID)
		}
		out = g
		return s.audit(ctx, tx, g.ID, "Game deleted by %s (state %s)", caller.label(), g.State())
	})
	if err != nil {
		return nil, err
	}

	logTransition(out, caller, "deleted")
	return out, nil
}

// AutoConfirm confirms a claim filed before cutoff. It reports false when
// the game no longer qualifies.
func (s *GameService) AutoConfirm(ctx context.Context, gameID int64, cutoff time.Time) (*ClaimResult, bool, error) {
	var res *ClaimResult
	err := s.transition(ctx, gameID, func(tx repository.Store, g *model.Game) error {
		if g.State() != model.StateClaimed || g.WinClaimedAt == nil || !g.WinClaimedAt.Before(cutoff) {
			return nil
		}
		claimant := "an unknown player"
		if g.WinClaimedBy != nil {
			claimant = playerRef(*g.WinClaimedBy)
		}
		if err := s.audit(ctx, tx, g.ID, "Game autoconfirmed. Win claimed %s ago by %s",
			s.now().Sub(*g.WinClaimedAt).Truncate(time.Minute), claimant); err != nil {
			return err
		}
		change, err := s.confirmWin(ctx, tx, g, *g.WinnerID)
		if err != nil {
			return err
		}
		res = &ClaimResult{Game: g, Outcome: ClaimConfirmed, Change: change}
		return nil
	})
	if err != nil || res == nil {
		return nil, false, err
	}

	logTransition(res.Game, System, "autoconfirmed")
	s.announceClaim(ctx, System, res)
	return res, true, nil
}

// AutoSwitchHost swaps sides of a pending game opened before cutoff that
// has not been switched yet.
func (s *GameService) AutoSwitchHost(ctx context.Context, gameID int64, cutoff time.Time) (bool, error) {
	var out *model.Game
	err := s.transition(ctx, gameID, func(tx repository.Store, g *model.Game) error {
		if g.State() != model.StatePending || g.HostSwitched || !g.OpenedAt.Before(cutoff) {
			return nil
		}
		swapSides(g)
		if err := tx.UpdateGame(ctx, g); err != nil {
			return err
		}
		out = g
		return s.audit(ctx, tx, g.ID, "Game not started in time; %s now hosts", playerRef(g.HostID))
	})
	if err != nil || out == nil {
		return false, err
	}

	logTransition(out, System, "host_switched")
	s.announceHostSwitch(ctx, out)
	return true, nil
}

// AutoDelete removes a switched pending game opened before cutoff.
func (s *GameService) AutoDelete(ctx context.Context, gameID int64, cutoff time.Time) (bool, error) {
	var out *model.Game
	err := s.transition(ctx, gameID, func(tx repository.Store, g *model.Game) error {
		if g.State() != model.StatePending || !g.HostSwitched || !g.OpenedAt.Before(cutoff) {
			return nil
		}
		if err := tx.DeleteGame(ctx, g.ID); err != nil {
			return err
		}
		out = g
		return s.audit(ctx, tx, g.ID, "Game deleted; not started after the host switch")
	})
	if err != nil || out == nil {
		return false, err
	}

	logTransition(out, System, "stale_deleted")
	view := gameView(ctx, s.store, out)
	s.render(ctx, notify.ChannelLogging, "game.stale_deleted", view)
	notify.Direct(ctx, s.sink, out.HostID, s.text("game.stale_deleted_dm", view))
	notify.Direct(ctx, s.sink, out.AwayID, s.text("game.stale_deleted_dm", view))
	return true, nil
}

// ============================================================================
// Notifications
// ============================================================================

// gameView is the template data for a game. Player names are looked up
// outside any transaction; a missing player falls back to its id.
func gameView(ctx context.Context, st repository.PlayerStore, g *model.Game) map[string]any {
	v := map[string]any{
		"ID":       g.ID,
		"Name":     g.DisplayName(),
		"HostID":   g.HostID,
		"AwayID":   g.AwayID,
		"HostName": displayName(ctx, st, g.HostID),
		"AwayName": displayName(ctx, st, g.AwayID),
		"Step":     g.Step,
		"Platform": string(g.Platform()),
		"State":    g.State().String(),
	}
	if g.WinnerID != nil {
		loser := g.Opponent(*g.WinnerID)
		v["WinnerID"] = *g.WinnerID
		v["LoserID"] = loser
		v["WinnerName"] = displayName(ctx, st, *g.WinnerID)
		v["LoserName"] = displayName(ctx, st, loser)
	}
	return v
}

func displayName(ctx context.Context, st repository.PlayerStore, id int64) string {
	p, err := st.GetPlayer(ctx, id)
	if err != nil {
		return playerRef(id)
	}
	return p.Name
}

func (s *GameService) text(key string, data any) string {
	return renderText(s.msgs, key, data)
}

func (s *GameService) render(ctx context.Context, ch notify.Channel, key string, data any) {
	notify.Post(ctx, s.sink, ch, s.text(key, data))
}

func renderText(msgs *msgcat.Catalog, key string, data any) string {
	if msgs == nil {
		return ""
	}
	out, err := msgs.Render(key, data)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to render message")
		return ""
	}
	return out
}

func (s *GameService) announceClaim(ctx context.Context, caller Caller, res *ClaimResult) {
	if res.Game == nil || res.AlreadyConfirmed {
		return
	}
	view := gameView(ctx, s.store, res.Game)
	switch res.Outcome {
	case ClaimConfirmed:
		if res.Change != nil {
			view["WinnerBefore"] = res.Change.WinnerBefore
			view["WinnerAfter"] = res.Change.WinnerAfter
			view["LoserBefore"] = res.Change.LoserBefore
			view["LoserAfter"] = res.Change.LoserAfter
		}
		s.render(ctx, notify.ChannelDrafts, "game.confirmed", view)
		if caller == System {
			s.render(ctx, notify.ChannelLogging, "game.autoconfirmed", view)
		}
	case ClaimPending:
		notify.Direct(ctx, s.sink, res.Game.Opponent(caller.ID), s.text("game.claim_pending_dm", view))
	case ClaimConflict:
		view["PreviousWinner"] = res.PreviousWinner
		s.render(ctx, notify.ChannelLogging, "game.conflict", view)
		notify.Direct(ctx, s.sink, res.Game.HostID, s.text("game.conflict_dm", view))
		notify.Direct(ctx, s.sink, res.Game.AwayID, s.text("game.conflict_dm", view))
	}
}

func (s *GameService) announceHostSwitch(ctx context.Context, g *model.Game) {
	view := gameView(ctx, s.store, g)
	notify.Direct(ctx, s.sink, g.HostID, s.text("game.host_switched_dm", view))
	notify.Direct(ctx, s.sink, g.AwayID, s.text("game.host_switched_dm", view))
}
