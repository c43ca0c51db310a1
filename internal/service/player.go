package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ladder-bot/internal/model"
	"ladder-bot/internal/msgcat"
	"ladder-bot/internal/notify"
	"ladder-bot/internal/rank"
	"ladder-bot/internal/repository"
)

// clearHandle is the in-game name that removes a platform handle.
const clearHandle = "none"

// NameResult is returned by SetName.
type NameResult struct {
	Player  *model.Player
	Created bool
	// Duplicates are other players already using the same handle.
	Duplicates []*model.Player
}

// DeactivateResult is returned by Deactivate.
type DeactivateResult struct {
	Player         *model.Player
	RemovedSignups int64
	Incomplete     int
}

// PlacementResult is returned by SettlePlacement when a player's placement
// seeding was evaluated.
type PlacementResult struct {
	Player  *model.Player
	Record  model.PlayerRecord
	Before  int
	After   int
	Changed bool
}

// Profile is a player with their confirmed record.
type Profile struct {
	Player *model.Player
	Record model.PlayerRecord
}

// PlayerService manages the player registry.
type PlayerService struct {
	store repository.Store
	sink  notify.Sink
	msgs  *msgcat.Catalog
	now   func() time.Time
}

// NewPlayerService creates a new PlayerService instance.
func NewPlayerService(store repository.Store, sink notify.Sink, msgs *msgcat.Catalog) *PlayerService {
	return &PlayerService{store: store, sink: sink, msgs: msgs, now: time.Now}
}

// SetClock replaces the time source.
func (s *PlayerService) SetClock(now func() time.Time) { s.now = now }

// Get retrieves a player by id.
func (s *PlayerService) Get(ctx context.Context, id int64) (*model.Player, error) {
	p, err := s.store.GetPlayer(ctx, id)
	if err != nil {
		return nil, playerErr(err, id)
	}
	return p, nil
}

// Profile retrieves a player with their confirmed record.
func (s *PlayerService) Profile(ctx context.Context, id int64) (*Profile, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.PlayerRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return &Profile{Player: p, Record: rec}, nil
}

// Find resolves free text to a single registered player.
func (s *PlayerService) Find(ctx context.Context, query string) (*model.Player, error) {
	players, err := s.store.ListPlayers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	res := Resolve(query, players)
	if err := res.Err(query); err != nil {
		return nil, err
	}
	return res.Player, nil
}

// SetName sets targetID's in-game name for a platform, registering the
// player on first use. Callers other than the target must be moderators.
// The name "none" clears the handle.
func (s *PlayerService) SetName(ctx context.Context, caller Caller, targetID int64, displayName string, platform model.Platform, name string) (*NameResult, error) {
	if caller.ID != targetID {
		if err := caller.requireModerator(); err != nil {
			return nil, err
		}
	}
	if !platform.Valid() {
		return nil, ErrUnknownPlatform
	}

	var handle *string
	if !strings.EqualFold(strings.TrimSpace(name), clearHandle) {
		cleaned, err := cleanName(name)
		if err != nil {
			return nil, err
		}
		handle = &cleaned
	}

	var res NameResult
	err := s.store.Tx(ctx, func(tx repository.Store) error {
		p, err := tx.GetPlayerForUpdate(ctx, targetID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			p = &model.Player{ID: targetID, Rung: rank.DefaultRung, Active: true}
			p.Name = registrationName(displayName, targetID)
			p.SetHandle(platform, handle)
			if err := tx.CreatePlayer(ctx, p); err != nil {
				return err
			}
			res.Created = true
		case err != nil:
			return err
		default:
			if dn := strings.TrimSpace(displayName); dn != "" {
				p.Name = registrationName(dn, targetID)
			}
			p.SetHandle(platform, handle)
			p.Active = true
			if err := tx.UpdatePlayer(ctx, p); err != nil {
				return err
			}
		}
		res.Player = p

		if handle != nil {
			dups, err := tx.FindPlayersByHandle(ctx, platform, *handle)
			if err != nil {
				return err
			}
			for _, d := range dups {
				if d.ID != targetID {
					res.Duplicates = append(res.Duplicates, d)
				}
			}
		}

		shown := clearHandle
		if handle != nil {
			shown = *handle
		}
		return appendLog(ctx, tx, s.now(), nil,
			fmt.Sprintf("%s name for %s set to %q by %s", platform, playerRef(targetID), shown, caller.label()))
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("player_id", targetID).
		Str("platform", string(platform)).
		Bool("created", res.Created).
		Int("duplicates", len(res.Duplicates)).
		Msg("Player name set")
	return &res, nil
}

// registrationName trims a display name and falls back to the id.
func registrationName(displayName string, id int64) string {
	if n, err := cleanName(displayName); err == nil {
		return n
	}
	return playerRef(id)
}

// SyncName updates a registered player's display name. Unknown players
// are ignored.
func (s *PlayerService) SyncName(ctx context.Context, id int64, displayName string) error {
	name, err := cleanName(displayName)
	if err != nil {
		return nil
	}
	current, err := s.store.GetPlayer(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if current.Name == name {
		return nil
	}
	return s.store.Tx(ctx, func(tx repository.Store) error {
		p, err := tx.GetPlayerForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if p.Name == name {
			return nil
		}
		p.Name = name
		return tx.UpdatePlayer(ctx, p)
	})
}

// Deactivate marks a player who left the group as inactive and drops their
// signups. Incomplete games are reported to the logging channel.
func (s *PlayerService) Deactivate(ctx context.Context, id int64) (*DeactivateResult, error) {
	var res DeactivateResult
	err := s.store.Tx(ctx, func(tx repository.Store) error {
		p, err := tx.GetPlayerForUpdate(ctx, id)
		if err != nil {
			return playerErr(err, id)
		}
		p.Active = false
		if err := tx.UpdatePlayer(ctx, p); err != nil {
			return err
		}
		removed, err := tx.DeleteSignupsByPlayer(ctx, id)
		if err != nil {
			return err
		}
		games, err := tx.ListGames(ctx, repository.GameFilter{
			PlayerID: id,
			States:   []model.GameState{model.StatePending, model.StateStarted, model.StateClaimed},
		})
		if err != nil {
			return err
		}
		res = DeactivateResult{Player: p, RemovedSignups: removed, Incomplete: len(games)}
		return appendLog(ctx, tx, s.now(), nil, fmt.Sprintf("Player %s left and was deactivated", playerRef(id)))
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("player_id", id).Int("incomplete", res.Incomplete).Msg("Player deactivated")
	notify.Post(ctx, s.sink, notify.ChannelLogging, renderText(s.msgs, "player.left", map[string]any{
		"ID":         id,
		"Name":       res.Player.Name,
		"Incomplete": res.Incomplete,
	}))
	return &res, nil
}

// Activate marks a returning player active again.
func (s *PlayerService) Activate(ctx context.Context, id int64) (*model.Player, error) {
	var out *model.Player
	err := s.store.Tx(ctx, func(tx repository.Store) error {
		p, err := tx.GetPlayerForUpdate(ctx, id)
		if err != nil {
			return playerErr(err, id)
		}
		if p.Active {
			out = p
			return nil
		}
		p.Active = true
		if err := tx.UpdatePlayer(ctx, p); err != nil {
			return err
		}
		out = p
		return appendLog(ctx, tx, s.now(), nil, fmt.Sprintf("Player %s rejoined and was reactivated", playerRef(id)))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetRung overrides a player's rung. Moderator only.
func (s *PlayerService) SetRung(ctx context.Context, caller Caller, id int64, rung int) (*model.Player, error) {
	if err := caller.requireModerator(); err != nil {
		return nil, err
	}
	if !rank.Valid(rung) {
		return nil, fmt.Errorf("%w: %d is outside %d..%d", ErrInvalidRung, rung, rank.MinRung, rank.MaxRung)
	}

	var out *model.Player
	err := s.store.Tx(ctx, func(tx repository.Store) error {
		p, err := tx.GetPlayerForUpdate(ctx, id)
		if err != nil {
			return playerErr(err, id)
		}
		before := p.Rung
		p.Rung = rung
		if err := tx.UpdatePlayer(ctx, p); err != nil {
			return err
		}
		out = p
		return appendLog(ctx, tx, s.now(), nil,
			fmt.Sprintf("Rung for %s set from %d to %d by %s", playerRef(id), before, rung, caller.label()))
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("player_id", id).Int("rung", rung).Int64("caller_id", caller.ID).Msg("Rung overridden")
	return out, nil
}

// Leaderboard returns active players ordered by rung then win ratio.
func (s *PlayerService) Leaderboard(ctx context.Context, limit int) ([]*model.Player, error) {
	return s.store.Leaderboard(ctx, limit)
}

// DeletePlayer removes a player and everything referencing them. Owner only.
func (s *PlayerService) DeletePlayer(ctx context.Context, caller Caller, id int64) error {
	if err := caller.requireOwner(); err != nil {
		return err
	}
	err := s.store.Tx(ctx, func(tx repository.Store) error {
		if err := tx.DeletePlayer(ctx, id); err != nil {
			return playerErr(err, id)
		}
		return appendLog(ctx, tx, s.now(), nil, fmt.Sprintf("Player %s deleted by %s", playerRef(id), caller.label()))
	})
	if err != nil {
		return err
	}
	log.Warn().Int64("player_id", id).Int64("caller_id", caller.ID).Msg("Player deleted")
	return nil
}

// SettlePlacement seeds a player's rung from their placement results once
// they have exactly the seeding number of confirmed games. It returns nil
// for players at any other count.
func (s *PlayerService) SettlePlacement(ctx context.Context, id int64) (*PlacementResult, error) {
	return s.settle(ctx, id, 0)
}

// settle runs SettlePlacement. A non-zero gameID names the confirmation that
// triggered it; the seeding movement is added to that game's applied rung
// change so Unwin can take it back.
func (s *PlayerService) settle(ctx context.Context, id, gameID int64) (*PlacementResult, error) {
	var res *PlacementResult
	err := s.store.Tx(ctx, func(tx repository.Store) error {
		var g *model.Game
		if gameID != 0 {
			var err error
			g, err = tx.GetGameForUpdate(ctx, gameID)
			if err != nil {
				return gameErr(err, gameID)
			}
		}
		p, err := tx.GetPlayerForUpdate(ctx, id)
		if err != nil {
			return playerErr(err, id)
		}
		rec, err := tx.PlayerRecord(ctx, id)
		if err != nil {
			return err
		}
		if rec.Games != rank.PlacementSeedGames {
			return nil
		}

		rung, err := rank.PlacementRung(rec.Wins, rec.Games)
		if err != nil {
			return err
		}
		res = &PlacementResult{Player: p, Record: rec, Before: p.Rung, After: rung, Changed: p.Rung != rung}
		if !res.Changed {
			return nil
		}
		p.Rung = rung
		if err := tx.UpdatePlayer(ctx, p); err != nil {
			return err
		}
		var logGame *int64
		if g != nil && g.IsConfirmed && g.IsParticipant(id) {
			logGame = &g.ID
			seeded := rung - res.Before
			if id == g.HostID {
				total := appliedDelta(g.HostRungApplied, g.HostStepChange) + seeded
				g.HostRungApplied = &total
			} else {
				total := appliedDelta(g.AwayRungApplied, g.AwayStepChange) + seeded
				g.AwayRungApplied = &total
			}
			if err := tx.UpdateGame(ctx, g); err != nil {
				return err
			}
		}
		return appendLog(ctx, tx, s.now(), logGame,
			fmt.Sprintf("Placement for %s settled after %d-%d: rung %d -> %d",
				playerRef(id), rec.Wins, rec.Games-rec.Wins, res.Before, rung))
	})
	if errors.Is(err, rank.ErrPlacementInconsistent) {
		notify.Post(ctx, s.sink, notify.ChannelLogging, renderText(s.msgs, "player.placement_inconsistent", map[string]any{
			"ID":    id,
			"Error": err.Error(),
		}))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if res != nil && res.Changed {
		log.Info().Int64("player_id", id).Int("before", res.Before).Int("after", res.After).Msg("Placement settled")
		notify.Post(ctx, s.sink, notify.ChannelAnnouncements, renderText(s.msgs, "player.placement_settled", map[string]any{
			"Name": res.Player.Name,
			"Wins": res.Record.Wins,
			"Rung": res.After,
		}))
	}
	return res, nil
}

// SettleAfter runs SettlePlacement for both sides of a confirmation and
// updates change with any seeded rung. Failures are logged; the
// confirmation itself already committed.
func (s *PlayerService) SettleAfter(ctx context.Context, change *RungChange) {
	if change == nil {
		return
	}
	for _, id := range []int64{change.WinnerID, change.LoserID} {
		res, err := s.settle(ctx, id, change.GameID)
		if err != nil {
			log.Error().Err(err).Int64("player_id", id).Msg("Failed to settle placement")
			continue
		}
		if res == nil || !res.Changed {
			continue
		}
		if id == change.WinnerID {
			change.WinnerAfter = res.After
		} else {
			change.LoserAfter = res.After
		}
	}
}
