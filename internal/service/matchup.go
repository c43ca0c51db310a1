package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ladder-bot/internal/matchup"
	"ladder-bot/internal/model"
	"ladder-bot/internal/msgcat"
	"ladder-bot/internal/notify"
	"ladder-bot/internal/repository"
)

// MaxTribeLevel bounds the random starting tribe level announced with matchups.
const MaxTribeLevel = 3

// MatchupResult is returned by MatchupService.Generate.
type MatchupResult struct {
	Plan       matchup.Plan
	Games      []*model.Game
	TribeLevel int
	// Skipped lists signups ignored because the player is inactive or
	// no longer has a handle for the platform.
	Skipped []SkippedSignup
}

// SkippedSignup is a signup left out before pairing.
type SkippedSignup struct {
	*model.Signup
	Inactive bool
}

// Reasons a player is left out, as passed to matchup.removed_dm.
const (
	leftOutOddPool  = "odd"
	leftOutInactive = "inactive"
	leftOutNoName   = "no_name"
)

// MatchupService turns the current signups into games.
type MatchupService struct {
	store repository.Store
	sink  notify.Sink
	msgs  *msgcat.Catalog
	now   func() time.Time

	mu  sync.Mutex // guards rng and serialises generation
	rng *rand.Rand
}

// NewMatchupService creates a new MatchupService instance.
func NewMatchupService(store repository.Store, sink notify.Sink, msgs *msgcat.Catalog, seed int64) *MatchupService {
	return &MatchupService{
		store: store,
		sink:  sink,
		msgs:  msgs,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// SetClock replaces the time source.
func (s *MatchupService) SetClock(now func() time.Time) { s.now = now }

// Generate pairs the signed-up players, creates their games and clears the
// signups in one transaction. Nothing is written if any step fails.
// Owner only unless called by the scheduler.
func (s *MatchupService) Generate(ctx context.Context, caller Caller) (*MatchupResult, error) {
	if err := caller.requireOwner(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res MatchupResult
	err := s.store.Tx(ctx, func(tx repository.Store) error {
		signups, err := tx.ListSignups(ctx)
		if err != nil {
			return fmt.Errorf("failed to list signups: %w", err)
		}

		var mobile, steam []matchup.Entrant
		players := make(map[int64]*model.Player)
		for _, su := range signups {
			p, ok := players[su.PlayerID]
			if !ok {
				p, err = tx.GetPlayer(ctx, su.PlayerID)
				if err != nil {
					return playerErr(err, su.PlayerID)
				}
				players[p.ID] = p
			}
			if !p.Active || !p.HasPlatform(su.Platform) {
				res.Skipped = append(res.Skipped, SkippedSignup{Signup: su, Inactive: !p.Active})
				continue
			}
			e := matchup.Entrant{PlayerID: p.ID, Rung: p.Rung, WinRatio: p.WinRatio}
			if su.Platform == model.PlatformSteam {
				steam = append(steam, e)
			} else {
				mobile = append(mobile, e)
			}
		}

		res.Plan = matchup.Generate(mobile, steam, s.rng)
		res.TribeLevel = s.rng.Intn(MaxTribeLevel) + 1

		now := s.now()
		for _, pool := range []matchup.PoolPlan{res.Plan.Mobile, res.Plan.Steam} {
			for _, pr := range pool.Pairings() {
				g := &model.Game{
					HostID:   pr.Host.PlayerID,
					AwayID:   pr.Away.PlayerID,
					HostStep: players[pr.Host.PlayerID].Rung,
					AwayStep: players[pr.Away.PlayerID].Rung,
					Step:     pr.Tier,
					Mobile:   pool.Platform != model.PlatformSteam,
					OpenedAt: now,
				}
				if err := tx.CreateGame(ctx, g); err != nil {
					return fmt.Errorf("failed to create game: %w", err)
				}
				if err := appendLog(ctx, tx, now, &g.ID, fmt.Sprintf(
					"Game created on %s: host %s (rung %d) vs away %s (rung %d) at step %d",
					pool.Platform, playerRef(g.HostID), g.HostStep, playerRef(g.AwayID), g.AwayStep, g.Step)); err != nil {
					return err
				}
				res.Games = append(res.Games, g)
			}
		}

		if _, err := tx.DeleteAllSignups(ctx); err != nil {
			return fmt.Errorf("failed to clear signups: %w", err)
		}
		// Overflow leftovers stay signed up for the next round.
		for _, pool := range []matchup.PoolPlan{res.Plan.Mobile, res.Plan.Steam} {
			for _, e := range pool.Unpaired {
				su := &model.Signup{PlayerID: e.PlayerID, Platform: pool.Platform, CreatedAt: now}
				if err := tx.CreateSignup(ctx, su); err != nil {
					return fmt.Errorf("failed to carry over signup: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("games", len(res.Games)).
		Int("removed_mobile", len(res.Plan.Mobile.Removed)).
		Int("removed_steam", len(res.Plan.Steam.Removed)).
		Int("tribe_level", res.TribeLevel).
		Msg("Matchups generated")

	s.announce(ctx, &res)
	return &res, nil
}

type tierView struct {
	Number int
	Games  []map[string]any
}

type poolView struct {
	Platform string
	Tiers    []tierView
	Unpaired []string
}

type leftOut struct {
	playerID  int64
	reason    string
	platforms []string
}

// leftOutPlayers groups everyone who signed up but got no game by player
// and reason, trimmed players first.
func leftOutPlayers(res *MatchupResult) []*leftOut {
	var out []*leftOut
	index := make(map[string]*leftOut)
	add := func(id int64, reason string, pl model.Platform) {
		key := fmt.Sprintf("%d/%s", id, reason)
		lo, ok := index[key]
		if !ok {
			lo = &leftOut{playerID: id, reason: reason}
			index[key] = lo
			out = append(out, lo)
		}
		for _, have := range lo.platforms {
			if have == string(pl) {
				return
			}
		}
		lo.platforms = append(lo.platforms, string(pl))
	}

	for _, pool := range []matchup.PoolPlan{res.Plan.Mobile, res.Plan.Steam} {
		for _, r := range pool.Removed {
			add(r.Entrant.PlayerID, leftOutOddPool, pool.Platform)
		}
	}
	for _, su := range res.Skipped {
		reason := leftOutNoName
		if su.Inactive {
			reason = leftOutInactive
		}
		add(su.PlayerID, reason, su.Platform)
	}
	return out
}

// notifyLeftOut sends one direct message per left-out player and reason.
func (s *MatchupService) notifyLeftOut(ctx context.Context, res *MatchupResult) {
	playing := make(map[int64][]string)
	for _, g := range res.Games {
		for _, id := range []int64{g.HostID, g.AwayID} {
			playing[id] = append(playing[id], string(g.Platform()))
		}
	}
	for _, lo := range leftOutPlayers(res) {
		notify.Direct(ctx, s.sink, lo.playerID, renderText(s.msgs, "matchup.removed_dm", map[string]any{
			"Platforms": lo.platforms,
			"Reason":    lo.reason,
			"Kept":      playing[lo.playerID],
		}))
	}
}

func (s *MatchupService) announce(ctx context.Context, res *MatchupResult) {
	s.notifyLeftOut(ctx, res)
	if len(res.Games) == 0 {
		return
	}

	// Games were created in plan order.
	next := 0
	var pools []poolView
	for _, pool := range []matchup.PoolPlan{res.Plan.Mobile, res.Plan.Steam} {
		if len(pool.Tiers) == 0 {
			continue
		}
		pv := poolView{Platform: string(pool.Platform)}
		for _, t := range pool.Tiers {
			tv := tierView{Number: t.Number}
			for range t.Pairings {
				if next >= len(res.Games) {
					break
				}
				g := res.Games[next]
				next++
				tv.Games = append(tv.Games, map[string]any{
					"ID":       g.ID,
					"HostName": displayName(ctx, s.store, g.HostID),
					"AwayName": displayName(ctx, s.store, g.AwayID),
				})
			}
			pv.Tiers = append(pv.Tiers, tv)
		}
		for _, e := range pool.Unpaired {
			pv.Unpaired = append(pv.Unpaired, displayName(ctx, s.store, e.PlayerID))
		}
		pools = append(pools, pv)
	}

	text := renderText(s.msgs, "matchup.announcement", map[string]any{
		"Pools":      pools,
		"TribeLevel": res.TribeLevel,
		"Count":      len(res.Games),
	})
	for _, chunk := range msgcat.Split(text, msgcat.MaxMessageLen) {
		notify.Post(ctx, s.sink, notify.ChannelMatchups, chunk)
	}
}
