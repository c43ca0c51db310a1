package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ladder-bot/internal/model"
	"ladder-bot/internal/msgcat"
	"ladder-bot/internal/notify"
	"ladder-bot/internal/pkg/lock"
	"ladder-bot/internal/repository"
)

// epoch is a Wednesday.
var epoch = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

// fillerBase offsets opponents used to give players a game history.
const fillerBase = 9000

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	ctx      context.Context
	store    *repository.MemoryStore
	sink     *notify.Recorder
	clock    *fakeClock
	games    *GameService
	players  *PlayerService
	matchups *MatchupService
	signups  *SignupService
	logs     *AuditLogService
}

func newFixture(t require.TestingT) *fixture {
	msgs, err := msgcat.New("")
	require.NoError(t, err)

	f := &fixture{
		ctx:   context.Background(),
		store: repository.NewMemoryStore(),
		sink:  &notify.Recorder{},
		clock: &fakeClock{t: epoch},
	}
	f.games = NewGameService(f.store, lock.NewKeyLock(), f.sink, msgs)
	f.games.SetClock(f.clock.Now)
	f.players = NewPlayerService(f.store, f.sink, msgs)
	f.players.SetClock(f.clock.Now)
	f.matchups = NewMatchupService(f.store, f.sink, msgs, 42)
	f.matchups.SetClock(f.clock.Now)
	f.signups = NewSignupService(f.store, f.matchups, f.sink, msgs, DefaultSignupSchedule)
	f.signups.SetClock(f.clock.Now)
	f.logs = NewAuditLogService(f.store, 0)
	f.logs.SetClock(f.clock.Now)
	return f
}

func ptr[T any](v T) *T { return &v }

// player registers an active player with a mobile handle.
func (f *fixture) player(t require.TestingT, id int64, rung int) *model.Player {
	p := &model.Player{
		ID:         id,
		Name:       "player" + playerRef(id),
		MobileName: ptr("mobile" + playerRef(id)),
		Rung:       rung,
		Active:     true,
	}
	require.NoError(t, f.store.CreatePlayer(f.ctx, p))
	return p
}

// history gives a player n confirmed games against fresh fillers without
// touching their rung. wins of them are wins.
func (f *fixture) history(t require.TestingT, id int64, n, wins int) {
	for i := 0; i < n; i++ {
		filler := fillerBase + id*100 + int64(i)
		f.player(t, filler, 1)
		winner := filler
		if i < wins {
			winner = id
		}
		g := &model.Game{
			HostID:      id,
			AwayID:      filler,
			WinnerID:    ptr(winner),
			IsStarted:   true,
			IsComplete:  true,
			IsConfirmed: true,
			Step:        1,
			Mobile:      true,
			OpenedAt:    epoch.Add(-30 * 24 * time.Hour),
		}
		require.NoError(t, f.store.CreateGame(f.ctx, g))
	}
}

// pending opens a game between host and away at the current time.
func (f *fixture) pending(t require.TestingT, host, away int64) *model.Game {
	g := &model.Game{HostID: host, AwayID: away, Step: 1, Mobile: true, OpenedAt: f.clock.Now()}
	require.NoError(t, f.store.CreateGame(f.ctx, g))
	return g
}

// started opens and starts a game between host and away.
func (f *fixture) started(t require.TestingT, host, away int64) *model.Game {
	g := f.pending(t, host, away)
	res, err := f.games.Start(f.ctx, Caller{ID: host}, g.ID, "War of Tribes")
	require.NoError(t, err)
	return res.Game
}

func (f *fixture) rung(t require.TestingT, id int64) int {
	p, err := f.store.GetPlayer(f.ctx, id)
	require.NoError(t, err)
	return p.Rung
}

func (f *fixture) game(t require.TestingT, id int64) *model.Game {
	g, err := f.store.GetGame(f.ctx, id)
	require.NoError(t, err)
	return g
}

var moderator = Caller{ID: 777, IsModerator: true}
var owner = Caller{ID: 778, IsModerator: true, IsOwner: true}

func TestFixtureHistory(t *testing.T) {
	f := newFixture(t)
	f.player(t, 1, 5)
	f.history(t, 1, 4, 1)

	rec, err := f.store.PlayerRecord(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.PlayerRecord{Games: 4, Wins: 1}, rec)
}
