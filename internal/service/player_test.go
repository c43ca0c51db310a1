package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-bot/internal/model"
	"ladder-bot/internal/notify"
	"ladder-bot/internal/rank"
	"ladder-bot/internal/repository"
)

func TestSetName_RegistersAndUpdates(t *testing.T) {
	f := newFixture(t)

	res, err := f.players.SetName(f.ctx, Caller{ID: 10}, 10, "Alice", model.PlatformMobile, "  Alice_M ")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "Alice", res.Player.Name)
	assert.Equal(t, "Alice_M", *res.Player.MobileName)
	assert.Nil(t, res.Player.SteamName)
	assert.Equal(t, rank.DefaultRung, res.Player.Rung)

	res, err = f.players.SetName(f.ctx, Caller{ID: 10}, 10, "", model.PlatformSteam, "alice_steam")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "Alice", res.Player.Name, "empty display name keeps the old one")
	assert.Equal(t, "alice_steam", *res.Player.SteamName)

	res, err = f.players.SetName(f.ctx, Caller{ID: 10}, 10, "Alice", model.PlatformSteam, "NONE")
	require.NoError(t, err)
	assert.Nil(t, res.Player.SteamName)
	assert.False(t, res.Player.HasPlatform(model.PlatformSteam))
}

func TestSetName_Authorization(t *testing.T) {
	f := newFixture(t)

	_, err := f.players.SetName(f.ctx, Caller{ID: 10}, 11, "Bob", model.PlatformMobile, "bob")
	assert.ErrorIs(t, err, ErrModeratorOnly)

	res, err := f.players.SetName(f.ctx, moderator, 11, "Bob", model.PlatformMobile, "bob")
	require.NoError(t, err)
	assert.True(t, res.Created)

	_, err = f.players.SetName(f.ctx, Caller{ID: 11}, 11, "Bob", model.Platform("switch"), "bob")
	assert.ErrorIs(t, err, ErrUnknownPlatform)

	_, err = f.players.SetName(f.ctx, Caller{ID: 11}, 11, "Bob", model.PlatformMobile, "  ")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestSetName_ReportsDuplicates(t *testing.T) {
	f := newFixture(t)
	_, err := f.players.SetName(f.ctx, Caller{ID: 10}, 10, "Alice", model.PlatformMobile, "Shared")
	require.NoError(t, err)

	res, err := f.players.SetName(f.ctx, Caller{ID: 11}, 11, "Bob", model.PlatformMobile, "Shared")
	require.NoError(t, err)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, int64(10), res.Duplicates[0].ID)
}

func TestSyncName(t *testing.T) {
	f := newFixture(t)
	f.player(t, 1, 5)

	require.NoError(t, f.players.SyncName(f.ctx, 1, "Renamed"))
	p, err := f.players.Get(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)

	assert.NoError(t, f.players.SyncName(f.ctx, 99, "Ghost"))
	assert.NoError(t, f.players.SyncName(f.ctx, 1, " "))
}

func TestDeactivateAndActivate(t *testing.T) {
	f := newFixture(t)
	f.player(t, 1, 5)
	f.player(t, 2, 5)
	f.pending(t, 1, 2)
	_, err := f.signups.OpenWindow(f.ctx, 0, 0, epoch.AddDate(0, 0, 2))
	require.NoError(t, err)
	_, err = f.signups.Add(f.ctx, 1, model.PlatformMobile)
	require.NoError(t, err)

	res, err := f.players.Deactivate(f.ctx, 1)
	require.NoError(t, err)
	assert.False(t, res.Player.Active)
	assert.Equal(t, int64(1), res.RemovedSignups)
	assert.Equal(t, 1, res.Incomplete)
	assert.Len(t, f.sink.PostsTo(notify.ChannelLogging), 1)

	_, err = f.signups.Add(f.ctx, 1, model.PlatformMobile)
	assert.ErrorIs(t, err, ErrInactivePlayer)

	p, err := f.players.Activate(f.ctx, 1)
	require.NoError(t, err)
	assert.True(t, p.Active)

	_, err = f.players.Deactivate(f.ctx, 99)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestSetRung(t *testing.T) {
	f := newFixture(t)
	f.player(t, 1, 5)

	_, err := f.players.SetRung(f.ctx, Caller{ID: 1}, 1, 9)
	assert.ErrorIs(t, err, ErrModeratorOnly)

	_, err = f.players.SetRung(f.ctx, moderator, 1, 13)
	assert.ErrorIs(t, err, ErrInvalidRung)

	p, err := f.players.SetRung(f.ctx, moderator, 1, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, p.Rung)

	logs, err := f.store.SearchLogs(f.ctx, repository.LogQuery{Keywords: []string{"Rung for"}})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Rung for [1] set from 5 to 9 by [777]", logs[0].Message)
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	f.player(t, 1, 3)
	f.player(t, 2, 9)
	f.player(t, 3, 6)
	_, err := f.players.Deactivate(f.ctx, 3)
	require.NoError(t, err)

	top, err := f.players.Leaderboard(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(2), top[0].ID)
	assert.Equal(t, int64(1), top[1].ID)
}

func TestDeletePlayer(t *testing.T) {
	f := newFixture(t)
	f.player(t, 1, 5)
	f.player(t, 2, 5)
	g := f.pending(t, 1, 2)

	err := f.players.DeletePlayer(f.ctx, moderator, 1)
	assert.ErrorIs(t, err, ErrOwnerOnly)

	require.NoError(t, f.players.DeletePlayer(f.ctx, owner, 1))
	_, err = f.players.Get(f.ctx, 1)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	_, err = f.games.Get(f.ctx, g.ID)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestFind(t *testing.T) {
	f := newFixture(t)
	_, err := f.players.SetName(f.ctx, Caller{ID: 10}, 10, "Alice", model.PlatformMobile, "QueenA")
	require.NoError(t, err)
	_, err = f.players.SetName(f.ctx, Caller{ID: 11}, 11, "Alicia", model.PlatformMobile, "KingB")
	require.NoError(t, err)

	p, err := f.players.Find(f.ctx, "queena")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.ID)

	_, err = f.players.Find(f.ctx, "ali")
	assert.ErrorIs(t, err, ErrAmbiguousTarget)

	_, err = f.players.Find(f.ctx, "zed")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettlePlacement(t *testing.T) {
	tests := []struct {
		name string
		wins int
		want int
	}{
		{"no wins", 0, 1},
		{"one win", 1, 3},
		{"two wins", 2, 5},
		{"sweep", 3, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.player(t, 1, 4)
			f.history(t, 1, rank.PlacementSeedGames, tt.wins)

			res, err := f.players.SettlePlacement(f.ctx, 1)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, 4, res.Before)
			assert.Equal(t, tt.want, res.After)
			assert.Equal(t, tt.want, f.rung(t, 1))
		})
	}
}

func TestSettlePlacement_OtherCountsUntouched(t *testing.T) {
	f := newFixture(t)
	f.player(t, 1, 4)
	f.history(t, 1, 2, 2)

	res, err := f.players.SettlePlacement(f.ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 4, f.rung(t, 1))
}

func TestSettleAfterConfirmation(t *testing.T) {
	f := newFixture(t)
	f.player(t, 1, 1)
	f.player(t, 2, 6)
	f.history(t, 1, 2, 2)
	f.history(t, 2, 6, 3)
	g := f.started(t, 1, 2)

	res, err := f.games.ClaimWin(f.ctx, Caller{ID: 2}, g.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, f.rung(t, 1), "placement step before seeding")

	f.players.SettleAfter(f.ctx, res.Change)
	assert.Equal(t, 7, f.rung(t, 1), "three placement wins seed rung 7")
	assert.Equal(t, 7, res.Change.WinnerAfter)
	assert.Equal(t, 5, f.rung(t, 2))
	assert.Len(t, f.sink.PostsTo(notify.ChannelAnnouncements), 1)
}
