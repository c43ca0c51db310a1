package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-bot/internal/model"
)

var contractEpoch = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func mustPlayer(t *testing.T, s Store, id int64, name string, rung int) *model.Player {
	t.Helper()
	p := &model.Player{ID: id, Name: name, Rung: rung, Active: true, MobileName: strPtr(name + "_m")}
	require.NoError(t, s.CreatePlayer(context.Background(), p))
	return p
}

func mustGame(t *testing.T, s Store, host, away int64, opened time.Time) *model.Game {
	t.Helper()
	g := &model.Game{HostID: host, AwayID: away, HostStep: 5, AwayStep: 5, Step: 5, Mobile: true, OpenedAt: opened}
	require.NoError(t, s.CreateGame(context.Background(), g))
	require.NotZero(t, g.ID)
	return g
}

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("players", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		mustPlayer(t, s, 1, "alice", 5)
		mustPlayer(t, s, 2, "bob", 7)

		err := s.CreatePlayer(ctx, &model.Player{ID: 1, Name: "again", Rung: 1})
		assert.ErrorIs(t, err, ErrDuplicate)

		p, err := s.GetPlayer(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "alice", p.Name)

		p.Rung = 6
		p.SteamName = strPtr("AliceSteam")
		require.NoError(t, s.UpdatePlayer(ctx, p))

		found, err := s.FindPlayersByHandle(ctx, model.PlatformSteam, "alicesteam")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, int64(1), found[0].ID)

		board, err := s.Leaderboard(ctx, 10)
		require.NoError(t, err)
		require.Len(t, board, 2)
		assert.Equal(t, int64(2), board[0].ID)

		_, err = s.GetPlayer(ctx, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("games and filters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustPlayer(t, s, 1, "alice", 5)
		mustPlayer(t, s, 2, "bob", 5)
		mustPlayer(t, s, 3, "carol", 5)

		old := mustGame(t, s, 1, 2, contractEpoch.Add(-4*24*time.Hour))
		fresh := mustGame(t, s, 2, 3, contractEpoch)

		claimedAt := contractEpoch.Add(-25 * time.Hour)
		fresh.IsStarted = true
		fresh.IsComplete = true
		fresh.WinClaimedAt = &claimedAt
		fresh.WinClaimedBy = &fresh.HostID
		fresh.WinnerID = &fresh.HostID
		require.NoError(t, s.UpdateGame(ctx, fresh))

		cutoff := contractEpoch.Add(-3 * 24 * time.Hour)
		notSwitched := false
		pending, err := s.ListGames(ctx, GameFilter{
			States:       []model.GameState{model.StatePending},
			OpenedBefore: &cutoff,
			HostSwitched: &notSwitched,
		})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, old.ID, pending[0].ID)

		before := contractEpoch.Add(-24 * time.Hour)
		claimed, err := s.ListGames(ctx, GameFilter{States: []model.GameState{model.StateClaimed}, ClaimedBefore: &before})
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, model.StateClaimed, claimed[0].State())

		byBob, err := s.ListGames(ctx, GameFilter{PlayerID: 2})
		require.NoError(t, err)
		assert.Len(t, byBob, 2)

		fresh.IsConfirmed = true
		require.NoError(t, s.UpdateGame(ctx, fresh))
		rec, err := s.PlayerRecord(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, model.PlayerRecord{Games: 1, Wins: 1}, rec)

		require.NoError(t, s.DeleteGame(ctx, old.ID))
		assert.ErrorIs(t, s.DeleteGame(ctx, old.ID), ErrNotFound)
	})

	t.Run("tx rolls back on error", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustPlayer(t, s, 1, "alice", 5)

		boom := errors.New("boom")
		err := s.Tx(ctx, func(tx Store) error {
			p, err := tx.GetPlayerForUpdate(ctx, 1)
			if err != nil {
				return err
			}
			p.Rung = 12
			if err := tx.UpdatePlayer(ctx, p); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		p, err := s.GetPlayer(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 5, p.Rung)

		require.NoError(t, s.Tx(ctx, func(tx Store) error {
			p, err := tx.GetPlayerForUpdate(ctx, 1)
			if err != nil {
				return err
			}
			p.Rung = 6
			return tx.UpdatePlayer(ctx, p)
		}))
		p, err = s.GetPlayer(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 6, p.Rung)
	})

	t.Run("signups", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustPlayer(t, s, 1, "alice", 5)

		require.NoError(t, s.CreateSignup(ctx, &model.Signup{PlayerID: 1, Platform: model.PlatformMobile, CreatedAt: contractEpoch}))
		require.NoError(t, s.CreateSignup(ctx, &model.Signup{PlayerID: 1, Platform: model.PlatformSteam, CreatedAt: contractEpoch}))
		err := s.CreateSignup(ctx, &model.Signup{PlayerID: 1, Platform: model.PlatformMobile, CreatedAt: contractEpoch})
		assert.ErrorIs(t, err, ErrDuplicate)

		all, err := s.ListSignups(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		require.NoError(t, s.DeleteSignup(ctx, 1, model.PlatformSteam))
		assert.ErrorIs(t, s.DeleteSignup(ctx, 1, model.PlatformSteam), ErrNotFound)

		n, err := s.DeleteAllSignups(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("signup windows", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.OpenSignupMessage(ctx)
		assert.ErrorIs(t, err, ErrNotFound)

		first := &model.SignupMessage{MessageID: 10, ChatID: 99, IsOpen: true, CloseAt: contractEpoch.Add(48 * time.Hour), CreatedAt: contractEpoch}
		require.NoError(t, s.CreateSignupMessage(ctx, first))

		second := &model.SignupMessage{MessageID: 11, ChatID: 99, IsOpen: true, CloseAt: contractEpoch.Add(72 * time.Hour), CreatedAt: contractEpoch}
		assert.ErrorIs(t, s.CreateSignupMessage(ctx, second), ErrDuplicate)

		open, err := s.OpenSignupMessage(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(10), open.MessageID)

		n, err := s.CountSignupMessagesClosingAfter(ctx, contractEpoch)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		open.IsOpen = false
		require.NoError(t, s.UpdateSignupMessage(ctx, open))
		_, err = s.OpenSignupMessage(ctx)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("audit log search", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gid := int64(7)

		entries := []*model.GameLog{
			{GameID: &gid, Message: "game 7 started by alice", CreatedAt: contractEpoch},
			{GameID: &gid, Message: "alice claimed a win", CreatedAt: contractEpoch.Add(time.Minute)},
			{Message: "100% sure bob left", CreatedAt: contractEpoch.Add(2 * time.Minute)},
		}
		for _, e := range entries {
			require.NoError(t, s.AppendLog(ctx, e))
		}

		logs, err := s.SearchLogs(ctx, LogQuery{GameID: &gid})
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, "alice claimed a win", logs[0].Message, "newest first")

		logs, err = s.SearchLogs(ctx, LogQuery{Keywords: []string{"ALICE", "win"}})
		require.NoError(t, err)
		require.Len(t, logs, 1)

		logs, err = s.SearchLogs(ctx, LogQuery{Keywords: []string{"alice"}, Exclude: "claimed"})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "game 7 started by alice", logs[0].Message)

		logs, err = s.SearchLogs(ctx, LogQuery{Keywords: []string{"100%"}})
		require.NoError(t, err)
		assert.Len(t, logs, 1)

		logs, err = s.SearchLogs(ctx, LogQuery{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, logs, 1)

		n, err := s.PurgeLogs(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}
