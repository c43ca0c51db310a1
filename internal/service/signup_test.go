package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-bot/internal/model"
	"ladder-bot/internal/notify"
)

type fakePoster struct {
	posted []time.Time
	closed []int64
}

func (p *fakePoster) PostSignupWindow(_ context.Context, closeAt time.Time) (int64, int64, error) {
	p.posted = append(p.posted, closeAt)
	return -100, int64(len(p.posted)), nil
}

func (p *fakePoster) CloseSignupWindow(_ context.Context, _, messageID int64) error {
	p.closed = append(p.closed, messageID)
	return nil
}

func TestNextWeekday(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		day  time.Weekday
		want time.Time
	}{
		{"later this week", epoch, time.Saturday, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"wraps the week", epoch, time.Monday, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{"same day means next week", epoch, time.Wednesday, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)},
		{"converts to UTC", time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600)), time.Monday,
			time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextWeekday(tt.now, tt.day))
		})
	}
}

func TestSignupWindow(t *testing.T) {
	f := newFixture(t)
	f.player(t, 1, 5)
	closeAt := epoch.Add(48 * time.Hour)

	_, err := f.signups.Add(f.ctx, 1, model.PlatformMobile)
	assert.ErrorIs(t, err, ErrSignupsClosed)

	w, err := f.signups.OpenWindow(f.ctx, -100, 55, closeAt)
	require.NoError(t, err)
	assert.True(t, w.IsOpen)

	_, err = f.signups.OpenWindow(f.ctx, -100, 56, closeAt)
	assert.ErrorIs(t, err, ErrSignupsOpen)

	_, err = f.signups.Add(f.ctx, 1, model.PlatformMobile)
	require.NoError(t, err)
	_, err = f.signups.Add(f.ctx, 1, model.PlatformMobile)
	assert.ErrorIs(t, err, ErrAlreadySignedUp)

	_, err = f.signups.Add(f.ctx, 1, model.PlatformSteam)
	assert.ErrorIs(t, err, ErrMissingHandle)

	_, err = f.signups.Add(f.ctx, 2, model.PlatformMobile)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	roster, err := f.signups.Roster(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, roster.Window)
	require.Len(t, roster.Mobile, 1)
	assert.Empty(t, roster.Steam)

	require.NoError(t, f.signups.Remove(f.ctx, 1, model.PlatformMobile))
	assert.ErrorIs(t, f.signups.Remove(f.ctx, 1, model.PlatformMobile), ErrNotSignedUp)

	_, err = f.signups.CloseWindow(f.ctx, Caller{ID: 1})
	assert.ErrorIs(t, err, ErrModeratorOnly)

	closed, err := f.signups.CloseWindow(f.ctx, moderator)
	require.NoError(t, err)
	assert.False(t, closed.IsOpen)

	_, err = f.signups.CloseWindow(f.ctx, moderator)
	assert.ErrorIs(t, err, ErrSignupsClosed)
}

func TestSignupBothPlatforms(t *testing.T) {
	f := newFixture(t)
	p := f.player(t, 1, 5)
	p.SteamName = ptr("steamy")
	require.NoError(t, f.store.UpdatePlayer(f.ctx, p))

	_, err := f.signups.OpenWindow(f.ctx, 0, 0, epoch.Add(time.Hour))
	require.NoError(t, err)
	_, err = f.signups.Add(f.ctx, 1, model.PlatformMobile)
	require.NoError(t, err)
	_, err = f.signups.Add(f.ctx, 1, model.PlatformSteam)
	require.NoError(t, err)

	roster, err := f.signups.Roster(f.ctx)
	require.NoError(t, err)
	assert.Len(t, roster.Mobile, 1)
	assert.Len(t, roster.Steam, 1)
}

func TestOpen_UsesPoster(t *testing.T) {
	f := newFixture(t)
	poster := &fakePoster{}
	f.signups.SetPoster(poster)

	_, err := f.signups.Open(f.ctx, Caller{ID: 1}, time.Time{})
	assert.ErrorIs(t, err, ErrModeratorOnly)

	w, err := f.signups.Open(f.ctx, moderator, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), w.CloseAt)
	assert.Equal(t, int64(1), w.MessageID)
	assert.Equal(t, int64(-100), w.ChatID)

	_, err = f.signups.Open(f.ctx, moderator, time.Time{})
	assert.ErrorIs(t, err, ErrSignupsOpen)
	assert.Len(t, poster.posted, 1, "no message posted while a window is open")

	_, err = f.signups.CloseWindow(f.ctx, moderator)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, poster.closed)
}

func TestTick_WeeklyCycle(t *testing.T) {
	f := newFixture(t)
	poster := &fakePoster{}
	f.signups.SetPoster(poster)
	for id := int64(1); id <= 4; id++ {
		f.player(t, id, 5)
	}

	// Wednesday: nothing to do.
	res, err := f.signups.Tick(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, res.Opened)
	assert.Nil(t, res.Closed)

	saturday := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	f.clock.Set(saturday)
	res, err = f.signups.Tick(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Opened)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), res.Opened.CloseAt)
	assert.Len(t, f.sink.PostsTo(notify.ChannelAnnouncements), 1)

	res, err = f.signups.Tick(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, res.Opened, "already open")

	for id := int64(1); id <= 4; id++ {
		_, err := f.signups.Add(f.ctx, id, model.PlatformMobile)
		require.NoError(t, err)
	}

	f.clock.Set(time.Date(2024, 3, 11, 0, 5, 0, 0, time.UTC))
	res, err = f.signups.Tick(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Closed)
	require.NotNil(t, res.Matchup)
	assert.Len(t, res.Matchup.Games, 2)

	signups, err := f.store.ListSignups(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, signups)

	res, err = f.signups.Tick(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, res.Opened)
	assert.Nil(t, res.Closed)

	f.clock.Set(saturday.AddDate(0, 0, 7))
	res, err = f.signups.Tick(f.ctx)
	require.NoError(t, err)
	assert.NotNil(t, res.Opened)
}

func TestTick_NoReopenAfterEarlyClose(t *testing.T) {
	f := newFixture(t)
	saturday := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	f.clock.Set(saturday)

	res, err := f.signups.Tick(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Opened)

	_, err = f.signups.CloseWindow(f.ctx, moderator)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	res, err = f.signups.Tick(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, res.Opened, "the closed window still covers this weekend")
}
