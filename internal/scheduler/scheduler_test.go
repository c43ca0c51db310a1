package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-bot/internal/model"
	"ladder-bot/internal/service"
)

func TestSchedulerRunsSweepUntilShutdown(t *testing.T) {
	e := newEnv(t)
	e.player(t, 1, 5)
	e.player(t, 2, 5)
	g := e.claimed(t, 1, 2, 30*time.Hour)

	s, err := New(e.sweeper, nil, e.locker, 20*time.Millisecond, time.Hour)
	require.NoError(t, err)
	s.Start()

	require.Eventually(t, func() bool {
		got, err := e.store.GetGame(e.ctx, g.ID)
		return err == nil && got.State() == model.StateConfirmed
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Shutdown())
}

func TestSchedulerOpensSignupsOnSchedule(t *testing.T) {
	e := newEnv(t)
	signups := service.NewSignupService(e.store, nil, e.sink, nil, service.DefaultSignupSchedule)
	// 2024-03-09 is a Saturday.
	signups.SetClock(func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) })

	s, err := New(e.sweeper, signups, e.locker, time.Hour, 20*time.Millisecond)
	require.NoError(t, err)
	s.Start()
	defer func() { assert.NoError(t, s.Shutdown()) }()

	require.Eventually(t, func() bool {
		w, err := e.store.OpenSignupMessage(e.ctx)
		return err == nil && w.IsOpen
	}, 5*time.Second, 10*time.Millisecond)

	w, err := e.store.OpenSignupMessage(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), w.CloseAt)
}
