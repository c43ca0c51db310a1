package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-bot/internal/config"
)

func TestPoolConfigDefaults(t *testing.T) {
	pc, err := poolConfig(&config.DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", Name: "ladder", PoolSize: 2})
	require.NoError(t, err)

	assert.Equal(t, int32(2), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, defaultConnectTimeout, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, defaultMaxConnLifetime, pc.MaxConnLifetime)
	assert.Equal(t, defaultMaxConnIdleTime, pc.MaxConnIdleTime)
	assert.Equal(t, "ladder", pc.ConnConfig.Database)
}

func TestPoolConfigOverrides(t *testing.T) {
	pc, err := poolConfig(&config.DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Name: "ladder",
		PoolSize:        20,
		ConnectTimeout:  time.Second,
		MaxConnLifetime: time.Minute,
		MaxConnIdleTime: 2 * time.Minute,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, int32(5), pc.MinConns)
	assert.Equal(t, time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, 2*time.Minute, pc.MaxConnIdleTime)
}

func TestPoolConfigZeroSize(t *testing.T) {
	pc, err := poolConfig(&config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Name: "ladder"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
}
