// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ladder-bot/internal/model"
	"ladder-bot/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container, applies migrations and returns
// a connection pool. Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// truncate empties every table between subtests.
func truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`TRUNCATE game_logs, signup_messages, signups, games, players RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

func TestPostgresStore_Contract(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	runStoreContract(t, func(t *testing.T) Store {
		truncate(t, pool)
		return NewPostgresStore(pool)
	})
}

// TestPostgresStore_ForUpdateSerializesWriters checks that two transactions
// incrementing the same rung never lose an update.
func TestPostgresStore_ForUpdateSerializesWriters(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := NewPostgresStore(pool)
	require.NoError(t, s.CreatePlayer(ctx, &model.Player{ID: 1, Name: "alice", Rung: 1, Active: true}))

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Tx(ctx, func(tx Store) error {
				p, err := tx.GetPlayerForUpdate(ctx, 1)
				if err != nil {
					return err
				}
				p.Rung++
				return tx.UpdatePlayer(ctx, p)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := s.GetPlayer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1+writers, p.Rung)
}

func TestPostgresStore_DistinctSidesConstraint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := NewPostgresStore(pool)
	require.NoError(t, s.CreatePlayer(ctx, &model.Player{ID: 1, Name: "alice", Rung: 1, Active: true}))

	err := s.CreateGame(ctx, &model.Game{HostID: 1, AwayID: 1, HostStep: 1, AwayStep: 1, Step: 1, OpenedAt: time.Now()})
	assert.Error(t, err)
}
