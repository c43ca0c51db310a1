// Package repository provides the persistence gateway for the ladder.
//
// Store is implemented by PostgresStore for production and MemoryStore for
// tests and local runs. Both return copies: mutating a returned record has
// no effect until it is written back.
package repository

import (
	"context"
	"errors"
	"time"

	"ladder-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// PlayerStore persists players.
type PlayerStore interface {
	GetPlayer(ctx context.Context, id int64) (*model.Player, error)
	// GetPlayerForUpdate locks the row until the surrounding transaction ends.
	GetPlayerForUpdate(ctx context.Context, id int64) (*model.Player, error)
	CreatePlayer(ctx context.Context, p *model.Player) error
	UpdatePlayer(ctx context.Context, p *model.Player) error
	DeletePlayer(ctx context.Context, id int64) error
	ListPlayers(ctx context.Context, activeOnly bool) ([]*model.Player, error)
	FindPlayersByHandle(ctx context.Context, platform model.Platform, handle string) ([]*model.Player, error)
	Leaderboard(ctx context.Context, limit int) ([]*model.Player, error)
	PlayersOutOfBounds(ctx context.Context, minRung, maxRung int) ([]*model.Player, error)
	// PlayerRecord counts confirmed games and wins for a player.
	PlayerRecord(ctx context.Context, id int64) (model.PlayerRecord, error)
}

// GameFilter narrows game queries. Zero values match everything.
type GameFilter struct {
	PlayerID      int64
	States        []model.GameState
	HostSwitched  *bool
	Mobile        *bool
	OpenedBefore  *time.Time
	ClaimedBefore *time.Time
	Limit         int
}

// GameStore persists games.
type GameStore interface {
	CreateGame(ctx context.Context, g *model.Game) error
	GetGame(ctx context.Context, id int64) (*model.Game, error)
	// GetGameForUpdate locks the row until the surrounding transaction ends.
	GetGameForUpdate(ctx context.Context, id int64) (*model.Game, error)
	UpdateGame(ctx context.Context, g *model.Game) error
	DeleteGame(ctx context.Context, id int64) error
	// ListGames returns matching games ordered by id.
	ListGames(ctx context.Context, f GameFilter) ([]*model.Game, error)
}

// SignupStore persists signups and signup windows.
type SignupStore interface {
	CreateSignup(ctx context.Context, s *model.Signup) error
	DeleteSignup(ctx context.Context, playerID int64, platform model.Platform) error
	ListSignups(ctx context.Context) ([]*model.Signup, error)
	SignupsByPlayer(ctx context.Context, playerID int64) ([]*model.Signup, error)
	DeleteSignupsByPlayer(ctx context.Context, playerID int64) (int64, error)
	DeleteAllSignups(ctx context.Context) (int64, error)

	OpenSignupMessage(ctx context.Context) (*model.SignupMessage, error)
	CreateSignupMessage(ctx context.Context, m *model.SignupMessage) error
	UpdateSignupMessage(ctx context.Context, m *model.SignupMessage) error
	CountSignupMessagesClosingAfter(ctx context.Context, t time.Time) (int, error)
}

// LogQuery searches the audit log. Keywords must all appear in order;
// Exclude drops entries containing it.
type LogQuery struct {
	GameID   *int64
	Keywords []string
	Exclude  string
	Limit    int
}

// LogStore persists the append-only audit trail.
type LogStore interface {
	AppendLog(ctx context.Context, l *model.GameLog) error
	SearchLogs(ctx context.Context, q LogQuery) ([]*model.GameLog, error)
	PurgeLogs(ctx context.Context) (int64, error)
}

// Store is the full persistence gateway.
type Store interface {
	PlayerStore
	GameStore
	SignupStore
	LogStore

	// Tx runs fn inside a transaction. fn must use the Store it is given.
	// Returning an error rolls back every write made through it. Calling Tx
	// on a transactional Store joins the outer transaction.
	Tx(ctx context.Context, fn func(Store) error) error
}
