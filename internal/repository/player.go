package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ladder-bot/internal/model"
)

const playerColumns = `id, name, mobile_name, steam_name, rung, win_ratio, active, created_at, updated_at`

func scanPlayer(row pgx.Row) (*model.Player, error) {
	var p model.Player
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.MobileName,
		&p.SteamName,
		&p.Rung,
		&p.WinRatio,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPlayers(rows pgx.Rows) ([]*model.Player, error) {
	defer rows.Close()

	var players []*model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating players: %w", err)
	}
	return players, nil
}

// GetPlayer retrieves a player by id.
// Returns ErrNotFound if the player does not exist.
func (s *PostgresStore) GetPlayer(ctx context.Context, id int64) (*model.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`

	p, err := scanPlayer(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "player")
	}
	return p, nil
}

// GetPlayerForUpdate retrieves a player and locks the row.
func (s *PostgresStore) GetPlayerForUpdate(ctx context.Context, id int64) (*model.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1 FOR UPDATE`

	p, err := scanPlayer(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "player")
	}
	return p, nil
}

// CreatePlayer inserts a new player. Returns ErrDuplicate if the id is taken.
func (s *PostgresStore) CreatePlayer(ctx context.Context, p *model.Player) error {
	const query = `
		INSERT INTO players (id, name, mobile_name, steam_name, rung, win_ratio, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		p.ID, p.Name, p.MobileName, p.SteamName, p.Rung, p.WinRatio, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

// UpdatePlayer writes every mutable player field.
func (s *PostgresStore) UpdatePlayer(ctx context.Context, p *model.Player) error {
	const query = `
		UPDATE players
		SET name = $2, mobile_name = $3, steam_name = $4, rung = $5, win_ratio = $6, active = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.db.QueryRow(ctx, query,
		p.ID, p.Name, p.MobileName, p.SteamName, p.Rung, p.WinRatio, p.Active,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return notFound(err, "player for update")
	}
	return nil
}

// DeletePlayer hard-deletes a player together with their games and signups.
func (s *PostgresStore) DeletePlayer(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPlayers returns players ordered by id.
func (s *PostgresStore) ListPlayers(ctx context.Context, activeOnly bool) ([]*model.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE ($1 = FALSE OR active) ORDER BY id`

	rows, err := s.db.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return collectPlayers(rows)
}

// FindPlayersByHandle returns players whose in-game name on the platform
// matches handle case-insensitively.
func (s *PostgresStore) FindPlayersByHandle(ctx context.Context, platform model.Platform, handle string) ([]*model.Player, error) {
	var column string
	switch platform {
	case model.PlatformMobile:
		column = "mobile_name"
	case model.PlatformSteam:
		column = "steam_name"
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}

	query := `SELECT ` + playerColumns + ` FROM players WHERE LOWER(` + column + `) = LOWER($1) ORDER BY id`

	rows, err := s.db.Query(ctx, query, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to find players by handle: %w", err)
	}
	return collectPlayers(rows)
}

// Leaderboard returns active players ordered by rung then win ratio.
func (s *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]*model.Player, error) {
	query := `
		SELECT ` + playerColumns + `
		FROM players
		WHERE active
		ORDER BY rung DESC, win_ratio DESC, id
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return collectPlayers(rows)
}

// PlayersOutOfBounds returns players whose rung lies outside [minRung, maxRung].
func (s *PostgresStore) PlayersOutOfBounds(ctx context.Context, minRung, maxRung int) ([]*model.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE rung < $1 OR rung > $2 ORDER BY id`

	rows, err := s.db.Query(ctx, query, minRung, maxRung)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rung bounds: %w", err)
	}
	return collectPlayers(rows)
}

// PlayerRecord counts confirmed games and wins for a player.
func (s *PostgresStore) PlayerRecord(ctx context.Context, id int64) (model.PlayerRecord, error) {
	const query = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE winner_id = $1)
		FROM games
		WHERE is_confirmed AND (host_id = $1 OR away_id = $1)
	`

	var rec model.PlayerRecord
	if err := s.db.QueryRow(ctx, query, id).Scan(&rec.Games, &rec.Wins); err != nil {
		return rec, fmt.Errorf("failed to count player record: %w", err)
	}
	return rec, nil
}
