package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"ladder-bot/internal/model"
)

const gameColumns = `id, name, host_id, away_id, winner_id,
	is_started, is_complete, is_confirmed, host_switched,
	host_step, away_step, host_step_change, away_step_change,
	host_rung_applied, away_rung_applied, step, mobile,
	opened_at, started_at, win_claimed_at, win_claimed_by`

func scanGame(row pgx.Row) (*model.Game, error) {
	var g model.Game
	err := row.Scan(
		&g.ID,
		&g.Name,
		&g.HostID,
		&g.AwayID,
		&g.WinnerID,
		&g.IsStarted,
		&g.IsComplete,
		&g.IsConfirmed,
		&g.HostSwitched,
		&g.HostStep,
		&g.AwayStep,
		&g.HostStepChange,
		&g.AwayStepChange,
		&g.HostRungApplied,
		&g.AwayRungApplied,
		&g.Step,
		&g.Mobile,
		&g.OpenedAt,
		&g.StartedAt,
		&g.WinClaimedAt,
		&g.WinClaimedBy,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// stateCondition mirrors model.Game.State.
func stateCondition(s model.GameState) string {
	switch s {
	case model.StatePending:
		return "(NOT is_confirmed AND NOT is_complete AND NOT is_started)"
	case model.StateStarted:
		return "(NOT is_confirmed AND NOT is_complete AND is_started)"
	case model.StateClaimed:
		return "(NOT is_confirmed AND is_complete)"
	case model.StateConfirmed:
		return "is_confirmed"
	}
	return "FALSE"
}

// gameWhere builds the WHERE clause and arguments for a filter.
func gameWhere(f GameFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.PlayerID != 0 {
		add("(host_id = $%[1]d OR away_id = $%[1]d)", f.PlayerID)
	}
	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, s := range f.States {
			states[i] = stateCondition(s)
		}
		conds = append(conds, "("+strings.Join(states, " OR ")+")")
	}
	if f.HostSwitched != nil {
		add("host_switched = $%d", *f.HostSwitched)
	}
	if f.Mobile != nil {
		add("mobile = $%d", *f.Mobile)
	}
	if f.OpenedBefore != nil {
		add("opened_at < $%d", *f.OpenedBefore)
	}
	if f.ClaimedBefore != nil {
		add("win_claimed_at < $%d", *f.ClaimedBefore)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// CreateGame inserts a game and sets its id.
func (s *PostgresStore) CreateGame(ctx context.Context, g *model.Game) error {
	const query = `
		INSERT INTO games (name, host_id, away_id, winner_id,
			is_started, is_complete, is_confirmed, host_switched,
			host_step, away_step, host_step_change, away_step_change,
			host_rung_applied, away_rung_applied, step, mobile,
			opened_at, started_at, win_claimed_at, win_claimed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id
	`

	err := s.db.QueryRow(ctx, query,
		g.Name, g.HostID, g.AwayID, g.WinnerID,
		g.IsStarted, g.IsComplete, g.IsConfirmed, g.HostSwitched,
		g.HostStep, g.AwayStep, g.HostStepChange, g.AwayStepChange,
		g.HostRungApplied, g.AwayRungApplied, g.Step, g.Mobile,
		g.OpenedAt, g.StartedAt, g.WinClaimedAt, g.WinClaimedBy,
	).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

// GetGame retrieves a game by id.
// Returns ErrNotFound if the game does not exist.
func (s *PostgresStore) GetGame(ctx context.Context, id int64) (*model.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	g, err := scanGame(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "game")
	}
	return g, nil
}

// GetGameForUpdate retrieves a game and locks the row.
func (s *PostgresStore) GetGameForUpdate(ctx context.Context, id int64) (*model.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1 FOR UPDATE`

	g, err := scanGame(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "game")
	}
	return g, nil
}

// UpdateGame writes every mutable game field.
func (s *PostgresStore) UpdateGame(ctx context.Context, g *model.Game) error {
	const query = `
		UPDATE games SET
			name = $2, host_id = $3, away_id = $4, winner_id = $5,
			is_started = $6, is_complete = $7, is_confirmed = $8, host_switched = $9,
			host_step = $10, away_step = $11, host_step_change = $12, away_step_change = $13,
			host_rung_applied = $14, away_rung_applied = $15, step = $16, mobile = $17,
			opened_at = $18, started_at = $19, win_claimed_at = $20, win_claimed_by = $21
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query,
		g.ID, g.Name, g.HostID, g.AwayID, g.WinnerID,
		g.IsStarted, g.IsComplete, g.IsConfirmed, g.HostSwitched,
		g.HostStep, g.AwayStep, g.HostStepChange, g.AwayStepChange,
		g.HostRungApplied, g.AwayRungApplied, g.Step, g.Mobile,
		g.OpenedAt, g.StartedAt, g.WinClaimedAt, g.WinClaimedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGame removes a game.
func (s *PostgresStore) DeleteGame(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListGames returns games matching the filter ordered by id.
func (s *PostgresStore) ListGames(ctx context.Context, f GameFilter) ([]*model.Game, error) {
	where, args := gameWhere(f)
	query := `SELECT ` + gameColumns + ` FROM games` + where + ` ORDER BY id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}
	return games, nil
}
