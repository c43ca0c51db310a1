package repository

import (
	"context"
	"fmt"
	"time"

	"ladder-bot/internal/model"
)

// CreateSignup records a signup. Returns ErrDuplicate if the player is
// already signed up for the platform.
func (s *PostgresStore) CreateSignup(ctx context.Context, su *model.Signup) error {
	const query = `
		INSERT INTO signups (player_id, platform, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := s.db.QueryRow(ctx, query, su.PlayerID, string(su.Platform), su.CreatedAt).Scan(&su.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create signup: %w", err)
	}
	return nil
}

// DeleteSignup removes a player's signup for one platform.
func (s *PostgresStore) DeleteSignup(ctx context.Context, playerID int64, platform model.Platform) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM signups WHERE player_id = $1 AND platform = $2`, playerID, string(platform))
	if err != nil {
		return fmt.Errorf("failed to delete signup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) querySignups(ctx context.Context, query string, args ...any) ([]*model.Signup, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signups: %w", err)
	}
	defer rows.Close()

	var signups []*model.Signup
	for rows.Next() {
		var su model.Signup
		var platform string
		if err := rows.Scan(&su.ID, &su.PlayerID, &platform, &su.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signup: %w", err)
		}
		su.Platform = model.Platform(platform)
		signups = append(signups, &su)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signups: %w", err)
	}
	return signups, nil
}

// ListSignups returns every signup in the current pool.
func (s *PostgresStore) ListSignups(ctx context.Context) ([]*model.Signup, error) {
	return s.querySignups(ctx, `SELECT id, player_id, platform, created_at FROM signups ORDER BY id`)
}

// SignupsByPlayer returns a player's signups.
func (s *PostgresStore) SignupsByPlayer(ctx context.Context, playerID int64) ([]*model.Signup, error) {
	return s.querySignups(ctx,
		`SELECT id, player_id, platform, created_at FROM signups WHERE player_id = $1 ORDER BY id`, playerID)
}

// DeleteSignupsByPlayer removes all of a player's signups.
func (s *PostgresStore) DeleteSignupsByPlayer(ctx context.Context, playerID int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM signups WHERE player_id = $1`, playerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete player signups: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAllSignups clears the signup pool.
func (s *PostgresStore) DeleteAllSignups(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM signups`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear signups: %w", err)
	}
	return tag.RowsAffected(), nil
}

const signupMessageColumns = `id, message_id, chat_id, is_open, close_at, created_at`

// OpenSignupMessage returns the open signup window.
// Returns ErrNotFound when no window is open.
func (s *PostgresStore) OpenSignupMessage(ctx context.Context) (*model.SignupMessage, error) {
	query := `SELECT ` + signupMessageColumns + ` FROM signup_messages WHERE is_open LIMIT 1`

	var m model.SignupMessage
	err := s.db.QueryRow(ctx, query).Scan(&m.ID, &m.MessageID, &m.ChatID, &m.IsOpen, &m.CloseAt, &m.CreatedAt)
	if err != nil {
		return nil, notFound(err, "signup message")
	}
	return &m, nil
}

// CreateSignupMessage records a new signup window. Returns ErrDuplicate if
// another window is already open.
func (s *PostgresStore) CreateSignupMessage(ctx context.Context, m *model.SignupMessage) error {
	const query = `
		INSERT INTO signup_messages (message_id, chat_id, is_open, close_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.db.QueryRow(ctx, query, m.MessageID, m.ChatID, m.IsOpen, m.CloseAt, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create signup message: %w", err)
	}
	return nil
}

// UpdateSignupMessage writes a signup window back.
func (s *PostgresStore) UpdateSignupMessage(ctx context.Context, m *model.SignupMessage) error {
	const query = `
		UPDATE signup_messages SET message_id = $2, chat_id = $3, is_open = $4, close_at = $5
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query, m.ID, m.MessageID, m.ChatID, m.IsOpen, m.CloseAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update signup message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSignupMessagesClosingAfter counts windows scheduled to close after t.
func (s *PostgresStore) CountSignupMessagesClosingAfter(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM signup_messages WHERE close_at > $1`, t).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count signup messages: %w", err)
	}
	return n, nil
}
