package repository

import (
	"context"
	"fmt"
	"strings"

	"ladder-bot/internal/model"
)

// DefaultLogLimit bounds audit log searches.
const DefaultLogLimit = 500

// likeEscaper escapes LIKE wildcards in user input.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern joins keywords into an ILIKE pattern that matches them in order.
func LikePattern(keywords []string) string {
	if len(keywords) == 0 {
		return "%"
	}
	escaped := make([]string, len(keywords))
	for i, k := range keywords {
		escaped[i] = likeEscaper.Replace(k)
	}
	return "%" + strings.Join(escaped, "%") + "%"
}

// AppendLog writes an audit entry.
func (s *PostgresStore) AppendLog(ctx context.Context, l *model.GameLog) error {
	const query = `
		INSERT INTO game_logs (game_id, message, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	if err := s.db.QueryRow(ctx, query, l.GameID, l.Message, l.CreatedAt).Scan(&l.ID); err != nil {
		return fmt.Errorf("failed to append game log: %w", err)
	}
	return nil
}

// SearchLogs returns matching entries, newest first.
func (s *PostgresStore) SearchLogs(ctx context.Context, q LogQuery) ([]*model.GameLog, error) {
	const query = `
		SELECT id, game_id, message, created_at
		FROM game_logs
		WHERE ($1::BIGINT IS NULL OR game_id = $1)
			AND message ILIKE $2
			AND ($3 = '' OR message NOT ILIKE $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5
	`

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	exclude := strings.TrimSpace(q.Exclude)

	rows, err := s.db.Query(ctx, query, q.GameID, LikePattern(q.Keywords), exclude, LikePattern([]string{exclude}), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search game logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.GameLog
	for rows.Next() {
		var l model.GameLog
		if err := rows.Scan(&l.ID, &l.GameID, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game log: %w", err)
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game logs: %w", err)
	}
	return logs, nil
}

// PurgeLogs deletes the entire audit trail.
func (s *PostgresStore) PurgeLogs(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM game_logs`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge game logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
