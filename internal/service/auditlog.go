package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ladder-bot/internal/model"
	"ladder-bot/internal/repository"
)

// gameIDToken matches a bare game id in a log search.
var gameIDToken = regexp.MustCompile(`^\d{1,6}$`)

// AuditLogService reads and writes the audit trail.
type AuditLogService struct {
	store repository.Store
	limit int
	now   func() time.Time
}

// NewAuditLogService creates a new AuditLogService instance. A non-positive
// limit uses repository.DefaultLogLimit.
func NewAuditLogService(store repository.Store, limit int) *AuditLogService {
	if limit <= 0 {
		limit = repository.DefaultLogLimit
	}
	return &AuditLogService{store: store, limit: limit, now: time.Now}
}

// SetClock replaces the time source.
func (s *AuditLogService) SetClock(now func() time.Time) { s.now = now }

// Append records a message, optionally tied to a game.
func (s *AuditLogService) Append(ctx context.Context, gameID *int64, message string) error {
	return appendLog(ctx, s.store, s.now(), gameID, message)
}

// ParseLogQuery splits free text into a store query. The first token of
// one to six digits selects a game; a token prefixed with '-' excludes
// entries containing it; the remaining words must appear in order.
func ParseLogQuery(text string, limit int) repository.LogQuery {
	q := repository.LogQuery{Limit: limit}
	for _, tok := range strings.Fields(text) {
		switch {
		case q.GameID == nil && gameIDToken.MatchString(tok):
			id, _ := strconv.ParseInt(tok, 10, 64)
			q.GameID = &id
		case strings.HasPrefix(tok, "-") && len(tok) > 1 && q.Exclude == "":
			q.Exclude = tok[1:]
		default:
			q.Keywords = append(q.Keywords, tok)
		}
	}
	return q
}

// Search returns matching entries newest first. Moderator only.
func (s *AuditLogService) Search(ctx context.Context, caller Caller, text string) ([]*model.GameLog, error) {
	if err := caller.requireModerator(); err != nil {
		return nil, err
	}
	logs, err := s.store.SearchLogs(ctx, ParseLogQuery(text, s.limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search logs: %w", err)
	}
	return logs, nil
}

// ForGame returns a game's audit trail newest first.
func (s *AuditLogService) ForGame(ctx context.Context, gameID int64) ([]*model.GameLog, error) {
	return s.store.SearchLogs(ctx, repository.LogQuery{GameID: &gameID, Limit: s.limit})
}

// Purge deletes every entry. Owner only.
func (s *AuditLogService) Purge(ctx context.Context, caller Caller) (int64, error) {
	if err := caller.requireOwner(); err != nil {
		return 0, err
	}
	n, err := s.store.PurgeLogs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge logs: %w", err)
	}
	log.Warn().Int64("deleted", n).Int64("caller_id", caller.ID).Msg("Audit log purged")
	return n, nil
}
