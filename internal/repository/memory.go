package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ladder-bot/internal/model"
)

// memState is the full contents of a MemoryStore.
type memState struct {
	players  map[int64]*model.Player
	games    map[int64]*model.Game
	signups  map[int64]*model.Signup
	messages map[int64]*model.SignupMessage
	logs     []*model.GameLog

	nextGameID    int64
	nextSignupID  int64
	nextMessageID int64
	nextLogID     int64
}

func newMemState() *memState {
	return &memState{
		players:  make(map[int64]*model.Player),
		games:    make(map[int64]*model.Game),
		signups:  make(map[int64]*model.Signup),
		messages: make(map[int64]*model.SignupMessage),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.players {
		c.players[k] = clonePlayer(v)
	}
	for k, v := range s.games {
		c.games[k] = cloneGame(v)
	}
	for k, v := range s.signups {
		su := *v
		c.signups[k] = &su
	}
	for k, v := range s.messages {
		m := *v
		c.messages[k] = &m
	}
	c.logs = append([]*model.GameLog(nil), s.logs...)
	c.nextGameID = s.nextGameID
	c.nextSignupID = s.nextSignupID
	c.nextMessageID = s.nextMessageID
	c.nextLogID = s.nextLogID
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clonePlayer(p *model.Player) *model.Player {
	c := *p
	c.MobileName = clonePtr(p.MobileName)
	c.SteamName = clonePtr(p.SteamName)
	return &c
}

func cloneGame(g *model.Game) *model.Game {
	c := *g
	c.Name = clonePtr(g.Name)
	c.WinnerID = clonePtr(g.WinnerID)
	c.HostStepChange = clonePtr(g.HostStepChange)
	c.AwayStepChange = clonePtr(g.AwayStepChange)
	c.HostRungApplied = clonePtr(g.HostRungApplied)
	c.AwayRungApplied = clonePtr(g.AwayRungApplied)
	c.StartedAt = clonePtr(g.StartedAt)
	c.WinClaimedAt = clonePtr(g.WinClaimedAt)
	c.WinClaimedBy = clonePtr(g.WinClaimedBy)
	return &c
}

// MemoryStore is an in-process Store. Transactions hold a store-wide lock
// and restore a snapshot when fn fails.
type MemoryStore struct {
	mu   *sync.Mutex
	st   *memState
	inTx bool
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mu: &sync.Mutex{}, st: newMemState(), now: time.Now}
}

func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// Tx runs fn with exclusive access to the store.
func (m *MemoryStore) Tx(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	tx := &MemoryStore{mu: m.mu, st: m.st, inTx: true, now: m.now}
	if err := fn(tx); err != nil {
		*m.st = *snapshot
		return err
	}
	return nil
}

// ============================================================================
// Players
// ============================================================================

func (m *MemoryStore) GetPlayer(_ context.Context, id int64) (*model.Player, error) {
	defer m.lock()()
	p, ok := m.st.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePlayer(p), nil
}

func (m *MemoryStore) GetPlayerForUpdate(ctx context.Context, id int64) (*model.Player, error) {
	return m.GetPlayer(ctx, id)
}

func (m *MemoryStore) CreatePlayer(_ context.Context, p *model.Player) error {
	defer m.lock()()
	if _, ok := m.st.players[p.ID]; ok {
		return ErrDuplicate
	}
	now := m.now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.st.players[p.ID] = clonePlayer(p)
	return nil
}

func (m *MemoryStore) UpdatePlayer(_ context.Context, p *model.Player) error {
	defer m.lock()()
	old, ok := m.st.players[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = m.now()
	m.st.players[p.ID] = clonePlayer(p)
	return nil
}

func (m *MemoryStore) DeletePlayer(_ context.Context, id int64) error {
	defer m.lock()()
	if _, ok := m.st.players[id]; !ok {
		return ErrNotFound
	}
	delete(m.st.players, id)
	for gid, g := range m.st.games {
		if g.IsParticipant(id) {
			delete(m.st.games, gid)
		}
	}
	for sid, su := range m.st.signups {
		if su.PlayerID == id {
			delete(m.st.signups, sid)
		}
	}
	return nil
}

func (m *MemoryStore) selectPlayers(keep func(*model.Player) bool) []*model.Player {
	var out []*model.Player
	for _, p := range m.st.players {
		if keep(p) {
			out = append(out, clonePlayer(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) ListPlayers(_ context.Context, activeOnly bool) ([]*model.Player, error) {
	defer m.lock()()
	return m.selectPlayers(func(p *model.Player) bool { return !activeOnly || p.Active }), nil
}

func (m *MemoryStore) FindPlayersByHandle(_ context.Context, platform model.Platform, handle string) ([]*model.Player, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
	defer m.lock()()
	return m.selectPlayers(func(p *model.Player) bool {
		h := p.Handle(platform)
		return h != nil && strings.EqualFold(*h, handle)
	}), nil
}

func (m *MemoryStore) Leaderboard(_ context.Context, limit int) ([]*model.Player, error) {
	defer m.lock()()
	out := m.selectPlayers(func(p *model.Player) bool { return p.Active })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rung != out[j].Rung {
			return out[i].Rung > out[j].Rung
		}
		return out[i].WinRatio > out[j].WinRatio
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) PlayersOutOfBounds(_ context.Context, minRung, maxRung int) ([]*model.Player, error) {
	defer m.lock()()
	return m.selectPlayers(func(p *model.Player) bool { return p.Rung < minRung || p.Rung > maxRung }), nil
}

func (m *MemoryStore) PlayerRecord(_ context.Context, id int64) (model.PlayerRecord, error) {
	defer m.lock()()
	var rec model.PlayerRecord
	for _, g := range m.st.games {
		if !g.IsConfirmed || !g.IsParticipant(id) {
			continue
		}
		rec.Games++
		if g.WinnerID != nil && *g.WinnerID == id {
			rec.Wins++
		}
	}
	return rec, nil
}

// ============================================================================
// Games
// ============================================================================

func (m *MemoryStore) CreateGame(_ context.Context, g *model.Game) error {
	defer m.lock()()
	m.st.nextGameID++
	g.ID = m.st.nextGameID
	m.st.games[g.ID] = cloneGame(g)
	return nil
}

func (m *MemoryStore) GetGame(_ context.Context, id int64) (*model.Game, error) {
	defer m.lock()()
	g, ok := m.st.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGame(g), nil
}

func (m *MemoryStore) GetGameForUpdate(ctx context.Context, id int64) (*model.Game, error) {
	return m.GetGame(ctx, id)
}

func (m *MemoryStore) UpdateGame(_ context.Context, g *model.Game) error {
	defer m.lock()()
	if _, ok := m.st.games[g.ID]; !ok {
		return ErrNotFound
	}
	m.st.games[g.ID] = cloneGame(g)
	return nil
}

func (m *MemoryStore) DeleteGame(_ context.Context, id int64) error {
	defer m.lock()()
	if _, ok := m.st.games[id]; !ok {
		return ErrNotFound
	}
	delete(m.st.games, id)
	return nil
}

func matchGame(g *model.Game, f GameFilter) bool {
	if f.PlayerID != 0 && !g.IsParticipant(f.PlayerID) {
		return false
	}
	if len(f.States) > 0 {
		found := false
		for _, s := range f.States {
			if g.State() == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.HostSwitched != nil && g.HostSwitched != *f.HostSwitched {
		return false
	}
	if f.Mobile != nil && g.Mobile != *f.Mobile {
		return false
	}
	if f.OpenedBefore != nil && !g.OpenedAt.Before(*f.OpenedBefore) {
		return false
	}
	if f.ClaimedBefore != nil && (g.WinClaimedAt == nil || !g.WinClaimedAt.Before(*f.ClaimedBefore)) {
		return false
	}
	return true
}

func (m *MemoryStore) ListGames(_ context.Context, f GameFilter) ([]*model.Game, error) {
	defer m.lock()()
	var out []*model.Game
	for _, g := range m.st.games {
		if matchGame(g, f) {
			out = append(out, cloneGame(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ============================================================================
// Signups
// ============================================================================

func (m *MemoryStore) CreateSignup(_ context.Context, su *model.Signup) error {
	defer m.lock()()
	for _, existing := range m.st.signups {
		if existing.PlayerID == su.PlayerID && existing.Platform == su.Platform {
			return ErrDuplicate
		}
	}
	m.st.nextSignupID++
	su.ID = m.st.nextSignupID
	c := *su
	m.st.signups[su.ID] = &c
	return nil
}

func (m *MemoryStore) DeleteSignup(_ context.Context, playerID int64, platform model.Platform) error {
	defer m.lock()()
	for id, su := range m.st.signups {
		if su.PlayerID == playerID && su.Platform == platform {
			delete(m.st.signups, id)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) selectSignups(keep func(*model.Signup) bool) []*model.Signup {
	var out []*model.Signup
	for _, su := range m.st.signups {
		if keep(su) {
			c := *su
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) ListSignups(_ context.Context) ([]*model.Signup, error) {
	defer m.lock()()
	return m.selectSignups(func(*model.Signup) bool { return true }), nil
}

func (m *MemoryStore) SignupsByPlayer(_ context.Context, playerID int64) ([]*model.Signup, error) {
	defer m.lock()()
	return m.selectSignups(func(su *model.Signup) bool { return su.PlayerID == playerID }), nil
}

func (m *MemoryStore) DeleteSignupsByPlayer(_ context.Context, playerID int64) (int64, error) {
	defer m.lock()()
	var n int64
	for id, su := range m.st.signups {
		if su.PlayerID == playerID {
			delete(m.st.signups, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteAllSignups(_ context.Context) (int64, error) {
	defer m.lock()()
	n := int64(len(m.st.signups))
	m.st.signups = make(map[int64]*model.Signup)
	return n, nil
}

func (m *MemoryStore) OpenSignupMessage(_ context.Context) (*model.SignupMessage, error) {
	defer m.lock()()
	for _, msg := range m.st.messages {
		if msg.IsOpen {
			c := *msg
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) hasOtherOpen(id int64) bool {
	for _, msg := range m.st.messages {
		if msg.IsOpen && msg.ID != id {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateSignupMessage(_ context.Context, msg *model.SignupMessage) error {
	defer m.lock()()
	if msg.IsOpen && m.hasOtherOpen(0) {
		return ErrDuplicate
	}
	m.st.nextMessageID++
	msg.ID = m.st.nextMessageID
	c := *msg
	m.st.messages[msg.ID] = &c
	return nil
}

func (m *MemoryStore) UpdateSignupMessage(_ context.Context, msg *model.SignupMessage) error {
	defer m.lock()()
	if _, ok := m.st.messages[msg.ID]; !ok {
		return ErrNotFound
	}
	if msg.IsOpen && m.hasOtherOpen(msg.ID) {
		return ErrDuplicate
	}
	c := *msg
	m.st.messages[msg.ID] = &c
	return nil
}

func (m *MemoryStore) CountSignupMessagesClosingAfter(_ context.Context, t time.Time) (int, error) {
	defer m.lock()()
	n := 0
	for _, msg := range m.st.messages {
		if msg.CloseAt.After(t) {
			n++
		}
	}
	return n, nil
}

// ============================================================================
// Audit log
// ============================================================================

func (m *MemoryStore) AppendLog(_ context.Context, l *model.GameLog) error {
	defer m.lock()()
	m.st.nextLogID++
	l.ID = m.st.nextLogID
	c := *l
	c.GameID = clonePtr(l.GameID)
	m.st.logs = append(m.st.logs, &c)
	return nil
}

// containsInOrder reports whether every keyword occurs in s in order,
// ignoring case.
func containsInOrder(s string, keywords []string) bool {
	s = strings.ToLower(s)
	for _, k := range keywords {
		lk := strings.ToLower(k)
		i := strings.Index(s, lk)
		if i < 0 {
			return false
		}
		s = s[i+len(lk):]
	}
	return true
}

func (m *MemoryStore) SearchLogs(_ context.Context, q LogQuery) ([]*model.GameLog, error) {
	defer m.lock()()
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	exclude := strings.TrimSpace(q.Exclude)

	var out []*model.GameLog
	for _, l := range m.st.logs {
		if q.GameID != nil && (l.GameID == nil || *l.GameID != *q.GameID) {
			continue
		}
		if !containsInOrder(l.Message, q.Keywords) {
			continue
		}
		if exclude != "" && containsInOrder(l.Message, []string{exclude}) {
			continue
		}
		c := *l
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) PurgeLogs(_ context.Context) (int64, error) {
	defer m.lock()()
	n := int64(len(m.st.logs))
	m.st.logs = nil
	return n, nil
}

var _ Store = (*MemoryStore)(nil)
