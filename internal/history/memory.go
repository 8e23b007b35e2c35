package history

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// memrepo keeps history in process memory. Used for development and tests.
type memrepo struct {
	mu sync.RWMutex

	games     map[string]*GameRecord
	byAccount map[string][]*GameRecord
	profiles  map[string]*Profile
}

func NewMemoryRepository() Repository {
	return &memrepo{
		games:     make(map[string]*GameRecord),
		byAccount: make(map[string][]*GameRecord),
		profiles:  make(map[string]*Profile),
	}
}

func (m *memrepo) InsertGame(ctx context.Context, game *GameRecord) error {
	if game == nil || strings.TrimSpace(game.ID) == "" {
		return ErrInvalidGame
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.games[game.ID]; exists {
		return ErrDuplicateGame
	}
	cp := copyRecord(game)
	m.games[cp.ID] = cp
	for _, a := range cp.Accounts() {
		m.byAccount[a] = append(m.byAccount[a], cp)
	}
	return nil
}

func (m *memrepo) GetRecentGames(ctx context.Context, accountID string, limit int) ([]*GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := append([]*GameRecord(nil), m.byAccount[accountID]...)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]*GameRecord, 0, len(items))
	for _, g := range items {
		out = append(out, copyRecord(g))
	}
	return out, nil
}

func (m *memrepo) GetGame(ctx context.Context, id string) (*GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	return copyRecord(g), nil
}

func (m *memrepo) GetProfile(ctx context.Context, accountID string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[accountID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memrepo) UpsertProfile(ctx context.Context, profile *Profile) error {
	if profile == nil {
		return nil
	}
	cp := *profile
	m.mu.Lock()
	m.profiles[cp.AccountID] = &cp
	m.mu.Unlock()
	return nil
}

func (m *memrepo) Close() error { return nil }

func copyRecord(g *GameRecord) *GameRecord {
	cp := *g
	cp.Moves = append([]string(nil), g.Moves...)
	cp.MovesSAN = append([]string(nil), g.MovesSAN...)
	return &cp
}
