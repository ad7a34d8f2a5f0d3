package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/ataxx-client/internal/domain"
)

// MemoryRepository is used when no DATABASE_URL is configured.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]*domain.GameResult
	byUser map[string][]*domain.GameResult // player -> results, latest last
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[string]*domain.GameResult),
		byUser: make(map[string][]*domain.GameResult),
	}
}

// SaveResult stores a copy of g. Saving the same id again replaces it.
func (m *MemoryRepository) SaveResult(ctx context.Context, g *domain.GameResult) error {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Moves = append([]string(nil), g.Moves...)
	cp.FinalBoard = append([]string(nil), g.FinalBoard...)

	m.mu.Lock()
	defer m.mu.Unlock()
	player := strings.TrimSpace(g.Player)
	if old, ok := m.byID[g.ID]; ok {
		list := m.byUser[old.Player]
		for i, item := range list {
			if item.ID == g.ID {
				m.byUser[old.Player] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
	m.byID[g.ID] = &cp
	m.byUser[player] = append(m.byUser[player], &cp)
	return nil
}

func (m *MemoryRepository) RecentResults(ctx context.Context, player string, limit int) ([]*domain.GameResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byUser[strings.TrimSpace(player)]
	if len(list) == 0 {
		return []*domain.GameResult{}, nil
	}
	items := make([]*domain.GameResult, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		items = append(items, list[i])
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].EndedAt.After(items[j].EndedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryRepository) Record(ctx context.Context, player string) (*domain.PlayerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec := &domain.PlayerRecord{Player: strings.TrimSpace(player)}
	for _, g := range m.byUser[rec.Player] {
		rec.Add(g)
	}
	return rec, nil
}

func (m *MemoryRepository) Close() error { return nil }
