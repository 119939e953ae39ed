package chess

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/chessbattle/internal/domain"
)

// memrepo keeps finished games and profiles in process. Used when no
// DATABASE_URL is configured and by tests.
type memrepo struct {
	mu sync.RWMutex

	nextID int64

	gamesByID      map[int64]*domain.ChessGame
	gamesByPlayer  map[string][]*domain.ChessGame
	gamesBySession map[string]*domain.ChessGame

	profiles map[string]*domain.ChessProfile
}

func NewMemoryRepository() Repository {
	return &memrepo{
		gamesByID:      make(map[int64]*domain.ChessGame),
		gamesByPlayer:  make(map[string][]*domain.ChessGame),
		gamesBySession: make(map[string]*domain.ChessGame),
		profiles:       make(map[string]*domain.ChessProfile),
	}
}

func (m *memrepo) InsertGame(_ context.Context, game *domain.ChessGame) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}
	key := pairKey(game.SessionUUID, game.PlayerHash)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.gamesBySession[key]; exists {
		return 0, ErrDuplicateGame
	}

	m.nextID++
	stored := cloneGame(game)
	stored.ID = m.nextID
	m.gamesByID[stored.ID] = stored
	m.gamesBySession[key] = stored
	m.gamesByPlayer[stored.PlayerHash] = append(m.gamesByPlayer[stored.PlayerHash], stored)
	return stored.ID, nil
}

func (m *memrepo) GetRecentGames(_ context.Context, playerHash string, limit int) ([]*domain.ChessGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.gamesByPlayer[playerHash]
	items := make([]*domain.ChessGame, 0, len(list))
	for _, g := range list {
		items = append(items, cloneGame(g))
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GetGame(_ context.Context, id int64, playerHash string) (*domain.ChessGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.gamesByID[id]
	if !ok || g.PlayerHash != playerHash {
		return nil, nil
	}
	return cloneGame(g), nil
}

func (m *memrepo) GetGameBySession(_ context.Context, sessionUUID string, playerHash string) (*domain.ChessGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.gamesBySession[pairKey(sessionUUID, playerHash)]; ok {
		return cloneGame(g), nil
	}
	return nil, nil
}

func (m *memrepo) GetProfile(_ context.Context, playerHash string, roomHash string) (*domain.ChessProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[pairKey(playerHash, roomHash)]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memrepo) UpsertProfile(_ context.Context, profile *domain.ChessProfile) error {
	if profile == nil {
		return nil
	}
	cp := *profile
	m.mu.Lock()
	m.profiles[pairKey(cp.PlayerHash, cp.RoomHash)] = &cp
	m.mu.Unlock()
	return nil
}

func cloneGame(g *domain.ChessGame) *domain.ChessGame {
	cp := *g
	cp.MovesUCI = append([]string(nil), g.MovesUCI...)
	cp.MovesSAN = append([]string(nil), g.MovesSAN...)
	return &cp
}

func pairKey(a, b string) string {
	return strings.TrimSpace(a) + "|" + strings.TrimSpace(b)
}
