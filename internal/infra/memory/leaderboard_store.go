package memory

import (
	"context"
	"sync"

	"crewquest/internal/domain"
)

// maxRetained bounds the in-memory leaderboard so long-running processes do
// not accumulate every game ever played.
const maxRetained = 100

// LeaderboardStore is an in-memory implementation of app.LeaderboardStore.
// Entries are shared across all connections, so access is mutex-guarded.
type LeaderboardStore struct {
	mu      sync.RWMutex
	entries []domain.LeaderboardEntry
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{}
}

func (s *LeaderboardStore) Append(_ context.Context, entry domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	domain.SortEntries(s.entries)
	if len(s.entries) > maxRetained {
		s.entries = s.entries[:maxRetained]
	}
	return nil
}

func (s *LeaderboardStore) Top(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	top := make([]domain.LeaderboardEntry, limit)
	copy(top, s.entries[:limit])
	return top, nil
}
