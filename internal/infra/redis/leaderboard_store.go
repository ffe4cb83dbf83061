package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"crewquest/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	leaderboardKey = "crewquest:leaderboard"
	// maxRetained bounds the stored list; ranking happens in Go on read.
	maxRetained = 500
)

// LeaderboardStore keeps finished-game results in a Redis list of JSON
// entries so the leaderboard survives restarts and is shared across
// instances. Ordering is applied on read via domain.SortEntries.
type LeaderboardStore struct {
	client *redis.Client
}

func NewLeaderboardStore(client *redis.Client) *LeaderboardStore {
	return &LeaderboardStore{client: client}
}

func (s *LeaderboardStore) Append(ctx context.Context, entry domain.LeaderboardEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, leaderboardKey, payload)
	pipe.LTrim(ctx, leaderboardKey, -maxRetained, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append leaderboard entry: %w", err)
	}
	return nil
}

func (s *LeaderboardStore) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	raw, err := s.client.LRange(ctx, leaderboardKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(raw))
	for _, item := range raw {
		var entry domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			// Skip entries written by incompatible versions.
			continue
		}
		entries = append(entries, entry)
	}

	domain.SortEntries(entries)
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}
