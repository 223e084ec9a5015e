package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/laptopdoc/internal/domain/troubleshoot"
)

// RecentStore keeps a capped list of recent diagnoses per browser session.
type RecentStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRecentStore creates a Redis-backed RecentStore with the "recent:" prefix.
func NewRecentStore(client redis.UniversalClient, ttl time.Duration) *RecentStore {
	return &RecentStore{client: client, prefix: "recent:", ttl: ttl}
}

// Push prepends d and trims the list to limit entries.
func (s *RecentStore) Push(ctx context.Context, sid string, d troubleshoot.RecentDiagnosis, limit int) error {
	if sid == "" {
		return errors.New("session ID cannot be empty")
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal recent diagnosis: %w", err)
	}

	key := s.prefix + sid
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		if limit > 0 {
			pipe.LTrim(ctx, key, 0, int64(limit-1))
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis push recent diagnosis: %w", err)
	}
	return nil
}

// List returns the entries newest first, skipping anything that fails to decode.
func (s *RecentStore) List(ctx context.Context, sid string) ([]troubleshoot.RecentDiagnosis, error) {
	out := []troubleshoot.RecentDiagnosis{}
	if sid == "" {
		return out, nil
	}
	raw, err := s.client.LRange(ctx, s.prefix+sid, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return out, nil
		}
		return nil, fmt.Errorf("redis list recent diagnoses: %w", err)
	}
	for _, item := range raw {
		var d troubleshoot.RecentDiagnosis
		if json.Unmarshal([]byte(item), &d) == nil {
			out = append(out, d)
		}
	}
	return out, nil
}
