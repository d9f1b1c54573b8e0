// internal/pkg/session/stats.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "session-service/internal/domain/session"
	xerrors "session-service/internal/pkg/errors"
)

// Stats returns session counts broken down by device type. Results are
// cached briefly under session_stats_cache; create and destroy drop the cache.
func (s *Store) Stats(ctx context.Context) (*domain.Stats, error) {
	if s.statsTTL > 0 {
		data, err := s.client.Get(ctx, statsCacheKey).Bytes()
		switch {
		case err == nil:
			var cached domain.Stats
			if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
				return &cached, nil
			}
		case !errors.Is(err, redis.Nil):
			return nil, xerrors.Unavailable(fmt.Errorf("failed to read stats cache: %w", err))
		}
	}

	stats, err := s.computeStats(ctx)
	if err != nil {
		s.metrics.observe("stats", err)
		return nil, err
	}
	s.metrics.observe("stats", nil)

	if s.statsTTL > 0 {
		data, err := json.Marshal(stats)
		if err == nil {
			if err := s.client.Set(ctx, statsCacheKey, data, s.statsTTL).Err(); err != nil {
				s.logger.Warn("failed to cache session stats", zap.Error(err))
			}
		}
	}
	return stats, nil
}

func (s *Store) computeStats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{
		SessionsByDevice: map[domain.DeviceType]int{
			domain.DeviceMobile:  0,
			domain.DeviceTablet:  0,
			domain.DeviceDesktop: 0,
			domain.DeviceUnknown: 0,
		},
		GeneratedAt: s.now().UnixMilli(),
	}

	users, err := s.client.SCard(ctx, activeUsersKey).Result()
	if err != nil {
		return nil, xerrors.Unavailable(fmt.Errorf("failed to count active users: %w", err))
	}
	stats.ActiveUsers = int(users)

	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		values, err := s.client.MGet(ctx, batch...).Result()
		if err != nil {
			return xerrors.Unavailable(fmt.Errorf("failed to read sessions: %w", err))
		}
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			record, ok := s.decode(batch[i], []byte(raw))
			if !ok {
				continue
			}
			device := record.DeviceType
			if device == "" {
				device = domain.DeviceUnknown
			}
			stats.SessionsByDevice[device]++
			stats.ActiveSessions++
		}
		batch = batch[:0]
		return nil
	}

	iter := s.client.Scan(ctx, 0, sessionPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, xerrors.Unavailable(fmt.Errorf("failed to scan sessions: %w", err))
	}
	if err := flush(); err != nil {
		return nil, err
	}

	s.metrics.activeSessions.Set(float64(stats.ActiveSessions))
	return stats, nil
}
