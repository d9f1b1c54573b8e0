// internal/pkg/session/cleanup.go
package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "session-service/internal/domain/session"
	xerrors "session-service/internal/pkg/errors"
)

// CleanupExpired destroys every session key without a positive TTL and then
// prunes index and registry entries left behind by passive expiry. It
// returns the number of sessions destroyed, so a second run with nothing new
// to clean returns 0.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	var expired []string
	iter := s.client.Scan(ctx, 0, sessionPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := s.client.TTL(ctx, key).Result()
		if err != nil {
			s.metrics.observe("cleanup", err)
			return 0, xerrors.Unavailable(fmt.Errorf("failed to read ttl for %s: %w", key, err))
		}
		if ttl <= 0 {
			expired = append(expired, key[len(sessionPrefix):])
		}
	}
	if err := iter.Err(); err != nil {
		s.metrics.observe("cleanup", err)
		return 0, xerrors.Unavailable(fmt.Errorf("failed to scan sessions: %w", err))
	}

	cleaned := 0
	for _, id := range expired {
		ok, err := s.Destroy(ctx, id)
		if err != nil {
			s.metrics.observe("cleanup", err)
			return cleaned, err
		}
		if ok {
			cleaned++
		}
	}

	pruned, err := s.reconcile(ctx)
	if err != nil {
		s.metrics.observe("cleanup", err)
		return cleaned, err
	}
	s.metrics.observe("cleanup", nil)
	s.metrics.cleaned.Add(float64(cleaned))

	if cleaned > 0 || pruned > 0 {
		s.logger.Info("expired sessions cleaned",
			zap.Int("destroyed", cleaned),
			zap.Int("index_entries_pruned", pruned),
		)
	}
	if cleaned > 0 {
		s.notifier.Publish(ctx, domain.Event{
			Type:  domain.EventCleaned,
			Count: cleaned,
			At:    s.now(),
		})
	}
	return cleaned, nil
}

// reconcile drops index members whose record no longer exists and
// unregisters users left without sessions.
func (s *Store) reconcile(ctx context.Context) (int, error) {
	users, err := s.client.SMembers(ctx, activeUsersKey).Result()
	if err != nil {
		return 0, xerrors.Unavailable(fmt.Errorf("failed to read active users: %w", err))
	}

	pruned := 0
	for _, userID := range users {
		idx := userSessionsKey(userID)
		ids, err := s.client.SMembers(ctx, idx).Result()
		if err != nil {
			return pruned, xerrors.Unavailable(fmt.Errorf("failed to read session index for %s: %w", userID, err))
		}

		stale, err := s.staleIDs(ctx, ids)
		if err != nil {
			return pruned, err
		}
		if len(ids) > 0 && len(stale) == 0 {
			continue
		}

		args := make([]interface{}, 0, len(stale)+1)
		args = append(args, userID)
		for _, id := range stale {
			args = append(args, id)
		}
		if err := pruneScript.Run(ctx, s.client, []string{idx, activeUsersKey}, args...).Err(); err != nil {
			return pruned, xerrors.Unavailable(fmt.Errorf("failed to prune session index for %s: %w", userID, err))
		}
		pruned += len(stale)
	}

	if pruned > 0 {
		s.metrics.reconciled.Add(float64(pruned))
	}
	return pruned, nil
}

func (s *Store) staleIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Exists(ctx, sessionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, xerrors.Unavailable(fmt.Errorf("failed to check indexed sessions: %w", err))
	}

	var stale []string
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			stale = append(stale, ids[i])
		}
	}
	return stale, nil
}
