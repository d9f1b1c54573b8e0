// internal/pkg/session/store.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "session-service/internal/domain/session"
	xerrors "session-service/internal/pkg/errors"
)

const (
	DefaultTTL = 24 * time.Hour

	sessionPrefix      = "session:"
	userSessionsPrefix = "user_sessions:"
	activeUsersKey     = "active_users"
	statsCacheKey      = "session_stats_cache"

	scanBatch        = 100
	maxWatchAttempts = 5
)

// Store is the only component that reads or writes session state in Redis.
// Absent sessions are reported through return values; only transport
// failures come back as errors.
type Store struct {
	client   redis.UniversalClient
	logger   *zap.Logger
	ttl      time.Duration
	statsTTL time.Duration
	notifier Notifier
	metrics  *Metrics
	now      func() time.Time
}

type Option func(*Store)

// WithTTL sets the default session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithStatsCache sets how long aggregated stats are cached.
func WithStatsCache(d time.Duration) Option {
	return func(s *Store) { s.statsTTL = d }
}

func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(client redis.UniversalClient, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		client:   client,
		logger:   logger,
		ttl:      DefaultTTL,
		statsTTL: 30 * time.Second,
		notifier: nopNotifier{},
		metrics:  NewMetrics(nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create stores a new session for user and returns its id.
func (s *Store) Create(ctx context.Context, user domain.User, info domain.ClientInfo) (string, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", xerrors.ErrInvalidUser
	}

	ttl := s.ttl
	if info.TTL > 0 {
		ttl = info.TTL
	}

	now := s.now().UnixMilli()
	record := domain.Record{
		SessionID:    uuid.NewString(),
		UserID:       user.ID,
		User:         user,
		CreatedAt:    now,
		LastActivity: now,
		IPAddress:    info.IPAddress,
		UserAgent:    info.UserAgent,
		DeviceInfo:   info.DeviceInfo,
		DeviceType:   DetectDevice(info.UserAgent),
		Lifetime:     int64(ttl / time.Second),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	keys := []string{sessionKey(record.SessionID), userSessionsKey(user.ID), activeUsersKey, statsCacheKey}
	if err := createScript.Run(ctx, s.client, keys, data, ttl.Milliseconds(), record.SessionID, user.ID).Err(); err != nil {
		s.metrics.observe("create", err)
		return "", xerrors.Unavailable(fmt.Errorf("failed to store session: %w", err))
	}
	s.metrics.observe("create", nil)

	s.logger.Debug("session created",
		zap.String("session_id", record.SessionID),
		zap.String("user_id", user.ID),
		zap.String("device_type", string(record.DeviceType)),
	)
	s.notifier.Publish(ctx, domain.Event{
		Type:      domain.EventCreated,
		SessionID: record.SessionID,
		UserID:    user.ID,
		IPAddress: info.IPAddress,
		At:        s.now(),
	})

	return record.SessionID, nil
}

// Get returns the session and records activity on it, pushing its expiry
// out by the full lifetime. A missing or unreadable record yields nil.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.Record, error) {
	record, err := s.load(ctx, "get", sessionID)
	if err != nil || record == nil {
		return nil, err
	}

	ok, err := s.touch(ctx, record, s.lifetime(record))
	if err != nil {
		s.metrics.observe("get", err)
		return nil, err
	}
	if !ok {
		// destroyed between read and touch
		s.metrics.observe("get", errMiss)
		return nil, nil
	}
	s.metrics.observe("get", nil)
	return record, nil
}

// Destroy removes one session and repairs the owner's index and the
// active-user registry. It reports false when the session did not exist.
func (s *Store) Destroy(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	key := sessionKey(sessionID)

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.metrics.observe("destroy", errMiss)
		return false, nil
	}
	if err != nil {
		s.metrics.observe("destroy", err)
		return false, xerrors.Unavailable(fmt.Errorf("failed to read session %s: %w", sessionID, err))
	}

	record, ok := s.decode(key, data)
	if !ok {
		// owner unknown, the index entry is left for cleanup to prune
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			s.metrics.observe("destroy", err)
			return false, xerrors.Unavailable(fmt.Errorf("failed to delete session %s: %w", sessionID, err))
		}
		s.metrics.observe("destroy", nil)
		return n > 0, nil
	}

	keys := []string{key, userSessionsKey(record.UserID), activeUsersKey, statsCacheKey}
	removed, err := destroyScript.Run(ctx, s.client, keys, sessionID, record.UserID).Int()
	if err != nil {
		s.metrics.observe("destroy", err)
		return false, xerrors.Unavailable(fmt.Errorf("failed to delete session %s: %w", sessionID, err))
	}
	if removed == 0 {
		s.metrics.observe("destroy", errMiss)
		return false, nil
	}
	s.metrics.observe("destroy", nil)

	s.logger.Debug("session destroyed",
		zap.String("session_id", sessionID),
		zap.String("user_id", record.UserID),
	)
	s.notifier.Publish(ctx, domain.Event{
		Type:      domain.EventDestroyed,
		SessionID: sessionID,
		UserID:    record.UserID,
		IPAddress: record.IPAddress,
		At:        s.now(),
	})
	return true, nil
}

// DestroyAllForUser removes every session listed in the user's index and
// returns the index size. Ids whose record already expired are counted.
func (s *Store) DestroyAllForUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	idx := userSessionsKey(userID)

	var removed int
	txf := func(tx *redis.Tx) error {
		ids, err := tx.SMembers(ctx, idx).Result()
		if err != nil {
			return err
		}
		removed = len(ids)
		if removed == 0 {
			return nil
		}

		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, sessionKey(id))
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			pipe.Del(ctx, idx)
			pipe.SRem(ctx, activeUsersKey, userID)
			pipe.Del(ctx, statsCacheKey)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, idx)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		s.metrics.observe("destroy_all", err)
		return 0, xerrors.Unavailable(fmt.Errorf("failed to delete sessions for user %s: %w", userID, err))
	}
	s.metrics.observe("destroy_all", nil)

	if removed > 0 {
		s.logger.Info("user sessions destroyed",
			zap.String("user_id", userID),
			zap.Int("count", removed),
		)
		s.notifier.Publish(ctx, domain.Event{
			Type:   domain.EventUserLoggedOut,
			UserID: userID,
			Count:  removed,
			At:     s.now(),
		})
	}
	return removed, nil
}

// ListForUser returns the user's live sessions, most recently active first.
// Index entries whose record is gone are skipped.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]domain.Summary, error) {
	summaries := []domain.Summary{}
	if userID == "" {
		return summaries, nil
	}

	ids, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		s.metrics.observe("list", err)
		return nil, xerrors.Unavailable(fmt.Errorf("failed to read session index for %s: %w", userID, err))
	}
	if len(ids) == 0 {
		s.metrics.observe("list", nil)
		return summaries, nil
	}

	pipe := s.client.Pipeline()
	gets := make([]*redis.StringCmd, len(ids))
	ttls := make([]*redis.DurationCmd, len(ids))
	for i, id := range ids {
		gets[i] = pipe.Get(ctx, sessionKey(id))
		ttls[i] = pipe.PTTL(ctx, sessionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		s.metrics.observe("list", err)
		return nil, xerrors.Unavailable(fmt.Errorf("failed to read sessions for %s: %w", userID, err))
	}
	// Exec reports only the first failed command
	for i := range ids {
		for _, err := range []error{gets[i].Err(), ttls[i].Err()} {
			if err != nil && !errors.Is(err, redis.Nil) {
				s.metrics.observe("list", err)
				return nil, xerrors.Unavailable(fmt.Errorf("failed to read sessions for %s: %w", userID, err))
			}
		}
	}

	now := s.now()
	for i, id := range ids {
		data, err := gets[i].Bytes()
		if err != nil {
			continue
		}
		record, ok := s.decode(sessionKey(id), data)
		if !ok {
			continue
		}
		summary := domain.Summary{Record: *record}
		if ttl := ttls[i].Val(); ttl > 0 {
			summary.ExpiresAt = now.Add(ttl).UnixMilli()
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.LastActivity != b.LastActivity {
			return a.LastActivity > b.LastActivity
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.SessionID < b.SessionID
	})

	s.metrics.observe("list", nil)
	return summaries, nil
}

// ActiveUsers returns the active-user registry, sorted.
func (s *Store) ActiveUsers(ctx context.Context) ([]string, error) {
	users, err := s.client.SMembers(ctx, activeUsersKey).Result()
	if err != nil {
		s.metrics.observe("active_users", err)
		return nil, xerrors.Unavailable(fmt.Errorf("failed to read active users: %w", err))
	}
	s.metrics.observe("active_users", nil)
	sort.Strings(users)
	return users, nil
}

// CountActive counts live session keys with a full keyspace scan.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, sessionPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		s.metrics.observe("count", err)
		return 0, xerrors.Unavailable(fmt.Errorf("failed to scan sessions: %w", err))
	}
	s.metrics.observe("count", nil)
	s.metrics.activeSessions.Set(float64(count))
	return count, nil
}

// IsValid reports whether the session exists. It does not record activity.
func (s *Store) IsValid(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		s.metrics.observe("is_valid", err)
		return false, xerrors.Unavailable(fmt.Errorf("failed to check session %s: %w", sessionID, err))
	}
	s.metrics.observe("is_valid", nil)
	return n > 0, nil
}

// Extend resets the session TTL to by (the default lifetime when by <= 0)
// and records activity. It reports false when the session does not exist.
func (s *Store) Extend(ctx context.Context, sessionID string, by time.Duration) (bool, error) {
	if by <= 0 {
		by = s.ttl
	}

	record, err := s.load(ctx, "extend", sessionID)
	if err != nil || record == nil {
		return false, err
	}

	ok, err := s.touch(ctx, record, by)
	if err != nil {
		s.metrics.observe("extend", err)
		return false, err
	}
	if !ok {
		s.metrics.observe("extend", errMiss)
		return false, nil
	}
	s.metrics.observe("extend", nil)

	s.notifier.Publish(ctx, domain.Event{
		Type:      domain.EventExtended,
		SessionID: sessionID,
		UserID:    record.UserID,
		At:        s.now(),
	})
	return true, nil
}

// load fetches and decodes a record without side effects.
func (s *Store) load(ctx context.Context, op, sessionID string) (*domain.Record, error) {
	if sessionID == "" {
		return nil, nil
	}
	key := sessionKey(sessionID)

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.metrics.observe(op, errMiss)
		return nil, nil
	}
	if err != nil {
		s.metrics.observe(op, err)
		return nil, xerrors.Unavailable(fmt.Errorf("failed to read session %s: %w", sessionID, err))
	}

	record, ok := s.decode(key, data)
	if !ok {
		s.metrics.observe(op, errMiss)
		return nil, nil
	}
	return record, nil
}

// touch rewrites the record with a fresh lastActivity and TTL, and raises
// the owner's index TTL so the index outlives the record. It reports false
// if the record vanished in the meantime.
func (s *Store) touch(ctx context.Context, record *domain.Record, ttl time.Duration) (bool, error) {
	record.Touch(s.now())

	data, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to marshal session: %w", err)
	}

	keys := []string{sessionKey(record.SessionID), userSessionsKey(record.UserID)}
	n, err := touchScript.Run(ctx, s.client, keys, data, ttl.Milliseconds()).Int()
	if err != nil {
		return false, xerrors.Unavailable(fmt.Errorf("failed to update session %s: %w", record.SessionID, err))
	}
	return n == 1, nil
}

// decode treats malformed JSON as an absent record, but logs and counts it.
func (s *Store) decode(key string, data []byte) (*domain.Record, bool) {
	var record domain.Record
	if err := json.Unmarshal(data, &record); err != nil || record.SessionID == "" || record.UserID == "" {
		if err == nil {
			err = errors.New("missing session or user id")
		}
		s.metrics.malformed.Inc()
		s.logger.Warn("malformed session record",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, false
	}
	return &record, true
}

func (s *Store) lifetime(record *domain.Record) time.Duration {
	if record.Lifetime > 0 {
		return time.Duration(record.Lifetime) * time.Second
	}
	return s.ttl
}

// Helper functions
func sessionKey(sessionID string) string {
	return sessionPrefix + sessionID
}

func userSessionsKey(userID string) string {
	return userSessionsPrefix + userID
}
