// Package sessionstore implements the Redis side of spec §3: the
// session:{sid} JSON cache and the balancers:queue / balancers:{sid}
// registry. Grounded on the teacher's CanvasCacheService (JSON get/set
// with TTL against redis.Client) for the session cache, and Hub's
// Publish/PSubscribe/.Channel() pattern for session-update fan-out to
// WebSocket viewers.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bifshteksex/roombot/internal/model"
)

const (
	sessionKeyPattern    = "session:%s"
	balancerSIDPattern   = "balancers:%s"
	balancerQueueKey     = "balancers:queue"
	sessionUpdateChanFmt = "session-updates:%s"
)

// Store wraps a Redis client with the session/registry operations spec'd
// in §3 and §4.1-§4.3.
type Store struct {
	redis *redis.Client
}

// New creates a Store over an open Redis client.
func New(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func sessionKey(sid string) string { return fmt.Sprintf(sessionKeyPattern, sid) }
func balancerSIDKey(sid string) string { return fmt.Sprintf(balancerSIDPattern, sid) }

// GetSession returns the session for sid, or nil if it does not exist
// (spec §4.1 "Session read for UI/WebSocket").
func (s *Store) GetSession(ctx context.Context, sid string) (*model.Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// SessionExists reports whether session:{sid} exists, without paying the
// cost of decoding the payload (used by Service's create_bot idempotence
// check in spec §4.1 step 1 and by its delete_bot existence check).
func (s *Store) SessionExists(ctx context.Context, sid string) (bool, error) {
	n, err := s.redis.Exists(ctx, sessionKey(sid)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return n > 0, nil
}

// CreateSession writes session:{sid} with the given TTL. Step 5 of
// Service.create_bot.
func (s *Store) CreateSession(ctx context.Context, session *model.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.SID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// DeleteSession removes session:{sid}. Used by Service.CreateBot's
// rollback when the Router create fails, and on the Balancer's
// `deleted`/`disconnected` write-back paths.
func (s *Store) DeleteSession(ctx context.Context, sid string) error {
	if err := s.redis.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// RefreshSession extends session:{sid}'s TTL without rewriting its body.
// Used on the Balancer's `connected` signal.
func (s *Store) RefreshSession(ctx context.Context, sid string, ttl time.Duration) error {
	ok, err := s.redis.Expire(ctx, sessionKey(sid), ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to refresh session ttl: %w", err)
	}
	if !ok {
		return fmt.Errorf("failed to refresh session ttl: key %s missing", sessionKey(sid))
	}
	return nil
}

// UpdateBot overwrites the `$.bot` slice of a session and extends its
// TTL, then publishes an update so WebSocket viewers pick it up
// immediately instead of waiting for their next poll (spec §4.3 `update`
// signal, spec §6 `WS /bot/ws`).
func (s *Store) UpdateBot(ctx context.Context, sid string, bot model.BotProfile, ttl time.Duration) error {
	session, err := s.GetSession(ctx, sid)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("failed to update bot: session %s missing", sid)
	}
	session.Bot = bot
	if err := s.CreateSession(ctx, session, ttl); err != nil {
		return err
	}
	return s.publishBotUpdate(ctx, sid, bot)
}

func (s *Store) publishBotUpdate(ctx context.Context, sid string, bot model.BotProfile) error {
	data, err := json.Marshal(bot)
	if err != nil {
		return fmt.Errorf("failed to marshal bot update: %w", err)
	}
	channel := fmt.Sprintf(sessionUpdateChanFmt, sid)
	if err := s.redis.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish bot update: %w", err)
	}
	return nil
}

// SubscribeBotUpdates subscribes to the per-session bot-update channel;
// the handler's `WS /bot/ws` loop reads from the returned channel
// alongside its 5 s polling ticker.
func (s *Store) SubscribeBotUpdates(ctx context.Context, sid string) *redis.PubSub {
	channel := fmt.Sprintf(sessionUpdateChanFmt, sid)
	return s.redis.Subscribe(ctx, channel)
}

// --- Balancer registry (spec §3 BalancerRegistry, §4.2 Router selection) ---

// RegisterBalancer seeds balancers:queue with a freshly booted balancer's
// queue name and initial capacity (spec §4.3 boot sequence).
func (s *Store) RegisterBalancer(ctx context.Context, queueName string, capacity int) error {
	if err := s.redis.ZAdd(ctx, balancerQueueKey, redis.Z{Score: float64(capacity), Member: queueName}).Err(); err != nil {
		return fmt.Errorf("failed to register balancer: %w", err)
	}
	return nil
}

// UnregisterBalancer removes a balancer's entry from balancers:queue
// (spec §4.3 shutdown sequence).
func (s *Store) UnregisterBalancer(ctx context.Context, queueName string) error {
	if err := s.redis.ZRem(ctx, balancerQueueKey, queueName).Err(); err != nil {
		return fmt.Errorf("failed to unregister balancer: %w", err)
	}
	return nil
}

// TopBalancer returns the balancer queue name with the highest remaining
// capacity score, and that score. ok is false if the registry is empty
// (spec §4.2 step 2, "ZRANGE balancers:queue 0 0 DESC WITHSCORES").
func (s *Store) TopBalancer(ctx context.Context) (queueName string, score float64, ok bool, err error) {
	results, err := s.redis.ZRevRangeWithScores(ctx, balancerQueueKey, 0, 0).Result()
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to read balancer queue: %w", err)
	}
	if len(results) == 0 {
		return "", 0, false, nil
	}
	member, _ := results[0].Member.(string)
	return member, results[0].Score, true, nil
}

// IncrBalancerCapacity adjusts a balancer's remaining-capacity score by
// delta (positive to restore capacity, negative to consume it).
func (s *Store) IncrBalancerCapacity(ctx context.Context, queueName string, delta float64) error {
	if err := s.redis.ZIncrBy(ctx, balancerQueueKey, delta, queueName).Err(); err != nil {
		return fmt.Errorf("failed to adjust balancer capacity: %w", err)
	}
	return nil
}

// GetBalancerForSID returns the owning balancer queue name for a session,
// or "" if unset.
func (s *Store) GetBalancerForSID(ctx context.Context, sid string) (string, error) {
	val, err := s.redis.Get(ctx, balancerSIDKey(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get balancer for sid: %w", err)
	}
	return val, nil
}

// SetBalancerForSID writes balancers:{sid} = queueName (spec §4.2 step 3).
func (s *Store) SetBalancerForSID(ctx context.Context, sid, queueName string) error {
	if err := s.redis.Set(ctx, balancerSIDKey(sid), queueName, 0).Err(); err != nil {
		return fmt.Errorf("failed to set balancer for sid: %w", err)
	}
	return nil
}

// GetDelBalancerForSID atomically reads and removes balancers:{sid},
// used to revert a failed create (spec §4.2 step 5, "GETDEL").
func (s *Store) GetDelBalancerForSID(ctx context.Context, sid string) (string, error) {
	val, err := s.redis.GetDel(ctx, balancerSIDKey(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to getdel balancer for sid: %w", err)
	}
	return val, nil
}

// DeleteBalancerForSID removes balancers:{sid} unconditionally (spec
// §4.3 `disconnected` signal).
func (s *Store) DeleteBalancerForSID(ctx context.Context, sid string) error {
	if err := s.redis.Del(ctx, balancerSIDKey(sid)).Err(); err != nil {
		return fmt.Errorf("failed to delete balancer for sid: %w", err)
	}
	return nil
}
