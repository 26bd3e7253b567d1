package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vtu-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis so multiple bot instances can share
// conversational state. Idle expiry is delegated to key TTLs, so Sweep is a
// no-op here.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: IdleTimeout}
}

func sessionKey(chatID int64) string { return fmt.Sprintf("session:%d", chatID) }

func (r *RedisStore) Get(ctx context.Context, chatID int64) (Session, bool, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, false, nil
		}
		return Session{}, false, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, false, err
	}
	return s, true, nil
}

func (r *RedisStore) Put(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, sessionKey(s.ChatID), raw, r.ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, chatID int64) error {
	return r.rdb.Del(ctx, sessionKey(chatID)).Err()
}

func (r *RedisStore) Sweep(ctx context.Context, olderThan time.Duration, now time.Time) (int, error) {
	// TTLs expire idle sessions; nothing to do.
	return 0, nil
}

// RedisLocker serializes per-chat handling across bot instances.
type RedisLocker struct {
	rdb *redis.Client

	// ttl bounds how long a crashed handler can hold a chat hostage.
	ttl       time.Duration
	spinEvery time.Duration
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: 60 * time.Second, spinEvery: 50 * time.Millisecond}
}

func lockKey(chatID int64) string { return fmt.Sprintf("chatlock:%d", chatID) }

func (l *RedisLocker) Acquire(ctx context.Context, chatID int64) (func(), error) {
	key := lockKey(chatID)
	token := uuid.NewString()

	for {
		ok, err := utils.AcquireChatLock(ctx, l.rdb, key, token, l.ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.spinEvery):
		}
	}

	release := func() {
		_ = utils.ReleaseChatLock(context.Background(), l.rdb, key, token)
	}
	return release, nil
}
