package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyDraft = "draft:%s"

// DefaultTTL bounds how long an abandoned draft survives. Expiry needs no
// ledger cleanup: no stock is held before confirmation.
const DefaultTTL = 48 * time.Hour

// Redis keeps drafts in Redis with a TTL, for deployments where the bot
// process restarts should not drop in-flight conversations.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(addr string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: redis.NewClient(&redis.Options{Addr: addr}), ttl: ttl}
}

func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) Get(ctx context.Context, actorID string) (Draft, bool, error) {
	b, err := r.rdb.Get(ctx, fmt.Sprintf(keyDraft, actorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, false, nil
	}
	if err != nil {
		return Draft{}, false, fmt.Errorf("session get: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(b, &d); err != nil {
		return Draft{}, false, fmt.Errorf("session decode: %w", err)
	}
	return d, true, nil
}

func (r *Redis) Put(ctx context.Context, d Draft) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, fmt.Sprintf(keyDraft, d.ActorID), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, actorID string) error {
	if err := r.rdb.Del(ctx, fmt.Sprintf(keyDraft, actorID)).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}
