package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/envutil"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/logger"
)

// Locker serializes agent invocations per chat session. A second concurrent
// invocation for the same chatId is rejected at the boundary rather than
// interleaved, which keeps the per-session loop strictly sequential.
type Locker interface {
	Acquire(ctx context.Context, chatID uuid.UUID, ttl time.Duration) (release func(), ok bool, err error)
	Close() error
}

type locker struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func New(log *logger.Logger) (Locker, error) {
	addr := envutil.Str("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &locker{
		log:    log.With("service", "RedisLocker"),
		rdb:    rdb,
		prefix: envutil.Str("REDIS_AGENT_LOCK_PREFIX", "agent:session:"),
	}, nil
}

func (l *locker) Acquire(ctx context.Context, chatID uuid.UUID, ttl time.Duration) (func(), bool, error) {
	if chatID == uuid.Nil {
		// Sessions without a chatId are single-shot; nothing to serialize.
		return func() {}, true, nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	key := l.prefix + chatID.String()
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Only delete our own token; an expired lock may have been re-taken.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		if err := l.rdb.Eval(rctx, script, []string{key}, token).Err(); err != nil && err != goredis.Nil {
			l.log.Warn("agent session lock release failed", "chat_id", chatID, "error", err)
		}
	}
	return release, true, nil
}

func (l *locker) Close() error { return l.rdb.Close() }

// NoopLocker grants every acquisition. Single-process deployments without
// Redis fall back to it; cross-process serialization is then unavailable.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, uuid.UUID, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

func (NoopLocker) Close() error { return nil }
