package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore shares entries between processes. Values are JSON encoded and
// expire server side one TTL after they were written.
type RedisStore[V any] struct {
	rdb       goredis.UniversalClient
	namespace string
}

// NewRedisStore stores keys under namespace + ":" + key.
func NewRedisStore[V any](rdb goredis.UniversalClient, namespace string) *RedisStore[V] {
	if namespace == "" {
		namespace = "professor:cache"
	}
	return &RedisStore[V]{rdb: rdb, namespace: namespace}
}

// DialRedis opens a client and checks it with a ping.
func DialRedis(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore[V]) key(k string) string { return s.namespace + ":" + k }

func (s *RedisStore[V]) Get(ctx context.Context, key string) (Entry[V], bool, error) {
	var e Entry[V]
	raw, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return e, false, nil
	}
	if err != nil {
		return e, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, false, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return e, true, nil
}

func (s *RedisStore[V]) Set(ctx context.Context, key string, e Entry[V]) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", key, err)
	}
	// zero means no expiry to redis; keep the entry around and let Valid decide
	exp := e.TTL
	if exp < 0 {
		exp = 0
	}
	if err := s.rdb.Set(ctx, s.key(key), raw, exp).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore[V]) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor uint64
		total  int
	)
	pattern := escapeGlob(s.key(prefix)) + "*"
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return total, fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return total, fmt.Errorf("redis del: %w", err)
			}
			total += int(n)
		}
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// escapeGlob quotes SCAN MATCH metacharacters so class names match literally.
func escapeGlob(s string) string { return globEscaper.Replace(s) }
