package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript 在 Redis 端原子地完成 读取-判断-自增
// 返回 {allowed, count, pttl}
var fixedWindowScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
if not current then
  redis.call('SET', KEYS[1], 1, 'PX', window)
  return {1, 1, window}
end
local count = tonumber(current)
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], window)
  ttl = window
end
if count >= limit then
  return {0, count, ttl}
end
count = redis.call('INCR', KEYS[1])
return {1, count, ttl}
`)

// RedisStore 多实例共享的计数存储
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore 从 redis:// URL 创建存储并检查连通性
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisStoreFromClient(client), nil
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Name() string {
	return "redis"
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	res, err := fixedWindowScript.Run(ctx, s.client, []string{key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("ratelimit script: unexpected reply %v", res)
	}

	count := int(res[1])
	return Decision{
		Allowed:   res[0] == 1,
		Limit:     limit,
		Remaining: remaining(limit, count),
		ResetAt:   s.now().Add(time.Duration(res[2]) * time.Millisecond),
	}, nil
}

// Ping 健康检查使用
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
