package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// IdemStore 幂等键存储
// Acquire 返回 true 表示本次调用获得发送权；false 表示该键已被占用（重复触发被抑制）
// 幂等键跨触发点生效：状态变更与预约创建先后触发同一 (lead, event, channel) 时只发一次
type IdemStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisIdemStore 基于 Redis SETNX 的幂等键存储
type RedisIdemStore struct {
	client *redis.Client
}

func NewRedisIdemStore(client *redis.Client) *RedisIdemStore {
	return &RedisIdemStore{client: client}
}

// 确保实现了接口
var _ IdemStore = (*RedisIdemStore)(nil)

func (s *RedisIdemStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, "1", ttl).Result()
}

// MemoryIdemStore 内存幂等键存储（DB/Redis 未就绪时的联测与单元测试用）
type MemoryIdemStore struct {
	mu   sync.Mutex
	keys map[string]time.Time // key -> 过期时间
}

func NewMemoryIdemStore() *MemoryIdemStore {
	return &MemoryIdemStore{keys: map[string]time.Time{}}
}

// 确保实现了接口
var _ IdemStore = (*MemoryIdemStore)(nil)

func (s *MemoryIdemStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if exp, ok := s.keys[key]; ok && exp.After(now) {
		return false, nil
	}
	s.keys[key] = now.Add(ttl)
	return true, nil
}
