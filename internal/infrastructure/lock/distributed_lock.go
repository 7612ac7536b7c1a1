package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 账务操作的正确性由数据库事务 + 行锁保证，Redis 锁只是前置的粗粒度互斥：
// 同一学员的并发收款/退费、同一月份的批量生成，在进入数据库之前先排队，
// 减少行锁等待。Redis 不可用时使用 NopLocker，行为不变。
//
// 加锁：SET key value NX EX timeout
// 释放：Lua 脚本比较 value 后删除，避免误删别人的锁
//
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

// Locker 按 key 互斥执行，返回释放函数
type Locker interface {
	Acquire(ctx context.Context, key, owner string) (release func(), err error)
}

// DistributedLock 一把具体的锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 锁持有者标识
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞获取锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Unlock 只删除自己持有的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// ============================================================================
// RedisLocker
// ============================================================================

type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: 50 * time.Millisecond,
		maxRetries:    100,
	}
}

// Acquire 阻塞获取锁，超过重试次数返回 ErrLockFailed
func (r *RedisLocker) Acquire(ctx context.Context, key, owner string) (func(), error) {
	l := NewDistributedLock(r.client, key, owner, r.ttl)
	if err := l.Lock(ctx, r.retryInterval, r.maxRetries); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLockFailed, key)
	}
	return func() {
		_ = l.Unlock(context.Background())
	}, nil
}

// NopLocker 未启用 Redis 时使用，互斥完全交给数据库行锁
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string, string) (func(), error) {
	return func() {}, nil
}

// ============================================================================
// 锁 key
// ============================================================================

// StudentKey 学员维度：同一学员的收款、优惠、退费串行
func StudentKey(studentID int64) string {
	return fmt.Sprintf("ledger:lock:student:%d", studentID)
}

// MonthKey 月份维度：同一月份的工资/费用批量生成串行
func MonthKey(kind, month string) string {
	return fmt.Sprintf("ledger:lock:%s:%s", kind, month)
}
