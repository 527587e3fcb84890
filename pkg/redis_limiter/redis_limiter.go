package redis_limiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

var (
	// ErrLimitReached 槽位已满
	ErrLimitReached = errors.New("并发限制已达到上限")
	// ErrWaitTimeout 等待槽位超时
	ErrWaitTimeout = errors.New("等待并发槽位超时")
)

// 轮询间隔，指数增长到上限
const (
	initialRetryInterval = 200 * time.Millisecond
	maxRetryInterval     = 2 * time.Second
)

// 原子占用：未满时 INCR 并续期，满时返回 limit+1 表示失败
var acquireScript = redis.NewScript(`local current = redis.call('GET', KEYS[1])
if current == false then
	current = 0
else
	current = tonumber(current)
end

if current >= tonumber(ARGV[1]) then
	return current + 1
end

local newCount = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
return newCount`)

// 原子释放：计数归零时删除 key
var releaseScript = redis.NewScript(`local count = redis.call('DECR', KEYS[1])
if tonumber(count) <= 0 then
	redis.call('DEL', KEYS[1])
	return 0
else
	redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
	return count
end`)

// RedisLimiter 基于Redis的并发限制器，多个服务实例共享同一组槽位
type RedisLimiter struct {
	client        *redis.Client
	maxConcurrent int
	keyPrefix     string
	ttl           time.Duration
	logger        *logrus.Logger
}

// NewRedisLimiter 创建基于Redis的并发限制器
func NewRedisLimiter(client *redis.Client, maxConcurrent int, keyPrefix string, ttl time.Duration, logger *logrus.Logger) *RedisLimiter {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &RedisLimiter{
		client:        client,
		maxConcurrent: maxConcurrent,
		keyPrefix:     keyPrefix,
		ttl:           ttl,
		logger:        logger,
	}
}

// Acquire 尝试获取一个槽位，已满时返回 ErrLimitReached
func (rl *RedisLimiter) Acquire(ctx context.Context, key string) error {
	redisKey := rl.keyPrefix + key

	result, err := acquireScript.Run(ctx, rl.client, []string{redisKey}, rl.maxConcurrent, ttlSeconds(rl.ttl)).Int()
	if err != nil {
		return fmt.Errorf("执行Lua脚本失败: %w", err)
	}

	entry := rl.logger.WithFields(logrus.Fields{"key": key, "max": rl.maxConcurrent})
	if result > rl.maxConcurrent {
		entry.WithField("current", result-1).Debug("槽位已满")
		return fmt.Errorf("%w: %d", ErrLimitReached, rl.maxConcurrent)
	}

	entry.WithField("current", result).Debug("成功获取槽位")
	return nil
}

// AcquireWait 轮询获取槽位，直到成功、超过 maxWait 或 ctx 结束
func (rl *RedisLimiter) AcquireWait(ctx context.Context, key string, maxWait time.Duration) error {
	start := time.Now()
	interval := initialRetryInterval

	for {
		err := rl.Acquire(ctx, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrLimitReached) {
			return err
		}

		elapsed := time.Since(start)
		if elapsed >= maxWait {
			return fmt.Errorf("%w: 已等待 %v", ErrWaitTimeout, elapsed.Round(time.Millisecond))
		}
		wait := interval
		if remaining := maxWait - elapsed; wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		interval *= 2
		if interval > maxRetryInterval {
			interval = maxRetryInterval
		}
	}
}

// Release 释放槽位
func (rl *RedisLimiter) Release(ctx context.Context, key string) {
	redisKey := rl.keyPrefix + key

	remaining, err := releaseScript.Run(ctx, rl.client, []string{redisKey}, ttlSeconds(rl.ttl)).Int()
	if err != nil {
		rl.logger.WithField("key", key).WithError(err).Warn("释放槽位失败")
		return
	}
	rl.logger.WithFields(logrus.Fields{"key": key, "remaining": remaining}).Debug("成功释放槽位")
}

// GetCurrent 获取当前并发数
func (rl *RedisLimiter) GetCurrent(ctx context.Context, key string) (int, error) {
	current, err := rl.client.Get(ctx, rl.keyPrefix+key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("获取当前并发数失败: %w", err)
	}
	return current, nil
}

// GetMaxConcurrent 获取最大并发数
func (rl *RedisLimiter) GetMaxConcurrent() int {
	return rl.maxConcurrent
}

func ttlSeconds(ttl time.Duration) int {
	if s := int(ttl.Seconds()); s > 0 {
		return s
	}
	return 1
}
