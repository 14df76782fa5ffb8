package data

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Locker 按名称串行化临界区，返回的 unlock 可重复调用
type Locker interface {
	Lock(ctx context.Context, name string) (unlock func(), err error)
}

// LocalLocker 进程内锁，等待时响应 ctx 取消
type LocalLocker struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sems: make(map[string]chan struct{})}
}

func (l *LocalLocker) Lock(ctx context.Context, name string) (func(), error) {
	sem := l.semaphore(name)

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-sem })
	}, nil
}

func (l *LocalLocker) semaphore(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.sems[name]
	if !ok {
		sem = make(chan struct{}, 1)
		l.sems[name] = sem
	}
	return sem
}

// DistributedLocker 跨进程加锁用到的 Redis 客户端方法
type DistributedLocker interface {
	TryLock(ctx context.Context, key string, expiration time.Duration, maxRetries int, retryDelay time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// RedisLockerConfig 分布式锁参数
type RedisLockerConfig struct {
	Prefix     string
	TTL        time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// RedisLocker 在共享数据目录的所有进程间串行化。
// 同一进程内的等待者先排队获取本地锁，同一时刻只有一个去轮询 Redis
type RedisLocker struct {
	local  *LocalLocker
	remote DistributedLocker
	cfg    RedisLockerConfig
	log    *zap.Logger
}

func NewRedisLocker(remote DistributedLocker, cfg RedisLockerConfig, log *zap.Logger) *RedisLocker {
	if cfg.Prefix == "" {
		cfg.Prefix = "file-container:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{
		local:  NewLocalLocker(),
		remote: remote,
		cfg:    cfg,
		log:    log.Named("locker"),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, name string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, name)
	if err != nil {
		return nil, err
	}

	key := l.cfg.Prefix + name
	token, err := l.remote.TryLock(ctx, key, l.cfg.TTL, l.cfg.MaxRetries, l.cfg.RetryDelay)
	if err != nil {
		unlockLocal()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			defer unlockLocal()

			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
			defer cancel()
			if err := l.remote.Unlock(ctx, key, token); err != nil {
				// 通常是持锁期间 TTL 已过期
				l.log.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
