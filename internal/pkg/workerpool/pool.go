package workerpool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Config Worker Pool 配置
type Config struct {
	Size           int           // 最大并发 worker 数
	ExpiryDuration time.Duration // 空闲 worker 回收时间
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Size:           8,
		ExpiryDuration: 10 * time.Second,
	}
}

// Pool 基于 ants 的协程池
type Pool struct {
	ants   *ants.Pool
	logger *zap.Logger
}

// New 创建协程池
func New(config *Config, logger *zap.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Size <= 0 {
		return nil, fmt.Errorf("worker pool size must be > 0, got %d", config.Size)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p, err := ants.NewPool(config.Size,
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPanicHandler(func(v interface{}) {
			logger.Error("worker panic recovered", zap.Any("panic", v), zap.Stack("stacktrace"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	return &Pool{ants: p, logger: logger}, nil
}

// Submit 提交任务，池已关闭时返回 ErrPoolClosed
func (p *Pool) Submit(task func()) error {
	if err := p.ants.Submit(task); err != nil {
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// Running 当前运行中的 worker 数
func (p *Pool) Running() int {
	return p.ants.Running()
}

// Cap 池容量
func (p *Pool) Cap() int {
	return p.ants.Cap()
}

// Shutdown 释放池，等待运行中的任务最多 timeout
func (p *Pool) Shutdown(timeout time.Duration) {
	if err := p.ants.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("worker pool release timed out", zap.Error(err))
	}
}

// Group 一组需要等待完成的任务
type Group struct {
	pool *Pool
	wg   sync.WaitGroup

	mu  sync.Mutex
	err error
}

// NewGroup 创建任务组；p 为 nil 时任务在调用方协程内顺序执行
func (p *Pool) NewGroup() *Group {
	return &Group{pool: p}
}

// Go 提交一个任务；池不可用时退化为同步执行
func (g *Group) Go(fn func() error) {
	g.wg.Add(1)
	run := func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.record(fmt.Errorf("task panic: %v", r))
			}
		}()
		g.record(fn())
	}

	if g.pool == nil {
		run()
		return
	}
	if err := g.pool.Submit(run); err != nil {
		g.pool.logger.Debug("worker pool unavailable, running inline", zap.Error(err))
		run()
	}
}

// Wait 等待所有任务完成，返回第一个错误
func (g *Group) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

func (g *Group) record(err error) {
	if err == nil {
		return
	}
	g.mu.Lock()
	if g.err == nil {
		g.err = err
	}
	g.mu.Unlock()
}
