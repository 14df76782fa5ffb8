package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/file-container/internal/pkg/errors"
	"github.com/lk2023060901/file-container/internal/pkg/logger"
	"github.com/lk2023060901/file-container/internal/pkg/response"
	"github.com/lk2023060901/file-container/internal/pkg/validator"
	"go.uber.org/zap"
)

// ScriptRunner 执行 Lua 脚本，*redis.Client 满足该接口
type ScriptRunner interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// RateLimiterConfig 限流配置
type RateLimiterConfig struct {
	// 时间窗口内允许的最大请求数
	MaxRequests int
	// 时间窗口（秒）
	WindowSeconds int
	// 限流策略：ip（默认）, endpoint
	Strategy string
	// key 前缀，不同路由组使用不同前缀互不影响
	Prefix string
}

// 滑动窗口：成员使用纳秒时间戳，避免同一秒内的请求互相覆盖
const slidingWindowScript = `
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]
	local window_start = now - window

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	local current = redis.call('ZCARD', key)

	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('EXPIRE', key, window)
		return {1, limit - current - 1, now + window}
	else
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')[2]
		local reset_time = tonumber(oldest) + window
		return {0, 0, reset_time}
	end
`

// RateLimiter 基于 Redis 的滑动窗口限流中间件，用于保护需要校验文件夹密码的接口
func RateLimiter(runner ScriptRunner, cfg RateLimiterConfig, log *logger.Logger) gin.HandlerFunc {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 10
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 60
	}
	if cfg.Strategy == "" {
		cfg.Strategy = "ip"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rate_limit"
	}

	return func(c *gin.Context) {
		key := buildRateLimitKey(c, cfg)

		ctx := c.Request.Context()
		allowed, remaining, resetTime, err := checkRateLimit(ctx, runner, key, cfg)
		if err != nil {
			// 限流器故障时，降级允许请求通过
			log.Error("rate limiter error", zap.Error(err), zap.String("key", key), logger.RequestID(ctx))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(cfg.WindowSeconds))
			response.Error(c, apperrors.ErrTooManyRequests,
				fmt.Sprintf("too many requests, please try again in %d seconds", cfg.WindowSeconds))
			return
		}

		c.Next()
	}
}

// buildRateLimitKey 构建限流 key
func buildRateLimitKey(c *gin.Context, cfg RateLimiterConfig) string {
	// 无法解析的客户端地址归入同一个桶
	ip := validator.GetIPOrDefault(c.ClientIP(), "unknown")
	switch cfg.Strategy {
	case "endpoint":
		return fmt.Sprintf("%s:endpoint:%s:%s:%s", cfg.Prefix, c.Request.Method, c.FullPath(), ip)
	default:
		return fmt.Sprintf("%s:ip:%s", cfg.Prefix, ip)
	}
}

// checkRateLimit 使用 Redis 滑动窗口算法检查限流
func checkRateLimit(ctx context.Context, runner ScriptRunner, key string, cfg RateLimiterConfig) (allowed bool, remaining int, resetTime int64, err error) {
	now := time.Now()

	result, err := runner.Eval(ctx, slidingWindowScript, []string{key},
		now.Unix(), cfg.WindowSeconds, cfg.MaxRequests, now.UnixNano())
	if err != nil {
		return false, 0, 0, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return false, 0, 0, fmt.Errorf("invalid rate limit result: %v", result)
	}

	allowedInt, _ := values[0].(int64)
	remainingInt, _ := values[1].(int64)
	resetTimeInt, _ := values[2].(int64)

	return allowedInt == 1, int(remainingInt), resetTimeInt, nil
}
