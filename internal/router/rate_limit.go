package router

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/glassline/internal/config"
	handlershared "github.com/glassline/internal/http/handlers/shared"
	"github.com/glassline/internal/http/response"
	"github.com/glassline/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
}

// NewRateLimitRule 由配置构建限流规则，prefix 形如 <redis 前缀>:rate:<场景>
func NewRateLimitRule(redisPrefix, scene string, cfg config.RateLimitRuleConfig) RateLimitRule {
	return RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:%s", redisPrefix, scene),
		WindowSeconds: cfg.WindowSeconds,
		MaxRequests:   cfg.MaxRequests,
	}
}

// 固定窗口计数，返回 {当前计数, 剩余秒数}
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// RateLimitMiddleware Redis 固定窗口限流中间件，未配置 Redis 时放行
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = rule.Prefix + ":" + key
		}

		values, err := rateLimitScript.Run(c.Request.Context(), client, []string{key}, rule.WindowSeconds).Int64Slice()
		if err != nil || len(values) < 2 {
			logger.Warnw("rate_limit_script_failed", "key", key, "error", err)
			response.Fail(c, response.WrapError(response.CodeServiceUnavailable, "error.rate_limit_unavailable",
				handlershared.Message("error.rate_limit_unavailable"), err), nil)
			c.Abort()
			return
		}

		count, ttlSeconds := values[0], values[1]
		if count > int64(rule.MaxRequests) {
			waitSeconds := retryAfterSeconds(ttlSeconds, rule.WindowSeconds)
			c.Header("Retry-After", strconv.Itoa(waitSeconds))
			msg := fmt.Sprintf(handlershared.Message("error.rate_limited"), waitSeconds)
			response.Fail(c, response.WrapError(response.CodeTooManyRequests, "error.rate_limited", msg, nil),
				gin.H{"retry_after": waitSeconds})
			c.Abort()
			return
		}

		c.Next()
	}
}

// KeyByIPAndRoute 按客户端 IP 与路由模板限流，订购与到货导入各自计数
func KeyByIPAndRoute(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return c.ClientIP() + ":" + route
}

func retryAfterSeconds(ttlSeconds int64, windowSeconds int) int {
	if ttlSeconds >= 1 {
		return int(ttlSeconds)
	}
	if windowSeconds >= 1 {
		return windowSeconds
	}
	return 1
}
