package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/glassline/internal/constants"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld 导入锁已被占用
var ErrLockHeld = errors.New("import lock held")

const defaultImportLockTTL = 5 * time.Minute

// 仅当 token 一致时释放
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ImportLock 批量导入互斥锁，Redis 可用时跨进程生效，否则退化为进程内锁
type ImportLock struct {
	key   string
	ttl   time.Duration
	local sync.Mutex
}

// NewImportLock 创建导入锁
func NewImportLock(ttl time.Duration) *ImportLock {
	if ttl <= 0 {
		ttl = defaultImportLockTTL
	}
	return &ImportLock{key: constants.LockKeyGlassImport, ttl: ttl}
}

// Acquire 尝试获取导入锁，返回释放函数
func (l *ImportLock) Acquire(ctx context.Context) (func(), error) {
	if Enabled() {
		return l.acquireRedis(ctx)
	}
	if !l.local.TryLock() {
		return nil, ErrLockHeld
	}
	var once sync.Once
	return func() {
		once.Do(l.local.Unlock)
	}, nil
}

func (l *ImportLock) acquireRedis(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	key := buildKey(l.key)
	ok, err := redisClient.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	client := redisClient
	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = releaseLockScript.Run(releaseCtx, client, []string{key}, token).Err()
		})
	}, nil
}
