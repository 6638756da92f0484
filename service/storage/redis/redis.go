package redis

import (
	"context"
	"sync"
	"time"

	"PLedger/tools/errs"

	"github.com/redis/go-redis/v9"
)

var (
	redisMu  sync.Mutex
	redisMgr *RedisManager
)

type RedisManager struct {
	client *redis.Client
}

// Config 用于初始化 Redis
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewClient dials and pings a Redis server.
func NewClient(ctx context.Context, c Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.ErrLedgerUnavailable.WrapErr(err, "redis ping", "addr", c.Addr)
	}
	return rdb, nil
}

// InitRedis 初始化 Redis 管理器（单例）. A failed attempt may be retried.
func InitRedis(c Config) error {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisMgr != nil {
		return nil
	}
	rdb, err := NewClient(context.Background(), c)
	if err != nil {
		return err
	}
	redisMgr = &RedisManager{client: rdb}
	return nil
}

// GetRedis 获取 Redis Client
func GetRedis() *redis.Client {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisMgr == nil {
		panic("Redis not initialized, call InitRedis first")
	}
	return redisMgr.client
}

// CloseRedis 关闭连接
func CloseRedis() error {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisMgr == nil {
		return nil
	}
	err := redisMgr.client.Close()
	redisMgr = nil
	return err
}
