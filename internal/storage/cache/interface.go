package cache

import (
	"context"
	"time"

	"research-agent/pkg/errors"
)

// ErrMiss 缓存未命中或已过期
var ErrMiss = errors.Wrap(errors.ErrNotFound, "cache miss")

type Store interface {
	// Set 设置缓存，expiration<=0 表示不过期
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get 获取缓存并反序列化到 dest，未命中返回 ErrMiss
	Get(ctx context.Context, key string, dest interface{}) error
	// Delete 删除缓存
	Delete(ctx context.Context, key string) error
	// Close 关闭缓存连接
	Close() error
}
