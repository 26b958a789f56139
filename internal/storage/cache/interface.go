package cache

import (
	"context"
	"time"
)

// Store 缓存存储接口。缓存是 advisory 的：未命中或过期只影响性能，
// 从不影响正确性，实现错误由调用方忽略。
type Store interface {
	// Set 设置缓存
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get 获取缓存，未命中或已过期返回错误
	Get(ctx context.Context, key string, dest interface{}) error
	// Delete 删除缓存
	Delete(ctx context.Context, key string) error
	// Close 关闭缓存连接
	Close() error
}
