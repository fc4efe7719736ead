package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// 问答缓存的默认参数：答案保留一天，过期条目每十分钟清理一次
const (
	defaultAnswerTTL     = 24 * time.Hour
	defaultSweepInterval = 10 * time.Minute
)

// MemoryCache 进程内问答缓存，基于go-cache实现
// 命中时同一问题可跳过嵌入和大模型调用
type MemoryCache struct {
	store      *gocache.Cache
	defaultTTL time.Duration
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache(config Config) (Cache, error) {
	ttl := config.DefaultTTL
	if ttl == 0 {
		ttl = defaultAnswerTTL
	}

	sweep := config.CleanupInterval
	if sweep == 0 {
		sweep = defaultSweepInterval
	}

	return &MemoryCache{
		store:      gocache.New(ttl, sweep),
		defaultTTL: ttl,
	}, nil
}

// Get 读取缓存值，未命中或类型不符时返回false
func (m *MemoryCache) Get(key string) (string, bool, error) {
	value, found := m.store.Get(key)
	if !found {
		return "", false, nil
	}

	text, ok := value.(string)
	if !ok {
		return "", false, nil
	}
	return text, true, nil
}

// Set 写入缓存值，ttl为0时使用默认过期时间
func (m *MemoryCache) Set(key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	m.store.Set(key, value, ttl)
	return nil
}

// Delete 删除指定键
func (m *MemoryCache) Delete(key string) error {
	m.store.Delete(key)
	return nil
}

// Clear 清空所有缓存条目
func (m *MemoryCache) Clear() error {
	m.store.Flush()
	return nil
}

func init() {
	RegisterCache("memory", NewMemoryCache)
}
