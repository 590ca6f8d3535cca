package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"OpenMCP-EVM/internal/units"
	"OpenMCP-EVM/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	goredis "github.com/redis/go-redis/v9"
)

// Config 描述 Redis 缓存的连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// DescriptorCache 使用 Redis 字符串缓存代币精度与符号。
type DescriptorCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

var _ units.DescriptorCache = (*DescriptorCache)(nil)

// NewDescriptorCache 连接 Redis 并返回缓存实例。
func NewDescriptorCache(ctx context.Context, cfg Config) (*DescriptorCache, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return NewDescriptorCacheWithClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewDescriptorCacheWithClient wraps an existing client. A zero ttl keeps
// entries forever.
func NewDescriptorCacheWithClient(client *goredis.Client, prefix string, ttl time.Duration) *DescriptorCache {
	if prefix == "" {
		prefix = "openmcp:tokens:"
	}
	return &DescriptorCache{client: client, prefix: prefix, ttl: ttl, log: logger.Named("cache")}
}

// Get 读取缓存；任何 Redis 错误都视为未命中。
func (c *DescriptorCache) Get(ctx context.Context, network string, token common.Address) (units.TokenDescriptor, bool) {
	raw, err := c.client.Get(ctx, c.key(network, token)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("descriptor cache read failed", slog.String("token", token.Hex()), slog.Any("error", err))
		}
		return units.TokenDescriptor{}, false
	}
	var desc units.TokenDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		c.log.Warn("descriptor cache entry corrupt", slog.String("token", token.Hex()), slog.Any("error", err))
		return units.TokenDescriptor{}, false
	}
	return desc, true
}

// Set 写入缓存；失败只记录日志。
func (c *DescriptorCache) Set(ctx context.Context, network string, desc units.TokenDescriptor) {
	payload, err := json.Marshal(desc)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(network, desc.Address), payload, c.ttl).Err(); err != nil {
		c.log.Warn("descriptor cache write failed", slog.String("token", desc.Address.Hex()), slog.Any("error", err))
	}
}

// Close 关闭底层连接。
func (c *DescriptorCache) Close() error {
	return c.client.Close()
}

func (c *DescriptorCache) key(network string, token common.Address) string {
	return c.prefix + units.CacheKey(network, token)
}
