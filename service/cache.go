package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultSummaryCacheTTL = 5 * time.Minute

// SummaryCache 基于 Redis 的汇总缓存
// 每个用户维护一个版本号，数据变更时递增版本号，旧版本的缓存自然失效
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache 创建汇总缓存，client 为 nil 时所有操作为空操作
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = defaultSummaryCacheTTL
	}
	return &SummaryCache{client: client, ttl: ttl}
}

// Get 读取缓存，未命中返回 nil, nil
func (c *SummaryCache) Get(ctx context.Context, userID uint, r DateRange) (*Summary, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	key, err := c.key(ctx, userID, r)
	if err != nil {
		return nil, err
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached summary: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decode cached summary: %w", err)
	}
	return &summary, nil
}

// Set 写入缓存
func (c *SummaryCache) Set(ctx context.Context, userID uint, r DateRange, summary *Summary) error {
	if c == nil || c.client == nil || summary == nil {
		return nil
	}

	key, err := c.key(ctx, userID, r)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary for cache: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached summary: %w", err)
	}
	return nil
}

// Invalidate 递增用户版本号
func (c *SummaryCache) Invalidate(ctx context.Context, userID uint) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Incr(ctx, versionKey(userID)).Err(); err != nil {
		return fmt.Errorf("bump summary version: %w", err)
	}
	return nil
}

func (c *SummaryCache) key(ctx context.Context, userID uint, r DateRange) (string, error) {
	version, err := c.client.Get(ctx, versionKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("get summary version: %w", err)
	}

	start, end := "-", "-"
	if r.Start != nil {
		start = r.Start.Format(DateLayout)
	}
	if r.End != nil {
		end = r.End.Format(DateLayout)
	}
	return fmt.Sprintf("summary:%d:v%d:%s:%s", userID, version, start, end), nil
}

func versionKey(userID uint) string {
	return fmt.Sprintf("summary:version:%d", userID)
}
