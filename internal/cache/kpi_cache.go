package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/freshrisk/internal/config"
	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	kpiDashboardKeyPrefix = "kpi:dashboard"
	kpiScanBatchSize      = 100
)

// KPICache holds assembled dashboards keyed by their filter. The dashboard is
// derived data; the cache is invalidated wholesale after a pipeline run.
type KPICache interface {
	GetDashboard(ctx context.Context, filter domain.KPIFilter, days int) (*domain.KPIDashboard, bool, error)
	SetDashboard(ctx context.Context, filter domain.KPIFilter, days int, dashboard *domain.KPIDashboard) error
	InvalidateAll(ctx context.Context) error
}

type redisKPICache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopKPICache struct{}

func NewKPICache(cfg config.CacheConfig) (KPICache, error) {
	if !cfg.Enabled {
		return &noopKPICache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisKPICache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopKPICache() KPICache {
	return &noopKPICache{}
}

func (c *redisKPICache) GetDashboard(ctx context.Context, filter domain.KPIFilter, days int) (*domain.KPIDashboard, bool, error) {
	key := buildKPIDashboardKey(filter, days)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var dashboard domain.KPIDashboard
	if err := json.Unmarshal(payload, &dashboard); err != nil {
		return nil, false, fmt.Errorf("decode kpi dashboard cache: %w", err)
	}

	return &dashboard, true, nil
}

func (c *redisKPICache) SetDashboard(ctx context.Context, filter domain.KPIFilter, days int, dashboard *domain.KPIDashboard) error {
	key := buildKPIDashboardKey(filter, days)
	payload, err := json.Marshal(dashboard)
	if err != nil {
		return fmt.Errorf("encode kpi dashboard cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisKPICache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, kpiDashboardKeyPrefix, kpiScanBatchSize)
}

func (n *noopKPICache) GetDashboard(ctx context.Context, filter domain.KPIFilter, days int) (*domain.KPIDashboard, bool, error) {
	return nil, false, nil
}

func (n *noopKPICache) SetDashboard(ctx context.Context, filter domain.KPIFilter, days int, dashboard *domain.KPIDashboard) error {
	return nil
}

func (n *noopKPICache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildKPIDashboardKey(filter domain.KPIFilter, days int) string {
	return fmt.Sprintf("%s:%s", kpiDashboardKeyPrefix, kpiFilterHash(filter, days))
}

func kpiFilterHash(filter domain.KPIFilter, days int) string {
	parts := []string{}

	if days > 0 {
		parts = append(parts, fmt.Sprintf("days=%d", days))
	}
	if filter.DateFrom != "" {
		parts = append(parts, "date_from="+strings.TrimSpace(filter.DateFrom))
	}
	if filter.DateTo != "" {
		parts = append(parts, "date_to="+strings.TrimSpace(filter.DateTo))
	}
	if len(filter.StoreIDs) > 0 {
		parts = append(parts, "store_ids="+joinInt64s(filter.StoreIDs))
	}
	if len(filter.SKUIds) > 0 {
		parts = append(parts, "sku_ids="+joinStrings(filter.SKUIds))
	}

	if len(parts) == 0 {
		return "default"
	}

	sort.Strings(parts)
	raw := strings.Join(parts, "|")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func joinInt64s(values []int64) string {
	c := append([]int64(nil), values...)
	sort.Slice(c, func(i, j int) bool { return c[i] < c[j] })
	strs := make([]string, len(c))
	for i, v := range c {
		strs[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(strs, ",")
}

func joinStrings(values []string) string {
	c := append([]string(nil), values...)
	for i := range c {
		c[i] = strings.TrimSpace(strings.ToLower(c[i]))
	}
	sort.Strings(c)
	return strings.Join(c, ",")
}
