package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/glassline/internal/constants"
)

// GlassSummaryKey 履约汇总缓存键
func GlassSummaryKey(glassOrderID uint) string {
	return fmt.Sprintf(constants.CacheKeyGlassSummary, glassOrderID)
}

// GetGlassSummary 读取履约汇总缓存
func GetGlassSummary(ctx context.Context, glassOrderID uint, dest interface{}) (bool, error) {
	if glassOrderID == 0 {
		return false, nil
	}
	return GetJSON(ctx, GlassSummaryKey(glassOrderID), dest)
}

// SetGlassSummary 写入履约汇总缓存
func SetGlassSummary(ctx context.Context, glassOrderID uint, summary interface{}, ttl time.Duration) error {
	if glassOrderID == 0 || ttl <= 0 {
		return nil
	}
	return SetJSON(ctx, GlassSummaryKey(glassOrderID), summary, ttl)
}

// InvalidateGlassSummaries 批量失效履约汇总缓存
func InvalidateGlassSummaries(ctx context.Context, glassOrderIDs ...uint) error {
	keys := make([]string, 0, len(glassOrderIDs))
	for _, id := range glassOrderIDs {
		if id != 0 {
			keys = append(keys, GlassSummaryKey(id))
		}
	}
	return Del(ctx, keys...)
}
