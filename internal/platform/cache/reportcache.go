package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReportCache stores serialized report payloads with a TTL. Closed-year
// reports are immutable, so a short TTL only matters for open years.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache constructs ReportCache.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

func reportKey(kind string, companyID, fiscalYearID int64) string {
	return fmt.Sprintf("report:%s:%d:%d", kind, companyID, fiscalYearID)
}

// Get loads a cached report into target. The boolean reports a cache hit.
func (c *ReportCache) Get(ctx context.Context, kind string, companyID, fiscalYearID int64, target any) (bool, error) {
	payload, err := c.client.Get(ctx, reportKey(kind, companyID, fiscalYearID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores a report payload under the configured TTL.
func (c *ReportCache) Set(ctx context.Context, kind string, companyID, fiscalYearID int64, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, reportKey(kind, companyID, fiscalYearID), payload, c.ttl).Err()
}

// Invalidate drops every cached report of the fiscal year. Callers invoke it
// after postings, closes, and reopens.
func (c *ReportCache) Invalidate(ctx context.Context, companyID, fiscalYearID int64) error {
	pattern := fmt.Sprintf("report:*:%d:%d", companyID, fiscalYearID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
