// internal/scoring/cache.go
package scoring

import (
	"context"
	"encoding/json"
	"fmt"

	"match-engine/internal/common/logger"
	"match-engine/internal/models"

	"github.com/redis/go-redis/v9"
)

const scoreKeyPrefix = "match:score:"

// pairKey builds the cache key for one (candidate, job) pair. Lookups are
// exact; there are no partial matches.
func pairKey(candidateID, jobID string) string {
	return scoreKeyPrefix + candidateID + ":" + jobID
}

// ScoreCache is the persistent store of computed score bundles, keyed by
// (candidate, job). Entries carry no TTL; removal is explicit via
// Invalidate or InvalidateCandidate.
type ScoreCache struct {
	redis  *redis.Client
	logger logger.Logger
}

func NewScoreCache(rdb *redis.Client, log logger.Logger) *ScoreCache {
	return &ScoreCache{
		redis:  rdb,
		logger: log.WithFields(map[string]interface{}{"component": "score-cache"}),
	}
}

// Get returns the cached bundle for the pair. A miss is (nil, false, nil),
// not an error. A corrupt entry is treated as a miss and dropped.
func (c *ScoreCache) Get(ctx context.Context, candidateID, jobID string) (*models.ScoreBundle, bool, error) {
	key := pairKey(candidateID, jobID)
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}

	var bundle models.ScoreBundle
	if err := json.Unmarshal([]byte(val), &bundle); err != nil {
		c.logger.Warn("dropping corrupt cache entry", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return &bundle, true, nil
}

// Put stores the bundle for the pair, overwriting any previous entry.
func (c *ScoreCache) Put(ctx context.Context, candidateID, jobID string, bundle *models.ScoreBundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	if err := c.redis.Set(ctx, pairKey(candidateID, jobID), data, 0).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Invalidate removes the entry for one pair.
func (c *ScoreCache) Invalidate(ctx context.Context, candidateID, jobID string) error {
	return c.redis.Del(ctx, pairKey(candidateID, jobID)).Err()
}

// InvalidateCandidate removes every cached bundle for the candidate.
// Called when the candidate's resume is replaced, since all jobs' scores
// derive from the old text.
func (c *ScoreCache) InvalidateCandidate(ctx context.Context, candidateID string) (int, error) {
	pattern := scoreKeyPrefix + candidateID + ":*"
	var removed int
	var cursor uint64

	for {
		keys, next, err := c.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.redis.Del(ctx, keys...).Err(); err != nil {
				return removed, fmt.Errorf("cache del: %w", err)
			}
			removed += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Info("candidate cache invalidated", map[string]interface{}{
		"candidateId": candidateID,
		"removed":     removed,
	})
	return removed, nil
}
