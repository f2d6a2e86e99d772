// internal/scoring/cache_test.go
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"match-engine/internal/common/logger"
	"match-engine/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*ScoreCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewScoreCache(rdb, logger.NewTestLogger(t)), mr
}

func testBundle(final float64) *models.ScoreBundle {
	return &models.ScoreBundle{
		FinalScore:      final,
		SkillScore:      80,
		SkillsMatch:     70,
		EducationScore:  60,
		ExperienceScore: 90,
		RecruiterInsights: models.RecruiterInsights{
			KeyQualifications:    []string{"go"},
			Concerns:             []string{},
			HiringRecommendation: models.Recommend,
		},
		SeekerInsights: models.SeekerInsights{
			OverallFeedback: "solid fit",
		},
		ComputedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestScoreCache_PutGet(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "cand-1", "job-1", testBundle(85)))

	got, ok, err := cache.Get(ctx, "cand-1", "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 85.0, got.FinalScore)
	assert.Equal(t, models.Recommend, got.RecruiterInsights.HiringRecommendation)
}

func TestScoreCache_Miss(t *testing.T) {
	cache, _ := setupCache(t)

	got, ok, err := cache.Get(context.Background(), "cand-1", "job-1")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestScoreCache_CorruptEntryDropped(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("match:score:cand-1:job-1", "{not json"))

	got, ok, err := cache.Get(ctx, "cand-1", "job-1")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	// The corrupt key must be gone so the next computation can replace it.
	assert.False(t, mr.Exists("match:score:cand-1:job-1"))
}

func TestScoreCache_Invalidate(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "cand-1", "job-1", testBundle(85)))
	require.NoError(t, cache.Invalidate(ctx, "cand-1", "job-1"))

	assert.False(t, mr.Exists("match:score:cand-1:job-1"))
}

func TestScoreCache_InvalidateCandidate(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "cand-1", "job-1", testBundle(85)))
	require.NoError(t, cache.Put(ctx, "cand-1", "job-2", testBundle(70)))
	require.NoError(t, cache.Put(ctx, "cand-2", "job-1", testBundle(60)))

	removed, err := cache.InvalidateCandidate(ctx, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	// Other candidates' entries survive.
	assert.False(t, mr.Exists("match:score:cand-1:job-1"))
	assert.False(t, mr.Exists("match:score:cand-1:job-2"))
	assert.True(t, mr.Exists("match:score:cand-2:job-1"))
}

func TestScoreCache_RedisFailureIsError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cache := NewScoreCache(rdb, logger.NewTestLogger(t))
	ctx := context.Background()

	// An infrastructure failure must surface as an error, never as a
	// miss that would trigger a recompute storm.
	mock.ExpectGet("match:score:cand-1:job-1").SetErr(errors.New("connection refused"))
	_, ok, err := cache.Get(ctx, "cand-1", "job-1")
	assert.Error(t, err)
	assert.False(t, ok)

	mock.ExpectSet("match:score:cand-1:job-1", mustJSON(t, testBundle(85)), 0).
		SetErr(errors.New("connection refused"))
	err = cache.Put(ctx, "cand-1", "job-1", testBundle(85))
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func mustJSON(t *testing.T, v interface{}) []byte {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestScoreCache_InvalidateCandidateEmpty(t *testing.T) {
	cache, _ := setupCache(t)

	removed, err := cache.InvalidateCandidate(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.Equal(t, 0, removed)
}
