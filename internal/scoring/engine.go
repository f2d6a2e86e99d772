// internal/scoring/engine.go
package scoring

import (
	"context"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"
	"match-engine/internal/common/metrics"
	"match-engine/internal/models"

	"golang.org/x/sync/singleflight"
)

// DirectoryReader provides the external resume and job reads the engine
// depends on. Absence is (nil, nil), not an error.
type DirectoryReader interface {
	GetResume(ctx context.Context, candidateID string) (*models.CandidateResume, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
}

// ApplicationRecorder attaches a computed score to the application record
// for the pair, creating a pending one when none exists yet.
type ApplicationRecorder interface {
	AttachScore(ctx context.Context, candidateID, jobID string, bundle *models.ScoreBundle) error
}

// Engine orchestrates cache lookup, single-flight computation and the
// side effects of a successful score.
type Engine struct {
	cache        *ScoreCache
	collaborator Collaborator
	directory    DirectoryReader
	applications ApplicationRecorder
	timeout      time.Duration
	group        singleflight.Group
	logger       logger.Logger
}

func NewEngine(cache *ScoreCache, collaborator Collaborator, directory DirectoryReader,
	applications ApplicationRecorder, timeout time.Duration, log logger.Logger) *Engine {
	return &Engine{
		cache:        cache,
		collaborator: collaborator,
		directory:    directory,
		applications: applications,
		timeout:      timeout,
		logger:       log.WithFields(map[string]interface{}{"component": "score-engine"}),
	}
}

// GetOrCompute returns the score bundle for the pair, computing it at
// most once across concurrent callers. Requests for different pairs never
// block each other.
func (e *Engine) GetOrCompute(ctx context.Context, candidateID, jobID string) (*models.ScoreBundle, error) {
	if bundle, ok, err := e.cache.Get(ctx, candidateID, jobID); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	} else if ok {
		metrics.ScoreCacheHits.Inc()
		bundle.Cached = true
		return bundle, nil
	}
	metrics.ScoreCacheMisses.Inc()

	key := candidateID + "|" + jobID
	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		// The flight outlives any single caller: cancellation of the
		// request that started it must not abort the result other
		// waiters are sharing, so the flight runs on a detached
		// context bounded only by the scoring timeout.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		return e.compute(flightCtx, candidateID, jobID)
	})
	if err != nil {
		return nil, err
	}

	// Each caller gets its own copy; waiters must not share mutable state.
	out := *(v.(*models.ScoreBundle))
	return &out, nil
}

func (e *Engine) compute(ctx context.Context, candidateID, jobID string) (*models.ScoreBundle, error) {
	// A waiter may enter the flight after a previous one completed and
	// cached; re-check before paying for a computation.
	if bundle, ok, err := e.cache.Get(ctx, candidateID, jobID); err == nil && ok {
		metrics.ScoreCacheHits.Inc()
		bundle.Cached = true
		return bundle, nil
	}

	resume, err := e.directory.GetResume(ctx, candidateID)
	if err != nil {
		metrics.ScoreComputations.WithLabelValues("store_error").Inc()
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	job, err := e.directory.GetJob(ctx, jobID)
	if err != nil {
		metrics.ScoreComputations.WithLabelValues("store_error").Inc()
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	if resume == nil || job == nil {
		metrics.ScoreComputations.WithLabelValues("missing_input").Inc()
		details := "candidate " + candidateID + " has no resume"
		if resume != nil {
			details = "job " + jobID + " does not exist"
		}
		return nil, apperrors.NewMissingInputError(details)
	}

	start := time.Now()
	bundle, err := e.collaborator.Compute(ctx, resume, job)
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScoreComputations.WithLabelValues("unavailable").Inc()
		e.logger.Warn("scoring collaborator failed", map[string]interface{}{
			"candidateId": candidateID,
			"jobId":       jobID,
			"error":       err,
		})
		return nil, apperrors.NewScoringUnavailableError(err)
	}

	bundle.ComputedAt = time.Now().UTC()
	bundle.Cached = false

	// The application row comes first so a cached score is always
	// attributable to a record; the cache is written only once every
	// side effect of the computation has succeeded.
	if err := e.applications.AttachScore(ctx, candidateID, jobID, bundle); err != nil {
		metrics.ScoreComputations.WithLabelValues("store_error").Inc()
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	if err := e.cache.Put(ctx, candidateID, jobID, bundle); err != nil {
		// The score stands; the next request recomputes into the cache.
		e.logger.Warn("cache put failed after successful computation", map[string]interface{}{
			"candidateId": candidateID,
			"jobId":       jobID,
			"error":       err,
		})
	}

	metrics.ScoreComputations.WithLabelValues("ok").Inc()
	e.logger.Info("score computed", map[string]interface{}{
		"candidateId": candidateID,
		"jobId":       jobID,
		"finalScore":  bundle.FinalScore,
	})

	return bundle, nil
}

// InvalidatePair drops the cached bundle for one pair.
func (e *Engine) InvalidatePair(ctx context.Context, candidateID, jobID string) error {
	if err := e.cache.Invalidate(ctx, candidateID, jobID); err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	return nil
}

// InvalidateCandidate drops every cached bundle for the candidate,
// typically after a resume replacement.
func (e *Engine) InvalidateCandidate(ctx context.Context, candidateID string) (int, error) {
	removed, err := e.cache.InvalidateCandidate(ctx, candidateID)
	if err != nil {
		return removed, apperrors.NewStoreUnavailableError(err)
	}
	return removed, nil
}
