// internal/ranking/service.go

// Package ranking produces the recruiter- and candidate-facing views over
// scored application records. Ordering is a deterministic total order:
// finalScore descending, then skill average descending, then earliest
// applicant first. The skill average is owned here so every screen ranks
// by the same derived value.
package ranking

import (
	"context"
	"sort"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"
	"match-engine/internal/models"
)

// ApplicationLister is the slice of the application store ranking reads.
// Implementations return confirmed records only; pending rows never reach
// a ranking.
type ApplicationLister interface {
	ListConfirmedByJob(ctx context.Context, jobID string) ([]*models.Application, error)
	ListConfirmedByCandidate(ctx context.Context, candidateID string) ([]*models.Application, error)
}

// JobReader resolves job postings for applicant views.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
}

// BundleReader hydrates full score bundles (insights included) from the
// score cache.
type BundleReader interface {
	Get(ctx context.Context, candidateID, jobID string) (*models.ScoreBundle, bool, error)
}

// RankedCandidate is one row of a recruiter listing.
type RankedCandidate struct {
	Application *models.Application `json:"application"`
	FinalScore  float64             `json:"finalScore"`
	SkillAvg    float64             `json:"skillAvg"`
}

// ApplicantEntry is one row of a candidate's "my applications" view.
type ApplicantEntry struct {
	Job         *models.Job         `json:"job"`
	Application *models.Application `json:"application"`
	Bundle      *models.ScoreBundle `json:"scoreBundle,omitempty"`
}

type Service struct {
	store   ApplicationLister
	jobs    JobReader
	bundles BundleReader
	logger  logger.Logger
}

func NewService(store ApplicationLister, jobs JobReader, bundles BundleReader, log logger.Logger) *Service {
	return &Service{
		store:   store,
		jobs:    jobs,
		bundles: bundles,
		logger:  log.WithFields(map[string]interface{}{"component": "ranking"}),
	}
}

// TopCandidates returns the best n confirmed candidates for the job.
func (s *Service) TopCandidates(ctx context.Context, jobID string, n int) ([]RankedCandidate, error) {
	if n <= 0 {
		return nil, apperrors.NewValidationFailedError("n must be positive")
	}

	ranked, err := s.rankedForJob(ctx, jobID, nil)
	if err != nil {
		return nil, err
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

// AllCandidates returns every confirmed candidate for the job in ranked
// order, optionally filtered to one status.
func (s *Service) AllCandidates(ctx context.Context, jobID string, statusFilter *models.ApplicationStatus) ([]RankedCandidate, error) {
	if statusFilter != nil && !statusFilter.IsValid() {
		return nil, apperrors.NewValidationFailedError("unknown status filter: " + string(*statusFilter))
	}
	return s.rankedForJob(ctx, jobID, statusFilter)
}

// StatusCounts aggregates the job's confirmed applications per status in
// a single pass.
func (s *Service) StatusCounts(ctx context.Context, jobID string) (map[models.ApplicationStatus]int, error) {
	apps, err := s.store.ListConfirmedByJob(ctx, jobID)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}

	counts := make(map[models.ApplicationStatus]int, len(apps))
	for _, app := range apps {
		counts[app.Status]++
	}
	return counts, nil
}

// ApplicantView returns the candidate's confirmed applications with the
// posting and, when still cached, the full score bundle.
func (s *Service) ApplicantView(ctx context.Context, candidateID string) ([]ApplicantEntry, error) {
	apps, err := s.store.ListConfirmedByCandidate(ctx, candidateID)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}

	entries := make([]ApplicantEntry, 0, len(apps))
	for _, app := range apps {
		job, err := s.jobs.GetJob(ctx, app.JobID)
		if err != nil {
			return nil, apperrors.NewStoreUnavailableError(err)
		}
		if job == nil {
			// Posting removed by its owning subsystem; the application
			// record stays but has nothing to display.
			s.logger.Warn("application references missing job", map[string]interface{}{
				"candidateId": candidateID,
				"jobId":       app.JobID,
			})
			continue
		}

		bundle, ok, err := s.bundles.Get(ctx, app.CandidateID, app.JobID)
		if err != nil {
			return nil, apperrors.NewStoreUnavailableError(err)
		}
		if ok {
			bundle.Cached = true
		} else {
			bundle = nil
		}

		entries = append(entries, ApplicantEntry{
			Job:         job,
			Application: app,
			Bundle:      bundle,
		})
	}
	return entries, nil
}

func (s *Service) rankedForJob(ctx context.Context, jobID string, statusFilter *models.ApplicationStatus) ([]RankedCandidate, error) {
	apps, err := s.store.ListConfirmedByJob(ctx, jobID)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}

	ranked := make([]RankedCandidate, 0, len(apps))
	for _, app := range apps {
		if statusFilter != nil && app.Status != *statusFilter {
			continue
		}
		ranked = append(ranked, RankedCandidate{
			Application: app,
			FinalScore:  deref(app.FinalScore),
			SkillAvg:    (deref(app.SkillScore) + deref(app.SkillsMatch)) / 2,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		if ranked[i].SkillAvg != ranked[j].SkillAvg {
			return ranked[i].SkillAvg > ranked[j].SkillAvg
		}
		return ranked[i].Application.CreatedAt.Before(ranked[j].Application.CreatedAt)
	})

	return ranked, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
