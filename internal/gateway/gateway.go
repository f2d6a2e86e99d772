// internal/gateway/gateway.go

// Package gateway is the role-aware façade in front of the scoring
// engine, state machine and ranking service. Every operation authorizes
// the actor before touching any record, and authorization failures are a
// uniform FORBIDDEN that does not reveal whether the target exists. Role
// claims arrive from the upstream auth layer; this is the hard
// server-side check, not a client-side route guard.
package gateway

import (
	"context"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"
	"match-engine/internal/models"
	"match-engine/internal/ranking"
	"match-engine/internal/scoring"
	"match-engine/internal/workflow"
)

type Gateway struct {
	engine  *scoring.Engine
	machine *workflow.StateMachine
	ranking *ranking.Service
	jobs    ranking.JobReader
	logger  logger.Logger
}

func New(engine *scoring.Engine, machine *workflow.StateMachine, rankingSvc *ranking.Service,
	jobs ranking.JobReader, log logger.Logger) *Gateway {
	return &Gateway{
		engine:  engine,
		machine: machine,
		ranking: rankingSvc,
		jobs:    jobs,
		logger:  log.WithFields(map[string]interface{}{"component": "gateway"}),
	}
}

// MatchScore returns the score bundle for the pair. Candidates may only
// score themselves; recruiters may score any candidate against their own
// organization's jobs.
func (g *Gateway) MatchScore(ctx context.Context, actor models.Actor, candidateID, jobID string) (*models.ScoreBundle, error) {
	switch actor.Role {
	case models.RoleCandidate:
		if actor.ID != candidateID {
			return nil, apperrors.NewForbiddenError()
		}
	case models.RoleRecruiter:
		if err := g.authorizeRecruiterForJob(ctx, actor, jobID); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.NewForbiddenError()
	}

	return g.engine.GetOrCompute(ctx, candidateID, jobID)
}

// Apply confirms the candidate's pending application.
func (g *Gateway) Apply(ctx context.Context, actor models.Actor, candidateID, jobID string) (*models.Application, error) {
	if actor.Role != models.RoleCandidate || actor.ID != candidateID {
		return nil, apperrors.NewForbiddenError()
	}
	return g.machine.Apply(ctx, candidateID, jobID)
}

// UpdateStatus moves an application through the pipeline. Recruiter only,
// and only for jobs owned by the recruiter's organization.
func (g *Gateway) UpdateStatus(ctx context.Context, actor models.Actor, candidateID, jobID string,
	newStatus models.ApplicationStatus, interview *models.Interview) (*models.Application, error) {
	if err := g.authorizeRecruiterForJob(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return g.machine.Transition(ctx, candidateID, jobID, newStatus, interview)
}

// ScheduleInterview sets or reschedules an interview without a status change.
func (g *Gateway) ScheduleInterview(ctx context.Context, actor models.Actor, candidateID, jobID string,
	interview *models.Interview) (*models.Application, error) {
	if err := g.authorizeRecruiterForJob(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return g.machine.SetInterview(ctx, candidateID, jobID, interview)
}

// TopCandidates returns the job's best n confirmed candidates.
func (g *Gateway) TopCandidates(ctx context.Context, actor models.Actor, jobID string, n int) ([]ranking.RankedCandidate, error) {
	if err := g.authorizeRecruiterForJob(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return g.ranking.TopCandidates(ctx, jobID, n)
}

// AllCandidates returns the job's confirmed candidates in ranked order.
func (g *Gateway) AllCandidates(ctx context.Context, actor models.Actor, jobID string,
	statusFilter *models.ApplicationStatus) ([]ranking.RankedCandidate, error) {
	if err := g.authorizeRecruiterForJob(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return g.ranking.AllCandidates(ctx, jobID, statusFilter)
}

// StatusCounts returns the job's per-status application counts.
func (g *Gateway) StatusCounts(ctx context.Context, actor models.Actor, jobID string) (map[models.ApplicationStatus]int, error) {
	if err := g.authorizeRecruiterForJob(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return g.ranking.StatusCounts(ctx, jobID)
}

// MyApplications returns the candidate's own confirmed applications.
func (g *Gateway) MyApplications(ctx context.Context, actor models.Actor, candidateID string) ([]ranking.ApplicantEntry, error) {
	if actor.Role != models.RoleCandidate || actor.ID != candidateID {
		return nil, apperrors.NewForbiddenError()
	}
	return g.ranking.ApplicantView(ctx, candidateID)
}

// ResumeUpdated invalidates every cached score for the candidate after a
// resume replacement.
func (g *Gateway) ResumeUpdated(ctx context.Context, actor models.Actor, candidateID string) (int, error) {
	if actor.Role != models.RoleCandidate || actor.ID != candidateID {
		return 0, apperrors.NewForbiddenError()
	}
	return g.engine.InvalidateCandidate(ctx, candidateID)
}

// authorizeRecruiterForJob verifies the actor is a recruiter for the
// job's owning organization. A missing job and a foreign job produce the
// same FORBIDDEN so callers cannot probe for postings.
func (g *Gateway) authorizeRecruiterForJob(ctx context.Context, actor models.Actor, jobID string) error {
	if actor.Role != models.RoleRecruiter || actor.OrgID == "" {
		return apperrors.NewForbiddenError()
	}

	job, err := g.jobs.GetJob(ctx, jobID)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	if job == nil || job.OrgID != actor.OrgID {
		return apperrors.NewForbiddenError()
	}
	return nil
}
