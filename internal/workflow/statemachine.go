// internal/workflow/statemachine.go

// Package workflow owns the lifecycle of application records: the
// transition legality table, interview scheduling rules and the
// compare-and-swap persistence that keeps concurrent transitions atomic
// per record. Role enforcement happens upstream in the gateway; the
// state machine trusts the caller's claim.
package workflow

import (
	"context"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"
	"match-engine/internal/common/metrics"
	"match-engine/internal/models"
)

// allowedTransitions is the directed legality table. No implicit
// skipping: each status may only move to the listed targets. Terminal
// statuses have no entry, and neither does applied_pending: the only
// way out of it is the candidate's own Apply.
var allowedTransitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.StatusApplied:     {models.StatusToReview, models.StatusRejected},
	models.StatusToReview:    {models.StatusShortlisted, models.StatusRejected},
	models.StatusShortlisted: {models.StatusToInterview, models.StatusRejected},
	models.StatusToInterview: {models.StatusInterviewed, models.StatusRejected},
	models.StatusInterviewed: {models.StatusRejected, models.StatusSelected, models.StatusHired},
}

// CanTransition reports whether the legality table allows from → to.
func CanTransition(from, to models.ApplicationStatus) bool {
	for _, target := range allowedTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// interviewAllowed reports whether a status may carry an interview.
func interviewAllowed(status models.ApplicationStatus) bool {
	return status == models.StatusShortlisted || status == models.StatusToInterview
}

// StateMachine validates and executes transitions on application records.
type StateMachine struct {
	store  ApplicationStore
	logger logger.Logger
}

func NewStateMachine(store ApplicationStore, log logger.Logger) *StateMachine {
	return &StateMachine{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "state-machine"}),
	}
}

// Get returns the record for the pair, failing with NOT_FOUND when the
// pair has never been scored.
func (m *StateMachine) Get(ctx context.Context, candidateID, jobID string) (*models.Application, error) {
	app, err := m.store.Get(ctx, candidateID, jobID)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	if app == nil {
		return nil, apperrors.NewNotFoundError("no application for pair")
	}
	return app, nil
}

// getConfirmed is Get with pending records hidden: an unconfirmed
// application reads as NOT_FOUND, the same answer a never-scored pair
// gives, so no operation besides Apply can see or move it.
func (m *StateMachine) getConfirmed(ctx context.Context, candidateID, jobID string) (*models.Application, error) {
	app, err := m.Get(ctx, candidateID, jobID)
	if err != nil {
		return nil, err
	}
	if app.Status == models.StatusAppliedPending {
		return nil, apperrors.NewNotFoundError("no application for pair")
	}
	return app, nil
}

// Apply confirms a pending application: applied_pending → applied. Only
// the owning candidate reaches this through the gateway.
func (m *StateMachine) Apply(ctx context.Context, candidateID, jobID string) (*models.Application, error) {
	app, err := m.Get(ctx, candidateID, jobID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusAppliedPending {
		return nil, apperrors.NewInvalidTransitionError(string(app.Status), string(models.StatusApplied))
	}
	return m.swap(ctx, app, models.StatusApplied, nil)
}

// Transition moves the record to newStatus, optionally carrying an
// interview payload into shortlisted or to_interview. An interview on
// any other target fails with INVALID_STATE. The payload is advisory:
// leaving shortlisted/to_interview without one is legal, and any stored
// interview is cleared on the way out.
func (m *StateMachine) Transition(ctx context.Context, candidateID, jobID string,
	newStatus models.ApplicationStatus, interview *models.Interview) (*models.Application, error) {

	if !newStatus.IsValid() || newStatus == models.StatusAppliedPending {
		return nil, apperrors.NewValidationFailedError("unknown target status: " + string(newStatus))
	}
	if interview != nil {
		if err := validateInterview(interview); err != nil {
			return nil, err
		}
		if !interviewAllowed(newStatus) {
			return nil, apperrors.NewInvalidStateError(
				"interview payload only allowed when moving to shortlisted or to_interview")
		}
	}

	app, err := m.getConfirmed(ctx, candidateID, jobID)
	if err != nil {
		return nil, err
	}
	if app.Status.IsTerminal() || !CanTransition(app.Status, newStatus) {
		return nil, apperrors.NewInvalidTransitionError(string(app.Status), string(newStatus))
	}

	keep := interview
	if keep == nil && interviewAllowed(newStatus) {
		keep = app.Interview
	}
	return m.swap(ctx, app, newStatus, keep)
}

// SetInterview schedules or reschedules the interview without changing
// status. Legal only while shortlisted or to_interview.
func (m *StateMachine) SetInterview(ctx context.Context, candidateID, jobID string,
	interview *models.Interview) (*models.Application, error) {

	if interview == nil {
		return nil, apperrors.NewValidationFailedError("interview payload is required")
	}
	if err := validateInterview(interview); err != nil {
		return nil, err
	}

	app, err := m.getConfirmed(ctx, candidateID, jobID)
	if err != nil {
		return nil, err
	}
	if !interviewAllowed(app.Status) {
		return nil, apperrors.NewInvalidStateError(
			"interview can only be set while shortlisted or to_interview, current: " + string(app.Status))
	}
	return m.swap(ctx, app, app.Status, interview)
}

// swap performs the single CAS the record's atomicity rests on. A missed
// swap re-reads once to distinguish a concurrent move (CONFLICT) from a
// vanished record (NOT_FOUND).
func (m *StateMachine) swap(ctx context.Context, app *models.Application,
	newStatus models.ApplicationStatus, interview *models.Interview) (*models.Application, error) {

	swapped, err := m.store.UpdateStatusCAS(ctx, app.CandidateID, app.JobID,
		app.Status, app.Version, newStatus, interview)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	if !swapped {
		metrics.TransitionConflicts.Inc()
		current, err := m.store.Get(ctx, app.CandidateID, app.JobID)
		if err != nil {
			return nil, apperrors.NewStoreUnavailableError(err)
		}
		if current == nil {
			return nil, apperrors.NewNotFoundError("no application for pair")
		}
		return nil, apperrors.NewConflictError(
			"expected status " + string(app.Status) + ", found " + string(current.Status))
	}

	metrics.ApplicationTransitions.WithLabelValues(string(app.Status), string(newStatus)).Inc()
	m.logger.Info("application transitioned", map[string]interface{}{
		"candidateId": app.CandidateID,
		"jobId":       app.JobID,
		"from":        string(app.Status),
		"to":          string(newStatus),
	})

	updated, err := m.store.Get(ctx, app.CandidateID, app.JobID)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	if updated == nil {
		return nil, apperrors.NewNotFoundError("no application for pair")
	}
	return updated, nil
}

func validateInterview(interview *models.Interview) error {
	if interview.ScheduledAt.IsZero() {
		return apperrors.NewValidationFailedError("interview scheduledAt is required")
	}
	if interview.ScheduledAt.Before(time.Now().UTC().Add(-24 * time.Hour)) {
		return apperrors.NewValidationFailedError("interview scheduledAt is in the past")
	}
	if !interview.Mode.IsValid() {
		return apperrors.NewValidationFailedError("unknown interview mode: " + string(interview.Mode))
	}
	return nil
}
