// internal/workflow/statemachine_test.go
package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"
	"match-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory ApplicationStore with real CAS semantics.
type memStore struct {
	mu   sync.Mutex
	apps map[string]*models.Application

	// forceSwapMiss makes the next UpdateStatusCAS report a lost race
	// without touching the record.
	forceSwapMiss bool
}

func newMemStore() *memStore {
	return &memStore{apps: make(map[string]*models.Application)}
}

func pair(candidateID, jobID string) string { return candidateID + "|" + jobID }

func (s *memStore) Get(ctx context.Context, candidateID, jobID string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[pair(candidateID, jobID)]
	if !ok {
		return nil, nil
	}
	out := *app
	return &out, nil
}

func (s *memStore) AttachScore(ctx context.Context, candidateID, jobID string, bundle *models.ScoreBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pair(candidateID, jobID)
	if app, ok := s.apps[key]; ok {
		app.FinalScore = &bundle.FinalScore
		app.SkillScore = &bundle.SkillScore
		app.SkillsMatch = &bundle.SkillsMatch
		return nil
	}
	s.apps[key] = &models.Application{
		ID:          key,
		CandidateID: candidateID,
		JobID:       jobID,
		Status:      models.StatusAppliedPending,
		FinalScore:  &bundle.FinalScore,
		SkillScore:  &bundle.SkillScore,
		SkillsMatch: &bundle.SkillsMatch,
		Version:     1,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	return nil
}

func (s *memStore) UpdateStatusCAS(ctx context.Context, candidateID, jobID string,
	expected models.ApplicationStatus, expectedVersion int,
	newStatus models.ApplicationStatus, interview *models.Interview) (bool, error) {

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceSwapMiss {
		s.forceSwapMiss = false
		return false, nil
	}

	app, ok := s.apps[pair(candidateID, jobID)]
	if !ok || app.Status != expected || app.Version != expectedVersion {
		return false, nil
	}
	app.Status = newStatus
	app.Interview = interview
	app.Version++
	app.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *memStore) ListConfirmedByJob(ctx context.Context, jobID string) ([]*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Application
	for _, app := range s.apps {
		if app.JobID == jobID && app.Status != models.StatusAppliedPending {
			copied := *app
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memStore) ListConfirmedByCandidate(ctx context.Context, candidateID string) ([]*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Application
	for _, app := range s.apps {
		if app.CandidateID == candidateID && app.Status != models.StatusAppliedPending {
			copied := *app
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memStore) seed(candidateID, jobID string, status models.ApplicationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[pair(candidateID, jobID)] = &models.Application{
		ID:          pair(candidateID, jobID),
		CandidateID: candidateID,
		JobID:       jobID,
		Status:      status,
		Version:     1,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func (s *memStore) seedWithInterview(candidateID, jobID string, status models.ApplicationStatus, iv *models.Interview) {
	s.seed(candidateID, jobID, status)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[pair(candidateID, jobID)].Interview = iv
}

func newTestMachine(t *testing.T) (*StateMachine, *memStore) {
	store := newMemStore()
	return NewStateMachine(store, logger.NewTestLogger(t)), store
}

func futureInterview() *models.Interview {
	return &models.Interview{
		ScheduledAt: time.Now().UTC().Add(48 * time.Hour),
		Mode:        models.InterviewOnline,
	}
}

func TestStateMachine_Apply(t *testing.T) {
	machine, store := newTestMachine(t)
	store.seed("cand-1", "job-1", models.StatusAppliedPending)

	app, err := machine.Apply(context.Background(), "cand-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplied, app.Status)
	assert.Equal(t, 2, app.Version)
}

func TestStateMachine_ApplyTwice(t *testing.T) {
	machine, store := newTestMachine(t)
	store.seed("cand-1", "job-1", models.StatusApplied)

	_, err := machine.Apply(context.Background(), "cand-1", "job-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidTransition))
}

func TestStateMachine_ApplyWithoutScore(t *testing.T) {
	machine, _ := newTestMachine(t)

	_, err := machine.Apply(context.Background(), "cand-1", "job-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestStateMachine_TransitionLegality(t *testing.T) {
	all := []models.ApplicationStatus{
		models.StatusAppliedPending, models.StatusApplied, models.StatusToReview,
		models.StatusShortlisted, models.StatusToInterview, models.StatusInterviewed,
		models.StatusRejected, models.StatusSelected, models.StatusHired,
	}

	for _, from := range all {
		for _, to := range all {
			from, to := from, to
			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				machine, store := newTestMachine(t)
				store.seed("cand-1", "job-1", from)

				app, err := machine.Transition(context.Background(), "cand-1", "job-1", to, nil)

				switch {
				case to == models.StatusAppliedPending:
					assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
				case from == models.StatusAppliedPending:
					assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
				case CanTransition(from, to):
					require.NoError(t, err)
					assert.Equal(t, to, app.Status)
				default:
					assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidTransition))
				}
			})
		}
	}
}

func TestStateMachine_PendingOnlyLeavesViaApply(t *testing.T) {
	machine, store := newTestMachine(t)
	store.seed("cand-1", "job-1", models.StatusAppliedPending)

	// Transition must not confirm a pending record, and the error must
	// read like the record does not exist.
	_, err := machine.Transition(context.Background(), "cand-1", "job-1", models.StatusApplied, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	_, err = machine.SetInterview(context.Background(), "cand-1", "job-1", futureInterview())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	app, err := machine.Apply(context.Background(), "cand-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplied, app.Status)
}

func TestStateMachine_TerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []models.ApplicationStatus{
		models.StatusRejected, models.StatusSelected, models.StatusHired,
	} {
		machine, store := newTestMachine(t)
		store.seed("cand-1", "job-1", terminal)

		_, err := machine.Transition(context.Background(), "cand-1", "job-1", models.StatusToReview, nil)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidTransition),
			"terminal status %s accepted a transition", terminal)
	}
}

func TestStateMachine_InterviewOnShortlist(t *testing.T) {
	machine, store := newTestMachine(t)
	store.seed("cand-1", "job-1", models.StatusToReview)
	iv := futureInterview()

	app, err := machine.Transition(context.Background(), "cand-1", "job-1", models.StatusShortlisted, iv)
	require.NoError(t, err)
	require.NotNil(t, app.Interview)
	assert.Equal(t, models.InterviewOnline, app.Interview.Mode)
}

func TestStateMachine_InterviewRejectedOutsideWindow(t *testing.T) {
	machine, store := newTestMachine(t)
	store.seed("cand-1", "job-1", models.StatusApplied)

	_, err := machine.Transition(context.Background(), "cand-1", "job-1", models.StatusToReview, futureInterview())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidState))
}

func TestStateMachine_InterviewCarriedForward(t *testing.T) {
	machine, store := newTestMachine(t)
	iv := futureInterview()
	store.seedWithInterview("cand-1", "job-1", models.StatusShortlisted, iv)

	// shortlisted -> to_interview without a payload keeps the schedule.
	app, err := machine.Transition(context.Background(), "cand-1", "job-1", models.StatusToInterview, nil)
	require.NoError(t, err)
	require.NotNil(t, app.Interview)
	assert.Equal(t, iv.Mode, app.Interview.Mode)

	// to_interview -> interviewed clears it.
	app, err = machine.Transition(context.Background(), "cand-1", "job-1", models.StatusInterviewed, nil)
	require.NoError(t, err)
	assert.Nil(t, app.Interview)
}

func TestStateMachine_SetInterview(t *testing.T) {
	machine, store := newTestMachine(t)
	store.seed("cand-1", "job-1", models.StatusShortlisted)

	app, err := machine.SetInterview(context.Background(), "cand-1", "job-1", futureInterview())
	require.NoError(t, err)
	assert.Equal(t, models.StatusShortlisted, app.Status)
	assert.NotNil(t, app.Interview)
}

func TestStateMachine_SetInterviewWrongStatus(t *testing.T) {
	machine, store := newTestMachine(t)
	store.seed("cand-1", "job-1", models.StatusApplied)

	_, err := machine.SetInterview(context.Background(), "cand-1", "job-1", futureInterview())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidState))
}

func TestStateMachine_InterviewValidation(t *testing.T) {
	tests := []struct {
		name      string
		interview *models.Interview
	}{
		{"zero time", &models.Interview{Mode: models.InterviewOnline}},
		{"far in the past", &models.Interview{
			ScheduledAt: time.Now().UTC().Add(-48 * time.Hour),
			Mode:        models.InterviewOnline,
		}},
		{"unknown mode", &models.Interview{
			ScheduledAt: time.Now().UTC().Add(24 * time.Hour),
			Mode:        "carrier_pigeon",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine, store := newTestMachine(t)
			store.seed("cand-1", "job-1", models.StatusShortlisted)

			_, err := machine.SetInterview(context.Background(), "cand-1", "job-1", tt.interview)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
		})
	}
}

func TestStateMachine_ConflictOnLostRace(t *testing.T) {
	machine, store := newTestMachine(t)
	store.seed("cand-1", "job-1", models.StatusApplied)
	store.forceSwapMiss = true

	_, err := machine.Transition(context.Background(), "cand-1", "job-1", models.StatusToReview, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))

	// The record was untouched; a retry with fresh state succeeds.
	app, err := machine.Transition(context.Background(), "cand-1", "job-1", models.StatusToReview, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusToReview, app.Status)
}

func TestStateMachine_ConcurrentTransitionsOneWinner(t *testing.T) {
	machine, store := newTestMachine(t)
	store.seed("cand-1", "job-1", models.StatusApplied)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = machine.Transition(context.Background(), "cand-1", "job-1", models.StatusToReview, nil)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict) ||
				apperrors.IsCode(err, apperrors.ErrCodeInvalidTransition))
		}
	}
	assert.Equal(t, 1, wins)

	app, err := store.Get(context.Background(), "cand-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusToReview, app.Status)
	assert.Equal(t, 2, app.Version)
}
