// internal/workflow/store.go
package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"match-engine/internal/common/logger"
	"match-engine/internal/models"

	"github.com/google/uuid"
)

// ApplicationStore is the persistence contract for application records.
// Records are never hard-deleted; terminal applications stay for audit
// and ranking history.
type ApplicationStore interface {
	// Get returns the record for the pair, or (nil, nil) when none exists.
	Get(ctx context.Context, candidateID, jobID string) (*models.Application, error)

	// AttachScore updates the pair's score snapshot, creating the record
	// with status applied_pending when it does not exist yet.
	AttachScore(ctx context.Context, candidateID, jobID string, bundle *models.ScoreBundle) error

	// UpdateStatusCAS atomically moves the record from (expected,
	// expectedVersion) to newStatus, writing the interview payload as
	// given (nil clears it). Returns false when the record no longer
	// matches the expectation.
	UpdateStatusCAS(ctx context.Context, candidateID, jobID string,
		expected models.ApplicationStatus, expectedVersion int,
		newStatus models.ApplicationStatus, interview *models.Interview) (bool, error)

	// ListConfirmedByJob returns every confirmed (non-pending) record for
	// the job.
	ListConfirmedByJob(ctx context.Context, jobID string) ([]*models.Application, error)

	// ListConfirmedByCandidate returns every confirmed record owned by
	// the candidate.
	ListConfirmedByCandidate(ctx context.Context, candidateID string) ([]*models.Application, error)
}

const applicationColumns = `id, candidate_id, job_id, status, interview_at, interview_mode,
		final_score, skill_score, skills_match, version, created_at, updated_at`

// PostgresStore implements ApplicationStore on the applications table.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "application-store"}),
	}
}

func (s *PostgresStore) Get(ctx context.Context, candidateID, jobID string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications WHERE candidate_id = $1 AND job_id = $2`, candidateID, jobID)

	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) AttachScore(ctx context.Context, candidateID, jobID string, bundle *models.ScoreBundle) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, candidate_id, job_id, status,
			final_score, skill_score, skills_match,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $8)
		ON CONFLICT (candidate_id, job_id) DO UPDATE SET
			final_score = EXCLUDED.final_score,
			skill_score = EXCLUDED.skill_score,
			skills_match = EXCLUDED.skills_match,
			updated_at = EXCLUDED.updated_at`,
		uuid.New().String(),
		candidateID,
		jobID,
		string(models.StatusAppliedPending),
		bundle.FinalScore,
		bundle.SkillScore,
		bundle.SkillsMatch,
		now,
	)
	if err != nil {
		return fmt.Errorf("attach score: %w", err)
	}

	s.logger.Debug("score snapshot attached", map[string]interface{}{
		"candidateId": candidateID,
		"jobId":       jobID,
		"finalScore":  bundle.FinalScore,
	})
	return nil
}

func (s *PostgresStore) UpdateStatusCAS(ctx context.Context, candidateID, jobID string,
	expected models.ApplicationStatus, expectedVersion int,
	newStatus models.ApplicationStatus, interview *models.Interview) (bool, error) {

	var interviewAt *time.Time
	var interviewMode *string
	if interview != nil {
		at := interview.ScheduledAt.UTC()
		mode := string(interview.Mode)
		interviewAt = &at
		interviewMode = &mode
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET status = $1, interview_at = $2, interview_mode = $3,
		    version = version + 1, updated_at = $4
		WHERE candidate_id = $5 AND job_id = $6 AND status = $7 AND version = $8`,
		string(newStatus),
		interviewAt,
		interviewMode,
		time.Now().UTC(),
		candidateID,
		jobID,
		string(expected),
		expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update status rows: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) ListConfirmedByJob(ctx context.Context, jobID string) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE job_id = $1 AND status <> $2
		ORDER BY created_at ASC`, jobID, string(models.StatusAppliedPending))
	if err != nil {
		return nil, fmt.Errorf("list by job: %w", err)
	}
	defer rows.Close()

	return collectApplications(rows)
}

func (s *PostgresStore) ListConfirmedByCandidate(ctx context.Context, candidateID string) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE candidate_id = $1 AND status <> $2
		ORDER BY created_at DESC`, candidateID, string(models.StatusAppliedPending))
	if err != nil {
		return nil, fmt.Errorf("list by candidate: %w", err)
	}
	defer rows.Close()

	return collectApplications(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var app models.Application
	var status string
	var interviewAt sql.NullTime
	var interviewMode sql.NullString
	var finalScore, skillScore, skillsMatch sql.NullFloat64

	err := row.Scan(
		&app.ID, &app.CandidateID, &app.JobID, &status,
		&interviewAt, &interviewMode,
		&finalScore, &skillScore, &skillsMatch,
		&app.Version, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Status = models.ApplicationStatus(status)
	if interviewAt.Valid && interviewMode.Valid {
		app.Interview = &models.Interview{
			ScheduledAt: interviewAt.Time,
			Mode:        models.InterviewMode(interviewMode.String),
		}
	}
	if finalScore.Valid {
		app.FinalScore = &finalScore.Float64
	}
	if skillScore.Valid {
		app.SkillScore = &skillScore.Float64
	}
	if skillsMatch.Valid {
		app.SkillsMatch = &skillsMatch.Float64
	}

	return &app, nil
}

func collectApplications(rows *sql.Rows) ([]*models.Application, error) {
	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return apps, nil
}
