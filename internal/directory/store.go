// internal/directory/store.go

// Package directory provides read-only access to candidate resumes and
// job postings. Both tables are owned by the excluded CRUD subsystems;
// this package never writes to them.
package directory

import (
	"context"
	"database/sql"
	"encoding/json"

	"match-engine/internal/common/logger"
	"match-engine/internal/models"
)

type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "directory"}),
	}
}

// GetResume returns the candidate's current resume, or (nil, nil) if the
// candidate has none.
func (s *Store) GetResume(ctx context.Context, candidateID string) (*models.CandidateResume, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT candidate_id, resume_text, updated_at
		FROM resumes WHERE candidate_id = $1`, candidateID)

	var resume models.CandidateResume
	err := row.Scan(&resume.CandidateID, &resume.Text, &resume.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resume, nil
}

// GetJob returns the posting, or (nil, nil) if no such job exists.
func (s *Store) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, title, description, skills, updated_at
		FROM jobs WHERE id = $1`, jobID)

	var job models.Job
	var skills []byte
	err := row.Scan(&job.ID, &job.OrgID, &job.Title, &job.Description, &skills, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(skills, &job.Skills); err != nil {
		s.logger.Warn("dropping corrupt skills payload", map[string]interface{}{
			"jobId": jobID,
			"error": err.Error(),
		})
		job.Skills = []string{}
	}

	return &job, nil
}
