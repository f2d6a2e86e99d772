// internal/models/application.go
package models

import "time"

// ApplicationStatus is the lifecycle state of a candidate's application to a job.
// There is no stored "none" state: a pair with no row has never been scored.
type ApplicationStatus string

const (
	StatusAppliedPending ApplicationStatus = "applied_pending"
	StatusApplied        ApplicationStatus = "applied"
	StatusToReview       ApplicationStatus = "to_review"
	StatusShortlisted    ApplicationStatus = "shortlisted"
	StatusToInterview    ApplicationStatus = "to_interview"
	StatusInterviewed    ApplicationStatus = "interviewed"
	StatusRejected       ApplicationStatus = "rejected"
	StatusSelected       ApplicationStatus = "selected"
	StatusHired          ApplicationStatus = "hired"
)

// IsTerminal reports whether no further transition is accepted from s.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusSelected || s == StatusHired
}

// IsValid reports whether s is one of the known statuses.
func (s ApplicationStatus) IsValid() bool {
	switch s {
	case StatusAppliedPending, StatusApplied, StatusToReview, StatusShortlisted,
		StatusToInterview, StatusInterviewed, StatusRejected, StatusSelected, StatusHired:
		return true
	}
	return false
}

// InterviewMode is how a scheduled interview is conducted.
type InterviewMode string

const (
	InterviewOnline     InterviewMode = "online"
	InterviewInPerson   InterviewMode = "in_person"
	InterviewTelephonic InterviewMode = "telephonic"
)

// IsValid reports whether m is one of the known modes.
func (m InterviewMode) IsValid() bool {
	return m == InterviewOnline || m == InterviewInPerson || m == InterviewTelephonic
}

// Interview is the optional scheduling payload attached while the
// application is in shortlisted or to_interview.
type Interview struct {
	ScheduledAt time.Time     `json:"scheduledAt"`
	Mode        InterviewMode `json:"mode"`
}

// Application is one candidate's relationship to one job. The natural key
// is (CandidateID, JobID); ID is a storage surrogate.
type Application struct {
	ID          string            `json:"id"`
	CandidateID string            `json:"candidateId"`
	JobID       string            `json:"jobId"`
	Status      ApplicationStatus `json:"status"`
	Interview   *Interview        `json:"interview,omitempty"`

	// Score snapshot, denormalized at compute time so listings sort
	// without a cache round-trip per row. Nil until first scoring.
	FinalScore  *float64 `json:"finalScore,omitempty"`
	SkillScore  *float64 `json:"skillScore,omitempty"`
	SkillsMatch *float64 `json:"skillsMatch,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Confirmed reports whether the candidate has confirmed applying.
// Pending rows exist only to attribute a computed score.
func (a *Application) Confirmed() bool {
	return a.Status != StatusAppliedPending
}
