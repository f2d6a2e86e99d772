// internal/models/directory.go
package models

import "time"

// Job is a read-only projection of a posting owned by the listings subsystem.
type Job struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"orgId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Skills      []string  `json:"skills"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CandidateResume is a read-only projection of the candidate's current resume.
type CandidateResume struct {
	CandidateID string    `json:"candidateId"`
	Text        string    `json:"text"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Role identifies which side of the marketplace an actor is on.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleRecruiter Role = "recruiter"
)

// Actor is the authenticated caller identity, as claimed by the upstream
// auth layer. OrgID is set only for recruiters.
type Actor struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	OrgID string `json:"orgId,omitempty"`
}
