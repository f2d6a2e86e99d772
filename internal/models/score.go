// internal/models/score.go
package models

import "time"

// HiringRecommendation is the recruiter-facing verdict in a score bundle.
type HiringRecommendation string

const (
	StronglyRecommend HiringRecommendation = "strongly_recommend"
	Recommend         HiringRecommendation = "recommend"
	Consider          HiringRecommendation = "consider"
	NotRecommended    HiringRecommendation = "not_recommended"
)

// IsValid reports whether r is one of the known recommendations.
func (r HiringRecommendation) IsValid() bool {
	switch r {
	case StronglyRecommend, Recommend, Consider, NotRecommended:
		return true
	}
	return false
}

// RecruiterInsights is the narrative part of a score bundle shown to recruiters.
type RecruiterInsights struct {
	KeyQualifications    []string             `json:"keyQualifications"`
	Concerns             []string             `json:"concerns"`
	HiringRecommendation HiringRecommendation `json:"hiringRecommendation"`
}

// SeekerInsights is the narrative part of a score bundle shown to the candidate.
type SeekerInsights struct {
	OverallFeedback        string   `json:"overallFeedback"`
	Strengths              []string `json:"strengths"`
	Gaps                   []string `json:"gaps"`
	ImprovementSuggestions []string `json:"improvementSuggestions"`
}

// ScoreBundle is the compatibility result for one (candidate, job) pair.
// All numeric fields are in [0,100]. SkillScore and SkillsMatch come from
// different matching passes and are kept distinct; consumers average them.
type ScoreBundle struct {
	FinalScore      float64 `json:"finalScore"`
	SkillScore      float64 `json:"skillScore"`
	SkillsMatch     float64 `json:"skillsMatch"`
	EducationScore  float64 `json:"educationScore"`
	ExperienceScore float64 `json:"experienceScore"`

	RecruiterInsights RecruiterInsights `json:"recruiterInsights"`
	SeekerInsights    SeekerInsights    `json:"seekerInsights"`

	ComputedAt time.Time `json:"computedAt"`
	Cached     bool      `json:"cached"`
}

// SkillAvg is the single derived skill measure used for ranking tie-breaks.
func (b *ScoreBundle) SkillAvg() float64 {
	return (b.SkillScore + b.SkillsMatch) / 2
}
