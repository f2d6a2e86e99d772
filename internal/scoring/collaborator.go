// internal/scoring/collaborator.go
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"match-engine/internal/common/logger"
	"match-engine/internal/models"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"
)

// Collaborator produces a raw score bundle from a resume and a job
// description. Implementations may be slow (seconds) and may fail; they
// must never return a fabricated zero score.
type Collaborator interface {
	Compute(ctx context.Context, resume *models.CandidateResume, job *models.Job) (*models.ScoreBundle, error)
}

// bundleSchema validates the collaborator's JSON output before it is
// trusted: required fields, 0-100 bounds, recommendation enum.
const bundleSchema = `{
	"type": "object",
	"required": ["skillScore", "skillsMatch", "educationScore", "experienceScore", "recruiterInsights", "seekerInsights"],
	"properties": {
		"finalScore":      {"type": "number", "minimum": 0, "maximum": 100},
		"skillScore":      {"type": "number", "minimum": 0, "maximum": 100},
		"skillsMatch":     {"type": "number", "minimum": 0, "maximum": 100},
		"educationScore":  {"type": "number", "minimum": 0, "maximum": 100},
		"experienceScore": {"type": "number", "minimum": 0, "maximum": 100},
		"recruiterInsights": {
			"type": "object",
			"required": ["keyQualifications", "concerns", "hiringRecommendation"],
			"properties": {
				"keyQualifications":    {"type": "array", "items": {"type": "string"}},
				"concerns":             {"type": "array", "items": {"type": "string"}},
				"hiringRecommendation": {"type": "string", "enum": ["strongly_recommend", "recommend", "consider", "not_recommended"]}
			}
		},
		"seekerInsights": {
			"type": "object",
			"required": ["overallFeedback", "strengths", "gaps", "improvementSuggestions"],
			"properties": {
				"overallFeedback":        {"type": "string"},
				"strengths":              {"type": "array", "items": {"type": "string"}},
				"gaps":                   {"type": "array", "items": {"type": "string"}},
				"improvementSuggestions": {"type": "array", "items": {"type": "string"}}
			}
		}
	}
}`

const systemPrompt = `You are a recruiting assistant that scores how well a resume fits a job posting.
Respond with a single JSON object and nothing else, with these fields:
skillScore, skillsMatch, educationScore, experienceScore (numbers 0-100),
optionally finalScore (number 0-100),
recruiterInsights {keyQualifications: [string], concerns: [string], hiringRecommendation: one of "strongly_recommend", "recommend", "consider", "not_recommended"},
seekerInsights {overallFeedback: string, strengths: [string], gaps: [string], improvementSuggestions: [string]}.
skillScore measures overlap of explicitly listed skills; skillsMatch measures skills inferred from experience. Keep them independent.`

// Weights for recomputing finalScore when the model omits it. Engine
// policy, not part of the bundle.
const (
	weightSkills     = 0.35
	weightEducation  = 0.25
	weightExperience = 0.40
)

// OpenAICollaborator scores resumes against jobs through a chat
// completion API with a JSON-only response format.
type OpenAICollaborator struct {
	client *openai.Client
	model  string
	schema *gojsonschema.Schema
	logger logger.Logger
}

func NewOpenAICollaborator(apiKey, baseURL, model string, log logger.Logger) (*OpenAICollaborator, error) {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(bundleSchema))
	if err != nil {
		return nil, fmt.Errorf("compile bundle schema: %w", err)
	}

	return &OpenAICollaborator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		schema: schema,
		logger: log.WithFields(map[string]interface{}{"component": "scoring-collaborator"}),
	}, nil
}

func (c *OpenAICollaborator) Compute(ctx context.Context, resume *models.CandidateResume, job *models.Job) (*models.ScoreBundle, error) {
	userPrompt := fmt.Sprintf(
		"JOB TITLE: %s\nREQUIRED SKILLS: %s\nJOB DESCRIPTION:\n%s\n\nRESUME:\n%s",
		job.Title, strings.Join(job.Skills, ", "), job.Description, resume.Text,
	)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	return c.parseBundle(raw)
}

// parseBundle validates and converts the raw model output. Validation
// failures are collaborator failures; the engine never caches them.
func (c *OpenAICollaborator) parseBundle(raw string) (*models.ScoreBundle, error) {
	result, err := c.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("bundle output not valid JSON: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("bundle output failed schema validation: %s", strings.Join(details, "; "))
	}

	var bundle models.ScoreBundle
	if err := json.Unmarshal([]byte(raw), &bundle); err != nil {
		return nil, fmt.Errorf("unmarshal bundle: %w", err)
	}

	// finalScore is optional in the schema. An explicit 0 is a real
	// composite and must survive, so key presence decides recomputation.
	var composite struct {
		FinalScore *float64 `json:"finalScore"`
	}
	if err := json.Unmarshal([]byte(raw), &composite); err != nil {
		return nil, fmt.Errorf("unmarshal bundle: %w", err)
	}

	normalizeBundle(&bundle, composite.FinalScore != nil)
	return &bundle, nil
}

// normalizeBundle clamps every dimension into [0,100] and fills in
// finalScore when the model omitted it.
func normalizeBundle(b *models.ScoreBundle, hasFinalScore bool) {
	b.SkillScore = clamp(b.SkillScore)
	b.SkillsMatch = clamp(b.SkillsMatch)
	b.EducationScore = clamp(b.EducationScore)
	b.ExperienceScore = clamp(b.ExperienceScore)

	if !hasFinalScore {
		b.FinalScore = b.SkillAvg()*weightSkills +
			b.EducationScore*weightEducation +
			b.ExperienceScore*weightExperience
	}
	b.FinalScore = clamp(b.FinalScore)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
