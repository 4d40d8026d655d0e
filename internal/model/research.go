package model

import "math"

// SeedPaper is one parsed line of the seed papers field
type SeedPaper struct {
	Title   string `json:"title" yaml:"title"`
	URL     string `json:"url" yaml:"url"`
	Authors string `json:"authors" yaml:"authors"`
	Year    *int   `json:"year,omitempty" yaml:"year,omitempty"`
}

// ResearchStartRequest is the body of POST /api/research/start
type ResearchStartRequest struct {
	Domain          string          `json:"domain" validate:"required"`
	ResearchFocus   string          `json:"research_focus,omitempty"`
	SeedPapers      []SeedPaper     `json:"seed_papers"`
	ModelPreference ModelPreference `json:"model_preference" validate:"omitempty,oneof=gemini-1.5-flash gemini-1.5-pro"`
}

// ResearchStartResponse is returned when a job was accepted
type ResearchStartResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message,omitempty"`
}

// JobStatusSnapshot is the payload of one status poll
type JobStatusSnapshot struct {
	JobID        string                 `json:"job_id,omitempty"`
	Status       JobStatus              `json:"status"`
	CurrentStage string                 `json:"current_stage"`
	Progress     float64                `json:"progress"`
	Error        string                 `json:"error,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// Percent is the progress as a whole percentage.
func (s *JobStatusSnapshot) Percent() int {
	return ProgressPercent(s.Progress)
}

// ProgressPercent converts a [0,1] progress to a percentage, rounding half
// up so 0.125 reads 13.
func ProgressPercent(progress float64) int {
	return int(math.Floor(progress*100 + 0.5))
}

// Paper is the generated paper
type Paper struct {
	Title      string `json:"title" yaml:"title"`
	Content    string `json:"content" yaml:"content"`
	References int    `json:"references" yaml:"references"`
}

// Implementation holds the generated code
type Implementation struct {
	Code        string `json:"code,omitempty" yaml:"code,omitempty"`
	RefinedCode string `json:"refined_code,omitempty" yaml:"refined_code,omitempty"`
}

// JobResult is the payload of GET /api/research/{id}/results
type JobResult struct {
	Paper          *Paper          `json:"paper,omitempty" yaml:"paper,omitempty"`
	Implementation *Implementation `json:"implementation,omitempty" yaml:"implementation,omitempty"`
}

// BestCode prefers the refined implementation over the first draft.
func (r *JobResult) BestCode() string {
	if r == nil || r.Implementation == nil {
		return ""
	}
	if r.Implementation.RefinedCode != "" {
		return r.Implementation.RefinedCode
	}
	return r.Implementation.Code
}
