package model

// Job status as reported by the research backend
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusError     JobStatus = "error"
)

// IsTerminal reports whether polling for a job in this status must stop.
// Matching is exact: "Completed" or "done" are not terminal.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s.IsFailure()
}

// IsFailure reports whether the backend gave up on the job.
func (s JobStatus) IsFailure() bool {
	return s == JobStatusFailed || s == JobStatusError
}

// View status derived from the last applied snapshot
type ViewStatus string

const (
	ViewStatusIdle    ViewStatus = "idle"
	ViewStatusLoading ViewStatus = "loading"
	ViewStatusSuccess ViewStatus = "success"
	ViewStatusError   ViewStatus = "error"
)

// Model preferences accepted by the backend
type ModelPreference string

const (
	ModelGeminiFlash ModelPreference = "gemini-1.5-flash"
	ModelGeminiPro   ModelPreference = "gemini-1.5-pro"
)

const DefaultModelPreference = ModelGeminiFlash

// Research pipeline stages
type Stage string

const (
	StageLiteratureCollection Stage = "literature_collection"
	StageGapAnalysis          Stage = "gap_analysis"
	StageAlgorithmDesign      Stage = "algorithm_design"
	StageImplementation       Stage = "implementation"
	StageEvaluation           Stage = "evaluation"
	StageRefinement           Stage = "refinement"
	StagePaperWriting         Stage = "paper_writing"
)

var Stages = []Stage{
	StageLiteratureCollection, StageGapAnalysis, StageAlgorithmDesign,
	StageImplementation, StageEvaluation, StageRefinement, StagePaperWriting,
}

var stageLabels = map[Stage]string{
	StageLiteratureCollection: "Literature Collection",
	StageGapAnalysis:          "Gap Analysis",
	StageAlgorithmDesign:      "Algorithm Design",
	StageImplementation:       "Implementation",
	StageEvaluation:           "Evaluation",
	StageRefinement:           "Refinement",
	StagePaperWriting:         "Paper Writing",
}

// Label returns the human readable stage name, or the raw value for stages
// the front-end does not know about.
func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

// StageIndex maps a backend stage name to its position in Stages, or -1.
func StageIndex(stage string) int {
	for i, s := range Stages {
		if string(s) == stage {
			return i
		}
	}
	return -1
}
