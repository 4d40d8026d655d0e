package model

import (
	"encoding/json"
	"time"
)

// Job is the dev backend's record of a research job
type Job struct {
	ID             string          `json:"id"`
	Status         JobStatus       `json:"status"`
	CurrentStage   string          `json:"current_stage"`
	Progress       float64         `json:"progress"`
	Error          *string         `json:"error,omitempty"`
	Request        json.RawMessage `json:"request"`
	Result         json.RawMessage `json:"result,omitempty"`
	Logs           []string        `json:"logs"`
	StructuredLogs []LogEntry      `json:"structured_logs"`
	CreatedAt      time.Time       `json:"created_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// JobLogsResponse is the dev backend's GET /api/research/{id}/logs payload
type JobLogsResponse struct {
	Logs           []string   `json:"logs"`
	StructuredLogs []LogEntry `json:"structured_logs"`
	TotalCount     int        `json:"total_count"`
	NewCount       int        `json:"new_count"`
	JobStatus      JobStatus  `json:"job_status"`
	JobStage       string     `json:"job_stage"`
	JobProgress    float64    `json:"job_progress"`
}
