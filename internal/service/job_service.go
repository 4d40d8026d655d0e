package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/airesearcher/frontend/internal/model"
)

const (
	TaskTypeResearch = "research:process"
	QueueResearch    = "research"

	jobTTL = 24 * time.Hour
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotCompleted = errors.New("job not completed")
)

// JobService keeps research job records for the development backend
type JobService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
}

func NewJobService(redisClient *redis.Client, asynqClient *asynq.Client) *JobService {
	return &JobService{
		redis:       redisClient,
		asynqClient: asynqClient,
	}
}

// researchTaskPayload is what the worker receives
type researchTaskPayload struct {
	JobID   string          `json:"jobId"`
	Request json.RawMessage `json:"request"`
}

// StartJob records a pending job and queues it for the worker
func (s *JobService) StartJob(ctx context.Context, req *model.ResearchStartRequest) (*model.ResearchStartResponse, error) {
	if req.ModelPreference == "" {
		req.ModelPreference = model.DefaultModelPreference
	}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	job := &model.Job{
		ID:             uuid.New().String(),
		Status:         model.JobStatusPending,
		CurrentStage:   string(model.StageLiteratureCollection),
		Progress:       0,
		Request:        reqBytes,
		Logs:           []string{},
		StructuredLogs: []model.LogEntry{},
		CreatedAt:      time.Now(),
	}

	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newResearchTask(job.ID, reqBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.asynqClient.EnqueueContext(ctx, task,
		asynq.Queue(QueueResearch),
		asynq.MaxRetry(0),
		asynq.Retention(jobTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.ResearchStartResponse{
		JobID:   job.ID,
		Message: "Research pipeline initiated",
	}, nil
}

// GetJob loads the full job record
func (s *JobService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// GetStatus returns the snapshot served by GET /api/research/{id}/status
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusSnapshot, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	snap := &model.JobStatusSnapshot{
		JobID:        job.ID,
		Status:       job.Status,
		CurrentStage: job.CurrentStage,
		Progress:     job.Progress,
	}
	if job.Error != nil {
		snap.Error = *job.Error
		snap.Details = map[string]interface{}{"error": *job.Error}
	}
	return snap, nil
}

// GetLogs returns the log lines after the first lastSeen ones
func (s *JobService) GetLogs(ctx context.Context, jobID string, lastSeen int) (*model.JobLogsResponse, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if lastSeen < 0 {
		lastSeen = 0
	}

	newLogs := tail(job.Logs, lastSeen)
	newStructured := tail(job.StructuredLogs, lastSeen)

	return &model.JobLogsResponse{
		Logs:           newLogs,
		StructuredLogs: newStructured,
		TotalCount:     len(job.Logs),
		NewCount:       len(newLogs),
		JobStatus:      job.Status,
		JobStage:       job.CurrentStage,
		JobProgress:    job.Progress,
	}, nil
}

// GetResults returns the paper and implementation of a completed job
func (s *JobService) GetResults(ctx context.Context, jobID string) (*model.JobResult, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted {
		return nil, ErrJobNotCompleted
	}

	var result model.JobResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// UpdateStage moves a job to stage (called by worker)
func (s *JobService) UpdateStage(ctx context.Context, jobID string, stage model.Stage, progress float64) error {
	return s.mutate(ctx, jobID, func(job *model.Job) {
		if job.Status == model.JobStatusPending {
			now := time.Now()
			job.StartedAt = &now
		}
		job.Status = model.JobStatusRunning
		job.CurrentStage = string(stage)
		job.Progress = progress
	})
}

// AppendLog adds a line to both log lists. The raw list gets the entry
// encoded as a JSON string.
func (s *JobService) AppendLog(ctx context.Context, jobID, level, message string) error {
	entry := model.StructuredLog(level, message, time.Now().UTC().Format(time.RFC3339))
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return s.mutate(ctx, jobID, func(job *model.Job) {
		job.Logs = append(job.Logs, string(line))
		job.StructuredLogs = append(job.StructuredLogs, entry)
	})
}

// AppendRawLog adds a plain text line (called by worker)
func (s *JobService) AppendRawLog(ctx context.Context, jobID, line string) error {
	return s.mutate(ctx, jobID, func(job *model.Job) {
		job.Logs = append(job.Logs, line)
		job.StructuredLogs = append(job.StructuredLogs, model.RawLog(line))
	})
}

// CompleteJob marks job as completed (called by worker)
func (s *JobService) CompleteJob(ctx context.Context, jobID string, result *model.JobResult) error {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.mutate(ctx, jobID, func(job *model.Job) {
		now := time.Now()
		job.Status = model.JobStatusCompleted
		job.CurrentStage = "completed"
		job.Progress = 1
		job.Result = resultBytes
		job.CompletedAt = &now
	})
}

// FailJob marks job as failed (called by worker)
func (s *JobService) FailJob(ctx context.Context, jobID, errMsg string) error {
	return s.mutate(ctx, jobID, func(job *model.Job) {
		now := time.Now()
		job.Status = model.JobStatusError
		job.CurrentStage = "error"
		job.Progress = 0
		job.Error = &errMsg
		job.CompletedAt = &now
	})
}

// Ping checks the Redis connection
func (s *JobService) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// Helper methods

const maxMutateRetries = 5

// mutate applies fn to the stored job inside a WATCH transaction, retrying
// when another writer got in between.
func (s *JobService) mutate(ctx context.Context, jobID string, fn func(*model.Job)) error {
	var err error
	for i := 0; i < maxMutateRetries; i++ {
		err = s.mutateOnce(ctx, jobID, fn)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (s *JobService) mutateOnce(ctx context.Context, jobID string, fn func(*model.Job)) error {
	key := jobKey(jobID)
	return s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrJobNotFound
			}
			return err
		}

		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}
		fn(&job)

		updated, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, jobTTL)
			return nil
		})
		return err
	}, key)
}

func (s *JobService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

func jobKey(jobID string) string {
	return fmt.Sprintf("research:job:%s", jobID)
}

func tail[T any](items []T, from int) []T {
	if from >= len(items) {
		return []T{}
	}
	return items[from:]
}

func newResearchTask(jobID string, request []byte) (*asynq.Task, error) {
	data, err := json.Marshal(researchTaskPayload{JobID: jobID, Request: request})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeResearch, data), nil
}

// ParseResearchTask decodes a task queued by StartJob
func ParseResearchTask(t *asynq.Task) (string, *model.ResearchStartRequest, error) {
	var payload researchTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	var req model.ResearchStartRequest
	if err := json.Unmarshal(payload.Request, &req); err != nil {
		return payload.JobID, nil, fmt.Errorf("failed to unmarshal research request: %w", err)
	}
	return payload.JobID, &req, nil
}
