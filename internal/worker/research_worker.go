package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/airesearcher/frontend/internal/model"
	"github.com/airesearcher/frontend/internal/service"
)

// stageProgress is the progress reported when a stage begins
var stageProgress = map[model.Stage]float64{
	model.StageLiteratureCollection: 0.1,
	model.StageGapAnalysis:          0.2,
	model.StageAlgorithmDesign:      0.3,
	model.StageImplementation:       0.45,
	model.StageEvaluation:           0.6,
	model.StageRefinement:           0.7,
	model.StagePaperWriting:         0.8,
}

// ResearchWorker walks a job through the research stages with canned output
type ResearchWorker struct {
	jobService *service.JobService
	stageDelay time.Duration
	logger     *slog.Logger
}

// NewResearchWorker creates a new research worker
func NewResearchWorker(jobService *service.JobService, stageDelay time.Duration, logger *slog.Logger) *ResearchWorker {
	return &ResearchWorker{
		jobService: jobService,
		stageDelay: stageDelay,
		logger:     logger.With("component", "research_worker"),
	}
}

// ProcessTask handles research task processing
func (w *ResearchWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	jobID, req, err := service.ParseResearchTask(t)
	if err != nil {
		if jobID != "" {
			w.failJob(ctx, jobID, "Invalid payload")
		}
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("starting research job", "job_id", jobID, "domain", req.Domain, "model", req.ModelPreference)
	w.appendRaw(ctx, jobID, fmt.Sprintf("Research pipeline initiated for domain: %s", req.Domain))

	for i, stage := range model.Stages {
		select {
		case <-ctx.Done():
			w.logger.Warn("research job cancelled", "job_id", jobID, "stage", stage)
			w.failJob(ctx, jobID, "Research cancelled")
			return ctx.Err()
		default:
		}

		if err := w.jobService.UpdateStage(ctx, jobID, stage, stageProgress[stage]); err != nil {
			w.logger.Error("failed to update stage", "job_id", jobID, "stage", stage, "error", err)
		}
		w.appendLog(ctx, jobID, "INFO", fmt.Sprintf("Stage %d/%d: %s", i+1, len(model.Stages), stage.Label()))
		for _, line := range stageLines(stage, req) {
			w.appendLog(ctx, jobID, "INFO", line)
		}

		if err := sleep(ctx, w.stageDelay); err != nil {
			w.failJob(ctx, jobID, "Research cancelled")
			return err
		}
	}

	result := generateResult(req)
	w.appendLog(ctx, jobID, "INFO", fmt.Sprintf("Paper title: %s", result.Paper.Title))
	w.appendRaw(ctx, jobID, "Research pipeline completed successfully!")

	if err := w.jobService.CompleteJob(ctx, jobID, result); err != nil {
		w.failJob(ctx, jobID, "Failed to save result")
		return err
	}

	w.logger.Info("research job completed", "job_id", jobID)
	return nil
}

func (w *ResearchWorker) appendLog(ctx context.Context, jobID, level, msg string) {
	if err := w.jobService.AppendLog(ctx, jobID, level, msg); err != nil {
		w.logger.Error("failed to append log", "job_id", jobID, "error", err)
	}
}

func (w *ResearchWorker) appendRaw(ctx context.Context, jobID, line string) {
	if err := w.jobService.AppendRawLog(ctx, jobID, line); err != nil {
		w.logger.Error("failed to append log", "job_id", jobID, "error", err)
	}
}

func (w *ResearchWorker) failJob(ctx context.Context, jobID, errMsg string) {
	// the task context may already be done; the record still has to say so
	ctx = context.WithoutCancel(ctx)
	if err := w.jobService.AppendLog(ctx, jobID, "ERROR", errMsg); err != nil {
		w.logger.Error("failed to append log", "job_id", jobID, "error", err)
	}
	if err := w.jobService.FailJob(ctx, jobID, errMsg); err != nil {
		w.logger.Error("failed to mark job as failed", "job_id", jobID, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func stageLines(stage model.Stage, req *model.ResearchStartRequest) []string {
	switch stage {
	case model.StageLiteratureCollection:
		return []string{
			"Collecting literature and relevant papers...",
			fmt.Sprintf("Collected %d papers", len(req.SeedPapers)+10),
		}
	case model.StageGapAnalysis:
		return []string{"Analyzing research gaps...", "Identified 3 research gaps"}
	case model.StageAlgorithmDesign:
		return []string{"Designing algorithm..."}
	case model.StageImplementation:
		return []string{"Implementing algorithm..."}
	case model.StageEvaluation:
		return []string{"Evaluating algorithm..."}
	case model.StageRefinement:
		return []string{"Refining implementation..."}
	case model.StagePaperWriting:
		return []string{"Generating research paper..."}
	}
	return nil
}

func generateResult(req *model.ResearchStartRequest) *model.JobResult {
	title := fmt.Sprintf("Advances in %s", strings.TrimSpace(req.Domain))
	if req.ResearchFocus != "" {
		title = fmt.Sprintf("%s: A Study of %s", title, req.ResearchFocus)
	}

	var content strings.Builder
	fmt.Fprintf(&content, "# %s\n\n", title)
	content.WriteString("## Abstract\n\n")
	fmt.Fprintf(&content, "We study open problems in %s and propose a new method.\n\n", req.Domain)
	content.WriteString("## Related Work\n\n")
	for _, p := range req.SeedPapers {
		fmt.Fprintf(&content, "- %s", p.Title)
		if p.Year != nil {
			fmt.Fprintf(&content, " (%d)", *p.Year)
		}
		content.WriteString("\n")
	}
	content.WriteString("\n## Conclusion\n\nThe proposed method improves on the baselines.\n")

	code := fmt.Sprintf("def solve(data):\n    \"\"\"Baseline for %s.\"\"\"\n    return sorted(data)\n", req.Domain)
	refined := fmt.Sprintf("def solve(data):\n    \"\"\"Refined method for %s.\"\"\"\n    return sorted(set(data))\n", req.Domain)

	return &model.JobResult{
		Paper: &model.Paper{
			Title:      title,
			Content:    content.String(),
			References: len(req.SeedPapers) + 10,
		},
		Implementation: &model.Implementation{
			Code:        code,
			RefinedCode: refined,
		},
	}
}
