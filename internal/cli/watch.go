package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/airesearcher/frontend/internal/model"
	"github.com/airesearcher/frontend/internal/research"
	"github.com/airesearcher/frontend/internal/store"
)

// WatchCmd follows a job until it completes or fails.
var WatchCmd = &cobra.Command{
	Use:   "watch [job-id]",
	Short: "Follow a research job until it finishes",
	Long: "Poll a research job and print stage changes and new log lines as they arrive. " +
		"When the job completes the generated paper and code are printed.\n\n" +
		"Without a job id the most recently started job is watched. Interrupting the " +
		"command stops watching but leaves the job running on the backend.",
	Example: `  # Watch the last job started from this machine
  researcher watch

  # Watch a specific job, polling every two seconds
  POLL_INTERVAL=2s researcher watch 6f1c0c1e-0d55-4c4b-9a59-1f9d1b1f5e0a`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: validateWatch,
	RunE:    runWatch,
}

func validateWatch(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	jobID, err := jobIDFromArgs(cmd, args)
	if err != nil {
		return err
	}
	return watchJob(cmd.Context(), cmd, jobID)
}

// watchJob observes jobID until it reaches a terminal status or the process
// is interrupted.
func watchJob(ctx context.Context, cmd *cobra.Command, jobID string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	st := newStyles(out)
	printer := newWatchPrinter(out, st)

	// latest state wins; the printer runs on this goroutine only
	updates := make(chan research.ViewState, 1)
	unregister := app.session.OnChange(func(view research.ViewState) {
		for {
			select {
			case updates <- view:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unregister()

	fmt.Fprintf(out, "%s %s\n", st.Label.Render("Watching research job"), st.Highlight.Render(jobID))
	sub := app.session.Observe(jobID)

	for {
		select {
		case view := <-updates:
			printer.update(view)
		case <-sub.Done():
			final := app.session.State()
			printer.update(final)
			printer.finish(final)
			if final.Status == model.ViewStatusError {
				return fmt.Errorf("research job %s failed; %s", jobID, final.ErrorMsg)
			}
			return nil
		case <-ctx.Done():
			sub.Cancel()
			printer.finish(app.session.State())
			return nil
		}
	}
}

// jobIDFromArgs returns the id given on the command line, or the persisted
// id of the last started job.
func jobIDFromArgs(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}

	jobID, err := app.session.LastJobID(cmd.Context())
	if errors.Is(err, store.ErrNotFound) || (err == nil && jobID == "") {
		return "", fmt.Errorf("no job id given and no research job was started yet")
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last job id; %w", err)
	}
	return jobID, nil
}
