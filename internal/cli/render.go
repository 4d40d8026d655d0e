package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/airesearcher/frontend/internal/model"
	"github.com/airesearcher/frontend/internal/research"
)

// renderStepper prints the overall progress followed by one line per stage.
// Stages before the current one are done; a finished job has every stage done.
func renderStepper(w io.Writer, st styles, view research.ViewState) {
	fmt.Fprintf(w, "%s %d%%", st.Label.Render("Progress:"), model.ProgressPercent(view.Progress))
	if view.CurrentStage != "" {
		fmt.Fprintf(w, " %s", st.Muted.Render("("+model.Stage(view.CurrentStage).Label()+")"))
	}
	fmt.Fprintln(w)

	current := view.StageIndex
	if view.Status == model.ViewStatusSuccess {
		current = len(model.Stages)
	}

	for i, stage := range model.Stages {
		switch {
		case i < current:
			fmt.Fprintf(w, "  %s %s\n", st.Success.Render(stepDone), stage.Label())
		case i == current:
			fmt.Fprintf(w, "  %s %s %s\n", st.Highlight.Render(stepDone), st.Highlight.Render(stage.Label()), st.Muted.Render("(in progress)"))
		default:
			fmt.Fprintf(w, "  %s %s\n", st.Muted.Render(stepPending), st.Muted.Render(stage.Label()))
		}
	}
}

func renderLogEntry(w io.Writer, st styles, entry model.LogEntry) {
	var b strings.Builder
	if entry.Timestamp != "" {
		b.WriteString(st.Muted.Render(entry.Timestamp))
		b.WriteByte(' ')
	}
	if entry.Level != "" {
		b.WriteString(levelStyle(st, entry.Level).Render("[" + entry.Level + "]"))
		b.WriteByte(' ')
	}
	b.WriteString(entry.Message)
	fmt.Fprintln(w, b.String())
}

func renderLogs(w io.Writer, st styles, logs []model.LogEntry) {
	if len(logs) == 0 {
		fmt.Fprintln(w, st.Muted.Render("No logs yet."))
		return
	}
	for _, entry := range logs {
		renderLogEntry(w, st, entry)
	}
}

func levelStyle(st styles, level string) lipgloss.Style {
	switch strings.ToUpper(level) {
	case "ERROR", "CRITICAL":
		return st.Error
	case "WARN", "WARNING":
		return st.Warning
	case "DEBUG":
		return st.Muted
	default:
		return st.Success
	}
}

func renderStatus(w io.Writer, st styles, jobID string, snap *model.JobStatusSnapshot) {
	fmt.Fprintf(w, "%s %s\n", st.Label.Render("Job:"), jobID)
	fmt.Fprintf(w, "%s %s\n", st.Label.Render("Status:"), statusStyle(st, snap.Status).Render(string(snap.Status)))
	if snap.CurrentStage != "" {
		fmt.Fprintf(w, "%s %s\n", st.Label.Render("Stage:"), model.Stage(snap.CurrentStage).Label())
	}
	fmt.Fprintf(w, "%s %d%%\n", st.Label.Render("Progress:"), snap.Percent())
	if snap.Error != "" {
		fmt.Fprintf(w, "%s %s\n", st.Label.Render("Error:"), st.Error.Render(snap.Error))
	}
}

func statusStyle(st styles, status model.JobStatus) lipgloss.Style {
	switch {
	case status == model.JobStatusCompleted:
		return st.Success
	case status.IsFailure():
		return st.Error
	default:
		return st.Highlight
	}
}

// renderResults prints the paper and the best available implementation.
func renderResults(w io.Writer, st styles, res *model.JobResult) {
	if res == nil || (res.Paper == nil && res.Implementation == nil) {
		fmt.Fprintln(w, st.Muted.Render("No results available."))
		return
	}

	if p := res.Paper; p != nil {
		fmt.Fprintln(w, st.Title.Render(p.Title))
		fmt.Fprintf(w, "%s %d\n\n", st.Label.Render("References:"), p.References)
		fmt.Fprintln(w, strings.TrimRight(p.Content, "\n"))
	}

	if code := res.BestCode(); code != "" {
		if res.Paper != nil {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, st.Title.Render("Implementation"))
		for _, line := range strings.Split(strings.TrimRight(code, "\n"), "\n") {
			fmt.Fprintln(w, "    "+line)
		}
	}
}

// watchPrinter turns a stream of view states into incremental output: stage
// changes and newly seen log lines.
type watchPrinter struct {
	w         io.Writer
	st        styles
	stage     string
	logsShown int
}

func newWatchPrinter(w io.Writer, st styles) *watchPrinter {
	return &watchPrinter{w: w, st: st}
}

func (p *watchPrinter) update(view research.ViewState) {
	if view.CurrentStage != "" && view.CurrentStage != p.stage {
		p.stage = view.CurrentStage
		fmt.Fprintf(p.w, "%s %s %s\n",
			p.st.Highlight.Render("==>"),
			p.st.Label.Render(model.Stage(view.CurrentStage).Label()),
			p.st.Muted.Render(fmt.Sprintf("%d%%", model.ProgressPercent(view.Progress))),
		)
	}

	// the log list is replaced wholesale; a shorter list means the backend
	// started over
	if len(view.Logs) < p.logsShown {
		p.logsShown = 0
	}
	for _, entry := range view.Logs[p.logsShown:] {
		renderLogEntry(p.w, p.st, entry)
	}
	p.logsShown = len(view.Logs)
}

// finish prints the outcome of a job that stopped being observed.
func (p *watchPrinter) finish(view research.ViewState) {
	fmt.Fprintln(p.w)
	renderStepper(p.w, p.st, view)
	fmt.Fprintln(p.w)

	switch view.Status {
	case model.ViewStatusSuccess:
		fmt.Fprintln(p.w, p.st.Success.Render("Research completed."))
		if view.Results != nil {
			fmt.Fprintln(p.w)
			renderResults(p.w, p.st, view.Results)
		}
	case model.ViewStatusError:
		fmt.Fprintf(p.w, "%s %s\n", p.st.Error.Render("Research failed:"), view.ErrorMsg)
	default:
		fmt.Fprintln(p.w, p.st.Muted.Render("Stopped watching; the job continues on the backend."))
	}
}
