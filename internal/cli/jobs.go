package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/airesearcher/frontend/internal/model"
	"github.com/airesearcher/frontend/internal/store"
)

// Output formats for the results command.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// Flag variables for the one-shot job commands.
var (
	resultsFormat string
	pdfFile       string
)

// StatusCmd prints the current status of a job.
var StatusCmd = &cobra.Command{
	Use:     "status [job-id]",
	Short:   "Show the status of a research job",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: silenceUsage,
	RunE:    runStatus,
}

// LogsCmd prints every log line of a job.
var LogsCmd = &cobra.Command{
	Use:     "logs [job-id]",
	Short:   "Show the logs of a research job",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: silenceUsage,
	RunE:    runLogs,
}

// ResultsCmd prints the paper and code of a completed job.
var ResultsCmd = &cobra.Command{
	Use:   "results [job-id]",
	Short: "Show the paper and code of a completed research job",
	Example: `  # Human readable
  researcher results

  # Machine readable
  researcher results 6f1c0c1e-0d55-4c4b-9a59-1f9d1b1f5e0a -o json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: validateResults,
	RunE:    runResults,
}

// PDFCmd downloads the rendered paper.
var PDFCmd = &cobra.Command{
	Use:     "pdf [job-id]",
	Short:   "Download the paper of a completed research job as PDF",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: silenceUsage,
	RunE:    runPDF,
}

// LastCmd prints the id of the most recently started job.
var LastCmd = &cobra.Command{
	Use:     "last",
	Short:   "Print the id of the last started research job",
	Args:    cobra.NoArgs,
	PreRunE: silenceUsage,
	RunE:    runLast,
}

func init() {
	ResultsCmd.Flags().StringVarP(&resultsFormat, "output", "o", formatText, "Output format: text, json or yaml")
	PDFCmd.Flags().StringVarP(&pdfFile, "file", "f", "", "Destination file (default: name suggested by the backend)")
}

func silenceUsage(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func validateResults(cmd *cobra.Command, args []string) error {
	switch resultsFormat {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("invalid output format %q; must be text, json or yaml", resultsFormat)
	}

	cmd.SilenceUsage = true
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	jobID, err := jobIDFromArgs(cmd, args)
	if err != nil {
		return err
	}

	snap, err := app.backend.GetStatus(cmd.Context(), jobID)
	if err != nil {
		return fmt.Errorf("failed to get status; %w", err)
	}

	out := cmd.OutOrStdout()
	renderStatus(out, newStyles(out), jobID, snap)
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	jobID, err := jobIDFromArgs(cmd, args)
	if err != nil {
		return err
	}

	logs, err := app.backend.GetLogs(cmd.Context(), jobID)
	if err != nil {
		return fmt.Errorf("failed to get logs; %w", err)
	}

	out := cmd.OutOrStdout()
	renderLogs(out, newStyles(out), logs)
	return nil
}

func runResults(cmd *cobra.Command, args []string) error {
	jobID, err := jobIDFromArgs(cmd, args)
	if err != nil {
		return err
	}

	res, err := app.backend.GetResults(cmd.Context(), jobID)
	if err != nil {
		return fmt.Errorf("failed to get results; %w", err)
	}

	out := cmd.OutOrStdout()
	return writeResults(out, resultsFormat, res)
}

func writeResults(out io.Writer, format string, res *model.JobResult) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to encode results; %w", err)
		}
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to encode results; %w", err)
		}
		return enc.Close()
	default:
		renderResults(out, newStyles(out), res)
	}
	return nil
}

func runPDF(cmd *cobra.Command, args []string) error {
	jobID, err := jobIDFromArgs(cmd, args)
	if err != nil {
		return err
	}

	doc, err := app.backend.DownloadPDF(cmd.Context(), jobID)
	if err != nil {
		return fmt.Errorf("failed to download pdf; %w", err)
	}

	path := pdfFile
	if path == "" && doc.Filename() != "" {
		path = filepath.Base(doc.Filename())
	}
	if path == "" {
		path = fmt.Sprintf("research-paper-%s.pdf", jobID)
	}

	if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s; %w", path, err)
	}

	out := cmd.OutOrStdout()
	st := newStyles(out)
	fmt.Fprintf(out, "%s %s %s\n", st.Success.Render("Saved"), path, st.Muted.Render(fmt.Sprintf("(%d bytes)", len(doc.Data))))
	return nil
}

func runLast(cmd *cobra.Command, args []string) error {
	jobID, err := app.session.LastJobID(cmd.Context())
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no research job was started yet")
	}
	if err != nil {
		return fmt.Errorf("failed to read last job id; %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), jobID)
	return nil
}

