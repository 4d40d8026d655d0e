package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/airesearcher/frontend/internal/model"
	"github.com/airesearcher/frontend/internal/research"
)

// Flag variables for the start command.
var (
	startDomain         string
	startFocus          string
	startSeedPapers     string
	startSeedPapersFile string
	startModel          string
	startWatch          bool
)

// StartCmd submits a new research job.
var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a research job",
	Long: "Submit a research job to the backend and remember its id.\n\n" +
		"Seed papers are given one per line as \"Title | URL | Authors | Year\"; missing " +
		"fields are left empty and a year that is not a number is dropped.",
	Example: `  # Start a job and follow it until it finishes
  researcher start --domain "graph neural networks" --focus "over-smoothing" --watch

  # Seed papers from a file, using the larger model
  researcher start --domain nlp --seed-papers-file seeds.txt --model gemini-1.5-pro`,
	Args:    cobra.NoArgs,
	PreRunE: validateStart,
	RunE:    runStart,
}

func init() {
	StartCmd.Flags().StringVarP(&startDomain, "domain", "d", "", "Research domain (required)")
	StartCmd.Flags().StringVar(&startFocus, "focus", "", "Specific research question")
	StartCmd.Flags().StringVar(&startSeedPapers, "seed-papers", "", "Seed papers, one \"Title | URL | Authors | Year\" per line")
	StartCmd.Flags().StringVar(&startSeedPapersFile, "seed-papers-file", "", "Read seed papers from a file")
	StartCmd.Flags().StringVarP(&startModel, "model", "m", "",
		fmt.Sprintf("Model preference: %s or %s", model.ModelGeminiFlash, model.ModelGeminiPro))
	StartCmd.Flags().BoolVarP(&startWatch, "watch", "w", false, "Follow the job until it finishes")
}

func validateStart(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(startDomain) == "" {
		return fmt.Errorf("--domain is required")
	}
	if startSeedPapers != "" && startSeedPapersFile != "" {
		return fmt.Errorf("--seed-papers and --seed-papers-file cannot be used together")
	}

	cmd.SilenceUsage = true
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	seedPapers := startSeedPapers
	if startSeedPapersFile != "" {
		data, err := os.ReadFile(startSeedPapersFile)
		if err != nil {
			return fmt.Errorf("failed to read seed papers; %w", err)
		}
		seedPapers = string(data)
	}

	jobID, err := app.session.StartResearch(cmd.Context(), research.Input{
		Domain:          startDomain,
		ResearchFocus:   startFocus,
		SeedPapers:      seedPapers,
		ModelPreference: modelPreference(startModel),
	})
	if err != nil {
		return fmt.Errorf("failed to start research; %s", app.session.State().ErrorMsg)
	}

	out := cmd.OutOrStdout()
	st := newStyles(out)
	fmt.Fprintf(out, "%s %s\n", st.Label.Render("Started research job"), st.Highlight.Render(jobID))

	if !startWatch {
		fmt.Fprintf(out, "%s\n", st.Muted.Render("Follow it with: researcher watch "+jobID))
		return nil
	}
	return watchJob(cmd.Context(), cmd, jobID)
}

func modelPreference(s string) model.ModelPreference {
	return model.ModelPreference(strings.TrimSpace(s))
}

