// Package cli implements the researcher command line front-end.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/airesearcher/frontend/internal/client"
	"github.com/airesearcher/frontend/internal/config"
	"github.com/airesearcher/frontend/internal/logging"
	"github.com/airesearcher/frontend/internal/research"
	"github.com/airesearcher/frontend/internal/store"
)

// Flag variables shared by every command.
var (
	apiURL      string
	logLevel    string
	storeDriver string
)

// runtime is built once per invocation by initialize.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  *client.BackendClient
	store    store.KeyValueStore
	session  *research.Session
	closeLog func() error
	closeKV  func() error
}

var app *runtime

var researcherCmd = &cobra.Command{
	Use:   "researcher",
	Short: "Start and follow AI research jobs",
	Long: "researcher submits research jobs to the AI-Researcher backend and follows them " +
		"through literature collection, gap analysis, algorithm design, implementation, " +
		"evaluation, refinement and paper writing.\n\n" +
		"The backend is reached at API_URL (default http://localhost:8000), either directly " +
		"or through the gateway.",
	PersistentPreRunE:  initialize,
	PersistentPostRunE: shutdown,
}

func init() {
	flags := researcherCmd.PersistentFlags()
	flags.StringVar(&apiURL, "api-url", "", "Backend or gateway base URL (overrides API_URL)")
	flags.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flags.StringVar(&storeDriver, "store", "", "Where the last job id is kept: file, redis or memory")

	researcherCmd.AddCommand(StartCmd, WatchCmd, StatusCmd, LogsCmd, ResultsCmd, PDFCmd, LastCmd)
}

func initialize(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config; %w", err)
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if storeDriver != "" {
		cfg.Store.Driver = storeDriver
	}

	if _, ok := logging.ParseLevel(logLevel); !ok {
		return fmt.Errorf("invalid log level %q", logLevel)
	}
	logger, closeLog := logging.SetupWithWriter(cmd.ErrOrStderr(), logLevel, cfg.Server.LogFile)

	kv, closeKV, err := store.Open(cfg)
	if err != nil {
		_ = closeLog()
		return fmt.Errorf("failed to open store; %w", err)
	}

	backend := client.NewBackendClient(&cfg.API, logger)
	session := research.NewSession(backend, kv, nil, research.Options{
		Interval:        cfg.Poll.Interval,
		ModelPreference: modelPreference(cfg.Research.ModelPreference),
		Logger:          logger,
	})

	app = &runtime{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		store:    kv,
		session:  session,
		closeLog: closeLog,
		closeKV:  closeKV,
	}
	return nil
}

func shutdown(cmd *cobra.Command, args []string) error {
	if app == nil {
		return nil
	}
	if err := app.closeKV(); err != nil {
		app.logger.Warn("failed to close store", "error", err)
	}
	return app.closeLog()
}

// Execute runs the command tree and reports the error, if any.
func Execute() error {
	researcherCmd.SilenceErrors = true
	researcherCmd.SilenceUsage = true

	err := researcherCmd.Execute()
	if err != nil {
		cmd, _, _ := researcherCmd.Find(os.Args[1:])
		if cmd == nil {
			cmd = researcherCmd
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if !cmd.SilenceUsage {
			fmt.Fprintln(os.Stderr)
			_ = cmd.Usage()
		}
	}
	return err
}
