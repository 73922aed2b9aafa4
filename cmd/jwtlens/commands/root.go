package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strrl/jwt-lens/internal/api"
	"github.com/strrl/jwt-lens/internal/clip"
	"github.com/strrl/jwt-lens/internal/config"
	"github.com/strrl/jwt-lens/internal/db"
	"github.com/strrl/jwt-lens/internal/logging"
	"github.com/strrl/jwt-lens/internal/tui"
)

var (
	configPath string
	apiURL     string
	logFile    string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jwtlens",
		Short: "Inspect JSON Web Tokens phase by phase",
		Long: `jwtlens sends a JSON Web Token to an analysis service and shows the
lexical, syntactic and semantic results one phase at a time. It can also
check signatures and generate HMAC-signed tokens.

Run without arguments to start the interactive interface.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd.Name() == "jwtlens")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		RunE: runTUI,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	flags.StringVar(&apiURL, "api-url", "", "analysis service base URL (overrides config)")
	flags.StringVar(&logFile, "log-file", "", "write logs to this file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(NewAnalyzeCommand())
	rootCmd.AddCommand(NewVerifyCommand())
	rootCmd.AddCommand(NewEncodeCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewJournalCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger. The TUI owns the
// terminal, so it only logs when a log file is configured.
func setup(interactive bool) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	logger, err = logging.New(logging.Options{
		Level:       cfg.Log.Level,
		File:        cfg.Log.File,
		Verbose:     verbose,
		Interactive: interactive,
	})
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded",
		zap.String("path", path),
		zap.String("base_url", cfg.API.BaseURL),
		zap.Duration("timeout", cfg.API.Timeout.Duration))
	return nil
}

func newClient() *api.Client {
	return api.NewClient(cfg.API.BaseURL, cfg.API.Timeout.Duration, api.WithLogger(logger))
}

// openJournal returns the session journal, or nil when DuckDB is not
// usable. The journal is optional everywhere it is used.
func openJournal() *db.Journal {
	j, err := db.OpenJournal()
	if err != nil {
		logger.Warn("session journal disabled", zap.Error(err))
		return nil
	}
	return j
}

func runTUI(cmd *cobra.Command, args []string) error {
	opts := tui.Options{
		Client:    newClient(),
		Clipboard: clip.Writer{},
		Encoder:   cfg.Encoder,
		Logger:    logger,
	}
	if j := openJournal(); j != nil {
		opts.Journal = j
	}

	if err := tui.Run(commandContext(cmd), opts); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
