// Package cli implements the sercha-kb command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-kb/internal/app"
	"github.com/custodia-labs/sercha-kb/internal/config"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-kb/internal/errs"
	"github.com/custodia-labs/sercha-kb/internal/logger"
	"github.com/custodia-labs/sercha-kb/internal/telemetry"
)

var version = "dev"

// Global flags.
var (
	verbose    bool
	traceSpans bool
	configDir  string
)

// Services used by commands. Tests replace them with mocks; otherwise
// they are built on first use from the loaded configuration.
var (
	configStore     driven.ConfigStore
	appConfig       domain.Config
	queryService    driving.QueryService
	auditService    driving.AuditService
	indexer         driving.Indexer
	evaluator       driving.Evaluator
	pipelineMetrics driven.PipelineMetrics

	application     *app.App
	shutdownTracing telemetry.ShutdownFunc
)

var rootCmd = &cobra.Command{
	Use:   "sercha-kb",
	Short: "Grounded answers from a curated knowledge base",
	Long: `sercha-kb indexes the documents listed in a manifest and answers
questions strictly from them. Every answer cites its sources; questions
the knowledge base does not cover are refused with "Not in KB yet."`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVar(&traceSpans, "trace", false, "print pipeline trace spans to stderr")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.sercha-kb)")
}

// exitError ends the process with a status code. The command has already
// reported the failure.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// ExitCode returns the process status for an Execute error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// Execute runs the root command and releases every service afterwards.
func Execute(v string) error {
	version = v
	err := rootCmd.Execute()
	teardown()

	var ee *exitError
	if err != nil && !errors.As(err, &ee) {
		s := stylesFor(os.Stderr)
		fmt.Fprintln(os.Stderr, s.Error.Render("Error:"), describeError(err))
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if traceSpans && shutdownTracing == nil {
		shutdown, err := telemetry.InitTracing(cmd.ErrOrStderr(), version)
		if err != nil {
			return err
		}
		shutdownTracing = shutdown
	}
	return nil
}

func teardown() {
	if application != nil {
		if err := application.Close(); err != nil {
			logger.Warn("Closing services: %v", err)
		}
		application = nil
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Flushing traces: %v", err)
		}
		shutdownTracing = nil
	}
}

func describeError(err error) string {
	if code := errs.CodeOf(err); code != "" {
		return fmt.Sprintf("%v [%s]", err, code)
	}
	return err.Error()
}

func resolvedConfigDir() (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, file.DefaultDirName), nil
}

func ensureConfigStore() error {
	if configStore != nil {
		return nil
	}
	dir, err := resolvedConfigDir()
	if err != nil {
		return err
	}
	store, err := file.NewConfigStore(dir)
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	configStore = store
	return nil
}

func loadConfig() (domain.Config, error) {
	if err := ensureConfigStore(); err != nil {
		return domain.Config{}, err
	}
	dir, err := resolvedConfigDir()
	if err != nil {
		return domain.Config{}, err
	}
	return config.NewLoader(configStore, config.WithBaseDir(dir)).Load()
}

// ensureServices builds the pipeline unless services were injected.
// withLLM also builds the generation provider.
func ensureServices(ctx context.Context, withLLM bool) error {
	if queryService != nil && auditService != nil && indexer != nil && evaluator != nil {
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := resolvedConfigDir()
	if err != nil {
		return err
	}

	a, err := app.Build(ctx, cfg, app.Options{
		WithLLM:   withLLM,
		PromptDir: filepath.Join(dir, "prompts"),
		Metrics:   pipelineMetrics,
	})
	if err != nil {
		return err
	}

	application = a
	appConfig = cfg
	queryService = a.Query
	auditService = a.Audit
	indexer = a.Indexer
	evaluator = a.Evaluator
	return nil
}
