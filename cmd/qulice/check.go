package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/driver733/qulice/internal/config"
	"github.com/driver733/qulice/internal/environment"
	"github.com/driver733/qulice/internal/exec"
	"github.com/driver733/qulice/internal/logging"
	"github.com/driver733/qulice/internal/metrics"
	"github.com/driver733/qulice/internal/state"
	"github.com/driver733/qulice/internal/validation"
)

var (
	checkSkip        []string
	checkProps       []string
	checkOutputDir   string
	checkReportFile  string
	checkMetricsFile string
	checkNoHistory   bool
)

var checkCmd = &cobra.Command{
	Use:   "check [directory]",
	Short: "Run the quality gate",
	Long: `Run every configured validator over the Go module containing directory
(default: the current directory), stopping at the first failure.

Exits with status 1 when the gate fails, whether a tool found problems or
could not run at all.

Examples:
  qulice check
  qulice check ./service --skip style
  qulice check -D qulice.license=LICENSE.txt --report gate.json
  qulice check -D qulice.skip=true   # disable the gate for this run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringSliceVar(&checkSkip, "skip", nil, "Validators to skip (enforcer, dependencies, style, bugpatterns or a tool id)")
	checkCmd.Flags().StringArrayVarP(&checkProps, "define", "D", nil, "Set a property (key=value)")
	checkCmd.Flags().StringVar(&checkOutputDir, "output-dir", "", "Build output directory excluded from analysis")
	checkCmd.Flags().StringVar(&checkReportFile, "report", "", "Write the run report to a .json or .yaml file")
	checkCmd.Flags().StringVar(&checkMetricsFile, "metrics-file", "", "Write Prometheus metrics to a textfile")
	checkCmd.Flags().BoolVar(&checkNoHistory, "no-history", false, "Do not record this run in the project history")
}

func runCheck(cmd *cobra.Command, args []string) error {
	opts := checkOptions{
		Dir:         ".",
		Skip:        checkSkip,
		Properties:  checkProps,
		OutputDir:   checkOutputDir,
		ReportFile:  checkReportFile,
		MetricsFile: checkMetricsFile,
		NoHistory:   checkNoHistory,
		LogLevel:    logLevel,
		LogFormat:   logFormat,
	}
	if len(args) > 0 {
		opts.Dir = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return checkProject(ctx, opts, exec.NewRunner(), cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// checkProject runs the gate for opts.Dir, printing the summary to out and
// logs to logOut. External tools are started through runner. A failed gate
// returns an error wrapping errGateFailed.
func checkProject(ctx context.Context, opts checkOptions, runner exec.CommandRunner, out, logOut io.Writer) error {
	root, err := projectRoot(opts.Dir)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFor(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg, opts, logOut)
	defer logger.Sync()

	x, err := buildExecutor(cfg, root, runner, logger)
	if err != nil {
		return err
	}
	env, err := buildEnvironment(root, cfg, opts, x, logger)
	if err != nil {
		return err
	}

	orchOpts := []validation.Option{
		validation.WithLogger(logger.Named(logging.ComponentOrchestrator)),
	}
	var recorder *metrics.Recorder
	if opts.MetricsFile != "" {
		recorder = metrics.NewRecorder()
		orchOpts = append(orchOpts, validation.WithObserver(recorder))
	}

	validators, err := buildValidators(cfg, opts.Skip)
	if err != nil {
		return err
	}
	orch := validation.NewOrchestrator(validators, orchOpts...)
	report, runErr := orch.Run(ctx, env)
	if report == nil {
		return runErr
	}

	printSummary(out, report)

	if opts.ReportFile != "" {
		if err := writeReport(opts.ReportFile, root, report); err != nil {
			return err
		}
	}
	if recorder != nil {
		if err := recorder.WriteTextfile(opts.MetricsFile); err != nil {
			return err
		}
	}
	if cfg.History.Enabled && !opts.NoHistory {
		recordHistory(root, cfg.History, report, logger)
	}

	if runErr != nil {
		return fmt.Errorf("%w: %v", errGateFailed, runErr)
	}
	return nil
}

// projectRoot resolves dir to its module root, or to dir itself when it is
// not inside a module.
func projectRoot(dir string) (string, error) {
	root, err := environment.FindModuleRoot(dir)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, environment.ErrNoModule) {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	return abs, nil
}

// recordHistory stores the run; history problems never fail the gate.
func recordHistory(root string, h config.HistoryConfig, report *validation.Report, logger *zap.Logger) {
	logger = logger.Named(logging.ComponentState)

	db, err := state.OpenProject(root, h.Driver)
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
		return
	}
	defer db.Close()

	if err := db.SaveRun(state.FromReport(root, report)); err != nil {
		logger.Warn("failed to record run", zap.Error(err))
		return
	}
	logger.Debug("run recorded", zap.String("run", report.ID), zap.String("db", db.Path()))
	if h.Keep > 0 {
		if n, err := db.PurgeRuns(h.Keep); err != nil {
			logger.Warn("failed to purge history", zap.Error(err))
		} else if n > 0 {
			logger.Debug("purged old runs", zap.Int64("count", n))
		}
	}
}
