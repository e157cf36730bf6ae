package main

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/driver733/qulice/internal/config"
	"github.com/driver733/qulice/internal/enforcer"
	"github.com/driver733/qulice/internal/environment"
	"github.com/driver733/qulice/internal/exec"
	"github.com/driver733/qulice/internal/logging"
	"github.com/driver733/qulice/internal/validation"
)

// checkOptions are the command-line overrides for one check.
type checkOptions struct {
	Dir         string
	Skip        []string
	Properties  []string
	OutputDir   string
	ReportFile  string
	MetricsFile string
	NoHistory   bool
	LogLevel    string
	LogFormat   string
}

// newLogger builds the run logger; flags win over config.
func newLogger(cfg *config.Config, opts checkOptions, w io.Writer) *zap.Logger {
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	format := cfg.Logging.Format
	if opts.LogFormat != "" {
		format = opts.LogFormat
	}
	return logging.New(level, logging.ParseFormat(format), w)
}

// buildExecutor registers the built-in enforcer and every configured
// external tool.
func buildExecutor(cfg *config.Config, baseDir string, runner exec.CommandRunner, logger *zap.Logger) (*exec.ToolExecutor, error) {
	x := exec.NewToolExecutor(logger.Named(logging.ComponentExecutor))

	tool := enforcer.New(baseDir, runner, enforcer.WithLogger(logger.Named(logging.ComponentEnforcer)))
	if err := x.Register(enforcer.ToolID, tool); err != nil {
		return nil, err
	}

	for _, t := range cfg.Tools {
		spec := t.Spec()
		if spec.WorkDir == "" {
			spec.WorkDir = baseDir
		} else if !filepath.IsAbs(spec.WorkDir) {
			spec.WorkDir = filepath.Join(baseDir, spec.WorkDir)
		}
		if err := x.Register(t.ID, exec.NewCommandTool(spec, runner)); err != nil {
			return nil, fmt.Errorf("register tool %s: %w", t.ID, err)
		}
	}
	return x, nil
}

// buildProperties merges config properties, the style license and -D
// flags, in increasing precedence.
func buildProperties(cfg *config.Config, flags []string) (map[string]string, error) {
	props, err := config.ParseProperties(cfg.Properties)
	if err != nil {
		return nil, err
	}
	if cfg.Style.License != "" {
		if _, ok := props[validation.LicenseProperty]; !ok {
			props[validation.LicenseProperty] = cfg.Style.License
		}
	}
	overrides, err := config.ParseProperties(flags)
	if err != nil {
		return nil, err
	}
	for k, v := range overrides {
		props[k] = v
	}
	return props, nil
}

// buildEnvironment assembles the shared environment for a run.
func buildEnvironment(baseDir string, cfg *config.Config, opts checkOptions, x exec.Executor, logger *zap.Logger) (*environment.Environment, error) {
	props, err := buildProperties(cfg, opts.Properties)
	if err != nil {
		return nil, err
	}
	outputDir := cfg.OutputDir
	if opts.OutputDir != "" {
		outputDir = opts.OutputDir
	}
	return environment.New(baseDir,
		environment.WithOutputDir(outputDir),
		environment.WithClasspath(cfg.Classpath...),
		environment.WithProperties(props),
		environment.WithExcludes(cfg.Excludes...),
		environment.WithExecutor(x),
		environment.WithLogger(logger.Named(logging.ComponentValidator)),
	)
}

// buildValidators creates validators in configured order, minus skipped
// ones. Configured tools missing from the order run after it.
func buildValidators(cfg *config.Config, skip []string) ([]validation.Validator, error) {
	byName := map[string]validation.Validator{
		validation.NameEnforcer: validation.NewEnforcerValidator(enforcerRules(cfg)...),
		validation.NameDependencies: validation.NewDependencyValidator(
			validation.WithBanned(cfg.Dependencies.Banned...),
			validation.WithMinGo(cfg.Dependencies.MinGo),
			validation.WithLocalReplace(cfg.Dependencies.AllowLocalReplace),
		),
		validation.NameStyle: validation.NewStyleValidator(),
		validation.NameBugPatterns: validation.NewBugPatternValidator(
			validation.WithAnalyzers(cfg.BugPatterns.Analyzers...),
			validation.WithTests(cfg.BugPatterns.Tests),
			validation.WithMaxDetails(cfg.BugPatterns.MaxDetails),
		),
	}
	order := append([]string(nil), cfg.Validators.Order...)
	for _, t := range cfg.Tools {
		options, err := t.OptionTree()
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.ID, err)
		}
		byName[t.ID] = validation.NewToolValidator(t.ID, t.RunGoal(), options)
		if !slices.Contains(order, t.ID) {
			order = append(order, t.ID)
		}
	}

	var ordered []validation.Validator
	for _, name := range order {
		if v, ok := byName[name]; ok {
			ordered = append(ordered, v)
		}
	}

	allSkips := append(append([]string(nil), cfg.Validators.Skip...), skip...)
	return validation.Select(ordered, allSkips), nil
}

func enforcerRules(cfg *config.Config) []validation.Rule {
	rules := make([]validation.Rule, 0, len(cfg.Enforcer.Rules))
	for _, r := range cfg.Enforcer.Rules {
		rules = append(rules, validation.Rule{Name: r.Name, Version: r.Version})
	}
	return rules
}
