package validation

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/driver733/qulice/internal/analysis"
	"github.com/driver733/qulice/internal/environment"
	"github.com/driver733/qulice/internal/exec"
)

// Tool and goal that bug-pattern engine failures are attributed to.
const (
	BugPatternToolID = "qulice:bugpatterns"
	GoalAnalyze      = "analyze"
)

// EngineFactory builds the analysis engine for one run.
type EngineFactory func(env *environment.Environment) (analysis.Engine, error)

// BugPatternValidator runs an in-process analysis engine over the
// environment's packages and fails when any bug is found.
type BugPatternValidator struct {
	factory    EngineFactory
	analyzers  []string
	tests      bool
	maxDetails int
}

// BugPatternOption configures a BugPatternValidator.
type BugPatternOption func(*BugPatternValidator)

// WithEngineFactory replaces the default x/tools engine.
func WithEngineFactory(f EngineFactory) BugPatternOption {
	return func(v *BugPatternValidator) {
		if f != nil {
			v.factory = f
		}
	}
}

// WithAnalyzers restricts the default engine to the named analyzers.
func WithAnalyzers(names ...string) BugPatternOption {
	return func(v *BugPatternValidator) {
		v.analyzers = append([]string(nil), names...)
	}
}

// WithTests includes _test.go files in the analysis.
func WithTests(tests bool) BugPatternOption {
	return func(v *BugPatternValidator) {
		v.tests = tests
	}
}

// WithMaxDetails bounds the bugs listed in a failure.
func WithMaxDetails(n int) BugPatternOption {
	return func(v *BugPatternValidator) {
		if n > 0 {
			v.maxDetails = n
		}
	}
}

// NewBugPatternValidator creates a bug-pattern validator.
func NewBugPatternValidator(opts ...BugPatternOption) *BugPatternValidator {
	v := &BugPatternValidator{maxDetails: maxDetails}
	for _, opt := range opts {
		opt(v)
	}
	if v.factory == nil {
		v.factory = v.defaultEngine
	}
	return v
}

func (v *BugPatternValidator) defaultEngine(env *environment.Environment) (analysis.Engine, error) {
	return analysis.NewChecker(env.Logger().Named(v.Name()), v.analyzers...)
}

// Name implements Validator.
func (v *BugPatternValidator) Name() string {
	return NameBugPatterns
}

// Validate implements Validator.
func (v *BugPatternValidator) Validate(ctx context.Context, env *environment.Environment) error {
	logger := env.Logger().Named(v.Name())

	engine, err := v.factory(env)
	if err != nil {
		return fmt.Errorf("%s: %w", v.Name(), engineFailure("create engine", err))
	}

	result, err := engine.Analyze(ctx, v.target(env))
	if err != nil {
		return fmt.Errorf("%s: %w", v.Name(), engineFailure("analyze", err))
	}

	count := result.BugCount()
	logger.Debug("analysis finished", zap.Int("bugs", count))
	if count == 0 {
		return nil
	}

	var details []string
	for _, d := range result.Diagnostics() {
		details = append(details, d.String())
	}
	return newFailure(v.Name(), count, "bug(s)", details, v.maxDetails)
}

// target describes the environment's packages, leaving out the build
// output dir and anything excluded for this validator.
func (v *BugPatternValidator) target(env *environment.Environment) analysis.Target {
	output := ""
	if rel, err := filepath.Rel(env.BaseDir(), env.OutputDir()); err == nil && !strings.HasPrefix(rel, "..") && rel != "." {
		output = filepath.ToSlash(rel)
	}

	return analysis.Target{
		Dir:      env.BaseDir(),
		Patterns: env.Classpath(),
		Tests:    v.tests,
		Exclude: func(rel string) bool {
			if output != "" && (rel == output || strings.HasPrefix(rel, output+"/")) {
				return true
			}
			return env.Excluded(v.Name(), rel)
		},
	}
}

func engineFailure(msg string, err error) *exec.ExecutionFailure {
	return &exec.ExecutionFailure{
		Tool:    BugPatternToolID,
		Goal:    GoalAnalyze,
		Reason:  exec.ReasonToolFailed,
		Message: msg + ": " + err.Error(),
		Err:     err,
	}
}
