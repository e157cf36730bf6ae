package validation

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driver733/qulice/internal/analysis"
	"github.com/driver733/qulice/internal/environment"
	"github.com/driver733/qulice/internal/exec"
)

// countingValidator returns err and counts its invocations.
type countingValidator struct {
	name  string
	err   error
	calls int
	// onValidate runs during Validate when set.
	onValidate func()
}

func (v *countingValidator) Name() string { return v.name }

func (v *countingValidator) Validate(context.Context, *environment.Environment) error {
	v.calls++
	if v.onValidate != nil {
		v.onValidate()
	}
	return v.err
}

type executeCall struct {
	tool string
	goal string
	cfg  exec.Config
}

// recordingExecutor records every Execute call and returns err.
type recordingExecutor struct {
	mu    sync.Mutex
	calls []executeCall
	err   error
}

func (r *recordingExecutor) Execute(_ context.Context, tool, goal string, cfg exec.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, executeCall{tool: tool, goal: goal, cfg: cfg.Clone()})
	return r.err
}

// fakeEngine reports count bugs, or err.
type fakeEngine struct {
	count   int
	err     error
	targets []analysis.Target
}

func (f *fakeEngine) Analyze(_ context.Context, target analysis.Target) (*analysis.Result, error) {
	f.targets = append(f.targets, target)
	if f.err != nil {
		return nil, f.err
	}
	diags := make([]analysis.Diagnostic, f.count)
	for i := range diags {
		diags[i] = analysis.Diagnostic{
			Analyzer: "printf",
			File:     "main.go",
			Line:     i + 1,
			Column:   1,
			Message:  "wrong verb",
		}
	}
	return analysis.NewResult(diags...), nil
}

func engineFactory(e analysis.Engine) EngineFactory {
	return func(*environment.Environment) (analysis.Engine, error) { return e, nil }
}

// recordingObserver collects observed outcomes.
type recordingObserver struct {
	validators []string
	runs       []string
}

func (o *recordingObserver) ObserveValidator(name, outcome string, _ time.Duration) {
	o.validators = append(o.validators, name+"="+outcome)
}

func (o *recordingObserver) ObserveRun(state string) {
	o.runs = append(o.runs, state)
}

func newEnv(t *testing.T, opts ...environment.Option) *environment.Environment {
	t.Helper()
	env, err := environment.New(t.TempDir(), opts...)
	require.NoError(t, err)
	return env
}

func newEnvAt(t *testing.T, dir string, opts ...environment.Option) *environment.Environment {
	t.Helper()
	env, err := environment.New(dir, opts...)
	require.NoError(t, err)
	return env
}

// writeFiles creates files under dir, making parent directories.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}
