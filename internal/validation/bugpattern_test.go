package validation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driver733/qulice/internal/analysis"
	"github.com/driver733/qulice/internal/environment"
	"github.com/driver733/qulice/internal/exec"
)

func TestBugPatternValidator_Counts(t *testing.T) {
	tests := []struct {
		name  string
		count int
	}{
		{"no bugs", 0},
		{"one bug", 1},
		{"several bugs", 7},
		{"more bugs than details", 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewBugPatternValidator(WithEngineFactory(engineFactory(&fakeEngine{count: tt.count})))
			err := v.Validate(context.Background(), newEnv(t))

			if tt.count == 0 {
				assert.NoError(t, err)
				return
			}
			vf, ok := AsValidationFailure(err)
			require.True(t, ok, "expected ValidationFailure, got %v", err)
			assert.Equal(t, NameBugPatterns, vf.Validator)
			assert.Equal(t, tt.count, vf.Count)
			assert.LessOrEqual(t, len(vf.Details), maxDetails)
			assert.False(t, IsExecutionFailure(err))
		})
	}
}

func TestBugPatternValidator_Idempotent(t *testing.T) {
	engine := &fakeEngine{count: 3}
	v := NewBugPatternValidator(WithEngineFactory(engineFactory(engine)))
	env := newEnv(t)

	first := v.Validate(context.Background(), env)
	second := v.Validate(context.Background(), env)

	require.Error(t, first)
	assert.Equal(t, first.Error(), second.Error())
	assert.Len(t, engine.targets, 2)
}

func TestBugPatternValidator_MaxDetails(t *testing.T) {
	v := NewBugPatternValidator(
		WithEngineFactory(engineFactory(&fakeEngine{count: 5})),
		WithMaxDetails(2),
	)

	vf, ok := AsValidationFailure(v.Validate(context.Background(), newEnv(t)))
	require.True(t, ok)
	assert.Equal(t, 5, vf.Count)
	assert.Len(t, vf.Details, 2)
	assert.Equal(t, "main.go:1:1: wrong verb (printf)", vf.Details[0])
}

func TestBugPatternValidator_EngineError(t *testing.T) {
	v := NewBugPatternValidator(WithEngineFactory(engineFactory(&fakeEngine{err: errors.New("load packages: no go files")})))

	err := v.Validate(context.Background(), newEnv(t))

	var failure *exec.ExecutionFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, BugPatternToolID, failure.Tool)
	assert.Equal(t, exec.ReasonToolFailed, failure.Reason)
	_, isValidation := AsValidationFailure(err)
	assert.False(t, isValidation)
}

func TestBugPatternValidator_FactoryError(t *testing.T) {
	v := NewBugPatternValidator(WithEngineFactory(func(*environment.Environment) (analysis.Engine, error) {
		return nil, errors.New("unknown analyzer")
	}))

	assert.True(t, IsExecutionFailure(v.Validate(context.Background(), newEnv(t))))
}

func TestBugPatternValidator_UnknownAnalyzer(t *testing.T) {
	v := NewBugPatternValidator(WithAnalyzers("findbugs"))
	assert.True(t, IsExecutionFailure(v.Validate(context.Background(), newEnv(t))))
}

func TestBugPatternValidator_Target(t *testing.T) {
	engine := &fakeEngine{}
	dir := t.TempDir()
	env := newEnvAt(t, dir,
		environment.WithClasspath("./cmd/...", "./internal/..."),
		environment.WithOutputDir("build"),
		environment.WithExcludes("bugpatterns:internal/legacy/**", "style:cmd/**"),
	)

	v := NewBugPatternValidator(WithEngineFactory(engineFactory(engine)), WithTests(true))
	require.NoError(t, v.Validate(context.Background(), env))

	require.Len(t, engine.targets, 1)
	target := engine.targets[0]
	assert.Equal(t, dir, target.Dir)
	assert.Equal(t, []string{"./cmd/...", "./internal/..."}, target.Patterns)
	assert.True(t, target.Tests)

	assert.True(t, target.Exclude("build/gen.go"))
	assert.True(t, target.Exclude("internal/legacy/old.go"))
	assert.False(t, target.Exclude("cmd/main.go"))
	assert.False(t, target.Exclude("buildinfo/x.go"))
	assert.False(t, target.Exclude(filepath.ToSlash("internal/app/app.go")))
}
