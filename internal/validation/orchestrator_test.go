package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driver733/qulice/internal/environment"
	"github.com/driver733/qulice/internal/exec"
)

func TestOrchestrator_AllPass(t *testing.T) {
	a := &countingValidator{name: "a"}
	b := &countingValidator{name: "b"}
	c := &countingValidator{name: "c"}

	report, err := NewOrchestrator([]Validator{a, b, c}).Run(context.Background(), newEnv(t))
	require.NoError(t, err)

	assert.Equal(t, StatePassed, report.State)
	assert.True(t, report.Passed())
	assert.Equal(t, -1, report.FailedIndex)
	require.Len(t, report.Entries, 3)
	for i, e := range report.Entries {
		assert.Equal(t, i, e.Index)
		assert.Equal(t, OutcomePassed, e.Outcome)
	}
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
	assert.NotEmpty(t, report.ID)
	assert.False(t, report.Finished.Before(report.Started))
}

func TestOrchestrator_FailFast(t *testing.T) {
	for failAt := 0; failAt < 4; failAt++ {
		vs := make([]*countingValidator, 4)
		list := make([]Validator, 4)
		for i := range vs {
			vs[i] = &countingValidator{name: string(rune('a' + i))}
			list[i] = vs[i]
		}
		cause := &ValidationFailure{Validator: vs[failAt].name, Count: 2, Message: "2 bug(s) found"}
		vs[failAt].err = cause

		report, err := NewOrchestrator(list).Run(context.Background(), newEnv(t))

		var rf *RunFailure
		require.True(t, errors.As(err, &rf), "failAt=%d", failAt)
		assert.Equal(t, failAt, rf.Index)
		assert.Equal(t, vs[failAt].name, rf.Validator)
		assert.ErrorIs(t, err, cause)

		assert.Equal(t, StateFailed, report.State)
		assert.Equal(t, failAt, report.FailedIndex)
		assert.Len(t, report.Entries, failAt+1)

		for i, v := range vs {
			want := 0
			if i <= failAt {
				want = 1
			}
			assert.Equal(t, want, v.calls, "validator %d with failure at %d", i, failAt)
		}
	}
}

func TestOrchestrator_EmptyCollection(t *testing.T) {
	report, err := NewOrchestrator(nil).Run(context.Background(), newEnv(t))
	require.NoError(t, err)
	assert.Equal(t, StatePassed, report.State)
	assert.Empty(t, report.Entries)
}

func TestOrchestrator_Deterministic(t *testing.T) {
	env := newEnv(t)
	list := []Validator{
		&countingValidator{name: "a"},
		&countingValidator{name: "b", err: exec.Failf("tool", "goal", exec.ReasonToolFailed, "boom")},
		&countingValidator{name: "c"},
	}
	orch := NewOrchestrator(list)

	first, err1 := orch.Run(context.Background(), env)
	second, err2 := orch.Run(context.Background(), env)

	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.FailedIndex, second.FailedIndex)
	assert.Equal(t, err1.Error(), err2.Error())
	assert.NotEqual(t, first.ID, second.ID)
}

func TestOrchestrator_OutcomeClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"validation failure", &ValidationFailure{Validator: "v", Count: 1, Message: "1 bug(s) found"}, OutcomeFailed},
		{"execution failure", exec.Failf("t", "g", exec.ReasonNotFound, "missing"), OutcomeError},
		{"wrapped execution failure", errors.Join(errors.New("ctx"), exec.Failf("t", "g", exec.ReasonToolFailed, "x")), OutcomeError},
		{"plain error", errors.New("boom"), OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := NewOrchestrator([]Validator{&countingValidator{name: "v", err: tt.err}}).
				Run(context.Background(), newEnv(t))
			require.Error(t, err)
			assert.Equal(t, tt.want, report.Entries[0].Outcome)
		})
	}
}

func TestOrchestrator_SkipProperty(t *testing.T) {
	v := &countingValidator{name: "a", err: errors.New("never reached")}
	env := newEnv(t, environment.WithProperties(map[string]string{SkipProperty: "true"}))

	report, err := NewOrchestrator([]Validator{v}).Run(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, StatePassed, report.State)
	assert.Empty(t, report.Entries)
	assert.Zero(t, v.calls)
}

func TestOrchestrator_CancelledBeforeValidator(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &countingValidator{name: "a", onValidate: cancel}
	b := &countingValidator{name: "b"}

	report, err := NewOrchestrator([]Validator{a, b}).Run(ctx, newEnv(t))

	var rf *RunFailure
	require.True(t, errors.As(err, &rf))
	assert.Equal(t, 1, rf.Index)
	assert.Equal(t, "b", rf.Validator)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, report.State)
	assert.Zero(t, b.calls)
}

func TestOrchestrator_Observer(t *testing.T) {
	obs := &recordingObserver{}
	list := []Validator{
		&countingValidator{name: "a"},
		&countingValidator{name: "b", err: &ValidationFailure{Validator: "b", Count: 1}},
	}

	_, err := NewOrchestrator(list, WithObserver(obs)).Run(context.Background(), newEnv(t))
	require.Error(t, err)

	assert.Equal(t, []string{"a=passed", "b=failed"}, obs.validators)
	assert.Equal(t, []string{"failed"}, obs.runs)
}

func TestOrchestrator_NilEnvironment(t *testing.T) {
	_, err := NewOrchestrator(nil).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	list := []Validator{
		&countingValidator{name: NameEnforcer},
		&countingValidator{name: NameStyle},
		&countingValidator{name: NameBugPatterns},
	}

	got := Select(list, []string{NameStyle, "unknown"})
	require.Len(t, got, 2)
	assert.Equal(t, NameEnforcer, got[0].Name())
	assert.Equal(t, NameBugPatterns, got[1].Name())

	assert.Len(t, Select(list, nil), 3)
}
