package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/driver733/qulice/internal/environment"
)

// SkipProperty disables the whole gate when set to true.
const SkipProperty = "qulice.skip"

// State is the lifecycle state of a run.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StatePassed     State = "passed"
	StateFailed     State = "failed"
)

const (
	eventStart = "start"
	eventPass  = "pass"
	eventFail  = "fail"
)

// Outcome is how one validator finished.
type Outcome string

const (
	// OutcomePassed means no problems were found.
	OutcomePassed Outcome = "passed"
	// OutcomeFailed means the validator ran and found problems.
	OutcomeFailed Outcome = "failed"
	// OutcomeError means the validator or its tool could not run.
	OutcomeError Outcome = "error"
)

// Observer is told about validator and run outcomes as they happen.
type Observer interface {
	ObserveValidator(name string, outcome string, d time.Duration)
	ObserveRun(state string)
}

// Entry records one validator invocation.
type Entry struct {
	Index     int
	Validator string
	Outcome   Outcome
	Err       error
	Duration  time.Duration
}

// Report is the result of one run.
type Report struct {
	ID    string
	State State
	// FailedIndex is the position of the failing validator, or -1.
	FailedIndex int
	Entries     []Entry
	// Skipped is set when the gate was disabled by SkipProperty.
	Skipped  bool
	Started  time.Time
	Finished time.Time
}

// Passed reports whether the run ended in StatePassed.
func (r *Report) Passed() bool {
	return r.State == StatePassed
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Failure returns the entry of the failing validator, if any.
func (r *Report) Failure() (Entry, bool) {
	if r.FailedIndex < 0 || r.FailedIndex >= len(r.Entries) {
		return Entry{}, false
	}
	return r.Entries[r.FailedIndex], true
}

// RunFailure is returned by Run when a validator fails.
type RunFailure struct {
	Index     int
	Validator string
	Err       error
}

// Error implements error.
func (f *RunFailure) Error() string {
	return fmt.Sprintf("validator %d (%s) failed: %v", f.Index, f.Validator, f.Err)
}

// Unwrap returns the validator's error.
func (f *RunFailure) Unwrap() error {
	return f.Err
}

// Orchestrator runs an ordered list of validators against one environment,
// stopping at the first failure.
type Orchestrator struct {
	validators []Validator
	logger     *zap.Logger
	observer   Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver reports outcomes to obs.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// NewOrchestrator creates an orchestrator running validators in order.
func NewOrchestrator(validators []Validator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		validators: append([]Validator(nil), validators...),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run invokes each validator in order with env. The first failure ends the
// run: the report is Failed and the returned error is a *RunFailure naming
// the validator. Validators after it are not invoked. A context that is
// already done when a validator is due fails the run at that validator.
func (o *Orchestrator) Run(ctx context.Context, env *environment.Environment) (*Report, error) {
	if env == nil {
		return nil, errors.New("nil environment")
	}

	report := &Report{
		ID:          uuid.NewString(),
		State:       StateNotStarted,
		FailedIndex: -1,
		Started:     time.Now(),
	}
	logger := o.logger.With(zap.String("run", report.ID))
	machine := o.newMachine(logger)
	// Transitions are bookkeeping; they must still happen after the host
	// cancels ctx.
	fsmCtx := context.WithoutCancel(ctx)

	if err := o.transition(fsmCtx, machine, eventStart, report); err != nil {
		return nil, err
	}

	if env.BoolProperty(SkipProperty, false) {
		logger.Info("quality gate disabled", zap.String("property", SkipProperty))
		report.Skipped = true
		return report, o.finish(fsmCtx, machine, eventPass, report)
	}

	logger.Info("quality gate started", zap.Int("validators", len(o.validators)))

	for i, v := range o.validators {
		entry := Entry{Index: i, Validator: v.Name()}

		if err := ctx.Err(); err != nil {
			entry.Outcome = OutcomeError
			entry.Err = fmt.Errorf("%s: not started: %w", v.Name(), err)
		} else {
			began := time.Now()
			entry.Err = v.Validate(ctx, env)
			entry.Duration = time.Since(began)
			entry.Outcome = classify(entry.Err)
		}

		report.Entries = append(report.Entries, entry)
		if o.observer != nil {
			o.observer.ObserveValidator(entry.Validator, string(entry.Outcome), entry.Duration)
		}

		if entry.Err == nil {
			logger.Info("validator passed",
				zap.Int("index", i),
				zap.String("validator", entry.Validator),
				zap.Duration("duration", entry.Duration))
			continue
		}

		logger.Warn("validator failed",
			zap.Int("index", i),
			zap.String("validator", entry.Validator),
			zap.String("outcome", string(entry.Outcome)),
			zap.Error(entry.Err))
		report.FailedIndex = i
		if err := o.finish(fsmCtx, machine, eventFail, report); err != nil {
			return report, err
		}
		return report, &RunFailure{Index: i, Validator: entry.Validator, Err: entry.Err}
	}

	return report, o.finish(fsmCtx, machine, eventPass, report)
}

func (o *Orchestrator) newMachine(logger *zap.Logger) *fsm.FSM {
	return fsm.NewFSM(
		string(StateNotStarted),
		fsm.Events{
			{Name: eventStart, Src: []string{string(StateNotStarted)}, Dst: string(StateRunning)},
			{Name: eventPass, Src: []string{string(StateRunning)}, Dst: string(StatePassed)},
			{Name: eventFail, Src: []string{string(StateRunning)}, Dst: string(StateFailed)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug("run state changed", zap.String("from", e.Src), zap.String("to", e.Dst))
			},
		},
	)
}

func (o *Orchestrator) transition(ctx context.Context, machine *fsm.FSM, event string, report *Report) error {
	if err := machine.Event(ctx, event); err != nil {
		return fmt.Errorf("run %s: %s: %w", report.ID, event, err)
	}
	report.State = State(machine.Current())
	return nil
}

// finish moves the run into a terminal state and reports it.
func (o *Orchestrator) finish(ctx context.Context, machine *fsm.FSM, event string, report *Report) error {
	err := o.transition(ctx, machine, event, report)
	report.Finished = time.Now()
	if err != nil {
		return err
	}
	if o.observer != nil {
		o.observer.ObserveRun(string(report.State))
	}
	o.logger.Info("quality gate finished",
		zap.String("run", report.ID),
		zap.String("state", string(report.State)),
		zap.Duration("duration", report.Duration()))
	return nil
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomePassed
	case IsExecutionFailure(err):
		return OutcomeError
	default:
		if _, ok := AsValidationFailure(err); ok {
			return OutcomeFailed
		}
		return OutcomeError
	}
}
