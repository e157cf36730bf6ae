package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/driver733/qulice/internal/environment"
	"github.com/driver733/qulice/internal/exec"
)

// Validator names.
const (
	NameEnforcer     = "enforcer"
	NameDependencies = "dependencies"
	NameStyle        = "style"
	NameBugPatterns  = "bugpatterns"
)

// maxDetails bounds the problems carried in a ValidationFailure by default.
const maxDetails = 10

// Validator checks one aspect of a build.
//
// Implementations are stateless and read project state only through env,
// which they must not modify. Validate returns nil when no problems are
// found.
type Validator interface {
	Name() string
	Validate(ctx context.Context, env *environment.Environment) error
}

// ValidationFailure reports that a validator ran and found problems.
type ValidationFailure struct {
	Validator string
	// Count is the number of problems found, at least one.
	Count   int
	Message string
	// Details lists individual problems, possibly truncated.
	Details []string
}

// Error implements error.
func (f *ValidationFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Validator, f.Message)
}

// newFailure reports count problems of kind what. Only the first limit
// details are kept.
func newFailure(validator string, count int, what string, details []string, limit int) *ValidationFailure {
	if limit > 0 && len(details) > limit {
		details = details[:limit]
	}
	return &ValidationFailure{
		Validator: validator,
		Count:     count,
		Message:   fmt.Sprintf("%d %s found", count, what),
		Details:   append([]string(nil), details...),
	}
}

// IsExecutionFailure reports whether err means a tool could not run.
func IsExecutionFailure(err error) bool {
	var failure *exec.ExecutionFailure
	return errors.As(err, &failure)
}

// AsValidationFailure extracts the ValidationFailure in err's chain.
func AsValidationFailure(err error) (*ValidationFailure, bool) {
	var failure *ValidationFailure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// Select returns validators in order, dropping those named in skip.
func Select(validators []Validator, skip []string) []Validator {
	if len(skip) == 0 {
		return append([]Validator(nil), validators...)
	}
	skipped := make(map[string]bool, len(skip))
	for _, name := range skip {
		skipped[name] = true
	}
	out := make([]Validator, 0, len(validators))
	for _, v := range validators {
		if !skipped[v.Name()] {
			out = append(out, v)
		}
	}
	return out
}
