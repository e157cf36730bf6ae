package exec

import (
	"fmt"
	"strings"
)

// Reason classifies why a tool invocation failed.
type Reason string

const (
	// ReasonUnknownTool means no tool is registered under the identifier.
	ReasonUnknownTool Reason = "unknown_tool"
	// ReasonUnknownGoal means the tool exists but does not offer the goal.
	ReasonUnknownGoal Reason = "unknown_goal"
	// ReasonNotFound means the tool's binary or input could not be located.
	ReasonNotFound Reason = "not_found"
	// ReasonMalformedConfig means the configuration tree was rejected.
	ReasonMalformedConfig Reason = "malformed_config"
	// ReasonToolFailed means the tool ran and reported an error status.
	ReasonToolFailed Reason = "tool_failed"
)

// ExecutionFailure reports that invoking a tool did not succeed.
// It is distinct from a tool running cleanly and finding problems.
type ExecutionFailure struct {
	Tool    string
	Goal    string
	Reason  Reason
	Message string
	// Output is whatever the tool printed, if anything.
	Output string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (f *ExecutionFailure) Error() string {
	var sb strings.Builder
	sb.WriteString("execute ")
	sb.WriteString(f.Tool)
	if f.Goal != "" {
		sb.WriteString(":")
		sb.WriteString(f.Goal)
	}
	sb.WriteString(fmt.Sprintf(" (%s)", f.Reason))
	if f.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(f.Message)
	} else if f.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(f.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (f *ExecutionFailure) Unwrap() error {
	return f.Err
}

// Failf builds an ExecutionFailure with a formatted message.
func Failf(tool, goal string, reason Reason, format string, args ...any) *ExecutionFailure {
	return &ExecutionFailure{
		Tool:    tool,
		Goal:    goal,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}
