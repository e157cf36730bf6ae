// Package exec provides the executor capability: invoking a named analysis
// tool with a structured configuration tree.
package exec

import (
	"context"
)

// Executor invokes an analysis tool by identifier and goal.
// It is the only operation in a run with external side effects.
type Executor interface {
	// Execute runs goal of tool with cfg. Any failure to locate or run the
	// tool, and any error status it reports, is an *ExecutionFailure.
	Execute(ctx context.Context, tool, goal string, cfg Config) error
}

// Tool is something an Executor can dispatch to.
type Tool interface {
	// Goals lists the goals the tool understands.
	Goals() []string

	// Run executes one goal. cfg is a private copy owned by the tool.
	Run(ctx context.Context, goal string, cfg Config) error
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// LookPath resolves name against PATH.
	LookPath(name string) (string, error)
}
