package exec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// CommandSpec describes an external tool binary.
type CommandSpec struct {
	// Command is the binary name or path.
	Command string
	// Goals maps each goal to the arguments that select it,
	// e.g. "lint" -> ["run", "./..."].
	Goals map[string][]string
	// WorkDir is the working directory for the process.
	WorkDir string
}

// CommandTool runs an external binary per goal. The configuration tree is
// appended as sorted --key=value flags after the goal arguments.
type CommandTool struct {
	spec   CommandSpec
	runner CommandRunner
}

// NewCommandTool creates a CommandTool. A nil runner uses os/exec.
func NewCommandTool(spec CommandSpec, runner CommandRunner) *CommandTool {
	if runner == nil {
		runner = NewRunner()
	}
	return &CommandTool{spec: spec, runner: runner}
}

// Goals lists the configured goals, sorted.
func (t *CommandTool) Goals() []string {
	goals := make([]string, 0, len(t.spec.Goals))
	for g := range t.spec.Goals {
		goals = append(goals, g)
	}
	sort.Strings(goals)
	return goals
}

// Args returns the full argument list for goal and cfg.
func (t *CommandTool) Args(goal string, cfg Config) []string {
	args := append([]string{}, t.spec.Goals[goal]...)
	for _, p := range cfg.Flatten() {
		args = append(args, fmt.Sprintf("--%s=%s", p.Key, p.Value))
	}
	return args
}

// Run executes the binary for goal.
func (t *CommandTool) Run(ctx context.Context, goal string, cfg Config) error {
	path, err := t.runner.LookPath(t.spec.Command)
	if err != nil {
		return &ExecutionFailure{
			Goal:    goal,
			Reason:  ReasonNotFound,
			Message: fmt.Sprintf("command %q not found", t.spec.Command),
			Err:     err,
		}
	}

	output, err := t.runner.Run(ctx, t.spec.WorkDir, path, t.Args(goal, cfg)...)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ExecutionFailure{
			Goal:    goal,
			Reason:  ReasonToolFailed,
			Message: "command interrupted: " + ctxErr.Error(),
			Output:  string(output),
			Err:     ctxErr,
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExecutionFailure{
			Goal:    goal,
			Reason:  ReasonToolFailed,
			Message: fmt.Sprintf("%s exited with status %d", t.spec.Command, exitErr.ExitCode()),
			Output:  strings.TrimSpace(string(output)),
			Err:     err,
		}
	}

	// Command failed to start
	return &ExecutionFailure{
		Goal:    goal,
		Reason:  ReasonNotFound,
		Message: "start " + t.spec.Command + ": " + err.Error(),
		Output:  string(output),
		Err:     err,
	}
}

// Verify CommandTool implements Tool at compile time.
var _ Tool = (*CommandTool)(nil)
