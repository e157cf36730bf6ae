package validation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/driver733/qulice/internal/environment"
	"github.com/driver733/qulice/internal/exec"
)

// ToolValidator runs one goal of a tool registered with the executor,
// typically an external command declared in the config file. It is named
// after the tool, so it can be ordered and skipped like the built-ins.
type ToolValidator struct {
	id   string
	goal string
	cfg  exec.Config
}

// NewToolValidator creates a validator executing goal of tool id with cfg.
func NewToolValidator(id, goal string, cfg exec.Config) *ToolValidator {
	if cfg == nil {
		cfg = exec.NewConfig()
	}
	return &ToolValidator{id: id, goal: goal, cfg: cfg.Clone()}
}

// Name implements Validator.
func (v *ToolValidator) Name() string {
	return v.id
}

// Goal is the goal the validator executes.
func (v *ToolValidator) Goal() string {
	return v.goal
}

// Validate implements Validator. Any failure of the tool, including a
// non-zero exit, is an execution failure and fails the gate.
func (v *ToolValidator) Validate(ctx context.Context, env *environment.Environment) error {
	env.Logger().Named(v.id).Debug("invoking tool", zap.String("goal", v.goal))
	if err := env.Executor().Execute(ctx, v.id, v.goal, v.cfg); err != nil {
		return fmt.Errorf("%s: %w", v.id, err)
	}
	return nil
}
