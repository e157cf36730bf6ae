package validation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/driver733/qulice/internal/enforcer"
	"github.com/driver733/qulice/internal/environment"
	"github.com/driver733/qulice/internal/exec"
)

// Rule is one enforcer rule and the version it requires.
type Rule struct {
	Name    string
	Version string
}

// EnforcerValidator delegates version policy to the enforcer tool through
// the environment's executor.
type EnforcerValidator struct {
	rules []Rule
}

// NewEnforcerValidator creates a validator enforcing rules, in order.
func NewEnforcerValidator(rules ...Rule) *EnforcerValidator {
	return &EnforcerValidator{rules: append([]Rule(nil), rules...)}
}

// Name implements Validator.
func (v *EnforcerValidator) Name() string {
	return NameEnforcer
}

// Config builds the configuration tree passed to the enforcer:
// rules -> <rule name> -> version.
func (v *EnforcerValidator) Config() exec.Config {
	tree := exec.NewConfig()
	rules := tree.Child("rules")
	for _, r := range v.rules {
		rules.Child(r.Name).Set("version", r.Version)
	}
	return tree
}

// Validate implements Validator. The enforcer is invoked exactly once, even
// with no rules; whatever it reports is returned unchanged in kind.
func (v *EnforcerValidator) Validate(ctx context.Context, env *environment.Environment) error {
	env.Logger().Named(v.Name()).Debug("invoking enforcer", zap.Int("rules", len(v.rules)))
	if err := env.Executor().Execute(ctx, enforcer.ToolID, enforcer.GoalEnforce, v.Config()); err != nil {
		return fmt.Errorf("%s: %w", v.Name(), err)
	}
	return nil
}
