// Package enforcer is the built-in policy/version enforcement tool.
//
// It is registered with the executor under ToolID and understands one goal,
// GoalEnforce. The configuration tree it expects is
//
//	rules:
//	  requireBuildToolVersion:
//	    version: "1.21"
//	  requireRuntimeVersion:
//	    version: ">= 1.18, < 2"
//
// A bare version means "at least this version"; anything starting with an
// operator is taken as a semver constraint.
package enforcer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
	"golang.org/x/mod/modfile"

	"github.com/driver733/qulice/internal/exec"
)

const (
	// ToolID identifies the enforcer in the executor registry.
	ToolID = "qulice:enforcer"
	// GoalEnforce checks every configured rule.
	GoalEnforce = "enforce"

	// RuleBuildToolVersion constrains the Go toolchain used to build.
	RuleBuildToolVersion = "requireBuildToolVersion"
	// RuleRuntimeVersion constrains the language version the module targets.
	RuleRuntimeVersion = "requireRuntimeVersion"
)

// VersionSource reports the actual version a rule is checked against.
type VersionSource func(ctx context.Context) (string, error)

// Tool checks version rules.
type Tool struct {
	sources map[string]VersionSource
	logger  *zap.Logger
}

// Option configures a Tool.
type Option func(*Tool)

// WithVersionSource overrides where the actual version for rule comes from.
func WithVersionSource(rule string, src VersionSource) Option {
	return func(t *Tool) {
		t.sources[rule] = src
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tool) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates an enforcer for the module rooted at baseDir. The build tool
// version is read from `go env GOVERSION` through runner; the runtime
// version from the go directive in go.mod.
func New(baseDir string, runner exec.CommandRunner, opts ...Option) *Tool {
	if runner == nil {
		runner = exec.NewRunner()
	}
	t := &Tool{
		sources: map[string]VersionSource{
			RuleBuildToolVersion: ToolchainVersion(baseDir, runner),
			RuleRuntimeVersion:   ModuleGoVersion(baseDir),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Goals implements exec.Tool.
func (t *Tool) Goals() []string {
	return []string{GoalEnforce}
}

// Run implements exec.Tool.
func (t *Tool) Run(ctx context.Context, goal string, cfg exec.Config) error {
	if goal != GoalEnforce {
		return exec.Failf(ToolID, goal, exec.ReasonUnknownGoal, "unsupported goal")
	}

	rules, ok := cfg.Lookup("rules")
	if !ok || len(rules) == 0 {
		return exec.Failf(ToolID, goal, exec.ReasonMalformedConfig, "no rules configured")
	}

	var violations []string
	for _, name := range rules.Keys() {
		rule, ok := rules.Lookup(name)
		if !ok {
			return exec.Failf(ToolID, goal, exec.ReasonMalformedConfig, "rule %s: expected a nested tree", name)
		}
		required, ok := rule.String("version")
		if !ok || strings.TrimSpace(required) == "" {
			return exec.Failf(ToolID, goal, exec.ReasonMalformedConfig, "rule %s: missing version", name)
		}
		src, ok := t.sources[name]
		if !ok {
			return exec.Failf(ToolID, goal, exec.ReasonMalformedConfig, "unknown rule %s", name)
		}

		req, err := ParseRequirement(required)
		if err != nil {
			return exec.Failf(ToolID, goal, exec.ReasonMalformedConfig, "rule %s: %v", name, err)
		}

		actualRaw, err := src(ctx)
		if err != nil {
			return &exec.ExecutionFailure{
				Tool:    ToolID,
				Goal:    goal,
				Reason:  exec.ReasonNotFound,
				Message: fmt.Sprintf("rule %s: detect version", name),
				Err:     err,
			}
		}
		actual, err := ParseVersion(actualRaw)
		if err != nil {
			return exec.Failf(ToolID, goal, exec.ReasonToolFailed, "rule %s: %v", name, err)
		}

		t.logger.Debug("checking rule",
			zap.String("rule", name),
			zap.String("required", required),
			zap.String("actual", actual.String()))

		if !req.Allows(actual) {
			violations = append(violations, fmt.Sprintf("%s: %s does not satisfy %q", name, actualRaw, required))
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		return exec.Failf(ToolID, goal, exec.ReasonToolFailed, "%d rule(s) violated: %s",
			len(violations), strings.Join(violations, "; "))
	}
	return nil
}

// Requirement is a parsed rule version: either a floor ("1.21") or a
// semver constraint (">= 1.18, < 2").
type Requirement struct {
	floor       *semver.Version
	constraints *semver.Constraints
}

// ParseRequirement parses a rule version. A bare version v means ">= v".
func ParseRequirement(required string) (*Requirement, error) {
	required = strings.TrimSpace(required)
	if required == "" {
		return nil, fmt.Errorf("empty version")
	}
	if !strings.ContainsAny(required[:1], "<>=~^!") {
		v, err := ParseVersion(required)
		if err != nil {
			return nil, err
		}
		return &Requirement{floor: v}, nil
	}
	c, err := semver.NewConstraint(required)
	if err != nil {
		return nil, fmt.Errorf("parse constraint %q: %w", required, err)
	}
	return &Requirement{constraints: c}, nil
}

// Allows reports whether v meets the requirement. Release candidates are
// ordered before their release, so go1.21rc1 is below a 1.21 floor but
// go1.25rc1 is above it. Constraints never match prereleases in semver, so
// a prerelease is checked against them by its release version.
func (r *Requirement) Allows(v *semver.Version) bool {
	if r.floor != nil {
		return !v.LessThan(r.floor)
	}
	if v.Prerelease() != "" {
		release, err := v.SetPrerelease("")
		if err == nil {
			v = &release
		}
	}
	return r.constraints.Check(v)
}

// ParseVersion parses versions such as "1.6", "go1.22.3" or "1.21rc1".
func ParseVersion(raw string) (*semver.Version, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "go")
	// go1.21rc1 -> 1.21-rc1
	for _, pre := range []string{"rc", "beta", "alpha"} {
		if i := strings.Index(s, pre); i > 0 && s[i-1] != '-' {
			s = s[:i] + "-" + s[i:]
			break
		}
	}
	// Toolchains may append build info: "go1.22.3 X:nocoverageredesign"
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("parse version %q: %w", raw, err)
	}
	return v, nil
}

// ToolchainVersion reports the Go toolchain version via `go env GOVERSION`,
// falling back to the version this binary was built with.
func ToolchainVersion(baseDir string, runner exec.CommandRunner) VersionSource {
	return func(ctx context.Context) (string, error) {
		goBin, err := runner.LookPath("go")
		if err != nil {
			return runtime.Version(), nil
		}
		out, err := runner.Run(ctx, baseDir, goBin, "env", "GOVERSION")
		if err != nil {
			return "", fmt.Errorf("go env GOVERSION: %w", err)
		}
		return strings.TrimSpace(string(out)), nil
	}
}

// ModuleGoVersion reports the go directive of baseDir/go.mod, falling back
// to the version this binary was built with when the module declares none.
func ModuleGoVersion(baseDir string) VersionSource {
	return func(ctx context.Context) (string, error) {
		path := filepath.Join(baseDir, "go.mod")
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return runtime.Version(), nil
		}
		if err != nil {
			return "", fmt.Errorf("read go.mod: %w", err)
		}
		f, err := modfile.ParseLax(path, data, nil)
		if err != nil {
			return "", fmt.Errorf("parse go.mod: %w", err)
		}
		if f.Go == nil {
			return runtime.Version(), nil
		}
		return f.Go.Version, nil
	}
}

// Verify Tool implements exec.Tool at compile time.
var _ exec.Tool = (*Tool)(nil)
