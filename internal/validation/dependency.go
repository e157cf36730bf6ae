package validation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"

	"github.com/driver733/qulice/internal/enforcer"
	"github.com/driver733/qulice/internal/environment"
	"github.com/driver733/qulice/internal/exec"
)

// DependencyToolID is what go.mod analysis failures are attributed to.
const DependencyToolID = "qulice:dependencies"

// DependencyValidator enforces go.mod policy: no banned modules, no local
// replace directives unless allowed, and a minimum go directive.
type DependencyValidator struct {
	banned            []string
	minGo             string
	allowLocalReplace bool
	maxDetails        int
}

// DependencyOption configures a DependencyValidator.
type DependencyOption func(*DependencyValidator)

// WithBanned bans modules whose path matches any of patterns. A pattern
// is matched against the whole module path: "github.com/pkg/errors" bans
// that module, "github.com/sirupsen/**" everything under the prefix and
// "*" only single-segment paths.
func WithBanned(patterns ...string) DependencyOption {
	return func(v *DependencyValidator) {
		v.banned = append(v.banned, patterns...)
	}
}

// WithMinGo requires the go directive to be at least version.
func WithMinGo(version string) DependencyOption {
	return func(v *DependencyValidator) {
		v.minGo = version
	}
}

// WithLocalReplace allows replace directives pointing at local paths.
func WithLocalReplace(allow bool) DependencyOption {
	return func(v *DependencyValidator) {
		v.allowLocalReplace = allow
	}
}

// NewDependencyValidator creates a dependency validator.
func NewDependencyValidator(opts ...DependencyOption) *DependencyValidator {
	v := &DependencyValidator{maxDetails: maxDetails}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Name implements Validator.
func (v *DependencyValidator) Name() string {
	return NameDependencies
}

// Validate implements Validator.
func (v *DependencyValidator) Validate(ctx context.Context, env *environment.Environment) error {
	gomod := filepath.Join(env.BaseDir(), "go.mod")
	data, err := os.ReadFile(gomod)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", v.Name(), exec.Failf(DependencyToolID, GoalAnalyze, exec.ReasonNotFound,
			"no go.mod in %s", env.BaseDir()))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", v.Name(), &exec.ExecutionFailure{
			Tool: DependencyToolID, Goal: GoalAnalyze, Reason: exec.ReasonNotFound,
			Message: "read go.mod", Err: err,
		})
	}

	file, err := modfile.Parse(gomod, data, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", v.Name(), &exec.ExecutionFailure{
			Tool: DependencyToolID, Goal: GoalAnalyze, Reason: exec.ReasonToolFailed,
			Message: "parse go.mod: " + err.Error(), Err: err,
		})
	}

	problems, err := v.check(file)
	if err != nil {
		return fmt.Errorf("%s: %w", v.Name(), err)
	}

	env.Logger().Named(v.Name()).Debug("go.mod checked",
		zap.Int("requires", len(file.Require)),
		zap.Int("problems", len(problems)))
	if len(problems) == 0 {
		return nil
	}
	return newFailure(v.Name(), len(problems), "dependency problem(s)", problems, v.maxDetails)
}

func (v *DependencyValidator) check(file *modfile.File) ([]string, error) {
	var problems []string

	for _, req := range file.Require {
		for _, pattern := range v.banned {
			if matchModule(req.Mod.Path, pattern) {
				problems = append(problems, fmt.Sprintf("banned module %s %s (matches %q)",
					req.Mod.Path, req.Mod.Version, pattern))
				break
			}
		}
	}

	if !v.allowLocalReplace {
		for _, rep := range file.Replace {
			if rep.New.Version == "" && modfile.IsDirectoryPath(rep.New.Path) {
				problems = append(problems, fmt.Sprintf("local replace %s => %s", rep.Old.Path, rep.New.Path))
			}
		}
	}

	if v.minGo != "" {
		floor, err := enforcer.ParseVersion(v.minGo)
		if err != nil {
			return nil, exec.Failf(DependencyToolID, GoalAnalyze, exec.ReasonMalformedConfig,
				"min go version: %v", err)
		}
		switch {
		case file.Go == nil:
			problems = append(problems, "missing go directive")
		default:
			actual, err := enforcer.ParseVersion(file.Go.Version)
			if err != nil {
				problems = append(problems, fmt.Sprintf("go directive %s: %v", file.Go.Version, err))
			} else if actual.LessThan(floor) {
				problems = append(problems, fmt.Sprintf("go directive %s is older than %s", file.Go.Version, v.minGo))
			}
		}
	}

	return problems, nil
}

// matchModule matches a module path against a banned pattern. Unlike
// file excludes, a pattern without a slash is not applied per segment, so
// banning "errors" leaves github.com/pkg/errors alone.
func matchModule(modPath, pattern string) bool {
	if strings.Contains(pattern, "/") {
		return environment.MatchGlob(modPath, pattern)
	}
	ok, err := path.Match(pattern, modPath)
	return err == nil && ok
}
