// Package environment holds the read-only project state shared by every
// validator in a run.
package environment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/driver733/qulice/internal/exec"
)

// DefaultOutputDir is the build output directory, relative to the base dir.
const DefaultOutputDir = "bin"

// allValidators keys excludes that apply to every validator.
const allValidators = "*"

// Environment exposes project metadata and the executor to validators.
// It is built once per run and never changes afterwards; accessors that
// return collections return copies.
type Environment struct {
	baseDir    string
	outputDir  string
	classpath  []string
	properties map[string]string
	excludes   map[string][]string
	executor   exec.Executor
	logger     *zap.Logger
}

// Option configures an Environment under construction.
type Option func(*Environment)

// WithOutputDir sets the build output directory. Relative paths are
// resolved against the base dir.
func WithOutputDir(dir string) Option {
	return func(e *Environment) {
		if dir != "" {
			e.outputDir = dir
		}
	}
}

// WithClasspath sets the ordered package patterns analysed by validators.
func WithClasspath(patterns ...string) Option {
	return func(e *Environment) {
		if len(patterns) > 0 {
			e.classpath = append([]string(nil), patterns...)
		}
	}
}

// WithProperties merges props into the configuration properties.
func WithProperties(props map[string]string) Option {
	return func(e *Environment) {
		for k, v := range props {
			e.properties[k] = v
		}
	}
}

// WithExcludes adds exclusion entries of the form "validator:pattern".
// An entry without a validator prefix applies to all validators.
func WithExcludes(entries ...string) Option {
	return func(e *Environment) {
		for _, entry := range entries {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			name, pattern := allValidators, entry
			if i := strings.Index(entry, ":"); i > 0 {
				name, pattern = entry[:i], entry[i+1:]
			}
			e.excludes[name] = append(e.excludes[name], pattern)
		}
	}
}

// WithExecutor sets the executor used to invoke external tools.
func WithExecutor(x exec.Executor) Option {
	return func(e *Environment) {
		e.executor = x
	}
}

// WithLogger sets the logger handed to validators.
func WithLogger(l *zap.Logger) Option {
	return func(e *Environment) {
		if l != nil {
			e.logger = l
		}
	}
}

// New builds an Environment rooted at baseDir, which must be an existing
// directory.
func New(baseDir string, opts ...Option) (*Environment, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat base dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base dir %s is not a directory", abs)
	}

	e := &Environment{
		baseDir:    abs,
		outputDir:  DefaultOutputDir,
		classpath:  []string{"./..."},
		properties: make(map[string]string),
		excludes:   make(map[string][]string),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if !filepath.IsAbs(e.outputDir) {
		e.outputDir = filepath.Join(e.baseDir, e.outputDir)
	}
	if e.executor == nil {
		e.executor = missingExecutor{}
	}
	return e, nil
}

// BaseDir returns the absolute project base directory.
func (e *Environment) BaseDir() string {
	return e.baseDir
}

// OutputDir returns the absolute build output directory.
func (e *Environment) OutputDir() string {
	return e.outputDir
}

// Classpath returns the package patterns in their configured order.
func (e *Environment) Classpath() []string {
	return append([]string(nil), e.classpath...)
}

// Properties returns a copy of the configuration properties.
func (e *Environment) Properties() map[string]string {
	out := make(map[string]string, len(e.properties))
	for k, v := range e.properties {
		out[k] = v
	}
	return out
}

// Property returns the property key, or def when it is unset.
func (e *Environment) Property(key, def string) string {
	if v, ok := e.properties[key]; ok {
		return v
	}
	return def
}

// BoolProperty parses the property key as a bool, returning def when it is
// unset or unparseable.
func (e *Environment) BoolProperty(key string, def bool) bool {
	v, ok := e.properties[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// Excludes returns the exclusion patterns for validator, including those
// that apply to all validators.
func (e *Environment) Excludes(validator string) []string {
	out := append([]string(nil), e.excludes[allValidators]...)
	if validator != allValidators {
		out = append(out, e.excludes[validator]...)
	}
	sort.Strings(out)
	return out
}

// Excluded reports whether rel, a path relative to the base dir, is
// excluded for validator.
func (e *Environment) Excluded(validator, rel string) bool {
	for _, pattern := range e.Excludes(validator) {
		if MatchGlob(rel, pattern) {
			return true
		}
	}
	return false
}

// Executor returns the tool executor. It is never nil.
func (e *Environment) Executor() exec.Executor {
	return e.executor
}

// Logger returns the run logger. It is never nil.
func (e *Environment) Logger() *zap.Logger {
	return e.logger
}

// missingExecutor stands in when the host configured no executor.
type missingExecutor struct{}

func (missingExecutor) Execute(_ context.Context, tool, goal string, _ exec.Config) error {
	return exec.Failf(tool, goal, exec.ReasonUnknownTool, "no executor configured")
}
