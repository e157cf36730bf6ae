package validation

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/driver733/qulice/internal/environment"
	"github.com/driver733/qulice/internal/exec"
)

// LicenseProperty names the license file whose first line every source
// file's header must contain.
const LicenseProperty = "qulice.license"

// StyleToolID is what style check failures are attributed to.
const StyleToolID = "qulice:style"

// StyleValidator checks that Go sources are gofmt-formatted and, when a
// license is configured, carry the license header.
type StyleValidator struct {
	maxDetails int
}

// NewStyleValidator creates a style validator.
func NewStyleValidator() *StyleValidator {
	return &StyleValidator{maxDetails: maxDetails}
}

// Name implements Validator.
func (v *StyleValidator) Name() string {
	return NameStyle
}

// Validate implements Validator.
func (v *StyleValidator) Validate(ctx context.Context, env *environment.Environment) error {
	logger := env.Logger().Named(v.Name())

	license, err := licenseLine(env)
	if err != nil {
		return fmt.Errorf("%s: %w", v.Name(), err)
	}

	files, err := v.sources(env)
	if err != nil {
		return fmt.Errorf("%s: %w", v.Name(), &exec.ExecutionFailure{
			Tool:    StyleToolID,
			Goal:    GoalAnalyze,
			Reason:  exec.ReasonToolFailed,
			Message: "walk sources: " + err.Error(),
			Err:     err,
		})
	}

	var problems []string
	for _, rel := range files {
		src, err := os.ReadFile(filepath.Join(env.BaseDir(), filepath.FromSlash(rel)))
		if err != nil {
			return fmt.Errorf("%s: %w", v.Name(), &exec.ExecutionFailure{
				Tool:    StyleToolID,
				Goal:    GoalAnalyze,
				Reason:  exec.ReasonNotFound,
				Message: "read " + rel,
				Err:     err,
			})
		}
		problems = append(problems, checkSource(rel, src, license)...)
	}

	logger.Debug("style check finished",
		zap.Int("files", len(files)),
		zap.Int("problems", len(problems)))
	if len(problems) == 0 {
		return nil
	}
	return newFailure(v.Name(), len(problems), "style problem(s)", problems, v.maxDetails)
}

// sources lists the Go files to check, relative to the base dir, in
// lexical order. Directories the go tool ignores are skipped, as are the
// build output dir and excluded paths.
func (v *StyleValidator) sources(env *environment.Environment) ([]string, error) {
	base := env.BaseDir()
	var files []string

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == base {
				return nil
			}
			name := d.Name()
			if name == "vendor" || name == "testdata" ||
				strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				path == env.OutputDir() || env.Excluded(v.Name(), rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasSuffix(rel, ".go") && !env.Excluded(v.Name(), rel) {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}

// checkSource returns the style problems of one file.
func checkSource(rel string, src []byte, license string) []string {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, rel, src, parser.ParseComments)
	if err != nil {
		return []string{fmt.Sprintf("%s: does not parse: %v", rel, err)}
	}
	if ast.IsGenerated(file) {
		return nil
	}

	var problems []string
	formatted, err := format.Source(src)
	if err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", rel, err))
	} else if !bytes.Equal(formatted, src) {
		problems = append(problems, rel+": not gofmt-formatted")
	}

	if license != "" && !hasHeader(file, license) {
		problems = append(problems, rel+": missing license header")
	}
	return problems
}

// hasHeader reports whether a comment before the package clause contains
// line.
func hasHeader(file *ast.File, line string) bool {
	for _, group := range file.Comments {
		if group.Pos() >= file.Package {
			break
		}
		if strings.Contains(group.Text(), line) {
			return true
		}
	}
	return false
}

// licenseLine returns the first non-blank line of the configured license
// file, or "" when none is configured.
func licenseLine(env *environment.Environment) (string, error) {
	name := env.Property(LicenseProperty, "")
	if name == "" {
		return "", nil
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(env.BaseDir(), path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &exec.ExecutionFailure{
			Tool:    StyleToolID,
			Goal:    GoalAnalyze,
			Reason:  exec.ReasonNotFound,
			Message: "read license: " + err.Error(),
			Err:     err,
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", &exec.ExecutionFailure{
		Tool:    StyleToolID,
		Goal:    GoalAnalyze,
		Reason:  exec.ReasonMalformedConfig,
		Message: fmt.Sprintf("license file %s is empty", name),
	}
}
