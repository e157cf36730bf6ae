package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/checker"
	"golang.org/x/tools/go/packages"
)

// maxLoadErrors bounds how many package errors a load failure reports.
const maxLoadErrors = 5

// Checker is the default Engine. It loads packages with go/packages and
// applies an analyzer suite through the x/tools checker driver.
type Checker struct {
	analyzers []*analysis.Analyzer
	logger    *zap.Logger
}

// NewChecker creates a Checker running the named analyzers, or the whole
// suite when names is empty.
func NewChecker(logger *zap.Logger, names ...string) (*Checker, error) {
	analyzers, err := Analyzers(names...)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{analyzers: analyzers, logger: logger}, nil
}

// Analyze implements Engine.
func (c *Checker) Analyze(ctx context.Context, target Target) (*Result, error) {
	patterns := target.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.LoadAllSyntax,
		Dir:     target.Dir,
		Tests:   target.Tests,
		Env:     append(os.Environ(), "GOWORK=off"),
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	if err := loadErrors(pkgs); err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		c.logger.Debug("no packages matched", zap.Strings("patterns", patterns))
		return NewResult(), nil
	}

	graph, err := checker.Analyze(c.analyzers, pkgs, &checker.Options{})
	if err != nil {
		return nil, fmt.Errorf("run analyzers: %w", err)
	}

	var diags []Diagnostic
	for _, act := range graph.Roots {
		if act.Err != nil {
			return nil, fmt.Errorf("%s on %s: %w", act.Analyzer.Name, act.Package.PkgPath, act.Err)
		}
		for _, d := range act.Diagnostics {
			pos := act.Package.Fset.Position(d.Pos)
			rel := relPath(target.Dir, pos.Filename)
			if target.Exclude != nil && target.Exclude(rel) {
				continue
			}
			diags = append(diags, Diagnostic{
				Analyzer: act.Analyzer.Name,
				File:     rel,
				Line:     pos.Line,
				Column:   pos.Column,
				Message:  d.Message,
			})
		}
	}

	result := NewResult(diags...)
	c.logger.Debug("analysis complete",
		zap.Int("packages", len(pkgs)),
		zap.Int("bugs", result.BugCount()))
	return result, nil
}

func loadErrors(pkgs []*packages.Package) error {
	var msgs []string
	total := 0
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			total++
			if len(msgs) < maxLoadErrors {
				msgs = append(msgs, e.Error())
			}
		}
	})
	if total == 0 {
		return nil
	}
	if total > len(msgs) {
		msgs = append(msgs, fmt.Sprintf("and %d more", total-len(msgs)))
	}
	return errors.New("load packages: " + strings.Join(msgs, "; "))
}

func relPath(dir, file string) string {
	if dir == "" || file == "" {
		return filepath.ToSlash(file)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return filepath.ToSlash(file)
	}
	rel, err := filepath.Rel(absDir, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}

// Verify Checker implements Engine at compile time.
var _ Engine = (*Checker)(nil)
