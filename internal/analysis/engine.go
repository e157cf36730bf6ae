// Package analysis runs bug-pattern analyzers over a module's packages.
package analysis

import (
	"context"
	"fmt"
	"sort"
)

// Target describes what an Engine analyses.
type Target struct {
	// Dir is the module directory packages are loaded from.
	Dir string
	// Patterns are go list package patterns, in order.
	Patterns []string
	// Tests also loads _test.go files.
	Tests bool
	// Exclude drops diagnostics in files whose slash-separated path,
	// relative to Dir, it returns true for. May be nil.
	Exclude func(rel string) bool
}

// Engine finds bug patterns in a Target.
type Engine interface {
	Analyze(ctx context.Context, target Target) (*Result, error)
}

// Diagnostic is one reported bug.
type Diagnostic struct {
	Analyzer string
	// File is relative to the target dir when possible.
	File    string
	Line    int
	Column  int
	Message string
}

// String renders the diagnostic as file:line:col: message (analyzer).
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s (%s)", d.File, d.Line, d.Column, d.Message, d.Analyzer)
}

// Result holds the bugs found by one analysis.
type Result struct {
	diagnostics []Diagnostic
}

// NewResult returns a Result holding diags, sorted and deduplicated.
func NewResult(diags ...Diagnostic) *Result {
	sorted := append([]Diagnostic(nil), diags...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.Analyzer != b.Analyzer {
			return a.Analyzer < b.Analyzer
		}
		return a.Message < b.Message
	})

	out := sorted[:0]
	for i, d := range sorted {
		if i > 0 && d == sorted[i-1] {
			continue
		}
		out = append(out, d)
	}
	return &Result{diagnostics: out}
}

// BugCount returns the number of distinct bugs found.
func (r *Result) BugCount() int {
	if r == nil {
		return 0
	}
	return len(r.diagnostics)
}

// Diagnostics returns a copy of the bugs found, in file order.
func (r *Result) Diagnostics() []Diagnostic {
	if r == nil {
		return nil
	}
	return append([]Diagnostic(nil), r.diagnostics...)
}
