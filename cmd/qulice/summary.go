package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/driver733/qulice/internal/validation"
)

// printSummary writes the report summary, coloring pass and fail lines.
func printSummary(w io.Writer, report *validation.Report) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	bold := color.New(color.Bold)

	for _, line := range strings.Split(strings.TrimRight(validation.Summary(report), "\n"), "\n") {
		switch {
		case strings.Contains(line, "✓"):
			green.Fprintln(w, line)
		case strings.Contains(line, "✗"):
			red.Fprintln(w, line)
		case strings.HasSuffix(line, "results:"):
			bold.Fprintln(w, line)
		default:
			fmt.Fprintln(w, line)
		}
	}
}
