package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/driver733/qulice/internal/exec"
)

// maxSummaryOutput bounds tool output quoted in a summary.
const maxSummaryOutput = 200

// Describe explains a validator error in one line, telling a tool that
// could not run apart from one that found problems.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if vf, ok := AsValidationFailure(err); ok {
		return fmt.Sprintf("tool found %d problem(s)", vf.Count)
	}
	if IsExecutionFailure(err) {
		return "tool could not run: " + err.Error()
	}
	return err.Error()
}

// Summary renders a report for humans.
func Summary(r *Report) string {
	var sb strings.Builder

	sb.WriteString("Quality gate results:\n")
	if r.Skipped {
		sb.WriteString(fmt.Sprintf("\nSkipped (%s=true)\n", SkipProperty))
	}

	for _, e := range r.Entries {
		status := "✗ FAIL"
		switch e.Outcome {
		case OutcomePassed:
			status = "✓ PASS"
		case OutcomeError:
			status = "✗ ERROR"
		}
		sb.WriteString(fmt.Sprintf("\n%d. %s: %s [%v]\n", e.Index+1, e.Validator, status, e.Duration))
		if e.Err == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s\n", Describe(e.Err)))
		if vf, ok := AsValidationFailure(e.Err); ok {
			for _, d := range vf.Details {
				sb.WriteString(fmt.Sprintf("    %s\n", d))
			}
			if more := vf.Count - len(vf.Details); more > 0 {
				sb.WriteString(fmt.Sprintf("    ... and %d more\n", more))
			}
		}
		if out := truncateOutput(failureOutput(e.Err), maxSummaryOutput); out != "" {
			sb.WriteString(fmt.Sprintf("  Output: %s\n", out))
		}
	}

	if r.Passed() {
		sb.WriteString("\n✓ Quality gate passed\n")
	} else if f, ok := r.Failure(); ok {
		sb.WriteString(fmt.Sprintf("\n✗ Quality gate failed at %s\n", f.Validator))
	}

	sb.WriteString(fmt.Sprintf("\nTotal Duration: %v\n", r.Duration()))
	return sb.String()
}

func failureOutput(err error) string {
	var failure *exec.ExecutionFailure
	if errors.As(err, &failure) {
		return strings.TrimSpace(failure.Output)
	}
	return ""
}

// truncateOutput cuts s to at most limit bytes on a rune boundary.
func truncateOutput(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
