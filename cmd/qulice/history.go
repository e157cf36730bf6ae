package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/driver733/qulice/internal/config"
	"github.com/driver733/qulice/internal/state"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded quality gate runs",
	Long: `List recent runs recorded in .qulice/state.db, newest first.

With a run ID, shows each validator outcome of that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to list (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(".")
	if err != nil {
		return err
	}
	cfg, err := config.LoadFor(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(state.ProjectDBPath(root)); os.IsNotExist(err) {
		fmt.Fprintln(out, "No runs recorded. Run 'qulice check' to start.")
		return nil
	}

	db, err := state.OpenProject(root, cfg.History.Driver)
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		return showRun(out, db, args[0])
	}
	return listRuns(out, db, historyLimit)
}

func listRuns(w io.Writer, db *state.DB, limit int) error {
	runs, err := db.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	for _, r := range runs {
		status := stateColor(r.State).Sprintf("%-7s", r.State)
		note := ""
		if r.Skipped {
			note = " (skipped)"
		} else if r.FailedIndex >= 0 {
			note = fmt.Sprintf(" (failed at #%d)", r.FailedIndex+1)
		}
		fmt.Fprintf(w, "%s  %s  %s  %s%s\n",
			shortID(r.ID),
			status,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			note,
		)
	}
	return nil
}

func showRun(w io.Writer, db *state.DB, id string) error {
	r, err := db.GetRun(id)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("run %s not found", id)
	}

	bold := color.New(color.Bold)
	bold.Fprintf(w, "Run %s\n", r.ID)
	fmt.Fprintf(w, "Dir:      %s\n", r.Dir)
	fmt.Fprintf(w, "State:    %s\n", stateColor(r.State).Sprint(r.State))
	fmt.Fprintf(w, "Started:  %s\n", r.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if r.Skipped {
		fmt.Fprintln(w, "Gate was skipped.")
		return nil
	}

	fmt.Fprintln(w)
	for _, e := range r.Entries {
		fmt.Fprintf(w, "%d. %-14s %s  %s\n",
			e.Index+1, e.Validator, stateColor(e.Outcome).Sprintf("%-6s", e.Outcome), e.Duration.Round(time.Millisecond))
		if e.Message != "" {
			fmt.Fprintf(w, "   %s\n", e.Message)
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func stateColor(s string) *color.Color {
	switch s {
	case "passed":
		return color.New(color.FgGreen)
	case "failed", "error":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}
