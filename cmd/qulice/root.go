package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errGateFailed marks a run that completed but did not pass.
var errGateFailed = errors.New("quality gate failed")

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "qulice",
	Short: "Quality gate for Go modules",
	Long: `qulice runs a fixed pipeline of static checks over a Go module and
fails the build when any of them reports a violation.

Checks run in order and stop at the first failure:
- enforcer: toolchain and go directive version rules
- dependencies: go.mod policy (banned modules, local replaces, minimum go)
- style: gofmt conformance and license headers
- bugpatterns: go/analysis bug-pattern suite
- any external tool declared under tools:, named by its id

Configuration is read from ~/.config/qulice/config.yaml and .qulice.yaml
in the project or any parent directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errGateFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json (overrides config)")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
