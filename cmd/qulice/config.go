package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/driver733/qulice/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [directory]",
	Short: "Show the effective configuration",
	Long: `Print the configuration qulice would use for directory (default: the
current directory), after merging defaults, ~/.config/qulice/config.yaml,
the nearest .qulice.yaml and QULICE_* environment variables.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		root, err := projectRoot(dir)
		if err != nil {
			return err
		}
		cfg, err := config.LoadFor(root)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return showConfig(cmd.OutOrStdout(), root, cfg)
	},
}

// showConfig prints the sources as YAML comments, then the merged config.
func showConfig(w io.Writer, root string, cfg *config.Config) error {
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	project := config.FindProjectConfig(root)
	if project == "" {
		project = "(none)"
	}
	fmt.Fprintf(w, "# user config: %s\n", config.GetUserConfigPath())
	fmt.Fprintf(w, "# project config: %s\n", project)
	_, err = w.Write(data)
	return err
}
