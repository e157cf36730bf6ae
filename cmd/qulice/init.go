package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/driver733/qulice/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Write a default .qulice.yaml",
	Long: `Create .qulice.yaml with the default configuration in directory
(default: the module root of the current directory).

An existing file is never overwritten.`,
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
		return initProject(cmd.OutOrStdout(), root)
	},
}

func initProject(w io.Writer, root string) error {
	path := filepath.Join(root, config.ProjectFile)
	if _, err := os.Stat(path); err == nil {
		printStatus(w, "⚠", fmt.Sprintf("%s already exists", path), color.FgYellow)
		return nil
	}
	if err := config.WriteFile(path, config.Default()); err != nil {
		printStatus(w, "✗", "Could not write config", color.FgRed)
		return err
	}
	printStatus(w, "✓", fmt.Sprintf("Created %s", path), color.FgGreen)
	return nil
}

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}
