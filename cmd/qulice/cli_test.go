package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driver733/qulice/internal/config"
	"github.com/driver733/qulice/internal/state"
	"github.com/driver733/qulice/internal/validation"
	"github.com/driver733/qulice/internal/version"
)

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "qulice version "+version.Get()+"\n", buf.String())
}

func TestInitProject(t *testing.T) {
	root := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, initProject(&buf, root))
	assert.Contains(t, buf.String(), "Created")

	cfg, err := config.LoadFromPath(filepath.Join(root, config.ProjectFile))
	require.NoError(t, err)
	assert.Equal(t, config.Default().Validators.Order, cfg.Validators.Order)

	buf.Reset()
	require.NoError(t, initProject(&buf, root))
	assert.Contains(t, buf.String(), "already exists")
}

func TestHistoryListing(t *testing.T) {
	root := t.TempDir()
	db, err := state.OpenProject(root, state.DriverPure)
	require.NoError(t, err)
	defer db.Close()

	report := sampleReport()
	require.NoError(t, db.SaveRun(state.FromReport(root, report)))

	var buf bytes.Buffer
	require.NoError(t, listRuns(&buf, db, 10))
	assert.Contains(t, buf.String(), "run-1")
	assert.Contains(t, buf.String(), "(failed at #2)")

	buf.Reset()
	require.NoError(t, showRun(&buf, db, "run-1"))
	out := buf.String()
	assert.Contains(t, out, "1. enforcer")
	assert.Contains(t, out, "2. style")
	assert.Contains(t, out, "tool found 2 problem(s)")

	assert.Error(t, showRun(&buf, db, "missing"))
}

func TestHistoryListing_Empty(t *testing.T) {
	db, err := state.OpenProject(t.TempDir(), state.DriverPure)
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	require.NoError(t, listRuns(&buf, db, 0))
	assert.Equal(t, "No runs recorded.\n", buf.String())
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &validation.Report{State: validation.StatePassed, FailedIndex: -1})
	assert.True(t, strings.Contains(buf.String(), "Quality gate passed"))
}

func TestShowConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	root := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, showConfig(&buf, root, config.Default()))
	out := buf.String()
	assert.Contains(t, out, "# user config: "+filepath.Join(xdg, "qulice", "config.yaml")+"\n")
	assert.Contains(t, out, "# project config: (none)\n")
	assert.Contains(t, out, "output_dir: bin\n")

	require.NoError(t, initProject(&bytes.Buffer{}, root))
	buf.Reset()
	require.NoError(t, showConfig(&buf, root, config.Default()))
	assert.Contains(t, buf.String(), "# project config: "+filepath.Join(root, config.ProjectFile)+"\n")
}
