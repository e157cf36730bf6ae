package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/driver733/qulice/internal/exec"
)

// isolate points the user config at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if got := strings.Join(cfg.Validators.Order, ","); got != "enforcer,dependencies,style,bugpatterns" {
		t.Errorf("validators.order = %s", got)
	}
	if len(cfg.Enforcer.Rules) != 2 {
		t.Fatalf("expected 2 default enforcer rules, got %d", len(cfg.Enforcer.Rules))
	}
	if cfg.OutputDir != "bin" {
		t.Errorf("output_dir = %q, want bin", cfg.OutputDir)
	}
	if cfg.History.Driver != "sqlite" || !cfg.History.Enabled {
		t.Errorf("history = %+v", cfg.History)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFor_DefaultsOnly(t *testing.T) {
	isolate(t)

	cfg, err := LoadFor(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFor failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("LoadFor mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFor_ProjectOverridesUser(t *testing.T) {
	xdg := isolate(t)
	writeFile(t, filepath.Join(xdg, "qulice", "config.yaml"), `
logging:
  level: debug
  format: json
history:
  keep: 5
`)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFile), `
logging:
  level: warn
validators:
  skip: [style]
enforcer:
  rules:
    - name: requireRuntimeVersion
      version: ">= 1.21, < 2"
properties:
  - qulice.license=LICENSE.txt
excludes:
  - "bugpatterns:internal/gen/**"
tools:
  - id: golangci-lint
    command: golangci-lint
    goals:
      - name: run
        args: [run, --out-format=line-number]
`)
	nested := filepath.Join(root, "internal", "pkg")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cfg, err := LoadFor(nested)
	if err != nil {
		t.Fatalf("LoadFor failed: %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("logging.level = %q, want warn (project wins)", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging.format = %q, want json (from user config)", cfg.Logging.Format)
	}
	if cfg.History.Keep != 5 {
		t.Errorf("history.keep = %d, want 5", cfg.History.Keep)
	}
	if diff := cmp.Diff([]string{"style"}, cfg.Validators.Skip); diff != "" {
		t.Errorf("validators.skip mismatch:\n%s", diff)
	}
	wantRules := []RuleConfig{{Name: "requireRuntimeVersion", Version: ">= 1.21, < 2"}}
	if diff := cmp.Diff(wantRules, cfg.Enforcer.Rules); diff != "" {
		t.Errorf("enforcer.rules mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"qulice.license=LICENSE.txt"}, cfg.Properties); diff != "" {
		t.Errorf("properties mismatch:\n%s", diff)
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].Spec().Goals["run"][0] != "run" {
		t.Errorf("tools = %+v", cfg.Tools)
	}
}

func TestLoadFor_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("QULICE_LOGGING_LEVEL", "debug")
	t.Setenv("QULICE_HISTORY_ENABLED", "false")

	cfg, err := LoadFor(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFor failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.History.Enabled {
		t.Error("history.enabled should be overridden to false")
	}
}

func TestLoadFor_InvalidProjectConfig(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFile), "validators:\n  order: [enforcer, findbugs]\n")

	if _, err := LoadFor(root); err == nil {
		t.Error("expected error for unknown validator")
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
dependencies:
  banned: ["github.com/pkg/errors"]
  min_go: "1.21"
bugpatterns:
  analyzers: [printf, nilness]
  max_details: 3
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Dependencies.MinGo != "1.21" || len(cfg.Dependencies.Banned) != 1 {
		t.Errorf("dependencies = %+v", cfg.Dependencies)
	}
	if cfg.BugPatterns.MaxDetails != 3 || len(cfg.BugPatterns.Analyzers) != 2 {
		t.Errorf("bugpatterns = %+v", cfg.BugPatterns)
	}
	if cfg.OutputDir != "bin" {
		t.Errorf("output_dir default lost: %q", cfg.OutputDir)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown validator", func(c *Config) { c.Validators.Order = []string{"pmd"} }},
		{"rule without version", func(c *Config) { c.Enforcer.Rules = []RuleConfig{{Name: "requireRuntimeVersion"}} }},
		{"tool without command", func(c *Config) { c.Tools = []ToolConfig{{ID: "lint"}} }},
		{"tool without goals", func(c *Config) { c.Tools = []ToolConfig{{ID: "lint", Command: "golangci-lint"}} }},
		{"tool with undeclared goal", func(c *Config) {
			c.Tools = []ToolConfig{{ID: "lint", Command: "golangci-lint", Goal: "fix", Goals: []GoalConfig{{Name: "run"}}}}
		}},
		{"tool shadowing a validator", func(c *Config) {
			c.Tools = []ToolConfig{{ID: "style", Command: "gofumpt", Goals: []GoalConfig{{Name: "run"}}}}
		}},
		{"tool with bad option", func(c *Config) {
			c.Tools = []ToolConfig{{ID: "lint", Command: "golangci-lint", Goals: []GoalConfig{{Name: "run"}}, Options: []string{"timeout"}}}
		}},
		{"unknown analyzer", func(c *Config) { c.BugPatterns.Analyzers = []string{"printf", "findbugs"} }},
		{"bad property", func(c *Config) { c.Properties = []string{"novalue"} }},
		{"negative keep", func(c *Config) { c.History.Keep = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_ToolInOrder(t *testing.T) {
	cfg := Default()
	cfg.Tools = []ToolConfig{{ID: "lint", Command: "golangci-lint", Goals: []GoalConfig{{Name: "run"}}}}
	cfg.Validators.Order = []string{"lint", "style"}
	cfg.BugPatterns.Analyzers = []string{"printf", "copylocks"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadFromPath_ToolGoalsKeepCase(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "qulice.yaml")
	writeFile(t, path, `
tools:
  - id: lint
    command: golangci-lint
    goal: runAll
    goals:
      - name: runAll
        args: [run, ./...]
      - name: fixOnly
        args: [run, --fix]
    options:
      - timeout=5m
      - output.format=json
validators:
  order: [lint, style]
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if len(cfg.Tools) != 1 {
		t.Fatalf("tools = %+v", cfg.Tools)
	}
	tool := cfg.Tools[0]
	if tool.RunGoal() != "runAll" {
		t.Errorf("RunGoal() = %q, want runAll", tool.RunGoal())
	}
	wantGoals := map[string][]string{
		"runAll":  {"run", "./..."},
		"fixOnly": {"run", "--fix"},
	}
	if diff := cmp.Diff(wantGoals, tool.Spec().Goals); diff != "" {
		t.Errorf("goals mismatch (-want +got):\n%s", diff)
	}

	tree, err := tool.OptionTree()
	if err != nil {
		t.Fatalf("OptionTree failed: %v", err)
	}
	wantFlat := []exec.Pair{
		{Key: "output.format", Value: "json"},
		{Key: "timeout", Value: "5m"},
	}
	if diff := cmp.Diff(wantFlat, tree.Flatten()); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestToolConfig_RunGoalDefaultsToFirst(t *testing.T) {
	tool := ToolConfig{Goals: []GoalConfig{{Name: "check"}, {Name: "fix"}}}
	if got := tool.RunGoal(); got != "check" {
		t.Errorf("RunGoal() = %q, want check", got)
	}
}

func TestParseProperties(t *testing.T) {
	got, err := ParseProperties([]string{"a=1", "b=x=y", "a=2", "empty="})
	if err != nil {
		t.Fatalf("ParseProperties failed: %v", err)
	}
	want := map[string]string{"a": "2", "b": "x=y", "empty": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseProperties mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseProperties([]string{"=v"}); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectFile)
	cfg := Default()
	cfg.Style.License = "LICENSE"

	if err := WriteFile(path, cfg); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := WriteFile(path, cfg); err == nil {
		t.Error("expected WriteFile to refuse overwriting")
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	if got := FindProjectConfig(root); got != "" {
		// a stray .qulice.yaml above the temp dir would make this flaky
		t.Skipf("found unrelated project config %s", got)
	}

	writeFile(t, filepath.Join(root, ProjectFile), "logging:\n  level: info\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if got := FindProjectConfig(nested); got != filepath.Join(root, ProjectFile) {
		t.Errorf("FindProjectConfig = %q", got)
	}
}
