// Package config handles configuration loading for qulice.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/driver733/qulice/internal/analysis"
	"github.com/driver733/qulice/internal/enforcer"
	"github.com/driver733/qulice/internal/exec"
	"github.com/driver733/qulice/internal/validation"
)

// ProjectFile is the name of the project config file.
const ProjectFile = ".qulice.yaml"

// EnvPrefix prefixes environment overrides, e.g. QULICE_LOGGING_LEVEL.
const EnvPrefix = "QULICE"

// Config holds all configuration for qulice.
type Config struct {
	Validators   ValidatorsConfig   `mapstructure:"validators" yaml:"validators"`
	Enforcer     EnforcerConfig     `mapstructure:"enforcer" yaml:"enforcer"`
	Dependencies DependenciesConfig `mapstructure:"dependencies" yaml:"dependencies"`
	Style        StyleConfig        `mapstructure:"style" yaml:"style"`
	BugPatterns  BugPatternsConfig  `mapstructure:"bugpatterns" yaml:"bugpatterns"`
	Tools        []ToolConfig       `mapstructure:"tools" yaml:"tools,omitempty"`
	// Properties are "key=value" strings handed to validators.
	Properties []string `mapstructure:"properties" yaml:"properties,omitempty"`
	// Excludes are "validator:pattern" or bare "pattern" entries.
	Excludes  []string      `mapstructure:"excludes" yaml:"excludes,omitempty"`
	OutputDir string        `mapstructure:"output_dir" yaml:"output_dir"`
	Classpath []string      `mapstructure:"classpath" yaml:"classpath"`
	Logging   LoggingConfig `mapstructure:"logging" yaml:"logging"`
	History   HistoryConfig `mapstructure:"history" yaml:"history"`
}

// ValidatorsConfig selects and orders validators.
type ValidatorsConfig struct {
	Order []string `mapstructure:"order" yaml:"order"`
	Skip  []string `mapstructure:"skip" yaml:"skip,omitempty"`
}

// EnforcerConfig holds the enforcer rules.
type EnforcerConfig struct {
	Rules []RuleConfig `mapstructure:"rules" yaml:"rules"`
}

// RuleConfig is one enforcer rule. Rules are a list rather than a map
// because viper lowercases map keys.
type RuleConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Version string `mapstructure:"version" yaml:"version"`
}

// DependenciesConfig holds go.mod policy.
type DependenciesConfig struct {
	Banned            []string `mapstructure:"banned" yaml:"banned,omitempty"`
	MinGo             string   `mapstructure:"min_go" yaml:"min_go,omitempty"`
	AllowLocalReplace bool     `mapstructure:"allow_local_replace" yaml:"allow_local_replace"`
}

// StyleConfig holds style check settings.
type StyleConfig struct {
	// License is the license file whose first line headers must contain.
	License string `mapstructure:"license" yaml:"license,omitempty"`
}

// BugPatternsConfig holds bug-pattern analysis settings.
type BugPatternsConfig struct {
	// Analyzers restricts the suite; empty runs all analyzers.
	Analyzers  []string `mapstructure:"analyzers" yaml:"analyzers,omitempty"`
	Tests      bool     `mapstructure:"tests" yaml:"tests"`
	MaxDetails int      `mapstructure:"max_details" yaml:"max_details"`
}

// ToolConfig declares an external command tool. Each tool also becomes a
// validator named by its ID that runs Goal (default: the first goal).
type ToolConfig struct {
	ID      string       `mapstructure:"id" yaml:"id"`
	Command string       `mapstructure:"command" yaml:"command"`
	WorkDir string       `mapstructure:"work_dir" yaml:"work_dir,omitempty"`
	Goals   []GoalConfig `mapstructure:"goals" yaml:"goals"`
	Goal    string       `mapstructure:"goal" yaml:"goal,omitempty"`
	// Options are "key=value" entries passed as --key=value flags; dotted
	// keys nest.
	Options []string `mapstructure:"options" yaml:"options,omitempty"`
}

// GoalConfig maps a goal name to the arguments selecting it. Goals are a
// list rather than a map because viper lowercases map keys.
type GoalConfig struct {
	Name string   `mapstructure:"name" yaml:"name"`
	Args []string `mapstructure:"args" yaml:"args,omitempty"`
}

// Spec converts the declaration into an exec.CommandSpec.
func (t ToolConfig) Spec() exec.CommandSpec {
	goals := make(map[string][]string, len(t.Goals))
	for _, g := range t.Goals {
		goals[g.Name] = append([]string(nil), g.Args...)
	}
	return exec.CommandSpec{
		Command: t.Command,
		Goals:   goals,
		WorkDir: t.WorkDir,
	}
}

// RunGoal is the goal the gate executes.
func (t ToolConfig) RunGoal() string {
	if t.Goal != "" || len(t.Goals) == 0 {
		return t.Goal
	}
	return t.Goals[0].Name
}

// OptionTree builds the configuration tree handed to the tool.
func (t ToolConfig) OptionTree() (exec.Config, error) {
	tree := exec.NewConfig()
	for _, entry := range t.Options {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("option %q: expected key=value", entry)
		}
		parts := strings.Split(key, ".")
		node := tree
		for _, part := range parts[:len(parts)-1] {
			node = node.Child(part)
		}
		node.Set(parts[len(parts)-1], value)
	}
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}
	return tree, nil
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Keep is how many runs to retain; 0 keeps all.
	Keep int `mapstructure:"keep" yaml:"keep"`
	// Driver is the database/sql driver: "sqlite" or "sqlite3".
	Driver string `mapstructure:"driver" yaml:"driver"`
}

// LoadFor loads configuration for a project directory.
// Precedence (highest to lowest):
// 1. Environment variables (QULICE_*)
// 2. Project config (.qulice.yaml in dir or a parent)
// 3. User config (~/.config/qulice/config.yaml)
// 4. Built-in defaults
func LoadFor(dir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := FindProjectConfig(dir); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file over the defaults.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values viper cannot check by type.
func (c *Config) Validate() error {
	known := map[string]bool{
		validation.NameEnforcer:     true,
		validation.NameDependencies: true,
		validation.NameStyle:        true,
		validation.NameBugPatterns:  true,
	}
	for i, r := range c.Enforcer.Rules {
		if r.Name == "" || r.Version == "" {
			return fmt.Errorf("enforcer.rules[%d]: name and version are required", i)
		}
	}
	for i, t := range c.Tools {
		if err := t.validate(); err != nil {
			return fmt.Errorf("tools[%d]: %w", i, err)
		}
		if known[t.ID] || t.ID == enforcer.ToolID {
			return fmt.Errorf("tools[%d]: id %q is taken", i, t.ID)
		}
		known[t.ID] = true
	}
	for _, name := range c.Validators.Order {
		if !known[name] {
			return fmt.Errorf("validators.order: unknown validator %q", name)
		}
	}
	analyzers := make(map[string]bool)
	for _, name := range analysis.Names() {
		analyzers[name] = true
	}
	for _, name := range c.BugPatterns.Analyzers {
		if !analyzers[name] {
			return fmt.Errorf("bugpatterns.analyzers: unknown analyzer %q (available: %s)",
				name, strings.Join(analysis.Names(), ", "))
		}
	}
	if _, err := ParseProperties(c.Properties); err != nil {
		return err
	}
	if c.History.Keep < 0 {
		return fmt.Errorf("history.keep must not be negative")
	}
	return nil
}

// ParseProperties parses "key=value" entries. Later entries win.
func ParseProperties(entries []string) (map[string]string, error) {
	props := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("property %q: expected key=value", entry)
		}
		props[key] = value
	}
	return props, nil
}

// YAML renders the configuration as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// WriteFile writes cfg to path as YAML, refusing to overwrite.
func WriteFile(path string, cfg *Config) error {
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (t ToolConfig) validate() error {
	if t.ID == "" || t.Command == "" {
		return errors.New("id and command are required")
	}
	if len(t.Goals) == 0 {
		return fmt.Errorf("tool %s: at least one goal is required", t.ID)
	}
	seen := make(map[string]bool, len(t.Goals))
	for _, g := range t.Goals {
		if g.Name == "" {
			return fmt.Errorf("tool %s: goal without name", t.ID)
		}
		if seen[g.Name] {
			return fmt.Errorf("tool %s: duplicate goal %q", t.ID, g.Name)
		}
		seen[g.Name] = true
	}
	if !seen[t.RunGoal()] {
		return fmt.Errorf("tool %s: goal %q is not declared", t.ID, t.Goal)
	}
	if _, err := t.OptionTree(); err != nil {
		return fmt.Errorf("tool %s: %w", t.ID, err)
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("validators.order", d.Validators.Order)
	v.SetDefault("validators.skip", d.Validators.Skip)

	v.SetDefault("enforcer.rules", []map[string]any{
		{"name": enforcer.RuleBuildToolVersion, "version": d.Enforcer.Rules[0].Version},
		{"name": enforcer.RuleRuntimeVersion, "version": d.Enforcer.Rules[1].Version},
	})

	v.SetDefault("dependencies.banned", d.Dependencies.Banned)
	v.SetDefault("dependencies.min_go", d.Dependencies.MinGo)
	v.SetDefault("dependencies.allow_local_replace", d.Dependencies.AllowLocalReplace)

	v.SetDefault("style.license", d.Style.License)

	v.SetDefault("bugpatterns.analyzers", d.BugPatterns.Analyzers)
	v.SetDefault("bugpatterns.tests", d.BugPatterns.Tests)
	v.SetDefault("bugpatterns.max_details", d.BugPatterns.MaxDetails)

	v.SetDefault("tools", []map[string]any{})
	v.SetDefault("properties", d.Properties)
	v.SetDefault("excludes", d.Excludes)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("classpath", d.Classpath)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.keep", d.History.Keep)
	v.SetDefault("history.driver", d.History.Driver)
}

// getUserConfigDir returns the XDG config directory for qulice.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "qulice")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "qulice")
	}
	return filepath.Join(home, ".config", "qulice")
}

// FindProjectConfig searches for .qulice.yaml in dir and its parents.
func FindProjectConfig(dir string) string {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cur, ProjectFile)
		if info, err := os.Stat(configPath); err == nil && !info.IsDir() {
			return configPath
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Validators: ValidatorsConfig{
			Order: []string{
				validation.NameEnforcer,
				validation.NameDependencies,
				validation.NameStyle,
				validation.NameBugPatterns,
			},
			Skip: []string{},
		},
		Enforcer: EnforcerConfig{
			Rules: []RuleConfig{
				{Name: enforcer.RuleBuildToolVersion, Version: "1.21"},
				{Name: enforcer.RuleRuntimeVersion, Version: "1.18"},
			},
		},
		Dependencies: DependenciesConfig{
			Banned: []string{},
		},
		BugPatterns: BugPatternsConfig{
			Analyzers:  []string{},
			MaxDetails: 10,
		},
		Tools:      []ToolConfig{},
		Properties: []string{},
		Excludes:   []string{},
		OutputDir:  "bin",
		Classpath:  []string{"./..."},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		History: HistoryConfig{
			Enabled: true,
			Keep:    50,
			Driver:  "sqlite",
		},
	}
}
