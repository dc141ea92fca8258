package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the full run configuration. A Config obtained from Load or
// assembled by hand must pass Validate before use; the batch loop assumes
// it is immutable for the lifetime of a run.
type Config struct {
	Environment   EnvironmentConfig   `toml:"environment" yaml:"environment"`
	Agent         AgentConfig         `toml:"agent" yaml:"agent"`
	Actions       ActionsConfig       `toml:"actions" yaml:"actions"`
	Run           RunConfig           `toml:"run" yaml:"run"`
	Notifications NotificationsConfig `toml:"notifications" yaml:"notifications"`
}

// EnvironmentConfig describes the execution environment instances run in.
type EnvironmentConfig struct {
	// DataPath locates the dataset: a .json/.jsonl file, or a GitHub
	// issue URL for single-issue runs.
	DataPath  string `toml:"data_path" yaml:"data_path"`
	Split     string `toml:"split" yaml:"split"`
	ImageName string `toml:"image_name" yaml:"image_name"`
	// WorkDir is the repository checkout the agent works in; PR branches
	// are pushed from here.
	WorkDir string `toml:"work_dir" yaml:"work_dir"`
	// ResetCommand is run on every instance reset; its stdout becomes the
	// initial observation handed to the agent.
	ResetCommand string `toml:"reset_command" yaml:"reset_command"`
	// RestartCommand restores the environment to a clean baseline after a
	// per-instance failure.
	RestartCommand     string `toml:"restart_command" yaml:"restart_command"`
	CloseCommand       string `toml:"close_command" yaml:"close_command"`
	InstallEnvironment bool   `toml:"install_environment" yaml:"install_environment"`
	GitHubToken        string `toml:"github_token" yaml:"-"`
}

// AgentConfig describes the delegated problem-solving agent.
type AgentConfig struct {
	// Command is the agent executable invoked once per instance.
	Command    string      `toml:"command" yaml:"command"`
	ConfigFile string      `toml:"config_file" yaml:"config_file"`
	Model      ModelConfig `toml:"model" yaml:"model"`
}

// ModelConfig holds model settings that feed into the run name.
type ModelConfig struct {
	Name                 string  `toml:"name" yaml:"name"`
	Temperature          float64 `toml:"temperature" yaml:"temperature"`
	TopP                 float64 `toml:"top_p" yaml:"top_p"`
	PerInstanceCostLimit float64 `toml:"per_instance_cost_limit" yaml:"per_instance_cost_limit"`
	TotalCostLimit       float64 `toml:"total_cost_limit" yaml:"total_cost_limit"`
}

// ActionsConfig controls real-world side effects after a solved instance.
type ActionsConfig struct {
	OpenPR bool `toml:"open_pr" yaml:"open_pr"`
	// SkipIfCommitsReferenceIssue blocks PR creation when commits already
	// reference the issue. Only disable this for repositories you own.
	SkipIfCommitsReferenceIssue bool `toml:"skip_if_commits_reference_issue" yaml:"skip_if_commits_reference_issue"`
	// PushRepoURL, when set, pushes the PR branch to a fork instead of
	// the upstream repository.
	PushRepoURL string `toml:"push_repo_url" yaml:"push_repo_url"`
}

// RunConfig holds run-level knobs for the batch loop itself.
type RunConfig struct {
	// InstanceFilter must fully match an instance id for it to run.
	InstanceFilter string `toml:"instance_filter" yaml:"instance_filter"`
	SkipExisting   bool   `toml:"skip_existing" yaml:"skip_existing"`
	Suffix         string `toml:"suffix" yaml:"suffix"`
	// Strict re-raises per-instance errors instead of continuing.
	Strict          bool   `toml:"strict" yaml:"strict"`
	TrajectoriesDir string `toml:"trajectories_dir" yaml:"trajectories_dir"`
	DatabasePath    string `toml:"database_path" yaml:"database_path"`
}

// NotificationsConfig holds batch-completion notification settings.
type NotificationsConfig struct {
	SlackWebhook string `toml:"slack_webhook" yaml:"slack_webhook"`
	Desktop      bool   `toml:"desktop" yaml:"desktop"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Environment: EnvironmentConfig{
			ImageName:          "swebatch/swe-env:latest",
			Split:              "dev",
			InstallEnvironment: true,
		},
		Agent: AgentConfig{
			ConfigFile: "config/default.yaml",
			Model: ModelConfig{
				Name:                 "gpt4",
				Temperature:          0.0,
				TopP:                 0.95,
				PerInstanceCostLimit: 3.0,
			},
		},
		Actions: ActionsConfig{
			OpenPR:                      false,
			SkipIfCommitsReferenceIssue: true,
		},
		Run: RunConfig{
			InstanceFilter:  ".*",
			SkipExisting:    true,
			TrajectoriesDir: filepath.Join("trajectories", currentUser()),
			DatabasePath:    filepath.Join(home, ".swebatch", "runs.db"),
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults for
// anything unset, and validates the result. No partially-valid Config is
// ever returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.Run.TrajectoriesDir = ExpandPath(cfg.Run.TrajectoriesDir)
	cfg.Run.DatabasePath = ExpandPath(cfg.Run.DatabasePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration invariants. Violations are fatal at
// startup and never recovered.
func (c *Config) Validate() error {
	if !c.Actions.SkipIfCommitsReferenceIssue && c.Actions.PushRepoURL != "" {
		return fmt.Errorf("overriding skip_if_commits_reference_issue while pushing to a fork is not supported; apply the patch to the fork manually instead")
	}
	if _, err := c.CompileFilter(); err != nil {
		return fmt.Errorf("invalid instance_filter %q: %w", c.Run.InstanceFilter, err)
	}
	return nil
}

// CompileFilter compiles the instance filter with full-match semantics.
func (c *Config) CompileFilter() (*regexp.Regexp, error) {
	pat := c.Run.InstanceFilter
	if pat == "" {
		pat = ".*"
	}
	return regexp.Compile("^(?:" + pat + ")$")
}

// RunName derives a unique, stable name for the run from its settings.
func (c *Config) RunName() string {
	model := strings.ReplaceAll(c.Agent.Model.Name, ":", "-")
	dataStem := stem(c.Environment.DataPath)
	configStem := stem(c.Agent.ConfigFile)

	install := 0
	if c.Environment.InstallEnvironment {
		install = 1
	}

	name := fmt.Sprintf("%s__%s__%s__t-%.2f__p-%.2f__c-%.2f__install-%d",
		model, dataStem, configStem,
		c.Agent.Model.Temperature, c.Agent.Model.TopP,
		c.Agent.Model.PerInstanceCostLimit, install)
	if c.Run.Suffix != "" {
		name += "__" + c.Run.Suffix
	}
	return name
}

// RunDir returns the run directory for this configuration.
func (c *Config) RunDir() string {
	return filepath.Join(c.Run.TrajectoriesDir, c.RunName())
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "swebatch"
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "swebatch", "config.toml")
}
