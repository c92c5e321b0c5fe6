// Package config loads application settings from an optional YAML
// file with environment variable overrides. Secrets are expected to
// come from the environment or a .env file, not the YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts either a Go duration string ("90s", "2m") or a
// bare number of seconds in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if secs, err := strconv.Atoi(value.Value); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type LLMConfig struct {
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type JiraConfig struct {
	BaseURL    string `yaml:"base_url"`
	Email      string `yaml:"email"`
	APIToken   string `yaml:"api_token"`
	ProjectKey string `yaml:"project_key"`
}

type ConfluenceConfig struct {
	BaseURL  string `yaml:"base_url"`
	Email    string `yaml:"email"`
	APIToken string `yaml:"api_token"`
	SpaceKey string `yaml:"space_key"`
}

type TranscribeConfig struct {
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RosterConfig struct {
	Members []string          `yaml:"members"`
	Aliases map[string]string `yaml:"aliases"`
}

type Config struct {
	RecordingsDir string   `yaml:"recordings_dir"`
	PollInterval  Duration `yaml:"poll_interval"`
	MetricsAddr   string   `yaml:"metrics_addr"`
	AuditDir      string   `yaml:"audit_dir"`

	LLM        LLMConfig        `yaml:"llm"`
	Jira       JiraConfig       `yaml:"jira"`
	Confluence ConfluenceConfig `yaml:"confluence"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Database   DatabaseConfig   `yaml:"database"`
	Roster     RosterConfig     `yaml:"roster"`
}

// Default returns the configuration used when neither file nor
// environment says otherwise.
func Default() Config {
	return Config{
		RecordingsDir: "./recordings",
		PollInterval:  Duration(30 * time.Second),
		MetricsAddr:   ":9090",
		LLM: LLMConfig{
			Model:   "llama-3.1-8b-instant",
			BaseURL: "https://api.groq.com/openai/v1",
		},
		Jira:       JiraConfig{ProjectKey: "PROJ"},
		Confluence: ConfluenceConfig{SpaceKey: "MEET"},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// when one is given, and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = Duration(30 * time.Second)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.RecordingsDir, "RECORDINGS_DIR")
	setString(&c.MetricsAddr, "METRICS_ADDR")
	setString(&c.AuditDir, "AUDIT_DIR")

	if v := os.Getenv("RECORDINGS_POLL_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.PollInterval = Duration(time.Duration(secs) * time.Second)
		}
	}

	setString(&c.LLM.APIKey, "LLM_API_KEY", "GROQ_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL", "GROQ_MODEL")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")

	setString(&c.Jira.BaseURL, "JIRA_SERVER")
	setString(&c.Jira.Email, "JIRA_EMAIL")
	setString(&c.Jira.APIToken, "JIRA_API_TOKEN")
	setString(&c.Jira.ProjectKey, "JIRA_PROJECT_KEY")

	setString(&c.Confluence.BaseURL, "CONFLUENCE_BASE_URL")
	setString(&c.Confluence.Email, "CONFLUENCE_EMAIL")
	setString(&c.Confluence.APIToken, "CONFLUENCE_API_TOKEN")
	setString(&c.Confluence.SpaceKey, "CONFLUENCE_SPACE_KEY")

	setString(&c.Transcribe.APIKey, "ASSEMBLYAI_API_KEY")
	setString(&c.Database.URL, "DATABASE_URL")
}

// setString applies the first non-empty environment variable from keys.
func setString(target *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*target = v
			return
		}
	}
}
