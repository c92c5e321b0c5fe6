package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./recordings", cfg.RecordingsDir)
	assert.Equal(t, 30*time.Second, cfg.PollInterval.Std())
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, "MEET", cfg.Confluence.SpaceKey)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
recordings_dir: /srv/recordings
poll_interval: 2m
jira:
  base_url: https://acme.atlassian.net
  project_key: ACME
roster:
  members:
    - Alice Johnson
    - Bob Smith
  aliases:
    ally: Alice Johnson
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/recordings", cfg.RecordingsDir)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval.Std())
	assert.Equal(t, "ACME", cfg.Jira.ProjectKey)
	assert.Equal(t, []string{"Alice Johnson", "Bob Smith"}, cfg.Roster.Members)
	assert.Equal(t, "Alice Johnson", cfg.Roster.Aliases["ally"])
	// File did not set the model, default survives.
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JIRA_API_TOKEN", "secret-token")
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("RECORDINGS_POLL_INTERVAL", "10")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Jira.APIToken)
	assert.Equal(t, "groq-key", cfg.LLM.APIKey)
	assert.Equal(t, 10*time.Second, cfg.PollInterval.Std())
}

func TestEnvKeyPrecedence(t *testing.T) {
	t.Setenv("LLM_API_KEY", "primary")
	t.Setenv("GROQ_API_KEY", "legacy")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.LLM.APIKey)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestParseEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment line
JIRA_EMAIL=bot@example.com
CONFLUENCE_SPACE_KEY="TEAM"
`), 0644))

	vars, err := ParseEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"JIRA_EMAIL":           "bot@example.com",
		"CONFLUENCE_SPACE_KEY": "TEAM",
	}, vars)
}

func TestParseEnvFileBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JIRA_EMAIL=a\nnot a pair\n"), 0644))

	_, err := ParseEnvFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":2:")
}

func TestLoadEnvFileSetsUnsetVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JIRA_EMAIL=bot@example.com\n"), 0644))

	t.Setenv("JIRA_EMAIL", "restored-later")
	os.Unsetenv("JIRA_EMAIL")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "bot@example.com", os.Getenv("JIRA_EMAIL"))
}

func TestLoadEnvFileKeepsExistingEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JIRA_EMAIL=file@example.com\n"), 0644))

	t.Setenv("JIRA_EMAIL", "env@example.com")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "env@example.com", os.Getenv("JIRA_EMAIL"))
}
