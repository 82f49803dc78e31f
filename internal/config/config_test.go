package config

import (
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "calendar.ics"), cfg.Calendar.Path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timezone: Asia/Seoul
summarize:
  size_unit: tokens
  max_batch_chars: -4
calendar:
  subscriptions:
    - url: https://example.com/a.ics
briefing:
  cron: ""
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
	assert.Equal(t, "tokens", cfg.Summarize.SizeUnit)
	assert.Equal(t, defaultMaxBatchChars, cfg.Summarize.MaxBatchChars)
	assert.Equal(t, "sub1", cfg.Calendar.Subscriptions[0].ID)
	assert.Empty(t, cfg.Briefing.Cron)
	assert.Equal(t, defaultDurationMinutes, cfg.Calendar.DefaultDurationMinutes)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"timezone":     func(c *Config) { c.Timezone = "Mars/Olympus" },
		"size_unit":    func(c *Config) { c.Summarize.SizeUnit = "bytes" },
		"cron":         func(c *Config) { c.Briefing.Cron = "every morning" },
		"log_format":   func(c *Config) { c.LogFormat = "xml" },
		"subscription": func(c *Config) { c.Calendar.Subscriptions = []SubscriptionConfig{{ID: "a"}} },
		"duplicate": func(c *Config) {
			c.Calendar.Subscriptions = []SubscriptionConfig{{ID: "a", URL: "u"}, {ID: "a", URL: "v"}}
		},
		"basic_auth": func(c *Config) { c.BasicAuth = &BasicAuthConfig{Username: "u"} },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig(t.TempDir())
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
	assert.NoError(t, DefaultConfig(t.TempDir()).Validate())
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("summarize:\n  size_unit: words\n"), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "size_unit")
}

func TestLoadEnvAndAPIKey(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("ASSISTANT_TEST_KEY=from-file\n"), 0o600))

	t.Setenv("ASSISTANT_TEST_KEY", "")
	require.NoError(t, os.Unsetenv("ASSISTANT_TEST_KEY"))
	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), envPath))

	cfg := DefaultConfig(dir)
	cfg.LLM.APIKeyEnv = "ASSISTANT_TEST_KEY"
	assert.Equal(t, "from-file", cfg.APIKey())

	// Variables already in the environment win over the file.
	t.Setenv("ASSISTANT_TEST_KEY", "from-env")
	require.NoError(t, LoadEnv(envPath))
	assert.Equal(t, "from-env", cfg.APIKey())
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Timezone = "Nowhere/Special"
	assert.Equal(t, "UTC", cfg.Location().String())
}
