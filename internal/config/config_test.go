package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 4, cfg.ExportWorkers)
	assert.Equal(t, 1500*time.Millisecond, cfg.ImportDismiss)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.BacklogModel)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.ClarifyModel)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, envMap(map[string]string{
		"PORT":                    "8080",
		"OPENAI_API_KEY":          " sk-test ",
		"MBACKLOG_BACKLOG_MODEL":  "gpt-4.1",
		"MBACKLOG_HTTP_TIMEOUT":   "45s",
		"MBACKLOG_EXPORT_WORKERS": "8",
		"MBACKLOG_IMPORT_DISMISS": "3s",
		"JIRA_URL":                "https://shop.atlassian.net",
		"ADO_PAT":                 "pat",
		"ADO_PROJECT":             "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.OpenAI.BacklogModel)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.ClarifyModel)
	assert.Equal(t, 45*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 8, cfg.ExportWorkers)
	assert.Equal(t, 3*time.Second, cfg.ImportDismiss)
	assert.Equal(t, "https://shop.atlassian.net", cfg.Jira.URL)
	assert.Equal(t, "pat", cfg.Ado.PAT)
	assert.Empty(t, cfg.Ado.Project)
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"MBACKLOG_HTTP_TIMEOUT": "soon"}},
		{"bad workers", map[string]string{"MBACKLOG_EXPORT_WORKERS": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			assert.Error(t, applyEnv(&cfg, envMap(tt.env)))
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbacklog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
exportWorkers: 2
sessionTtl: 30m
openai:
  clarifyModel: gpt-4o
jira:
  email: po@example.com
`), 0o644))

	t.Setenv(ConfigFileEnv, path)
	t.Setenv("MBACKLOG_EXPORT_WORKERS", "6")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 6, cfg.ExportWorkers)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.ClarifyModel)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.BacklogModel)
	assert.Equal(t, "po@example.com", cfg.Jira.Email)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("invalid workers", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, "")
		t.Setenv("MBACKLOG_EXPORT_WORKERS", "0")
		_, err := Load()
		assert.EqualError(t, err, "exportWorkers must be greater than 0")
	})
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	cfg.LogLevel = "debug"
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	cfg.LogLevel = "chatty"
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}
