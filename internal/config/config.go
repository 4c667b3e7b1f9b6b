// Package config loads mbacklog settings from defaults, an optional YAML file
// and environment variables, in that order of precedence (last wins).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML file.
const ConfigFileEnv = "MBACKLOG_CONFIG"

type OpenAIConfig struct {
	APIKey       string `yaml:"apiKey"`
	BaseURL      string `yaml:"baseUrl"`
	BacklogModel string `yaml:"backlogModel"`
	ClarifyModel string `yaml:"clarifyModel"`
}

type JiraConfig struct {
	URL      string `yaml:"url"`
	Email    string `yaml:"email"`
	APIToken string `yaml:"apiToken"`
}

type AdoConfig struct {
	OrgURL  string `yaml:"orgUrl"`
	Project string `yaml:"project"`
	PAT     string `yaml:"pat"`
}

type Config struct {
	Port          string        `yaml:"port"`
	HTTPTimeout   time.Duration `yaml:"httpTimeout"`
	ExportWorkers int           `yaml:"exportWorkers"`
	SessionTTL    time.Duration `yaml:"sessionTtl"`
	ImportDismiss time.Duration `yaml:"importDismiss"`
	LogLevel      string        `yaml:"logLevel"`
	OpenAI        OpenAIConfig  `yaml:"openai"`
	Jira          JiraConfig    `yaml:"jira"`
	Ado           AdoConfig     `yaml:"ado"`
}

func Default() Config {
	return Config{
		Port:          "3000",
		HTTPTimeout:   30 * time.Second,
		ExportWorkers: 4,
		SessionTTL:    2 * time.Hour,
		ImportDismiss: 1500 * time.Millisecond,
		LogLevel:      "info",
		OpenAI: OpenAIConfig{
			BacklogModel: "gpt-4o",
			ClarifyModel: "gpt-4o-mini",
		},
	}
}

func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("httpTimeout must be greater than 0")
	}
	if c.ExportWorkers <= 0 {
		return fmt.Errorf("exportWorkers must be greater than 0")
	}
	if c.ImportDismiss <= 0 {
		return fmt.Errorf("importDismiss must be greater than 0")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads .env (if present), then the YAML file named by MBACKLOG_CONFIG, then
// the environment.
func Load() (Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"PORT":                   &cfg.Port,
		"MBACKLOG_LOG_LEVEL":     &cfg.LogLevel,
		"OPENAI_API_KEY":         &cfg.OpenAI.APIKey,
		"OPENAI_BASE_URL":        &cfg.OpenAI.BaseURL,
		"MBACKLOG_BACKLOG_MODEL": &cfg.OpenAI.BacklogModel,
		"MBACKLOG_CLARIFY_MODEL": &cfg.OpenAI.ClarifyModel,
		"JIRA_URL":               &cfg.Jira.URL,
		"JIRA_EMAIL":             &cfg.Jira.Email,
		"JIRA_API_TOKEN":         &cfg.Jira.APIToken,
		"ADO_ORG_URL":            &cfg.Ado.OrgURL,
		"ADO_PROJECT":            &cfg.Ado.Project,
		"ADO_PAT":                &cfg.Ado.PAT,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	durations := map[string]*time.Duration{
		"MBACKLOG_HTTP_TIMEOUT":   &cfg.HTTPTimeout,
		"MBACKLOG_SESSION_TTL":    &cfg.SessionTTL,
		"MBACKLOG_IMPORT_DISMISS": &cfg.ImportDismiss,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := lookup("MBACKLOG_EXPORT_WORKERS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid MBACKLOG_EXPORT_WORKERS: %w", err)
		}
		cfg.ExportWorkers = n
	}
	return nil
}
