package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// expandTilde expands ~ or ~/ at the start of a path to the user's home directory
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// Config holds all configuration for propfolio
type Config struct {
	API        APIConfig        `yaml:"api"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Wizard     WizardConfig     `yaml:"wizard"`
	Learning   LearningConfig   `yaml:"learning"`
	Database   DatabaseConfig   `yaml:"database"`
	Session    SessionConfig    `yaml:"session"`
	Slack      SlackConfig      `yaml:"slack"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// APIConfig points at the property persistence API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// EnrichmentConfig points at the market-data provider.
type EnrichmentConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	Cache   bool          `yaml:"cache"` // cache responses on disk for the current day
}

// WizardConfig tunes the onboarding wizard
type WizardConfig struct {
	TotalSteps  int           `yaml:"total_steps"`
	MinDisplay  time.Duration `yaml:"min_display"`  // minimum enrichment loading duration
	SettleDelay time.Duration `yaml:"settle_delay"` // pause between loading end and step change
}

// LearningConfig controls the learning-hub staging store and its migration
type LearningConfig struct {
	Backend           string `yaml:"backend"` // "sqlite" (default) or "file"
	DataDir           string `yaml:"data_dir"`
	StateFile         string `yaml:"state_file"` // used by the file backend
	Gateway           string `yaml:"gateway"`    // "postgres" (default) or "api"
	PurgeAfterMigrate bool   `yaml:"purge_after_migrate"`
}

// DatabaseConfig holds the durable PostgreSQL store settings
type DatabaseConfig struct {
	URL            string `yaml:"url"` // full connection URL, overrides the fields below
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Database       string `yaml:"database"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Schema         string `yaml:"schema"`
	SSLMode        string `yaml:"ssl_mode"` // disable, require, verify-ca, verify-full (default: require)
	MaxConnections int    `yaml:"max_connections"`
}

// SessionConfig stands in for the hosted identity provider session
type SessionConfig struct {
	AccountID   string `yaml:"account_id"`
	PortfolioID string `yaml:"portfolio_id"`
	Token       string `yaml:"token"`
}

// SlackConfig holds Slack notification settings
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
	Enabled    bool   `yaml:"enabled"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LoadOptions controls configuration loading behavior.
type LoadOptions struct {
	SuppressWarnings bool
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions reads configuration from a YAML file with options.
func LoadWithOptions(path string, opts LoadOptions) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Warn when the file itself holds credentials other users can read.
	if !opts.SuppressWarnings {
		if warning := checkFilePermissions(path, storedSecrets(data)); warning != "" {
			fmt.Fprint(os.Stderr, warning)
		}
	}

	return LoadBytes(data)
}

// storedSecrets returns the YAML keys of credentials written literally in
// data. Values taken from ${ENV} references are not stored in the file.
func storedSecrets(data []byte) []string {
	var raw Config
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil
	}

	var keys []string
	add := func(key, value string) {
		if value != "" && !strings.HasPrefix(value, "$") {
			keys = append(keys, key)
		}
	}
	add("api.token", raw.API.Token)
	add("enrichment.api_key", raw.Enrichment.APIKey)
	add("session.token", raw.Session.Token)
	add("database.password", raw.Database.Password)
	if u, err := url.Parse(raw.Database.URL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			add("database.url", raw.Database.URL)
		}
	}
	add("slack.webhook_url", raw.Slack.WebhookURL)
	return keys
}

func permissionWarning(path, problem string, secrets []string, fix string) string {
	return fmt.Sprintf(
		"WARNING: Config file '%s' %s\n"+
			"         It stores %s, which other users may be able to read.\n"+
			"         %s\n\n",
		path, problem, strings.Join(secrets, ", "), fix,
	)
}

// LoadBytes reads configuration from YAML bytes.
func LoadBytes(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with only defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultDataDir returns the default data directory for local state.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".propfolio")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	if err := os.Chmod(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

func (c *Config) applyDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = 15 * time.Second
	}
	if c.Enrichment.Timeout == 0 {
		c.Enrichment.Timeout = 20 * time.Second
	}

	if c.Wizard.TotalSteps == 0 {
		c.Wizard.TotalSteps = 6
	}
	if c.Wizard.MinDisplay == 0 {
		c.Wizard.MinDisplay = 3 * time.Second
	}
	if c.Wizard.SettleDelay == 0 {
		c.Wizard.SettleDelay = 200 * time.Millisecond
	}

	if c.Learning.Backend == "" {
		c.Learning.Backend = "sqlite"
	}
	if c.Learning.Gateway == "" {
		c.Learning.Gateway = "postgres"
	}
	if c.Learning.DataDir == "" {
		home, _ := os.UserHomeDir()
		c.Learning.DataDir = filepath.Join(home, ".propfolio")
	} else {
		c.Learning.DataDir = expandTilde(c.Learning.DataDir)
	}
	if c.Learning.StateFile == "" {
		c.Learning.StateFile = filepath.Join(c.Learning.DataDir, "learning.yaml")
	} else {
		c.Learning.StateFile = expandTilde(c.Learning.StateFile)
	}

	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.Schema == "" {
		c.Database.Schema = "public"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "require" // Secure default for PostgreSQL
	}
	if c.Database.MaxConnections == 0 {
		c.Database.MaxConnections = 4
	}
}

func (c *Config) validate() error {
	if c.Wizard.TotalSteps < 2 {
		return fmt.Errorf("wizard.total_steps must be at least 2, got %d", c.Wizard.TotalSteps)
	}
	if c.Wizard.MinDisplay < 0 || c.Wizard.SettleDelay < 0 {
		return fmt.Errorf("wizard delays must not be negative")
	}
	if c.Learning.Backend != "sqlite" && c.Learning.Backend != "file" {
		return fmt.Errorf("learning.backend must be 'sqlite' or 'file', got '%s'", c.Learning.Backend)
	}
	if c.Learning.Gateway != "postgres" && c.Learning.Gateway != "api" {
		return fmt.Errorf("learning.gateway must be 'postgres' or 'api', got '%s'", c.Learning.Gateway)
	}
	if c.API.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
			return fmt.Errorf("api.base_url: %w", err)
		}
	}
	if c.Enrichment.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Enrichment.BaseURL); err != nil {
			return fmt.Errorf("enrichment.base_url: %w", err)
		}
	}
	return nil
}

// DatabaseDSN returns the durable store connection string
func (c *Config) DatabaseDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return buildPostgresDSN(c.Database.Host, c.Database.Port, c.Database.Database,
		c.Database.User, c.Database.Password, c.Database.SSLMode)
}

// buildPostgresDSN builds a PostgreSQL connection URL with escaped credentials
func buildPostgresDSN(host string, port int, database, user, password, sslMode string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

// Sanitized returns a copy of the config with sensitive fields redacted
func (c *Config) Sanitized() *Config {
	sanitized := *c // shallow copy

	if sanitized.Database.Password != "" {
		sanitized.Database.Password = "[REDACTED]"
	}
	if sanitized.Database.URL != "" {
		sanitized.Database.URL = "[REDACTED]"
	}
	if sanitized.API.Token != "" {
		sanitized.API.Token = "[REDACTED]"
	}
	if sanitized.Enrichment.APIKey != "" {
		sanitized.Enrichment.APIKey = "[REDACTED]"
	}
	if sanitized.Session.Token != "" {
		sanitized.Session.Token = "[REDACTED]"
	}
	if sanitized.Slack.WebhookURL != "" {
		sanitized.Slack.WebhookURL = "[REDACTED]"
	}

	return &sanitized
}
