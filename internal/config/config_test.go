package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadBytesDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte("session:\n  account_id: acct-1\n"))
	if err != nil {
		t.Fatalf("LoadBytes() error: %v", err)
	}

	if cfg.Wizard.TotalSteps != 6 {
		t.Errorf("TotalSteps = %d, want 6", cfg.Wizard.TotalSteps)
	}
	if cfg.Wizard.MinDisplay != 3*time.Second {
		t.Errorf("MinDisplay = %v, want 3s", cfg.Wizard.MinDisplay)
	}
	if cfg.Wizard.SettleDelay != 200*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 200ms", cfg.Wizard.SettleDelay)
	}
	if cfg.Learning.Backend != "sqlite" {
		t.Errorf("Learning.Backend = %q, want sqlite", cfg.Learning.Backend)
	}
	if cfg.Learning.Gateway != "postgres" {
		t.Errorf("Learning.Gateway = %q, want postgres", cfg.Learning.Gateway)
	}
	if cfg.Database.Port != 5432 || cfg.Database.SSLMode != "require" {
		t.Errorf("Database defaults = %d/%s, want 5432/require", cfg.Database.Port, cfg.Database.SSLMode)
	}
	if !strings.HasSuffix(cfg.Learning.StateFile, "learning.yaml") {
		t.Errorf("StateFile = %q, want learning.yaml under data dir", cfg.Learning.StateFile)
	}
}

func TestLoadBytesDurations(t *testing.T) {
	data := `
wizard:
  total_steps: 4
  min_display: 1500ms
  settle_delay: 50ms
`
	cfg, err := LoadBytes([]byte(data))
	if err != nil {
		t.Fatalf("LoadBytes() error: %v", err)
	}
	if cfg.Wizard.TotalSteps != 4 {
		t.Errorf("TotalSteps = %d, want 4", cfg.Wizard.TotalSteps)
	}
	if cfg.Wizard.MinDisplay != 1500*time.Millisecond {
		t.Errorf("MinDisplay = %v, want 1.5s", cfg.Wizard.MinDisplay)
	}
	if cfg.Wizard.SettleDelay != 50*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 50ms", cfg.Wizard.SettleDelay)
	}
}

func TestLoadBytesExpandsEnv(t *testing.T) {
	t.Setenv("PROPFOLIO_TEST_TOKEN", "tok-abc")
	cfg, err := LoadBytes([]byte("api:\n  base_url: https://api.example.com\n  token: ${PROPFOLIO_TEST_TOKEN}\n"))
	if err != nil {
		t.Fatalf("LoadBytes() error: %v", err)
	}
	if cfg.API.Token != "tok-abc" {
		t.Errorf("API.Token = %q, want tok-abc", cfg.API.Token)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"too few steps", "wizard:\n  total_steps: 1\n", "total_steps"},
		{"bad backend", "learning:\n  backend: redis\n", "learning.backend"},
		{"bad gateway", "learning:\n  gateway: ftp\n", "learning.gateway"},
		{"bad api url", "api:\n  base_url: not a url\n", "api.base_url"},
		{"negative delay", "wizard:\n  min_display: -1s\n", "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresDSNURLEncoding(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		want     string
	}{
		{"plain credentials", "admin", "secret", "postgres://admin:secret@db:5432/learning?sslmode=require"},
		{"password with @", "admin", "pass@word", "postgres://admin:pass%40word@db:5432/learning?sslmode=require"},
		{"password with slash", "admin", "pass/word", "postgres://admin:pass%2Fword@db:5432/learning?sslmode=require"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildPostgresDSN("db", 5432, "learning", tt.user, tt.password, "require")
			if got != tt.want {
				t.Errorf("DSN = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDatabaseURLOverride(t *testing.T) {
	cfg := Default()
	cfg.Database.Host = "ignored"
	cfg.Database.URL = "postgres://u:p@localhost:5433/x?sslmode=disable"
	if got := cfg.DatabaseDSN(); got != cfg.Database.URL {
		t.Errorf("DatabaseDSN() = %q, want the url override", got)
	}
}

func TestSanitized(t *testing.T) {
	cfg := Default()
	cfg.Database.Password = "pw"
	cfg.API.Token = "tok"
	cfg.Enrichment.APIKey = "key"
	cfg.Slack.WebhookURL = "https://hooks.slack.com/x"

	s := cfg.Sanitized()
	for name, v := range map[string]string{
		"password": s.Database.Password,
		"token":    s.API.Token,
		"api key":  s.Enrichment.APIKey,
		"webhook":  s.Slack.WebhookURL,
	} {
		if v != "[REDACTED]" {
			t.Errorf("%s = %q, want [REDACTED]", name, v)
		}
	}
	if cfg.Database.Password != "pw" {
		t.Error("Sanitized must not modify the original")
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandTilde("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("expandTilde(~/x) = %q", got)
	}
	if got := expandTilde("/abs"); got != "/abs" {
		t.Errorf("expandTilde(/abs) = %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadWithOptions(filepath.Join(t.TempDir(), "missing.yaml"), LoadOptions{SuppressWarnings: true})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStoredSecrets(t *testing.T) {
	data := []byte(`
api:
  token: literal-token
enrichment:
  api_key: ${EODHD_API_KEY}
session:
  token: sess-123
database:
  url: postgres://app:hunter2@db:5432/propfolio
slack:
  webhook_url: ""
`)
	got := strings.Join(storedSecrets(data), ",")
	want := "api.token,session.token,database.url"
	if got != want {
		t.Errorf("storedSecrets() = %q, want %q", got, want)
	}

	if keys := storedSecrets([]byte("database:\n  url: postgres://app@db/propfolio\n")); len(keys) != 0 {
		t.Errorf("storedSecrets() = %v for a URL without password, want none", keys)
	}
}
