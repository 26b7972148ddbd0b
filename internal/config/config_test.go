package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `database: /tmp/ididit-test.db
timezone: Asia/Tokyo
remote_timeout: 10s
confirmation:
  mode: always
server:
  port: 9000
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("IDIDIT_SERVER_PORT", "9100")
	t.Setenv("IDIDIT_JWT_SECRET", "s3cret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database != "/tmp/ididit-test.db" {
		t.Errorf("Database = %q", cfg.Database)
	}
	if cfg.Timezone != "Asia/Tokyo" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.RemoteTimeout != 10*time.Second {
		t.Errorf("RemoteTimeout = %v, want 10s", cfg.RemoteTimeout)
	}
	if cfg.Confirmation.Mode != "always" {
		t.Errorf("Confirmation.Mode = %q", cfg.Confirmation.Mode)
	}
	if cfg.Confirmation.Probability != 0.3 {
		t.Errorf("Confirmation.Probability = %v, want default 0.3", cfg.Confirmation.Probability)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Server.JWTSecret != "s3cret" {
		t.Errorf("Server.JWTSecret = %q", cfg.Server.JWTSecret)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad mode", mutate: func(c *Config) { c.Confirmation.Mode = "sometimes" }, wantErr: "confirmation mode"},
		{name: "probability above one", mutate: func(c *Config) { c.Confirmation.Probability = 1.5 }, wantErr: "probability"},
		{name: "zero timeout", mutate: func(c *Config) { c.RemoteTimeout = 0 }, wantErr: "remote_timeout"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "port"},
		{name: "zero ttl", mutate: func(c *Config) { c.Server.SessionTTL = 0 }, wantErr: "session_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := WriteDefault(path)
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if !written {
		t.Fatal("WriteDefault() = false on a fresh path")
	}

	written, err = WriteDefault(path)
	if err != nil || written {
		t.Errorf("second WriteDefault() = %v, %v; want false, nil", written, err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Server.JWTSecret = "top-secret"
	out, err := cfg.Redacted().Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(out), "top-secret") {
		t.Errorf("redacted config leaks secret:\n%s", out)
	}
	if cfg.Server.JWTSecret != "top-secret" {
		t.Error("Redacted() must not modify the receiver")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/x/y.db"); got != filepath.Join(home, "x/y.db") {
		t.Errorf("ExpandHome() = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandHome() changed absolute path: %q", got)
	}
	if got := ExpandHome("postgres://u@h/db"); got != "postgres://u@h/db" {
		t.Errorf("ExpandHome() changed connection string: %q", got)
	}
}
