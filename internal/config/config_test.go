package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour || cfg.Auth.CookieName != "taskboard_session" || cfg.Server.BasePath != "/v1" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestFromYAMLOverridesAndKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("auth:\n  jwt_secret: a-much-longer-secret-value\n  token_ttl: 90m\nlog:\n  format: json\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Auth.TokenTTL != 90*time.Minute || cfg.Log.Format != "json" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" || cfg.Auth.BcryptCost != 12 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"short secret", "auth:\n  jwt_secret: short\n", "jwt_secret"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"bad base path", "server:\n  base_path: v1\n", "base_path"},
		{"bad cost", "auth:\n  bcrypt_cost: 40\n", "bcrypt_cost"},
		{"not yaml", "server: [", "invalid config yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadOptionalAndGenerate(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("load optional on empty dir: %v %v", cfg, err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected Load to fail without a file")
	}
	if err := os.WriteFile(Path(dir), []byte(GenerateDefault("generated-secret-0123456789")), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("load generated: %v", err)
	}
	if cfg.Auth.JWTSecret != "generated-secret-0123456789" {
		t.Fatalf("secret not read back: %q", cfg.Auth.JWTSecret)
	}
}
