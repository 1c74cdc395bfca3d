package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"authorityd/authority"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.Server.DevMode {
		t.Fatalf("expected dev mode default")
	}
	if cfg.Authority.DefaultClientID != "authorityd" {
		t.Fatalf("unexpected default client id: %q", cfg.Authority.DefaultClientID)
	}
	if cfg.HTTPTimeout() != DefaultHTTPTimeout {
		t.Fatalf("unexpected default timeout: %v", cfg.HTTPTimeout())
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  public_url: https://auth.example.com
  dev_mode: false
  tls:
    domains: [auth.example.com]
authority:
  default_client_id: my-app
  protocol_mode: aad
  known_authorities:
    - login.example.com
  http_timeout: 10s
redis:
  url: redis://localhost:6379/0
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Server.PublicURL != "https://auth.example.com" {
		t.Fatalf("public_url not loaded: %q", cfg.Server.PublicURL)
	}
	if cfg.Authority.DefaultClientID != "my-app" {
		t.Fatalf("default_client_id not loaded: %q", cfg.Authority.DefaultClientID)
	}
	if len(cfg.Authority.KnownAuthorities) != 1 || cfg.Authority.KnownAuthorities[0] != "login.example.com" {
		t.Fatalf("known_authorities not loaded: %v", cfg.Authority.KnownAuthorities)
	}
	if cfg.HTTPTimeout() != 10*time.Second {
		t.Fatalf("http_timeout not loaded: %v", cfg.HTTPTimeout())
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("redis url not loaded: %q", cfg.Redis.URL)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, `
server:
  public_url: https://auth.example.com
  listen_address: ":8080"
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("AUTHORITYD_SERVER_PUBLIC_URL", "https://override.example.com")
	t.Setenv("AUTHORITYD_KNOWN_AUTHORITIES", "a.example.com, b.example.com")
	t.Setenv("AUTHORITYD_PROTOCOL_MODE", "oidc")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Server.PublicURL != "https://override.example.com" {
		t.Fatalf("env override not applied: %q", cfg.Server.PublicURL)
	}
	if len(cfg.Authority.KnownAuthorities) != 2 || cfg.Authority.KnownAuthorities[1] != "b.example.com" {
		t.Fatalf("known authorities override not applied: %v", cfg.Authority.KnownAuthorities)
	}
	if cfg.Authority.ProtocolMode != "oidc" {
		t.Fatalf("protocol mode override not applied: %q", cfg.Authority.ProtocolMode)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "missing public url",
			mutate: func(c *Config) { c.Server.PublicURL = "" },
			want:   "public_url",
		},
		{
			name:   "bad public url scheme",
			mutate: func(c *Config) { c.Server.PublicURL = "ldap://example.com" },
			want:   "public_url",
		},
		{
			name: "prod without tls domains",
			mutate: func(c *Config) {
				c.Server.DevMode = false
				c.Server.TLS.Domains = nil
			},
			want: "tls.domains",
		},
		{
			name:   "bad tls version",
			mutate: func(c *Config) { c.Server.TLS.MinVersion = "1.0" },
			want:   "min_version",
		},
		{
			name:   "bad protocol mode",
			mutate: func(c *Config) { c.Authority.ProtocolMode = "saml" },
			want:   "protocol_mode",
		},
		{
			name:   "bad cloud discovery json",
			mutate: func(c *Config) { c.Authority.CloudDiscoveryMetadata = "{not json" },
			want:   "cloud_discovery_metadata",
		},
		{
			name:   "bad authority metadata json",
			mutate: func(c *Config) { c.Authority.AuthorityMetadata = "{not json" },
			want:   "authority_metadata",
		},
		{
			name:   "bad http timeout",
			mutate: func(c *Config) { c.Authority.HTTPTimeout = "sometimes" },
			want:   "http_timeout",
		},
		{
			name:   "bad redis url",
			mutate: func(c *Config) { c.Redis.URL = "memcached://localhost" },
			want:   "redis.url",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestAuthorityOptionsProtocolMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Authority.ProtocolMode = "OIDC"
	if got := cfg.AuthorityOptions().ProtocolMode; got != authority.ProtocolModeOIDC {
		t.Fatalf("protocol mode mapped to %q", got)
	}

	cfg.Authority.ProtocolMode = "aad"
	if got := cfg.AuthorityOptions().ProtocolMode; got != authority.ProtocolModeAAD {
		t.Fatalf("protocol mode mapped to %q", got)
	}
}

func TestParseBool(t *testing.T) {
	if !parseBool("yes", false) || !parseBool("TRUE", false) || !parseBool("1", false) {
		t.Fatalf("truthy values not recognized")
	}
	if parseBool("off", true) || parseBool("0", true) {
		t.Fatalf("falsy values not recognized")
	}
	if !parseBool("garbage", true) || parseBool("garbage", false) {
		t.Fatalf("fallback not honored")
	}
}
