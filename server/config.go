package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"authorityd/authority"
)

// Hardcoded resolution defaults
const (
	DefaultHTTPTimeout = 30 * time.Second
)

// Config captures the full application configuration loaded from YAML and environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Authority AuthorityConfig `yaml:"authority"`
	Redis     RedisConfig     `yaml:"redis"`
}

// ServerConfig controls listener, TLS, and HTTP concerns.
type ServerConfig struct {
	PublicURL       string    `yaml:"public_url"`
	DevListenAddr   string    `yaml:"dev_listen_addr"`
	HTTPListenAddr  string    `yaml:"http_listen_addr"`
	HTTPSListenAddr string    `yaml:"https_listen_addr"`
	DevMode         bool      `yaml:"dev_mode"`
	TLS             TLSConfig `yaml:"tls"`
}

// TLSConfig defines autocert behaviour and TLS constraints.
type TLSConfig struct {
	Domains    []string `yaml:"domains"`
	Email      string   `yaml:"email"`
	MinVersion string   `yaml:"min_version"`
	CacheDir   string   `yaml:"cache_dir"`
}

// AuthorityConfig holds the trust and discovery settings shared by every
// resolution the service performs.
type AuthorityConfig struct {
	DefaultClientID        string   `yaml:"default_client_id"`
	ProtocolMode           string   `yaml:"protocol_mode"`
	KnownAuthorities       []string `yaml:"known_authorities"`
	CloudDiscoveryMetadata string   `yaml:"cloud_discovery_metadata"`
	AuthorityMetadata      string   `yaml:"authority_metadata"`
	HTTPTimeout            string   `yaml:"http_timeout"`
}

// RedisConfig selects the shared metadata cache backend. An empty URL keeps
// the in-process store.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LoadConfig reads the YAML config file and merges environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		sanitized := stripYAMLComments(b)

		// Use strict unmarshaling to detect unknown fields
		decoder := yaml.NewDecoder(bytes.NewReader(sanitized))
		decoder.KnownFields(true)

		if err := decoder.Decode(&cfg); err != nil {
			if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
				slog.Error("Configuration contains unknown keys", "error", err, "file", path)
				return Config{}, fmt.Errorf("invalid config: %w (check for typos or deprecated fields)", err)
			}
			slog.Error("Failed to parse configuration", "error", err, "file", path)
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return Config{}, err
	}

	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			PublicURL:       "http://127.0.0.1:8080",
			DevListenAddr:   "127.0.0.1:8080",
			HTTPListenAddr:  ":80",
			HTTPSListenAddr: ":443",
			DevMode:         true,
			TLS: TLSConfig{
				Domains:    []string{"localhost"},
				Email:      "",
				MinVersion: "1.2",
				CacheDir:   ".tls-cache",
			},
		},
		Authority: AuthorityConfig{
			DefaultClientID: "authorityd",
			ProtocolMode:    "aad",
		},
	}
}

// DefaultConfig returns the default configuration template.
func DefaultConfig() Config {
	return defaultConfig()
}

func stripYAMLComments(in []byte) []byte {
	lines := bytes.Split(in, []byte("\n"))
	out := make([][]byte, 0, len(lines))
	for _, line := range lines {
		trim := bytes.TrimLeft(line, " \t")
		if len(trim) > 0 && trim[0] == '#' {
			continue
		}
		out = append(out, line)
	}
	return bytes.Join(out, []byte("\n"))
}

func applyEnvOverrides(cfg *Config) {
	overrides := map[string]func(string){
		"AUTHORITYD_SERVER_PUBLIC_URL":        func(v string) { cfg.Server.PublicURL = v },
		"AUTHORITYD_SERVER_DEV_LISTEN_ADDR":   func(v string) { cfg.Server.DevListenAddr = v },
		"AUTHORITYD_SERVER_HTTP_LISTEN_ADDR":  func(v string) { cfg.Server.HTTPListenAddr = v },
		"AUTHORITYD_SERVER_HTTPS_LISTEN_ADDR": func(v string) { cfg.Server.HTTPSListenAddr = v },
		"AUTHORITYD_SERVER_DEV_MODE":          func(v string) { cfg.Server.DevMode = parseBool(v, cfg.Server.DevMode) },
		"AUTHORITYD_SERVER_TLS_DOMAINS":       func(v string) { cfg.Server.TLS.Domains = splitAndTrim(v) },
		"AUTHORITYD_SERVER_TLS_EMAIL":         func(v string) { cfg.Server.TLS.Email = v },
		"AUTHORITYD_DEFAULT_CLIENT_ID":        func(v string) { cfg.Authority.DefaultClientID = v },
		"AUTHORITYD_PROTOCOL_MODE":            func(v string) { cfg.Authority.ProtocolMode = v },
		"AUTHORITYD_KNOWN_AUTHORITIES":        func(v string) { cfg.Authority.KnownAuthorities = splitAndTrim(v) },
		"AUTHORITYD_REDIS_URL":                func(v string) { cfg.Redis.URL = v },
	}

	for key, fn := range overrides {
		if val, ok := os.LookupEnv(key); ok {
			fn(val)
		}
	}
}

func parseDuration(val string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}

func parseBool(val string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate performs minimal sanity checks on the config.
func (c Config) Validate() error {
	if c.Server.PublicURL == "" {
		slog.Error("Missing required configuration", "field", "server.public_url")
		return errors.New("server.public_url is required")
	}

	if !strings.HasPrefix(c.Server.PublicURL, "http://") && !strings.HasPrefix(c.Server.PublicURL, "https://") {
		slog.Error("Invalid configuration value", "field", "server.public_url", "value", c.Server.PublicURL, "reason", "must start with http:// or https://")
		return fmt.Errorf("server.public_url must start with http:// or https://, got: %s", c.Server.PublicURL)
	}

	if !c.Server.DevMode && len(c.Server.TLS.Domains) == 0 {
		slog.Error("Missing required configuration for production mode", "field", "server.tls.domains")
		return errors.New("server.tls.domains must be provided in production")
	}

	if c.Server.TLS.MinVersion != "" {
		validVersions := map[string]bool{"1.2": true, "1.3": true}
		if !validVersions[c.Server.TLS.MinVersion] {
			slog.Error("Invalid TLS minimum version", "field", "server.tls.min_version", "value", c.Server.TLS.MinVersion, "valid_values", []string{"1.2", "1.3"})
			return fmt.Errorf("server.tls.min_version must be '1.2' or '1.3', got: %s", c.Server.TLS.MinVersion)
		}
	}

	switch strings.ToLower(c.Authority.ProtocolMode) {
	case "", "aad", "oidc":
	default:
		slog.Error("Invalid protocol mode", "field", "authority.protocol_mode", "value", c.Authority.ProtocolMode, "valid_values", []string{"aad", "oidc"})
		return fmt.Errorf("authority.protocol_mode must be 'aad' or 'oidc', got: %s", c.Authority.ProtocolMode)
	}

	if c.Authority.CloudDiscoveryMetadata != "" && !json.Valid([]byte(c.Authority.CloudDiscoveryMetadata)) {
		slog.Error("Invalid configuration value", "field", "authority.cloud_discovery_metadata", "reason", "must be a JSON document")
		return errors.New("authority.cloud_discovery_metadata must be valid JSON")
	}
	if c.Authority.AuthorityMetadata != "" && !json.Valid([]byte(c.Authority.AuthorityMetadata)) {
		slog.Error("Invalid configuration value", "field", "authority.authority_metadata", "reason", "must be a JSON document")
		return errors.New("authority.authority_metadata must be valid JSON")
	}

	if c.Authority.HTTPTimeout != "" {
		if _, err := time.ParseDuration(c.Authority.HTTPTimeout); err != nil {
			slog.Error("Invalid HTTP timeout", "field", "authority.http_timeout", "value", c.Authority.HTTPTimeout, "error", err)
			return fmt.Errorf("authority.http_timeout: invalid duration '%s': %w", c.Authority.HTTPTimeout, err)
		}
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		slog.Error("Invalid configuration value", "field", "redis.url", "value", c.Redis.URL, "reason", "must start with redis:// or rediss://")
		return fmt.Errorf("redis.url must start with redis:// or rediss://, got: %s", c.Redis.URL)
	}

	return nil
}

// AuthorityOptions converts the service-level trust settings into the
// resolver configuration applied to every request.
func (c Config) AuthorityOptions() authority.Config {
	mode := authority.ProtocolModeAAD
	if strings.EqualFold(c.Authority.ProtocolMode, "oidc") {
		mode = authority.ProtocolModeOIDC
	}
	return authority.Config{
		ProtocolMode:           mode,
		KnownAuthorities:       c.Authority.KnownAuthorities,
		CloudDiscoveryMetadata: c.Authority.CloudDiscoveryMetadata,
		AuthorityMetadata:      c.Authority.AuthorityMetadata,
	}
}

// HTTPTimeout returns the configured discovery timeout or the default.
func (c Config) HTTPTimeout() time.Duration {
	if c.Authority.HTTPTimeout == "" {
		return DefaultHTTPTimeout
	}
	return parseDuration(c.Authority.HTTPTimeout, DefaultHTTPTimeout)
}
