package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address for the HTTP(S) server.
	Addr           string
	DatabasePath   string
	MasterSecret   string
	Debug          bool
	LogLevel       string
	AllowedOrigins []string

	// SchemaRoot holds one directory of YANG sources per user.
	SchemaRoot string

	// TokenTTL is the lifetime of issued tokens; zero means no expiry.
	TokenTTL    time.Duration
	DialTimeout time.Duration
	Prompts     PromptTimeouts

	// TLS holds HTTPS configuration. If nil, the server runs in plain HTTP mode.
	TLS *TLSConfig
}

// PromptTimeouts bounds how long a connect waits for the browser.
type PromptTimeouts struct {
	HostKey     time.Duration `yaml:"hostkey"`
	Credentials time.Duration `yaml:"credentials"`
	Schema      time.Duration `yaml:"schema"`
}

// TLSConfig holds file paths for serving HTTPS directly from the server.
type TLSConfig struct {
	// CertFile is a PEM-encoded certificate chain.
	CertFile string `yaml:"cert"`
	// KeyFile is a PEM-encoded private key.
	KeyFile string `yaml:"key"`
}

// Overrides optionally overrides values from the file and environment.
//
// A nil pointer means "use the file/environment/default value".
type Overrides struct {
	ConfigFile   *string
	Addr         *string
	DatabasePath *string
	MasterSecret *string
	Debug        *bool
	LogLevel     *string
	SchemaRoot   *string
	TLS          *TLSConfig
}

// fileConfig is the YAML layout of the optional config file.
type fileConfig struct {
	Addr           *string         `yaml:"addr"`
	DatabasePath   *string         `yaml:"database"`
	MasterSecret   *string         `yaml:"master_secret"`
	Debug          *bool           `yaml:"debug"`
	LogLevel       *string         `yaml:"log_level"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	SchemaRoot     *string         `yaml:"schema_root"`
	TokenTTL       *time.Duration  `yaml:"token_ttl"`
	DialTimeout    *time.Duration  `yaml:"dial_timeout"`
	Prompts        *PromptTimeouts `yaml:"prompts"`
	TLS            *TLSConfig      `yaml:"tls"`
}

func defaults() Config {
	return Config{
		Addr:           ":5555",
		DatabasePath:   "./netconsole.db",
		LogLevel:       "info",
		AllowedOrigins: []string{"*"},
		SchemaRoot:     "./userfiles",
		TokenTTL:       24 * time.Hour,
		DialTimeout:    10 * time.Second,
		Prompts: PromptTimeouts{
			HostKey:     30 * time.Second,
			Credentials: 60 * time.Second,
			Schema:      300 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by NETCONSOLE_CONFIG (or Overrides.ConfigFile), environment variables, and
// finally the explicit overrides.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	path := os.Getenv("NETCONSOLE_CONFIG")
	if overrides.ConfigFile != nil {
		path = *overrides.ConfigFile
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyOverrides(overrides)

	if cfg.MasterSecret == "" {
		return nil, errors.New("NETCONSOLE_MASTER_SECRET environment variable is required")
	}
	return &cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setIf(&c.Addr, f.Addr)
	setIf(&c.DatabasePath, f.DatabasePath)
	setIf(&c.MasterSecret, f.MasterSecret)
	setIf(&c.Debug, f.Debug)
	setIf(&c.LogLevel, f.LogLevel)
	setIf(&c.SchemaRoot, f.SchemaRoot)
	setIf(&c.TokenTTL, f.TokenTTL)
	setIf(&c.DialTimeout, f.DialTimeout)
	if len(f.AllowedOrigins) > 0 {
		c.AllowedOrigins = f.AllowedOrigins
	}
	if f.Prompts != nil {
		if f.Prompts.HostKey > 0 {
			c.Prompts.HostKey = f.Prompts.HostKey
		}
		if f.Prompts.Credentials > 0 {
			c.Prompts.Credentials = f.Prompts.Credentials
		}
		if f.Prompts.Schema > 0 {
			c.Prompts.Schema = f.Prompts.Schema
		}
	}
	if f.TLS != nil {
		c.TLS = f.TLS
	}
	return nil
}

func (c *Config) applyEnv() error {
	if portStr := os.Getenv("PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			c.Addr = fmt.Sprintf(":%d", p)
		}
	}
	if v := os.Getenv("NETCONSOLE_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("NETCONSOLE_MASTER_SECRET"); v != "" {
		c.MasterSecret = v
	}
	if debugStr := os.Getenv("DEBUG"); debugStr == "true" || debugStr == "1" {
		c.Debug = true
	}
	if v := os.Getenv("NETCONSOLE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("NETCONSOLE_SCHEMA_DIR"); v != "" {
		c.SchemaRoot = v
	}
	if v := os.Getenv("NETCONSOLE_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"NETCONSOLE_TOKEN_TTL", &c.TokenTTL},
		{"NETCONSOLE_DIAL_TIMEOUT", &c.DialTimeout},
		{"NETCONSOLE_HOSTKEY_TIMEOUT", &c.Prompts.HostKey},
		{"NETCONSOLE_AUTH_TIMEOUT", &c.Prompts.Credentials},
		{"NETCONSOLE_SCHEMA_TIMEOUT", &c.Prompts.Schema},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.env, err)
		}
		*d.dst = parsed
	}
	return nil
}

func (c *Config) applyOverrides(o Overrides) {
	setIf(&c.Addr, o.Addr)
	setIf(&c.DatabasePath, o.DatabasePath)
	setIf(&c.MasterSecret, o.MasterSecret)
	setIf(&c.Debug, o.Debug)
	setIf(&c.LogLevel, o.LogLevel)
	setIf(&c.SchemaRoot, o.SchemaRoot)
	if o.TLS != nil {
		c.TLS = o.TLS
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
