package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "NETCONSOLE_ADDR", "DATABASE_PATH", "NETCONSOLE_MASTER_SECRET", "DEBUG",
		"NETCONSOLE_LOG_LEVEL", "NETCONSOLE_SCHEMA_DIR", "NETCONSOLE_ALLOWED_ORIGINS",
		"NETCONSOLE_TOKEN_TTL", "NETCONSOLE_DIAL_TIMEOUT", "NETCONSOLE_HOSTKEY_TIMEOUT",
		"NETCONSOLE_AUTH_TIMEOUT", "NETCONSOLE_SCHEMA_TIMEOUT", "NETCONSOLE_CONFIG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadRequiresMasterSecret(t *testing.T) {
	clearEnv(t)
	_, err := Load(Overrides{})
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("NETCONSOLE_MASTER_SECRET", "s")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)
	require.Equal(t, ":5555", cfg.Addr)
	require.Equal(t, 30*time.Second, cfg.Prompts.HostKey)
	require.Equal(t, 60*time.Second, cfg.Prompts.Credentials)
	require.Equal(t, 300*time.Second, cfg.Prompts.Schema)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.Nil(t, cfg.TLS)
}

func TestLoadLayering(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "netconsole.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":7000"
database: /var/lib/netconsole.db
master_secret: from-file
log_level: debug
allowed_origins: ["https://a.example"]
prompts:
  hostkey: 5s
  schema: 1m
tls:
  cert: /etc/cert.pem
  key: /etc/key.pem
`), 0o600))

	t.Setenv("NETCONSOLE_CONFIG", path)
	t.Setenv("DATABASE_PATH", "/tmp/env.db")
	t.Setenv("NETCONSOLE_AUTH_TIMEOUT", "15s")

	addr := ":9000"
	cfg, err := Load(Overrides{Addr: &addr})
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, "/tmp/env.db", cfg.DatabasePath)
	require.Equal(t, "from-file", cfg.MasterSecret)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, []string{"https://a.example"}, cfg.AllowedOrigins)
	require.Equal(t, PromptTimeouts{
		HostKey:     5 * time.Second,
		Credentials: 15 * time.Second,
		Schema:      time.Minute,
	}, cfg.Prompts)
	require.Equal(t, &TLSConfig{CertFile: "/etc/cert.pem", KeyFile: "/etc/key.pem"}, cfg.TLS)
}

func TestLoadRejectsBadInput(t *testing.T) {
	clearEnv(t)
	t.Setenv("NETCONSOLE_MASTER_SECRET", "s")
	t.Setenv("NETCONSOLE_DIAL_TIMEOUT", "soon")
	_, err := Load(Overrides{})
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("NETCONSOLE_MASTER_SECRET", "s")
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Load(Overrides{ConfigFile: &missing})
	require.Error(t, err)
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
}
