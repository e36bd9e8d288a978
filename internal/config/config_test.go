package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func prepare(t *testing.T) (*pflag.FlagSet, func() (*Config, error)) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	v := New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(v, flags)
	return flags, func() (*Config, error) { return Load(v) }
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FIREFLY_SESSION_SECRET", secret)
	_, load := prepare(t)

	cfg, err := load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.HTTP.Port)
	require.Equal(t, EngineSQLite, cfg.Datastore.Engine)
	require.Equal(t, 12, cfg.Tasks.PerPage)
	require.Equal(t, 30*24*time.Hour, cfg.Notifications.Retention)
	require.Equal(t, "@every 1h", cfg.Notifications.CleanupSchedule)
	require.Empty(t, cfg.S3.Bucket)
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("FIREFLY_SESSION_SECRET", secret)
	t.Setenv("FIREFLY_HTTP_PORT", "9000")
	t.Setenv("FIREFLY_S3_BUCKET", "from-env")
	t.Setenv("FIREFLY_NOTIFICATIONS_RETENTION", "48h")
	flags, load := prepare(t)

	require.NoError(t, os.WriteFile(filepath.Join(".", "config.yaml"), []byte(`
datastore:
  engine: postgres
  uri: postgres://firefly@localhost/firefly
s3:
  bucket: from-file
oauth:
  callback-base: https://firefly.example.com/
`), 0o600))
	require.NoError(t, flags.Parse([]string{"--http-port", "9100"}))

	cfg, err := load()
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.HTTP.Port)
	require.Equal(t, EnginePostgres, cfg.Datastore.Engine)
	require.Equal(t, "from-env", cfg.S3.Bucket)
	require.Equal(t, 48*time.Hour, cfg.Notifications.Retention)
	require.Equal(t, "https://firefly.example.com", cfg.OAuth.CallbackBase)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults with secret", func(*Config) {}, true},
		{"short secret", func(c *Config) { c.Session.Secret = "short" }, false},
		{"unknown engine", func(c *Config) { c.Datastore.Engine = "mysql" }, false},
		{"missing uri", func(c *Config) { c.Datastore.URI = "" }, false},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, false},
		{"no retention", func(c *Config) { c.Notifications.Retention = 0 }, false},
		{"no page size", func(c *Config) { c.Tasks.PerPage = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Session.Secret = secret
			tt.mutate(cfg)
			if tt.ok {
				require.NoError(t, cfg.Validate())
			} else {
				require.Error(t, cfg.Validate())
			}
		})
	}
}
