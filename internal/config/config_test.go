package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef-secret"

func TestLoadDefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("POCKETHEIST_AUTH_SECRET", secret)
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8080", cfg.Addr)
	require.Equal(t, DriverMemory, cfg.Store.Driver)
	require.Equal(t, 336*time.Hour, cfg.Auth.SessionTTL)
	require.Equal(t, 2*time.Second, cfg.Heist.RosterWait)
}

func TestLoadMissingSecret(t *testing.T) {
	t.Setenv("POCKETHEIST_AUTH_SECRET", "")
	_, err := Load("")
	require.ErrorContains(t, err, "Secret")
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pocketheist.yaml")
	body := `
addr: 0.0.0.0:9000
store:
  driver: badger
  dir: /var/lib/pocketheist
auth:
  secret: file-secret-0123456789
  session_ttl: 1h
heist:
  roster_wait: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("POCKETHEIST_ADDR", "127.0.0.1:7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", cfg.Addr)
	require.Equal(t, DriverBadger, cfg.Store.Driver)
	require.Equal(t, "/var/lib/pocketheist", cfg.Store.Dir)
	require.Equal(t, time.Hour, cfg.Auth.SessionTTL)
	require.Equal(t, 500*time.Millisecond, cfg.Heist.RosterWait)
	require.Equal(t, int64(1<<20), cfg.HTTP.MaxBodyBytes)
}

func TestValidateRejects(t *testing.T) {
	base := Default()
	base.Auth.Secret = secret
	require.NoError(t, Validate(base))

	pg := base
	pg.Store.Driver = DriverPostgres
	require.Error(t, Validate(pg))
	pg.Store.DSN = "postgres://localhost/pocketheist"
	require.NoError(t, Validate(pg))

	bad := base
	bad.Store.Driver = "sqlite"
	require.ErrorContains(t, Validate(bad), "oneof")
}

func TestApplyEnvBadDuration(t *testing.T) {
	cfg := Default()
	env := map[string]string{"POCKETHEIST_SESSION_TTL": "forever"}
	err := applyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.ErrorContains(t, err, "SESSION_TTL")
}
