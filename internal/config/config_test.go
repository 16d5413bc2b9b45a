package config

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
http:
  addr: ":9000"
  allowed_origins: ["https://app.example", "https://admin.example"]
redis:
  addr: "redis:6379"
  db: 2
smtp:
  host: smtp.example
  from: noreply@example
log:
  level: debug
auth:
  access_ttl: 1h
  refresh_ttl: 48h
  access_secret: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
  refresh_secret: env:CLASSGATE_TEST_REFRESH
  passcode_pepper: pppppppppppppppppppppppppppppppp
  passcode_ttl: 5m
  same_site: lax
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, []string{DefaultOrigin}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10*time.Minute, cfg.Auth.PasscodeTTL)
	assert.Equal(t, 5, cfg.Auth.PasscodeMaxAttempts)
}

func TestLoadFileThenFlags(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(newFlags(t, "--config", path, "--http.addr", ":7000"))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Addr, "flag overrides file")
	assert.Equal(t, []string{"https://app.example", "https://admin.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format, "unset keys keep defaults")
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTTL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.PasscodeTTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestEngineConfig(t *testing.T) {
	t.Setenv("CLASSGATE_TEST_REFRESH", strings.Repeat("r", 32))
	cfg, err := Load(newFlags(t, "--config", writeConfig(t, sampleYAML)))
	require.NoError(t, err)

	engine, err := cfg.Engine()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, engine.JWT.AccessTTL)
	assert.Equal(t, []byte(strings.Repeat("r", 32)), engine.JWT.RefreshSigningKey)
	assert.Equal(t, http.SameSiteLaxMode, engine.Security.SameSitePolicy)
	assert.Equal(t, 5*time.Minute, engine.Passcode.CodeTTL)
	assert.True(t, engine.Audit.Enabled)
}

func TestEngineConfigErrors(t *testing.T) {
	cfg, err := Load(newFlags(t, "--config", writeConfig(t, sampleYAML)))
	require.NoError(t, err)

	_, err = cfg.Engine()
	assert.ErrorContains(t, err, "CLASSGATE_TEST_REFRESH")

	t.Setenv("CLASSGATE_TEST_REFRESH", strings.Repeat("r", 32))
	bad := cfg
	bad.Auth.SameSite = "sometimes"
	_, err = bad.Engine()
	assert.ErrorContains(t, err, "same_site")

	weak := cfg
	weak.Auth.AccessSecret = "short"
	_, err = weak.Engine()
	assert.Error(t, err)
}

func TestProductionFlag(t *testing.T) {
	cfg, err := Load(newFlags(t, "--auth.production"))
	require.NoError(t, err)
	assert.True(t, cfg.Auth.Production)
}
