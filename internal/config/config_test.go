package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Transport.ResponseTimeout)
	assert.Equal(t, 2*time.Second, cfg.Monitor.Interval)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "ogc", cfg.Metrics.Namespace)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ogc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9090
transport:
  address: printer.local:23
  response_timeout: 5s
machine:
  definition: printer.yaml
database:
  host: db
  database: ogc
  user: ogc
  password: secret
`), 0o600))

	t.Setenv("OGC_TRANSPORT_ADDRESS", "10.0.0.7:8080")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, "10.0.0.7:8080", cfg.Transport.Address)
	assert.Equal(t, 5*time.Second, cfg.Transport.ResponseTimeout)
	assert.Equal(t, "printer.yaml", cfg.Machine.Definition)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, "postgres://ogc:secret@db:5432/ogc?sslmode=disable", cfg.Database.DSN())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestJWTSecret(t *testing.T) {
	a := AuthConfig{JWTSecretEnv: "OGC_TEST_SECRET"}
	assert.Equal(t, devSecret, a.GetJWTSecret())
	assert.False(t, a.IsProductionReady())

	t.Setenv("OGC_TEST_SECRET", "0123456789abcdef0123456789abcdef")
	assert.True(t, a.IsProductionReady())
}
