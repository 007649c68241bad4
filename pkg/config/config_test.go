package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("APP_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvDev, c.Env)
	require.Equal(t, 8888, c.Server.Port)
	require.Equal(t, 30*time.Second, c.Gateway.Timeout)
	require.Equal(t, uint64(3), c.Gateway.MaxAttempts)
	require.Equal(t, "174379", c.Mpesa.ShortCode)
	require.True(t, c.Reconcile.Enabled)
	require.Equal(t, "warn", c.Database.LogLevel)
	require.Equal(t, 500*time.Millisecond, c.Database.SlowThreshold)
}

func TestNew_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	yaml := `
env: prod
mpesa:
  consumer_key: key-from-file
  short_code: "600000"
gateway:
  timeout: 10s
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("APP_CONFIG_FILE", path)
	t.Setenv("APP_MPESA_PASSKEY", "pk-from-env")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvProd, c.Env)
	require.Equal(t, "key-from-file", c.Mpesa.ConsumerKey)
	require.Equal(t, "600000", c.Mpesa.ShortCode)
	require.Equal(t, "pk-from-env", c.Mpesa.Passkey)
	require.Equal(t, 10*time.Second, c.Gateway.Timeout)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.Kafka.Brokers)
}
