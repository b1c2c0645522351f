package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 20, cfg.Education.RequiredAnnualCredits)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.SerialTimeout)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, uint(3), cfg.Remote.RetryAttempts)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MEDISHIFT_SERVER_ADDR", ":9090")
	t.Setenv("MEDISHIFT_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MEDISHIFT_REMOTE_TIMEOUT", "3s")

	cfg, err := load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
}

func TestValidate_RejectsDevKeyInProduction(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MEDISHIFT_SERVER_PRODUCTION", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_signing_key")
}
