package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.UseMockData)
	assert.Equal(t, uint32(5), cfg.BreakerFailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.BreakerOpenTimeout)
	assert.Equal(t, 5*time.Second, cfg.PollFailureBackoff)
	assert.Equal(t, 1000, cfg.EventBufferSize)
	assert.Equal(t, int64(2000), cfg.MaxConnections)
	assert.Equal(t, 20, cfg.MaxConnectionsPerIP)
	assert.Equal(t, 32, cfg.ClientSendBuffer)
	assert.Equal(t, 200, cfg.SummaryMaxChanges)
	assert.Equal(t, 250, cfg.SummaryMaxClients)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
}

func TestLoad_OverridesFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("EVENT_BUFFER_SIZE", "50")
	t.Setenv("BREAKER_OPEN_TIMEOUT", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 50, cfg.EventBufferSize)
	assert.Equal(t, 10*time.Second, cfg.BreakerOpenTimeout)
}

func TestLoad_BrokerCredentialsRequiredWithoutMock(t *testing.T) {
	t.Setenv("USE_MOCK_DATA", "false")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USE_MOCK_DATA=false")
}

func TestLoad_BrokerCredentialsAccepted(t *testing.T) {
	t.Setenv("USE_MOCK_DATA", "false")
	t.Setenv("BROKER_BASE_URL", "https://api.example.com")
	t.Setenv("BROKER_CLIENT_ID", "client-1")
	t.Setenv("BROKER_ACCESS_TOKEN", "token-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.UseMockData)
}

func TestLoad_RejectsZeroBufferSize(t *testing.T) {
	t.Setenv("EVENT_BUFFER_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVENT_BUFFER_SIZE")
}

func TestLoad_RejectsIdleShorterThanPing(t *testing.T) {
	t.Setenv("PING_INTERVAL", "1m")
	t.Setenv("IDLE_TIMEOUT", "30s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDLE_TIMEOUT")
}
