package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCoreConfigMatchesRuntimeDefaults(t *testing.T) {
	c := DefaultCoreConfig()
	assert.Equal(t, 1, c.WorkerPoolSize)
	assert.Equal(t, 64, c.WorkerQueueDepth)
	assert.Equal(t, 5000, c.ShutdownTimeoutMs)
}

func TestCoreConfigFromMapOverridesDefaults(t *testing.T) {
	c := CoreConfigFromMap(map[string]any{
		"worker_pool_size": float64(4), // JSON-decoded numbers arrive as float64
		"log_level":        "DEBUG",
	})
	assert.Equal(t, 4, c.WorkerPoolSize)
	assert.Equal(t, "DEBUG", c.LogLevel)
	assert.Equal(t, 64, c.WorkerQueueDepth, "unset keys keep their default")
}

func TestCoreConfigFromMapIgnoresUnknownKeys(t *testing.T) {
	c := CoreConfigFromMap(map[string]any{"not_a_real_key": 123})
	assert.Equal(t, DefaultCoreConfig(), c)
}

func TestToMapRoundTrips(t *testing.T) {
	c := DefaultCoreConfig()
	c.WorkerPoolSize = 8
	restored := CoreConfigFromMap(c.ToMap())
	require.Equal(t, c, restored)
}

func TestDurationsConvertMillisecondFields(t *testing.T) {
	c := DefaultCoreConfig()
	sweep, pendingTTL, lateTTL, shutdown, responseTimeout := c.Durations()
	assert.Equal(t, 5*time.Second, sweep)
	assert.Equal(t, 30*time.Second, pendingTTL)
	assert.Equal(t, 10*time.Second, lateTTL)
	assert.Equal(t, 5*time.Second, shutdown)
	assert.Equal(t, time.Duration(0), responseTimeout)
}

func TestGlobalConfigInjectionAndReset(t *testing.T) {
	t.Cleanup(ResetCoreConfig)

	assert.Equal(t, DefaultCoreConfig(), GetCoreConfig())

	custom := DefaultCoreConfig()
	custom.ServiceName = "custom-service"
	SetCoreConfig(custom)
	assert.Equal(t, "custom-service", GetCoreConfig().ServiceName)

	ResetCoreConfig()
	assert.Equal(t, DefaultCoreConfig(), GetCoreConfig())
}
