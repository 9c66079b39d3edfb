// Package config provides core runtime configuration - NO transport
// endpoints or credentials.
//
// This module contains ONLY configuration that shapes how the RMI core
// behaves once wired up:
//   - Worker pool sizing
//   - Rendezvous timeouts
//   - Shutdown behavior
//
// Transport configuration (listen addresses, TLS, dial targets) belongs to
// whichever transport package dials or serves, not here.
package config

import (
	"sync"
	"time"
)

// CoreConfig holds core runtime configuration.
//
// This configuration is transport-agnostic: the same CoreConfig drives a
// runtime.Runtime regardless of whether it ends up behind an in-memory
// transport or a gRPC one.
type CoreConfig struct {
	// Worker Pool
	WorkerPoolSize   int `json:"worker_pool_size"`
	WorkerQueueDepth int `json:"worker_queue_depth"`

	// Rendezvous Timeouts (milliseconds)
	RendezvousSweepIntervalMs int `json:"rendezvous_sweep_interval_ms"`
	RendezvousPendingTTLMs    int `json:"rendezvous_pending_ttl_ms"`
	RendezvousLateTTLMs       int `json:"rendezvous_late_ttl_ms"`

	// Shutdown
	ShutdownTimeoutMs int `json:"shutdown_timeout_ms"`

	// Observability
	LogLevel    string `json:"log_level"`
	ServiceName string `json:"service_name"`

	// Determinism
	DefaultResponseTimeoutMs int `json:"default_response_timeout_ms"` // 0 = unbounded
}

// DefaultCoreConfig returns a CoreConfig with default values, matching
// runtime.DefaultConfig's numbers.
func DefaultCoreConfig() *CoreConfig {
	return &CoreConfig{
		WorkerPoolSize:   1,
		WorkerQueueDepth: 64,

		RendezvousSweepIntervalMs: 5000,
		RendezvousPendingTTLMs:    30000,
		RendezvousLateTTLMs:       10000,

		ShutdownTimeoutMs: 5000,

		LogLevel:    "INFO",
		ServiceName: "rmicore",

		DefaultResponseTimeoutMs: 0,
	}
}

// CoreConfigFromMap creates CoreConfig from a map, starting from defaults.
// Unknown keys are ignored.
func CoreConfigFromMap(config map[string]any) *CoreConfig {
	c := DefaultCoreConfig()

	if v, ok := intFromAny(config["worker_pool_size"]); ok {
		c.WorkerPoolSize = v
	}
	if v, ok := intFromAny(config["worker_queue_depth"]); ok {
		c.WorkerQueueDepth = v
	}
	if v, ok := intFromAny(config["rendezvous_sweep_interval_ms"]); ok {
		c.RendezvousSweepIntervalMs = v
	}
	if v, ok := intFromAny(config["rendezvous_pending_ttl_ms"]); ok {
		c.RendezvousPendingTTLMs = v
	}
	if v, ok := intFromAny(config["rendezvous_late_ttl_ms"]); ok {
		c.RendezvousLateTTLMs = v
	}
	if v, ok := intFromAny(config["shutdown_timeout_ms"]); ok {
		c.ShutdownTimeoutMs = v
	}
	if v, ok := intFromAny(config["default_response_timeout_ms"]); ok {
		c.DefaultResponseTimeoutMs = v
	}
	if v, ok := config["log_level"].(string); ok {
		c.LogLevel = v
	}
	if v, ok := config["service_name"].(string); ok {
		c.ServiceName = v
	}

	return c
}

func intFromAny(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// ToMap converts config to a map.
func (c *CoreConfig) ToMap() map[string]any {
	return map[string]any{
		"worker_pool_size":             c.WorkerPoolSize,
		"worker_queue_depth":           c.WorkerQueueDepth,
		"rendezvous_sweep_interval_ms": c.RendezvousSweepIntervalMs,
		"rendezvous_pending_ttl_ms":    c.RendezvousPendingTTLMs,
		"rendezvous_late_ttl_ms":       c.RendezvousLateTTLMs,
		"shutdown_timeout_ms":          c.ShutdownTimeoutMs,
		"default_response_timeout_ms":  c.DefaultResponseTimeoutMs,
		"log_level":                    c.LogLevel,
		"service_name":                 c.ServiceName,
	}
}

// Durations exposes the millisecond fields as time.Duration, for handing
// straight to runtime.Config / rendezvous.Config.
func (c *CoreConfig) Durations() (sweep, pendingTTL, lateTTL, shutdown, responseTimeout time.Duration) {
	return time.Duration(c.RendezvousSweepIntervalMs) * time.Millisecond,
		time.Duration(c.RendezvousPendingTTLMs) * time.Millisecond,
		time.Duration(c.RendezvousLateTTLMs) * time.Millisecond,
		time.Duration(c.ShutdownTimeoutMs) * time.Millisecond,
		time.Duration(c.DefaultResponseTimeoutMs) * time.Millisecond
}

// =============================================================================
// GLOBAL CONFIG (set by the hosting process's bootstrap)
// =============================================================================

var (
	globalCoreConfig *CoreConfig
	configMu         sync.RWMutex
)

// GetCoreConfig gets the core configuration instance.
// Returns the injected config or defaults.
func GetCoreConfig() *CoreConfig {
	configMu.RLock()
	defer configMu.RUnlock()

	if globalCoreConfig == nil {
		return DefaultCoreConfig()
	}
	return globalCoreConfig
}

// SetCoreConfig sets the core configuration instance. Called by the
// process bootstrap after parsing environment variables or a config file.
func SetCoreConfig(config *CoreConfig) {
	configMu.Lock()
	defer configMu.Unlock()

	globalCoreConfig = config
}

// ResetCoreConfig resets core config to nil (useful for testing).
// After reset, GetCoreConfig() will return defaults.
func ResetCoreConfig() {
	configMu.Lock()
	defer configMu.Unlock()

	globalCoreConfig = nil
}
