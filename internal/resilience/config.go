package resilience

import (
	"time"

	"github.com/goto-eat-map/csv2geojson/internal/config"
)

// GeocodeRetry builds the provider retry policy from the geocode settings.
// Zero values keep the defaults.
func GeocodeRetry(gc config.GeocodeConfig) RetryConfig {
	cfg := DefaultRetryConfig()
	if gc.MaxRetries > 0 {
		cfg.MaxAttempts = gc.MaxRetries
	}
	if gc.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(gc.InitialBackoffMs) * time.Millisecond
	}
	return cfg
}

// GeocodeCircuit builds the per-provider breaker settings from the geocode
// settings. Zero values keep the defaults.
func GeocodeCircuit(gc config.GeocodeConfig) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if gc.CircuitThreshold > 0 {
		cfg.FailureThreshold = gc.CircuitThreshold
	}
	if gc.CircuitResetSecs > 0 {
		cfg.ResetTimeout = time.Duration(gc.CircuitResetSecs) * time.Second
	}
	return cfg
}
