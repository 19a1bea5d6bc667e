package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/goto-eat-map/csv2geojson/internal/resilience"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (*Result, error)
	Available() bool
}

// CascadeClient tries geocode providers in order until one matches. Each
// provider sits behind its own circuit breaker so a dead backend is skipped
// quickly instead of timing out for every record.
type CascadeClient struct {
	providers []Provider
	breakers  map[string]*resilience.CircuitBreaker
}

// CascadeOption configures the CascadeClient.
type CascadeOption func(*cascadeConfig)

type cascadeConfig struct {
	breaker resilience.CircuitBreakerConfig
}

// WithCircuitBreaker sets the per-provider circuit breaker config.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) CascadeOption {
	return func(c *cascadeConfig) {
		c.breaker = cfg
	}
}

// NewCascadeClient creates a CascadeClient that tries providers in order.
func NewCascadeClient(providers []Provider, opts ...CascadeOption) *CascadeClient {
	cfg := cascadeConfig{breaker: resilience.DefaultCircuitBreakerConfig()}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &CascadeClient{
		providers: providers,
		breakers:  make(map[string]*resilience.CircuitBreaker, len(providers)),
	}
	for _, p := range providers {
		bc := cfg.breaker
		name := p.Name()
		bc.Name = "geocode " + name
		bc.ShouldTrip = func(err error) bool {
			return !errors.Is(err, ErrNoMatch) && !errors.Is(err, context.Canceled)
		}
		bc.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("geocode: provider circuit changed",
				zap.String("provider", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
		c.breakers[name] = resilience.NewCircuitBreaker(bc)
	}
	return c
}

// Providers returns the names of the available providers in cascade order.
func (c *CascadeClient) Providers() []string {
	var names []string
	for _, p := range c.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}

// Geocode implements Client by trying each provider in order. It returns
// ErrNoMatch when every provider answered without a candidate, and the first
// provider failure otherwise.
func (c *CascadeClient) Geocode(ctx context.Context, address string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, eris.Wrap(ErrNoMatch, "geocode: empty address")
	}

	var firstErr error
	tried := 0
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		tried++

		result, err := resilience.ExecuteVal(ctx, c.breakers[p.Name()], func(ctx context.Context) (*Result, error) {
			return p.Geocode(ctx, address)
		})
		if err == nil && result != nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "geocode: cascade")
		}

		zap.L().Debug("geocode: provider miss, trying next",
			zap.String("provider", p.Name()),
			zap.String("address", address),
			zap.Error(err),
		)
		if err != nil && !errors.Is(err, ErrNoMatch) && firstErr == nil {
			firstErr = err
		}
	}

	if tried == 0 {
		return nil, eris.New("geocode: no provider available")
	}
	if firstErr != nil {
		return nil, eris.Wrap(firstErr, "geocode: all providers failed")
	}
	return nil, eris.Wrapf(ErrNoMatch, "geocode: %s", address)
}
