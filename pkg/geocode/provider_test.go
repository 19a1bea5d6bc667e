package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goto-eat-map/csv2geojson/internal/resilience"
)

type stubProvider struct {
	name      string
	available bool
	result    *Result
	err       error
	calls     int
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return s.available }

func (s *stubProvider) Geocode(_ context.Context, _ string) (*Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestCascadeClient_FirstMatchWins(t *testing.T) {
	first := &stubProvider{name: "dams", available: true, err: eris.Wrap(ErrNoMatch, "dams")}
	second := &stubProvider{name: "gsi", available: true, result: &Result{Latitude: 35, Longitude: 139, Score: 4, Source: "gsi"}}
	third := &stubProvider{name: "google", available: true, result: &Result{Source: "google"}}

	c := NewCascadeClient([]Provider{first, second, third})
	r, err := c.Geocode(context.Background(), "東京都新宿区")
	require.NoError(t, err)
	assert.Equal(t, "gsi", r.Source)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls)
}

func TestCascadeClient_SkipsUnavailable(t *testing.T) {
	off := &stubProvider{name: "google", available: false}
	on := &stubProvider{name: "gsi", available: true, result: &Result{Source: "gsi"}}

	c := NewCascadeClient([]Provider{off, on})
	assert.Equal(t, []string{"gsi"}, c.Providers())

	_, err := c.Geocode(context.Background(), "東京都")
	require.NoError(t, err)
	assert.Equal(t, 0, off.calls)
}

func TestCascadeClient_AllNoMatch(t *testing.T) {
	c := NewCascadeClient([]Provider{
		&stubProvider{name: "dams", available: true, err: ErrNoMatch},
		&stubProvider{name: "gsi", available: true, err: ErrNoMatch},
	})

	_, err := c.Geocode(context.Background(), "どこか")
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestCascadeClient_ReportsFirstFailure(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewCascadeClient([]Provider{
		&stubProvider{name: "dams", available: true, err: boom},
		&stubProvider{name: "gsi", available: true, err: ErrNoMatch},
	})

	_, err := c.Geocode(context.Background(), "どこか")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoMatch)
}

func TestCascadeClient_EmptyAddress(t *testing.T) {
	p := &stubProvider{name: "gsi", available: true, result: &Result{}}
	c := NewCascadeClient([]Provider{p})

	_, err := c.Geocode(context.Background(), "   ")
	require.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, 0, p.calls)
}

func TestCascadeClient_NoProviders(t *testing.T) {
	c := NewCascadeClient([]Provider{&stubProvider{name: "google"}})

	_, err := c.Geocode(context.Background(), "東京都")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider available")
}

func TestCascadeClient_CircuitOpensOnFailures(t *testing.T) {
	bad := &stubProvider{name: "dams", available: true, err: errors.New("503")}
	good := &stubProvider{name: "gsi", available: true, result: &Result{Source: "gsi"}}

	c := NewCascadeClient([]Provider{bad, good}, WithCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	}))

	for range 5 {
		r, err := c.Geocode(context.Background(), "東京都")
		require.NoError(t, err)
		assert.Equal(t, "gsi", r.Source)
	}
	assert.Equal(t, 2, bad.calls)
	assert.Equal(t, 5, good.calls)
}

func TestCascadeClient_NoMatchDoesNotTrip(t *testing.T) {
	miss := &stubProvider{name: "dams", available: true, err: ErrNoMatch}
	good := &stubProvider{name: "gsi", available: true, result: &Result{Source: "gsi"}}

	c := NewCascadeClient([]Provider{miss, good}, WithCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	}))

	for range 3 {
		_, err := c.Geocode(context.Background(), "東京都")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, miss.calls)
}

func TestCascadeClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second := &stubProvider{name: "gsi", available: true, result: &Result{}}
	c := NewCascadeClient([]Provider{
		&stubProvider{name: "dams", available: true, err: context.Canceled},
		second,
	})

	_, err := c.Geocode(ctx, "東京都")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, second.calls)
}
