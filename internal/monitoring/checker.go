package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/goto-eat-map/csv2geojson/internal/config"
)

// DefaultCheckInterval applies when check_interval_secs is unset.
const DefaultCheckInterval = 5 * time.Minute

// Checker evaluates run health on an interval while the server is up.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	recent    int
	interval  time.Duration

	// OnCheck, when set, observes the outcome of every check.
	OnCheck func(alerts []Alert, sent int, err error)
}

// NewChecker wires a collector and alerter with the monitoring settings.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		recent:    cfg.RecentRuns,
		interval:  interval,
	}
}

// Run checks once immediately, then on every tick until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().Named("monitoring")
	log.Info("run health checks started",
		zap.Duration("interval", c.interval),
		zap.Int("recent_runs", c.recent),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			log.Info("run health checks stopped")
			return
		}
		alerts, sent, err := c.Check(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error("run health check failed", zap.Error(err))
		}
		if c.OnCheck != nil {
			c.OnCheck(alerts, sent, err)
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// Check evaluates one snapshot of recent runs and posts any alerts. It
// returns the triggered alerts and how many reached the webhook.
func (c *Checker) Check(ctx context.Context) ([]Alert, int, error) {
	snap, err := c.collector.Collect(ctx, c.recent)
	if err != nil {
		return nil, 0, err
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		zap.L().Debug("runs healthy", zap.Int("runs", snap.Runs))
		return nil, 0, nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	zap.L().Info("run health alerts",
		zap.Int("triggered", len(alerts)),
		zap.Int("sent", sent),
		zap.Strings("failing_sources", snap.FailingSources),
	)
	return alerts, sent, nil
}
