package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/goto-eat-map/csv2geojson/internal/config"
	"github.com/goto-eat-map/csv2geojson/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate  AlertType = "run_failure_rate"
	AlertRecordErrorRate AlertType = "record_error_rate"
	AlertSourceFailing   AlertType = "source_failing"
)

// Severity ranks alerts for the receiving channel.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// minFinishedRuns is the smallest sample the failure rate alert fires on.
const minFinishedRuns = 5

// Alert is one webhook payload.
type Alert struct {
	Service   string         `json:"service"`
	Type      AlertType      `json:"type"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns a Snapshot into alerts and posts them to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewAlerter builds an Alerter. Thresholds of zero disable their rule.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			OnRetry:        resilience.RetryLogger("webhook", "monitoring"),
		},
	}
}

// Evaluate applies every rule to snap in a fixed order.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	now := time.Now().UTC()
	var alerts []Alert
	for _, rule := range []func(*Snapshot) *Alert{a.runFailureRate, a.recordErrorRate, a.sourceFailing} {
		if alert := rule(snap); alert != nil {
			alert.Service = "csv2geojson"
			alert.Timestamp = now
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

func (a *Alerter) runFailureRate(snap *Snapshot) *Alert {
	limit := a.cfg.FailureRateThreshold
	finished := snap.Finished()
	if limit <= 0 || finished < minFinishedRuns || snap.FailRate <= limit {
		return nil
	}
	return &Alert{
		Type:     AlertRunFailureRate,
		Severity: SeverityHigh,
		Message: fmt.Sprintf("Run failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %d runs)",
			snap.FailRate*100, limit*100, snap.Failed, finished, snap.RecentRuns),
		Details: map[string]any{
			"failure_rate": snap.FailRate,
			"threshold":    limit,
			"failed":       snap.Failed,
			"finished":     finished,
		},
	}
}

func (a *Alerter) recordErrorRate(snap *Snapshot) *Alert {
	limit := a.cfg.ErrorRateThreshold
	if limit <= 0 || snap.Records.Input == 0 || snap.ErrorRate <= limit {
		return nil
	}
	return &Alert{
		Type:     AlertRecordErrorRate,
		Severity: SeverityMedium,
		Message: fmt.Sprintf("%.1f%% of records landed in the error partition, threshold %.1f%% (%d of %d)",
			snap.ErrorRate*100, limit*100, snap.Records.Errors, snap.Records.Input),
		Details: map[string]any{
			"error_rate": snap.ErrorRate,
			"threshold":  limit,
			"errors":     snap.Records.Errors,
			"input":      snap.Records.Input,
		},
	}
}

func (a *Alerter) sourceFailing(snap *Snapshot) *Alert {
	if len(snap.FailingSources) == 0 {
		return nil
	}
	return &Alert{
		Type:     AlertSourceFailing,
		Severity: SeverityHigh,
		Message: fmt.Sprintf("%d source(s) failed their latest run: %s",
			len(snap.FailingSources), strings.Join(snap.FailingSources, ", ")),
		Details: map[string]any{"sources": snap.FailingSources},
	}
}

// SendAlerts posts each alert separately and returns how many the webhook
// accepted. Nothing is sent without a webhook URL.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		log := zap.L().With(zap.String("type", string(alert.Type)), zap.String("severity", string(alert.Severity)))
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.post(ctx, alert)
		})
		if err != nil {
			log.Error("alert not delivered", zap.Error(err))
			continue
		}
		log.Info("alert delivered")
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: encode alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "monitoring: webhook"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		return resilience.HTTPStatusError(resp, eris.Errorf("monitoring: webhook returned %d", resp.StatusCode))
	}
	return nil
}
