// Package metrics exposes pipeline counters for Prometheus scraping or a
// node_exporter textfile.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

// Partition labels.
const (
	PartitionClean      = "clean"
	PartitionWarning    = "warning"
	PartitionError      = "error"
	PartitionDuplicated = "duplicated"
)

// Geocode outcome labels.
const (
	GeocodeOK      = "ok"
	GeocodeNoMatch = "no_match"
	GeocodeFailed  = "failed"
)

// Registry holds the collectors of one process. Methods are safe on a nil
// *Registry so callers can run without metrics.
type Registry struct {
	reg *prometheus.Registry

	Records        *prometheus.CounterVec
	Warnings       *prometheus.CounterVec
	Geocodes       *prometheus.CounterVec
	GeocodeLatency prometheus.Histogram
	UnknownGenres  *prometheus.CounterVec
	RunDuration    *prometheus.GaugeVec
	LastRun        *prometheus.GaugeVec
}

// NewRegistry creates a Registry with every collector registered.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csv2geojson_records_total",
		Help: "Records processed, by source and partition.",
	}, []string{"source", "partition"})
	warnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csv2geojson_warnings_total",
		Help: "Validation warnings, by kind.",
	}, []string{"source", "kind"})
	geocodes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csv2geojson_geocode_requests_total",
		Help: "Geocoder calls, by outcome.",
	}, []string{"outcome"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "csv2geojson_geocode_latency_seconds",
		Help:    "Geocoder call latency.",
		Buckets: prometheus.DefBuckets,
	})
	unknown := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csv2geojson_unknown_genre_labels_total",
		Help: "Records whose genre label matched no rule.",
	}, []string{"source"})
	duration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "csv2geojson_run_duration_seconds",
		Help: "Duration of the last run of a source.",
	}, []string{"source"})
	lastRun := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "csv2geojson_last_run_timestamp_seconds",
		Help: "Unix time the last run of a source finished.",
	}, []string{"source", "status"})

	r.MustRegister(records, warnings, geocodes, latency, unknown, duration, lastRun)
	return &Registry{
		reg:            r,
		Records:        records,
		Warnings:       warnings,
		Geocodes:       geocodes,
		GeocodeLatency: latency,
		UnknownGenres:  unknown,
		RunDuration:    duration,
		LastRun:        lastRun,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// ObserveRecords adds n records of source to partition.
func (r *Registry) ObserveRecords(source, partition string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.Records.WithLabelValues(source, partition).Add(float64(n))
}

// ObserveWarning counts one warning of kind.
func (r *Registry) ObserveWarning(source, kind string) {
	if r == nil {
		return
	}
	r.Warnings.WithLabelValues(source, kind).Inc()
}

// ObserveGeocode records one geocoder call.
func (r *Registry) ObserveGeocode(outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.Geocodes.WithLabelValues(outcome).Inc()
	r.GeocodeLatency.Observe(took.Seconds())
}

// ObserveUnknownGenres adds n unclassified labels for source.
func (r *Registry) ObserveUnknownGenres(source string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.UnknownGenres.WithLabelValues(source).Add(float64(n))
}

// ObserveRun records the end of a source run.
func (r *Registry) ObserveRun(source, status string, took time.Duration, finished time.Time) {
	if r == nil {
		return
	}
	r.RunDuration.WithLabelValues(source).Set(took.Seconds())
	r.LastRun.WithLabelValues(source, status).Set(float64(finished.Unix()))
}

// WriteToTextfile writes the registry to path for the node_exporter textfile
// collector. An empty path is a no-op.
func (r *Registry) WriteToTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return eris.Wrapf(prometheus.WriteToTextfile(path, r.reg), "metrics: write %s", path)
}
