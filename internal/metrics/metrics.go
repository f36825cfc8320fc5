// Package metrics defines the Prometheus instrumentation for memmux. All
// metrics are registered with the default registry and prefixed "memmux_".
// Expose them by mounting promhttp.Handler().
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jmylchreest/memmux/internal/media"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memmux_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memmux_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memmux_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memmux_conversions_total",
			Help: "Total number of conversions by mode, output format and result",
		},
		[]string{"mode", "format", "result"},
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memmux_conversion_duration_seconds",
			Help:    "Conversion wall time in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	ConversionBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memmux_conversion_bytes_total",
			Help: "Bytes read from inputs and written to outputs",
		},
		[]string{"direction"},
	)

	ConversionPackets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memmux_conversion_packets_total",
			Help: "Packets written to outputs",
		},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memmux_probes_total",
			Help: "Total number of probes by detected format and result",
		},
		[]string{"format", "result"},
	)
)

// ResultOK labels a successful operation.
const ResultOK = "ok"

// Result returns the result label for err: "ok" or the error kind name.
func Result(err error) string {
	if err == nil {
		return ResultOK
	}
	return media.KindName(err)
}

// Conversion describes one finished conversion.
type Conversion struct {
	Mode     string
	Format   string
	Err      error
	BytesIn  int
	BytesOut int
	Packets  int64
	Elapsed  time.Duration
}

// ObserveConversion records c. A failed conversion counts its input bytes
// only.
func ObserveConversion(c Conversion) {
	mode := c.Mode
	if mode == "" {
		mode = "none"
	}
	ConversionsTotal.WithLabelValues(mode, c.Format, Result(c.Err)).Inc()
	ConversionDuration.WithLabelValues(mode).Observe(c.Elapsed.Seconds())
	ConversionBytes.WithLabelValues("in").Add(float64(c.BytesIn))
	if c.Err != nil {
		return
	}
	ConversionBytes.WithLabelValues("out").Add(float64(c.BytesOut))
	ConversionPackets.Add(float64(c.Packets))
}

// ObserveProbe records a probe of the given detected format.
func ObserveProbe(format string, err error) {
	if format == "" {
		format = "unknown"
	}
	ProbesTotal.WithLabelValues(format, Result(err)).Inc()
}
