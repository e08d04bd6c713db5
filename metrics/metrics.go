package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes viewer and ingestion metrics for Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	framesTotal         prometheus.Counter
	frameDuration       prometheus.Histogram
	devicesDrawn        prometheus.Gauge
	devicesClamped      prometheus.Gauge
	devicesSkipped      prometheus.Counter
	zoom                prometheus.Gauge
	ingested            *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates a fresh registry with every metric registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	framesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rtls",
		Name:      "frames_total",
		Help:      "Frames rendered",
	})

	frameDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rtls",
		Name:      "frame_duration_seconds",
		Help:      "Time spent drawing one frame",
		Buckets:   []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066},
	})

	devicesDrawn := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rtls",
		Name:      "frame_devices",
		Help:      "Devices considered in the last frame",
	})

	devicesClamped := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rtls",
		Name:      "frame_devices_clamped",
		Help:      "Devices pinned to the border in the last frame",
	})

	devicesSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rtls",
		Name:      "devices_skipped_total",
		Help:      "Device draws skipped because of bad positions or draw failures",
	})

	zoom := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rtls",
		Name:      "viewport_zoom",
		Help:      "Current viewport zoom",
	})

	ingested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rtls",
		Name:      "ingested_total",
		Help:      "Devices and measurements submitted to the zone",
	}, []string{"kind", "result"})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rtls",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rtls",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registry.MustRegister(
		framesTotal,
		frameDuration,
		devicesDrawn,
		devicesClamped,
		devicesSkipped,
		zoom,
		ingested,
		httpRequests,
		httpRequestDuration,
	)

	return &Metrics{
		registry:            registry,
		framesTotal:         framesTotal,
		frameDuration:       frameDuration,
		devicesDrawn:        devicesDrawn,
		devicesClamped:      devicesClamped,
		devicesSkipped:      devicesSkipped,
		zoom:                zoom,
		ingested:            ingested,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
	}
}

// ObserveFrame records one rendered frame.
func (m *Metrics) ObserveFrame(devices, clamped, skipped int, duration time.Duration) {
	if m == nil {
		return
	}
	m.framesTotal.Inc()
	m.frameDuration.Observe(duration.Seconds())
	m.devicesDrawn.Set(float64(devices))
	m.devicesClamped.Set(float64(clamped))
	m.devicesSkipped.Add(float64(skipped))
}

// SetZoom publishes the current zoom.
func (m *Metrics) SetZoom(zoom float64) {
	if m == nil {
		return
	}
	m.zoom.Set(zoom)
}

// ObserveIngest counts one device or measurement submission. kind is
// "device" or "measurement".
func (m *Metrics) ObserveIngest(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.ingested.WithLabelValues(kind, result).Inc()
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
