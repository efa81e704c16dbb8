package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prediction error kinds used as the "kind" label.
const (
	KindMalformed    = "malformed"
	KindMissingField = "missing_field"
	KindInvalidType  = "invalid_type"
	KindInternal     = "internal"
)

// Manager manages all Prometheus metrics for the prediction service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	valueBuckets     []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Prediction metrics
	predictions       *prometheus.CounterVec
	predictionErrors  *prometheus.CounterVec
	predictionLatency prometheus.Histogram
	predictedValue    prometheus.Histogram

	// Model metrics
	modelLoaded       prometheus.Gauge
	modelInfo         *prometheus.GaugeVec
	modelFeatures     prometheus.Gauge
	modelLoadDuration prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	panicsRecovered     prometheus.Counter

	// Error metrics
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec
	errorLatency        *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "battpredict",
		subsystem:        "predictor",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		valueBuckets:     prometheus.ExponentialBuckets(0.5, 2, 10),
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics on the configured registry.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(
		m.counterOpts("predictions_total", "Total number of successful predictions"),
		[]string{"model_kind"},
	)
	m.predictionErrors = auto.NewCounterVec(
		m.counterOpts("prediction_errors_total", "Total number of rejected or failed predictions"),
		[]string{"kind"},
	)
	m.predictionLatency = auto.NewHistogram(m.histogramOpts(
		"prediction_latency_milliseconds", "Model inference latency in milliseconds", m.histogramBuckets))
	m.predictedValue = auto.NewHistogram(m.histogramOpts(
		"predicted_battery_used", "Distribution of predicted battery usage", m.valueBuckets))

	m.modelLoaded = auto.NewGauge(m.gaugeOpts("model_loaded", "1 when a model artifact is loaded"))
	m.modelInfo = auto.NewGaugeVec(
		m.gaugeOpts("model_info", "Loaded model artifact metadata"),
		[]string{"kind", "version", "sha256"},
	)
	m.modelFeatures = auto.NewGauge(m.gaugeOpts("model_features", "Number of input features of the loaded model"))
	m.modelLoadDuration = auto.NewGauge(m.gaugeOpts(
		"model_load_duration_milliseconds", "Time spent loading the model artifact in milliseconds"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.panicsRecovered = auto.NewCounter(m.counterOpts("http_panics_recovered_total", "Total number of recovered handler panics"))

	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Total number of errors by type"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of requests that resulted in errors", m.histogramBuckets),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// normalizeKind folds unknown error kinds into "internal" to bound label cardinality.
func normalizeKind(kind string) string {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case KindMalformed, KindMissingField, KindInvalidType, KindInternal:
		return k
	default:
		return KindInternal
	}
}

// RecordPrediction records a successful prediction.
func (m *Manager) RecordPrediction(modelKind string, latencyMs, value float64) {
	m.predictions.WithLabelValues(modelKind).Inc()
	m.predictionLatency.Observe(latencyMs)
	m.predictedValue.Observe(value)
}

// RecordPredictionError increments the prediction error counter for kind.
func (m *Manager) RecordPredictionError(kind string) {
	m.predictionErrors.WithLabelValues(normalizeKind(kind)).Inc()
}

// SetModel publishes metadata for a freshly loaded artifact.
func (m *Manager) SetModel(kind, version, sha string, features int, loadMs float64) {
	m.modelInfo.Reset()
	m.modelInfo.WithLabelValues(kind, version, sha).Set(1)
	m.modelFeatures.Set(float64(features))
	m.modelLoadDuration.Set(loadMs)
	m.modelLoaded.Set(1)
}

// RecordHTTPRequest records an HTTP request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordPanic increments the recovered panic counter.
func (m *Manager) RecordPanic() {
	m.panicsRecovered.Inc()
}

// RecordError records an error by type, severity and endpoint.
func (m *Manager) RecordError(endpoint, method, errorType, severity string, latencyMs float64) {
	m.errorRateByType.WithLabelValues(errorType, severity).Inc()
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	m.errorLatency.WithLabelValues("http", errorType).Observe(latencyMs)
}

// UpdateSystemMetrics sets memory and goroutine gauges and observes a GC pause.
func (m *Manager) UpdateSystemMetrics(memoryBytes uint64, goroutines int, gcPauseMs float64) {
	m.systemMemoryUsage.Set(float64(memoryBytes))
	m.systemGoroutineCount.Set(float64(goroutines))
	if gcPauseMs > 0 {
		m.systemGCPauseTime.Observe(gcPauseMs)
	}
}

// RecordPrediction records a successful prediction on the global manager.
func RecordPrediction(modelKind string, latencyMs, value float64) {
	globalManager.RecordPrediction(modelKind, latencyMs, value)
}

// RecordPredictionError increments the global prediction error counter.
func RecordPredictionError(kind string) {
	globalManager.RecordPredictionError(kind)
}

// SetModel publishes loaded artifact metadata on the global manager.
func SetModel(kind, version, sha string, features int, loadMs float64) {
	globalManager.SetModel(kind, version, sha, features, loadMs)
}

// RecordHTTPRequest records an HTTP request on the global manager.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// RecordPanic increments the global recovered panic counter.
func RecordPanic() {
	globalManager.RecordPanic()
}

// RecordError records an error on the global manager.
func RecordError(endpoint, method, errorType, severity string, latencyMs float64) {
	globalManager.RecordError(endpoint, method, errorType, severity, latencyMs)
}

// UpdateSystemMetrics updates system gauges on the global manager.
func UpdateSystemMetrics(memoryBytes uint64, goroutines int, gcPauseMs float64) {
	globalManager.UpdateSystemMetrics(memoryBytes, goroutines, gcPauseMs)
}

// Gatherer returns the registry the manager's metrics are registered on, or
// the default gatherer when that registry cannot be gathered from.
func (m *Manager) Gatherer() prometheus.Gatherer {
	if g, ok := m.registry.(prometheus.Gatherer); ok {
		return g
	}
	return prometheus.DefaultGatherer
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Default returns the global manager backing the package-level helpers.
func Default() *Manager {
	return globalManager
}
