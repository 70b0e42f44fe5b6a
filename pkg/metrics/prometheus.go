package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsGenerated     *prometheus.CounterVec
	signalsPublished     *prometheus.CounterVec
	duplicatesSuppressed *prometheus.CounterVec
	validationFailures   *prometheus.CounterVec
	riskRejections       *prometheus.CounterVec
	executions           *prometheus.CounterVec
	errorsTotal          *prometheus.CounterVec
	lastPrice            *prometheus.GaugeVec
	latency              *prometheus.HistogramVec
	fingerprintCacheSize prometheus.Gauge
	openPositions        prometheus.Gauge
	equity               prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldpulse_signals_generated_total",
				Help: "Total number of candidate signals produced by strategies",
			},
			[]string{"timeframe", "strategy"},
		),
		signalsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldpulse_signals_published_total",
				Help: "Total number of signals delivered to subscribers",
			},
			[]string{"timeframe", "strategy"},
		),
		duplicatesSuppressed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldpulse_duplicates_suppressed_total",
				Help: "Total number of candidates dropped as duplicates",
			},
			[]string{"timeframe", "reason"},
		),
		validationFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldpulse_validation_failures_total",
				Help: "Total number of candidates rejected by validation",
			},
			[]string{"timeframe", "reason"},
		),
		riskRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldpulse_risk_rejections_total",
				Help: "Total number of signals denied by the risk gate",
			},
			[]string{"reason"},
		),
		executions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldpulse_executions_total",
				Help: "Total number of execution outcomes",
			},
			[]string{"result"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "goldpulse_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goldpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		fingerprintCacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "goldpulse_fingerprint_cache_size",
				Help: "Number of live fingerprints in the dedup cache",
			},
		),
		openPositions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "goldpulse_open_positions",
				Help: "Open plus reserved position count",
			},
		),
		equity: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "goldpulse_equity",
				Help: "Current account equity",
			},
		),
	}
}

// RecordSignalGenerated counts a strategy evaluation that produced a candidate.
func (r *Recorder) RecordSignalGenerated(timeframe, strategy string) {
	r.signalsGenerated.WithLabelValues(timeframe, strategy).Inc()
}

// RecordSignalPublished counts a signal delivered to the bus.
func (r *Recorder) RecordSignalPublished(timeframe, strategy string) {
	r.signalsPublished.WithLabelValues(timeframe, strategy).Inc()
}

// RecordDuplicateSuppressed counts a candidate dropped by deduplication.
func (r *Recorder) RecordDuplicateSuppressed(timeframe, reason string) {
	r.duplicatesSuppressed.WithLabelValues(timeframe, reason).Inc()
}

// RecordValidationFailure counts a candidate rejected by validation.
func (r *Recorder) RecordValidationFailure(timeframe, reason string) {
	r.validationFailures.WithLabelValues(timeframe, reason).Inc()
}

// RecordRiskRejection counts a risk gate denial.
func (r *Recorder) RecordRiskRejection(reason string) {
	r.riskRejections.WithLabelValues(reason).Inc()
}

// RecordExecution counts an execution outcome.
func (r *Recorder) RecordExecution(result string) {
	r.executions.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordFingerprintCacheSize records the dedup cache population.
func (r *Recorder) RecordFingerprintCacheSize(n int) {
	r.fingerprintCacheSize.Set(float64(n))
}

// RecordOpenPositions records the open plus reserved position count.
func (r *Recorder) RecordOpenPositions(n int) {
	r.openPositions.Set(float64(n))
}

// RecordEquity records the current equity.
func (r *Recorder) RecordEquity(v float64) {
	r.equity.Set(v)
}
