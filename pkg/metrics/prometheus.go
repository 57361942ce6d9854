package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsTotal  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastClose     *prometheus.GaugeVec
	candlesClosed *prometheus.CounterVec
	workerPaused  *prometheus.GaugeVec
	jobsTotal     *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantpulse_signals_total",
				Help: "Total aggregated signals emitted",
			},
			[]string{"symbol", "type"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastClose: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantpulse_last_close",
				Help: "Last observed price for a symbol",
			},
			[]string{"symbol"},
		),
		candlesClosed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantpulse_candles_closed_total",
				Help: "Total candles closed by the aggregator",
			},
			[]string{"symbol", "tf"},
		),
		workerPaused: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantpulse_worker_paused",
				Help: "Whether a worker class is currently paused (1) or running (0)",
			},
			[]string{"class"},
		),
		jobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantpulse_jobs_total",
				Help: "Total pipeline jobs by terminal status",
			},
			[]string{"status"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSignal records one emitted signal by decision type.
func (r *Recorder) RecordSignal(symbol, signalType string) {
	r.signalsTotal.WithLabelValues(symbol, signalType).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastClose records the most recent price seen for a symbol.
func (r *Recorder) RecordLastClose(symbol string, price float64) {
	r.lastClose.WithLabelValues(symbol).Set(price)
}

// RecordCandleClosed counts a closed candle.
func (r *Recorder) RecordCandleClosed(symbol, tf string) {
	r.candlesClosed.WithLabelValues(symbol, tf).Inc()
}

// SetWorkerPaused flips the paused gauge for a worker class.
func (r *Recorder) SetWorkerPaused(class string, paused bool) {
	v := 0.0
	if paused {
		v = 1.0
	}
	r.workerPaused.WithLabelValues(class).Set(v)
}

// RecordJob counts a job reaching a terminal status.
func (r *Recorder) RecordJob(status string) {
	r.jobsTotal.WithLabelValues(status).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
