package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Recorder receives simulation and evaluation events
type Recorder interface {
	RecordDay()
	RecordPositionOpened()
	RecordPositionClosed(reason string)
	RecordSkippedSignal(reason string)
	RecordPriceUpdateFailure()
	RecordSinkFailure(sink string)
	RecordSignalReturn(period, status string)
	RecordRun(kind, status string, duration float64)
}

// Skip reasons
const (
	SkipUnresolved   = "unresolved"
	SkipZeroSize     = "zero_size"
	SkipOpenFailed   = "open_failed"
	SkipStrategyFail = "strategy_failed"
)

// Signal return statuses
const (
	ReturnValid   = "valid"
	ReturnMissing = "missing"
)

// Nop discards every event
type Nop struct{}

func (Nop) RecordDay()                                      {}
func (Nop) RecordPositionOpened()                           {}
func (Nop) RecordPositionClosed(reason string)              {}
func (Nop) RecordSkippedSignal(reason string)               {}
func (Nop) RecordPriceUpdateFailure()                       {}
func (Nop) RecordSinkFailure(sink string)                   {}
func (Nop) RecordSignalReturn(period, status string)        {}
func (Nop) RecordRun(kind, status string, duration float64) {}

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	daysProcessed       prometheus.Counter
	positionsOpened     prometheus.Counter
	positionsClosed     *prometheus.CounterVec
	signalsSkipped      *prometheus.CounterVec
	priceUpdateFailures prometheus.Counter
	sinkFailures        *prometheus.CounterVec
	signalReturns       *prometheus.CounterVec
	runsTotal           *prometheus.CounterVec
	runDuration         *prometheus.HistogramVec
}

var _ Recorder = (*Registry)(nil)

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{Registry: reg}

	r.daysProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradelab_days_processed_total",
			Help: "Total number of simulated business days processed",
		},
	)
	r.positionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradelab_positions_opened_total",
			Help: "Total number of positions opened",
		},
	)
	r.positionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelab_positions_closed_total",
			Help: "Total number of positions closed by exit reason",
		},
		[]string{"reason"},
	)
	r.signalsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelab_signals_skipped_total",
			Help: "Total number of qualified signals skipped",
		},
		[]string{"reason"},
	)
	r.priceUpdateFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradelab_price_update_failures_total",
			Help: "Total number of failed mark-to-market price fetches",
		},
	)
	r.sinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelab_sink_failures_total",
			Help: "Total number of report/export sink failures",
		},
		[]string{"sink"},
	)
	r.signalReturns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelab_signal_returns_total",
			Help: "Total number of per-period signal returns computed",
		},
		[]string{"period", "status"},
	)
	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelab_runs_total",
			Help: "Total number of runs",
		},
		[]string{"kind", "status"},
	)
	r.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradelab_run_duration_seconds",
			Help:    "Run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 900},
		},
		[]string{"kind"},
	)

	reg.MustRegister(r.daysProcessed)
	reg.MustRegister(r.positionsOpened)
	reg.MustRegister(r.positionsClosed)
	reg.MustRegister(r.signalsSkipped)
	reg.MustRegister(r.priceUpdateFailures)
	reg.MustRegister(r.sinkFailures)
	reg.MustRegister(r.signalReturns)
	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)

	return r
}

// RecordDay records a processed business day.
func (r *Registry) RecordDay() {
	r.daysProcessed.Inc()
}

// RecordPositionOpened records an opened position.
func (r *Registry) RecordPositionOpened() {
	r.positionsOpened.Inc()
}

// RecordPositionClosed records a closed position.
func (r *Registry) RecordPositionClosed(reason string) {
	r.positionsClosed.WithLabelValues(reason).Inc()
}

// RecordSkippedSignal records a qualified signal that did not open a position.
func (r *Registry) RecordSkippedSignal(reason string) {
	r.signalsSkipped.WithLabelValues(reason).Inc()
}

// RecordPriceUpdateFailure records a failed mark-to-market fetch.
func (r *Registry) RecordPriceUpdateFailure() {
	r.priceUpdateFailures.Inc()
}

// RecordSinkFailure records a failed sink publish.
func (r *Registry) RecordSinkFailure(sink string) {
	r.sinkFailures.WithLabelValues(sink).Inc()
}

// RecordSignalReturn records one per-period signal return computation.
func (r *Registry) RecordSignalReturn(period, status string) {
	r.signalReturns.WithLabelValues(period, status).Inc()
}

// RecordRun records a run completion.
func (r *Registry) RecordRun(kind, status string, duration float64) {
	r.runsTotal.WithLabelValues(kind, status).Inc()
	r.runDuration.WithLabelValues(kind).Observe(duration)
}

// WriteTextfile writes all gathered metrics to path in the text exposition
// format, for pickup by a node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
