package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aggregator"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Scheduler metrics
	TasksLive     prometheus.Gauge
	TasksStarted  prometheus.Counter
	TasksFinished *prometheus.CounterVec
	Background    prometheus.Gauge

	// Shutdown metrics
	ShutdownCancelled prometheus.Counter
	ShutdownSpared    prometheus.Counter
	ShutdownAbandoned prometheus.Counter
	ShutdownDuration  prometheus.Histogram

	// Ingest metrics
	TradesReceived   *prometheus.CounterVec
	TradesPublished  *prometheus.CounterVec
	PublishErrors    prometheus.Counter
	StreamReconnects prometheus.Counter
	CheckpointWrites prometheus.Counter
}

// NewRegistry creates a registry with all metrics registered, plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		TasksLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "tasks_live",
			Help: "Number of tasks currently running under the scheduler.",
		}),
		TasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "tasks_started_total",
			Help: "Total number of tasks spawned.",
		}),
		TasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "tasks_finished_total",
			Help: "Total number of tasks that reached a terminal state, by state.",
		}, []string{"state"}),
		Background: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "background_tasks",
			Help: "Number of fire-and-forget tasks held by the background registry.",
		}),
		ShutdownCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shutdown", Name: "tasks_cancelled_total",
			Help: "Ordinary tasks cancelled by the shutdown sequence.",
		}),
		ShutdownSpared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shutdown", Name: "consumers_spared_total",
			Help: "Consumer tasks left running by the shutdown sequence.",
		}),
		ShutdownAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shutdown", Name: "tasks_abandoned_total",
			Help: "Tasks that did not terminate before the shutdown deadline.",
		}),
		ShutdownDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "shutdown", Name: "duration_seconds",
			Help:    "Time spent in the shutdown sequence.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		TradesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "trades_received_total",
			Help: "Trades received from the exchange stream, by symbol.",
		}, []string{"symbol"}),
		TradesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "trades_published_total",
			Help: "Trades published to the sink, by symbol.",
		}, []string{"symbol"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "publish_errors_total",
			Help: "Sink publish failures.",
		}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "stream_reconnects_total",
			Help: "Exchange stream reconnect attempts.",
		}),
		CheckpointWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "checkpoint_writes_total",
			Help: "Checkpoint records written.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.TasksLive, r.TasksStarted, r.TasksFinished, r.Background,
		r.ShutdownCancelled, r.ShutdownSpared, r.ShutdownAbandoned, r.ShutdownDuration,
		r.TradesReceived, r.TradesPublished, r.PublishErrors, r.StreamReconnects, r.CheckpointWrites,
	)

	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry, creating it on first use.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Gatherer returns the underlying Prometheus gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// TaskStarted records a spawned task.
func (r *Registry) TaskStarted() {
	if r == nil {
		return
	}
	r.TasksStarted.Inc()
	r.TasksLive.Inc()
}

// TaskFinished records a task reaching the given terminal state.
func (r *Registry) TaskFinished(state string) {
	if r == nil {
		return
	}
	r.TasksLive.Dec()
	r.TasksFinished.WithLabelValues(state).Inc()
}

// AddBackground moves the background registry size by delta.
func (r *Registry) AddBackground(delta int) {
	if r == nil {
		return
	}
	r.Background.Add(float64(delta))
}

// ObserveShutdown records the outcome of one shutdown sequence.
func (r *Registry) ObserveShutdown(cancelled, spared, abandoned int, d time.Duration) {
	if r == nil {
		return
	}
	r.ShutdownCancelled.Add(float64(cancelled))
	r.ShutdownSpared.Add(float64(spared))
	r.ShutdownAbandoned.Add(float64(abandoned))
	r.ShutdownDuration.Observe(d.Seconds())
}

// IncTradeReceived records a trade read from the exchange.
func (r *Registry) IncTradeReceived(symbol string) {
	if r == nil {
		return
	}
	r.TradesReceived.WithLabelValues(symbol).Inc()
}

// IncTradePublished records a trade delivered to the sink.
func (r *Registry) IncTradePublished(symbol string) {
	if r == nil {
		return
	}
	r.TradesPublished.WithLabelValues(symbol).Inc()
}

// IncPublishError records a sink failure.
func (r *Registry) IncPublishError() {
	if r == nil {
		return
	}
	r.PublishErrors.Inc()
}

// IncReconnect records an exchange reconnect attempt.
func (r *Registry) IncReconnect() {
	if r == nil {
		return
	}
	r.StreamReconnects.Inc()
}

// IncCheckpointWrite records a checkpoint write.
func (r *Registry) IncCheckpointWrite() {
	if r == nil {
		return
	}
	r.CheckpointWrites.Inc()
}
