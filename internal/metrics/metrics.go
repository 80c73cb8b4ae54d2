package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "fusion_batch"

	commandsTotal = "commands_total"
	tasksTotal    = "tasks_total"
	batchesTotal  = "batches_total"
	batchesQueued = "batches_queued"

	// Labels
	subcommandLabel = "subcommand"
	outcomeLabel    = "outcome"
	kindLabel       = "kind"
	statusLabel     = "status"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var registry = prometheus.NewRegistry()

var commandsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      commandsTotal,
		Help:      "number of external tool invocations by subcommand and outcome",
	},
	[]string{subcommandLabel, outcomeLabel},
)

var tasksTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      tasksTotal,
		Help:      "number of batch tasks (one job lifecycle each) by batch kind and outcome",
	},
	[]string{kindLabel, outcomeLabel},
)

var batchesTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      batchesTotal,
		Help:      "number of finished batches by kind and final status",
	},
	[]string{kindLabel, statusLabel},
)

var batchesQueuedMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      batchesQueued,
		Help:      "number of batches waiting for the worker",
	},
)

func init() {
	registry.MustRegister(commandsTotalMetric, tasksTotalMetric, batchesTotalMetric, batchesQueuedMetric)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// ObserveCommand counts one external tool invocation.
func ObserveCommand(subcommand string, err error) {
	commandsTotalMetric.With(prometheus.Labels{
		subcommandLabel: subcommand,
		outcomeLabel:    outcome(err),
	}).Inc()
}

// ObserveTask counts one finished batch task.
func ObserveTask(kind string, err error) {
	tasksTotalMetric.With(prometheus.Labels{
		kindLabel:    kind,
		outcomeLabel: outcome(err),
	}).Inc()
}

// ObserveBatch counts one finished batch.
func ObserveBatch(kind, status string) {
	batchesTotalMetric.With(prometheus.Labels{
		kindLabel:   kind,
		statusLabel: status,
	}).Inc()
}

// SetQueued records the current worker queue length.
func SetQueued(n int) {
	batchesQueuedMetric.Set(float64(n))
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
