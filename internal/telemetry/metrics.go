package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ToolCalls counts dispatched tool calls by function name and outcome.
	ToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purview_router_tool_calls_total",
			Help: "Tool calls dispatched during routing runs",
		},
		[]string{"function", "outcome"},
	)

	// RunsFinished counts runs by execution mode and the status polling ended on.
	RunsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purview_router_runs_total",
			Help: "Agent runs by mode and final observed status",
		},
		[]string{"mode", "status"},
	)

	// PollIterations observes how many status fetches a polling loop made.
	PollIterations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "purview_router_poll_iterations",
			Help:    "Status fetches per polling loop",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"loop"},
	)

	// GenieRequests counts conversation-adapter exchanges by outcome.
	GenieRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purview_router_genie_requests_total",
			Help: "Genie conversation exchanges by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ToolCalls)
	prometheus.MustRegister(RunsFinished)
	prometheus.MustRegister(PollIterations)
	prometheus.MustRegister(GenieRequests)
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
