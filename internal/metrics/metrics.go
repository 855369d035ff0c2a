package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcome label values
const (
	OutcomeSuccess        = "success"
	OutcomeFailure        = "failure"
	OutcomeMethodNotFound = "method_not_found"
	OutcomeInvalidRequest = "invalid_request"
	OutcomePanic          = "panic"
)

// Metrics holds the harness collectors. Nothing is registered until Register.
type Metrics struct {
	Dispatches       *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	ProbeResults     *prometheus.CounterVec
	ReportsRendered  *prometheus.CounterVec
	ReportFailures   prometheus.Counter
	HTTPRequests     *prometheus.CounterVec
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwharness_dispatches_total",
			Help: "Total number of dispatched envelopes by method and outcome",
		}, []string{"method", "outcome"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vwharness_dispatch_duration_seconds",
			Help:    "Time taken by a handler to produce a response in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		ProbeResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwharness_probe_results_total",
			Help: "Total number of probe results by probe and status",
		}, []string{"probe", "status"}),
		ReportsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwharness_reports_rendered_total",
			Help: "Total number of reports rendered by format",
		}, []string{"format"}),
		ReportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vwharness_report_write_failures_total",
			Help: "Total number of report writes that failed",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwharness_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Dispatches, m.DispatchDuration, m.ProbeResults, m.ReportsRendered, m.ReportFailures, m.HTTPRequests,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
