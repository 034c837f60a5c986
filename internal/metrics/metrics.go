// Package metrics holds the Prometheus collectors of the incident pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "autoheal"

const (
	// OutcomeSuccess labels successful downstream calls.
	OutcomeSuccess = "success"
	// OutcomeError labels failed downstream calls.
	OutcomeError = "error"
)

var (
	detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Detector results, partitioned by action and severity.",
		},
		[]string{"action", "severity"},
	)

	incidentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_total",
			Help:      "Incidents that reached the end of a pipeline run, by final state.",
		},
		[]string{"state"},
	)

	activeIncidents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_incidents",
			Help:      "Incidents currently tracked in a non-terminal state.",
		},
	)

	downstreamSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "downstream_call_seconds",
			Help:      "Latency of detector, classifier and remediation calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
		},
		[]string{"service", "outcome"},
	)

	remediationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remediations_total",
			Help:      "Remediation engine runs by issue type and status.",
		},
		[]string{"issue_type", "status"},
	)

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Executed remediation commands by kind (step, health_check, rollback) and result.",
		},
		[]string{"kind", "result"},
	)

	hubObservers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_observers",
			Help:      "Observers connected to the event hub.",
		},
	)

	hubEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_events_total",
			Help:      "Events emitted through the event hub.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Register attaches the pipeline collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		detectionsTotal,
		incidentsTotal,
		activeIncidents,
		downstreamSeconds,
		remediationsTotal,
		commandsTotal,
		hubObservers,
		hubEventsTotal,
		httpRequestsTotal,
		httpRequestSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDetection counts one detector result.
func ObserveDetection(action, severity string) {
	if severity == "" {
		severity = "none"
	}
	detectionsTotal.WithLabelValues(action, severity).Inc()
}

// ObserveIncidentFinished counts an incident's end-of-run state.
func ObserveIncidentFinished(state string) {
	incidentsTotal.WithLabelValues(state).Inc()
}

// SetActiveIncidents records the number of non-terminal incidents.
func SetActiveIncidents(n int) {
	activeIncidents.Set(float64(n))
}

// ObserveCall records a downstream call duration and outcome.
func ObserveCall(service string, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	if duration < 0 {
		duration = 0
	}
	downstreamSeconds.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

// ObserveRemediation counts one remediation engine run.
func ObserveRemediation(issueType, status string) {
	remediationsTotal.WithLabelValues(issueType, status).Inc()
}

// ObserveCommand counts one executed command.
func ObserveCommand(kind string, exitCode int) {
	result := "ok"
	if exitCode != 0 {
		result = "nonzero"
	}
	commandsTotal.WithLabelValues(kind, result).Inc()
}

// SetObservers records the number of connected hub observers.
func SetObservers(n int) {
	hubObservers.Set(float64(n))
}

// IncEvents counts one emitted hub event.
func IncEvents() {
	hubEventsTotal.Inc()
}

// ObserveHTTP records one served HTTP request.
func ObserveHTTP(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
