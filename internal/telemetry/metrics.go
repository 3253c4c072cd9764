package telemetry

import "github.com/prometheus/client_golang/prometheus"

// HTTPRequestDuration records HTTP request latency, labeled by the matched
// chi route pattern so cardinality stays bounded regardless of path params.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "sentinel",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

// CheckInsConfirmedTotal counts successful check-in confirmations.
var CheckInsConfirmedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "checkin",
		Name:      "confirmed_total",
		Help:      "Total number of check-ins confirmed.",
	},
)

// CheckInsMissedTotal counts check-ins the scheduler marked MISSED.
var CheckInsMissedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "checkin",
		Name:      "missed_total",
		Help:      "Total number of check-ins marked missed by the scheduler.",
	},
)

// EscalationsTotal counts escalation jobs the scheduler enqueues, by target
// grace level.
var EscalationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "escalation",
		Name:      "transitions_total",
		Help:      "Total number of escalation jobs enqueued by the scheduler, by target level.",
	},
	[]string{"level"},
)

// EscalationsSkippedStaleTotal counts missed check-ins for which the
// scheduler enqueues no escalation because the owner's config is PAUSED or
// TRIGGERED. Stale escalation jobs dropped by the escalation worker are not
// counted.
var EscalationsSkippedStaleTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "escalation",
		Name:      "skipped_stale_total",
		Help:      "Total number of missed check-ins not escalated because the config was PAUSED or TRIGGERED.",
	},
)

// ReleasesTriggeredTotal counts death-protocol runs that progressed to commit.
var ReleasesTriggeredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "release",
		Name:      "triggered_total",
		Help:      "Total number of release (death protocol) runs that reached the TRIGGERED state.",
	},
)

// TrusteeAccessGrantedTotal counts trustee access tokens minted by releases.
var TrusteeAccessGrantedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "release",
		Name:      "trustee_access_granted_total",
		Help:      "Total number of trustee access tokens minted.",
	},
)

// JobsDeadLetteredTotal counts jobs that exhausted their retry budget.
var JobsDeadLetteredTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "queue",
		Name:      "dead_lettered_total",
		Help:      "Total number of jobs dead-lettered after exhausting their retry budget.",
	},
	[]string{"queue"},
)

// SchedulerSweepDuration records the wall-clock cost of a full scheduler sweep.
var SchedulerSweepDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "sentinel",
		Subsystem: "scheduler",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a complete scheduler sweep in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
)

// All returns all Eternal Sentinel metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		CheckInsConfirmedTotal,
		CheckInsMissedTotal,
		EscalationsTotal,
		EscalationsSkippedStaleTotal,
		ReleasesTriggeredTotal,
		TrusteeAccessGrantedTotal,
		JobsDeadLetteredTotal,
		SchedulerSweepDuration,
	}
}
