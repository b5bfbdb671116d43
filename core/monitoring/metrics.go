// Package monitoring exposes Prometheus metrics for the dispatch workflow.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records lifecycle and HTTP metrics
type Collector struct {
	jobsCreated      prometheus.Counter
	stageTransitions *prometheus.CounterVec
	assignments      prometheus.Counter
	proofsSubmitted  prometheus.Counter
	rejected         *prometheus.CounterVec
	completionTime   prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector creates the collector and registers it with the default registerer
func NewCollector() *Collector {
	c := &Collector{
		jobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_jobs_created_total",
			Help: "Total number of jobs created",
		}),
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_stage_transitions_total",
			Help: "Total number of accepted stage transitions by target stage",
		}, []string{"stage"}),
		assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_assignments_total",
			Help: "Total number of driver assignments",
		}),
		proofsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_proofs_submitted_total",
			Help: "Total number of jobs completed with proof",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_rejected_operations_total",
			Help: "Lifecycle operations refused by a guard or a concurrent write",
		}, []string{"operation", "reason"}),
		completionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_job_completion_seconds",
			Help:    "Time from job creation to done",
			Buckets: prometheus.ExponentialBuckets(600, 2, 10),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	prometheus.MustRegister(
		c.jobsCreated,
		c.stageTransitions,
		c.assignments,
		c.proofsSubmitted,
		c.rejected,
		c.completionTime,
		c.httpRequests,
		c.httpDuration,
	)

	return c
}

// RecordCreated counts a new job
func (c *Collector) RecordCreated() {
	c.jobsCreated.Inc()
}

// RecordTransition counts a stage append. Reaching done also observes the job's age.
func (c *Collector) RecordTransition(stage string, jobAge time.Duration) {
	c.stageTransitions.WithLabelValues(stage).Inc()
	if stage == "done" {
		c.completionTime.Observe(jobAge.Seconds())
	}
}

// RecordAssignment counts a driver assignment
func (c *Collector) RecordAssignment() {
	c.assignments.Inc()
}

// RecordProof counts a proof submission
func (c *Collector) RecordProof() {
	c.proofsSubmitted.Inc()
}

// RecordRejected counts a refused lifecycle operation
func (c *Collector) RecordRejected(operation, reason string) {
	c.rejected.WithLabelValues(operation, reason).Inc()
}

// RecordHTTP counts a served request
func (c *Collector) RecordHTTP(method, route string, code int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the default gatherer in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
