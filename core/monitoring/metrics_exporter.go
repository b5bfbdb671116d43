package monitoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobCounter reports current job totals
type JobCounter interface {
	CountJobs(ctx context.Context) (total, completed int, err error)
}

// JobsExporter publishes active and completed job counts, read from the store at scrape time
type JobsExporter struct {
	counter JobCounter
	active  *prometheus.Desc
	done    *prometheus.Desc
	timeout time.Duration
}

// NewJobsExporter creates the exporter and registers it with the default registerer
func NewJobsExporter(counter JobCounter) *JobsExporter {
	e := &JobsExporter{
		counter: counter,
		active:  prometheus.NewDesc("dispatch_jobs_active", "Jobs not yet done", nil, nil),
		done:    prometheus.NewDesc("dispatch_jobs_completed", "Jobs that reached done", nil, nil),
		timeout: 5 * time.Second,
	}
	prometheus.MustRegister(e)
	return e
}

// Describe implements prometheus.Collector
func (e *JobsExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.active
	ch <- e.done
}

// Collect implements prometheus.Collector
func (e *JobsExporter) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	total, completed, err := e.counter.CountJobs(ctx)
	if err != nil {
		slog.Warn("failed to count jobs for metrics", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(e.active, prometheus.GaugeValue, float64(total-completed))
	ch <- prometheus.MustNewConstMetric(e.done, prometheus.GaugeValue, float64(completed))
}
