package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// SubmissionCounter reports stored form submissions per kind
type SubmissionCounter interface {
	CountByKind() (map[string]int, error)
}

// Collector records page assembly and form metrics on a private registry
type Collector struct {
	registry  *prometheus.Registry
	startTime time.Time
	counter   SubmissionCounter

	mounts      *prometheus.CounterVec
	mountTime   *prometheus.HistogramVec
	loads       *prometheus.CounterVec
	loadTime    prometheus.Histogram
	lastLoad    prometheus.Gauge
	submissions *prometheus.CounterVec

	mu          sync.RWMutex
	lastOutcome map[string]string // module -> outcome of its latest mount
}

// NewCollector creates a collector and registers its metrics
func NewCollector() *Collector {
	c := &Collector{
		registry:    prometheus.NewRegistry(),
		startTime:   time.Now(),
		lastOutcome: make(map[string]string),
		mounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "landing_fragment_mounts_total",
				Help: "Fragment mounts by module and outcome",
			},
			[]string{"module", "outcome"},
		),
		mountTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "landing_fragment_mount_duration_seconds",
				Help:    "Time to fetch and mount one fragment",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"module"},
		),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "landing_orchestrations_total",
				Help: "Full page orchestrations by result",
			},
			[]string{"result"},
		),
		loadTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "landing_orchestration_duration_seconds",
				Help:    "Time for every fragment to settle, excluding the settle delay",
				Buckets: prometheus.ExponentialBuckets(0.005, 3, 8),
			},
		),
		lastLoad: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "landing_last_orchestration_timestamp_seconds",
				Help: "Unix time of the latest completed orchestration",
			},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "landing_form_submissions_total",
				Help: "Form submissions by form and result",
			},
			[]string{"form", "result"},
		),
	}

	c.registry.MustRegister(c.mounts, c.mountTime, c.loads, c.loadTime, c.lastLoad, c.submissions)
	return c
}

// SetSubmissionCounter exposes stored submission totals on /metrics
func (c *Collector) SetSubmissionCounter(counter SubmissionCounter) {
	c.counter = counter
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordMount records one fragment mount
func (c *Collector) RecordMount(module, outcome string, d time.Duration) {
	c.mounts.WithLabelValues(module, outcome).Inc()
	c.mountTime.WithLabelValues(module).Observe(d.Seconds())

	c.mu.Lock()
	c.lastOutcome[module] = outcome
	c.mu.Unlock()
}

// RecordLoad records a full orchestration
func (c *Collector) RecordLoad(d time.Duration, failed bool) {
	result := "settled"
	if failed {
		result = "failed"
	}
	c.loads.WithLabelValues(result).Inc()
	c.loadTime.Observe(d.Seconds())
	c.lastLoad.SetToCurrentTime()
}

// RecordSubmission records a form submission attempt
func (c *Collector) RecordSubmission(form, result string) {
	c.submissions.WithLabelValues(form, result).Inc()
}

// ServeHTTP serves Prometheus-compatible metrics
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))

	fmt.Fprintf(w, "# HELP landing_uptime_seconds Time since the service started\n")
	fmt.Fprintf(w, "# TYPE landing_uptime_seconds gauge\n")
	fmt.Fprintf(w, "landing_uptime_seconds %.0f\n", time.Since(c.startTime).Seconds())

	c.mu.RLock()
	modules := make([]string, 0, len(c.lastOutcome))
	for m := range c.lastOutcome {
		modules = append(modules, m)
	}
	sort.Strings(modules)
	fmt.Fprintf(w, "\n# HELP landing_fragment_degraded Whether the module's latest mount did not render fetched content\n")
	fmt.Fprintf(w, "# TYPE landing_fragment_degraded gauge\n")
	for _, m := range modules {
		degraded := 0
		if c.lastOutcome[m] != "mounted" {
			degraded = 1
		}
		fmt.Fprintf(w, "landing_fragment_degraded{module=\"%s\"} %d\n", m, degraded)
	}
	c.mu.RUnlock()

	if c.counter != nil {
		counts, err := c.counter.CountByKind()
		if err != nil {
			fmt.Fprintf(w, "# Error counting stored submissions: %v\n", err)
		} else {
			kinds := make([]string, 0, len(counts))
			for k := range counts {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			fmt.Fprintf(w, "\n# HELP landing_stored_submissions Stored form submissions by kind\n")
			fmt.Fprintf(w, "# TYPE landing_stored_submissions gauge\n")
			for _, k := range kinds {
				fmt.Fprintf(w, "landing_stored_submissions{kind=\"%s\"} %d\n", k, counts[k])
			}
		}
	}

	families, err := c.registry.Gather()
	if err != nil {
		fmt.Fprintf(w, "# Error gathering metrics: %v\n", err)
		return
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, format)
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			fmt.Fprintf(w, "# Error encoding metric %s: %v\n", mf.GetName(), err)
		}
	}
	fmt.Fprintln(w)
	w.Write(buf.Bytes())
}
