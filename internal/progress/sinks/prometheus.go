package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/progress"
)

// PrometheusSink exports crawl progress via Prometheus. It owns all
// collectors for runs started/completed/running, target outcomes, pages, and
// record dispositions.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runRuntime    *prometheus.HistogramVec

	targetsCompleted *prometheus.CounterVec
	targetDuration   prometheus.Histogram
	pagesTotal       prometheus.Counter
	recordsTotal     *prometheus.CounterVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawl_runs_started_total",
			Help: "Total crawl runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawl_runs_completed_total",
			Help: "Total crawl runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawl_runs_running",
			Help: "Current number of running crawls.",
		}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawl_run_runtime_seconds",
			Help:    "Wall time per completed crawl run.",
			Buckets: []float64{30, 60, 300, 900, 1800, 3600, 7200, 14400, 28800},
		}, []string{"result"}),
		targetsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawl_targets_completed_total",
			Help: "Targets finished partitioned by result.",
		}, []string{"result"}),
		targetDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawl_target_duration_seconds",
			Help:    "Wall time per finished target.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		pagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawl_pages_total",
			Help: "Search result pages parsed.",
		}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawl_records_total",
			Help: "Scraped records partitioned by outcome.",
		}, []string{"outcome"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runRuntime,
		s.targetsCompleted,
		s.targetDuration,
		s.pagesTotal,
		s.recordsTotal,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
		s.handleRunEvent(evt)
	case progress.StageTargetDone:
		s.handleTargetEvent(evt, "success")
	case progress.StageTargetError:
		s.handleTargetEvent(evt, "error")
	case progress.StagePageDone:
		s.pagesTotal.Inc()
	case progress.StageRecord:
		s.recordsTotal.WithLabelValues(string(evt.Outcome)).Inc()
	}
}

func (s *PrometheusSink) handleRunEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.observeRuntime(evt, "success")
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	}
	if evt.Stage != progress.StageRunStart && s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleTargetEvent(evt progress.Event, result string) {
	s.targetsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.targetDuration.Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
