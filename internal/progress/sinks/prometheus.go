package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/venueminer/venueminer/internal/progress"
)

// PrometheusSink exports batch progress via Prometheus. It owns all
// collectors for venues started/completed/in-flight and extracted rooms.
type PrometheusSink struct {
	venuesStarted   prometheus.Counter
	venuesCompleted *prometheus.CounterVec
	venuesRunning   prometheus.Gauge
	venueDuration   *prometheus.HistogramVec
	roomsExtracted  *prometheus.CounterVec

	inflight *inflightSet
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		venuesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "venueminer_venues_started_total",
			Help: "Total venue tasks that have started.",
		}),
		venuesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venueminer_venues_completed_total",
			Help: "Total venue tasks completed partitioned by outcome.",
		}, []string{"outcome"}),
		venuesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "venueminer_venues_running",
			Help: "Current number of in-flight venue tasks.",
		}),
		venueDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "venueminer_venue_duration_seconds",
			Help:    "Wall time per completed venue partitioned by outcome.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"outcome"}),
		roomsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venueminer_rooms_extracted_total",
			Help: "Total rooms extracted partitioned by layout variant.",
		}, []string{"variant"}),
		inflight: newInflightSet(),
	}
	for _, collector := range []prometheus.Collector{
		s.venuesStarted,
		s.venuesCompleted,
		s.venuesRunning,
		s.venueDuration,
		s.roomsExtracted,
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
	case progress.StageVenueStart:
		s.venuesStarted.Inc()
		if s.inflight.start(evt.VenueID) {
			s.venuesRunning.Inc()
		}
	case progress.StageVenueDone:
		outcome := string(evt.Outcome)
		if outcome == "" {
			outcome = string(progress.OutcomeFailed)
		}
		s.venuesCompleted.WithLabelValues(outcome).Inc()
		if evt.Dur > 0 {
			s.venueDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
		}
		if evt.Rooms > 0 {
			variant := string(evt.Variant)
			if variant == "" {
				variant = "unknown"
			}
			s.roomsExtracted.WithLabelValues(variant).Add(float64(evt.Rooms))
		}
		if s.inflight.complete(evt.VenueID) {
			s.venuesRunning.Dec()
		}
	case progress.StageVenueError:
		s.venuesCompleted.WithLabelValues(string(progress.OutcomeFailed)).Inc()
		if evt.Dur > 0 {
			s.venueDuration.WithLabelValues(string(progress.OutcomeFailed)).Observe(evt.Dur.Seconds())
		}
		if s.inflight.complete(evt.VenueID) {
			s.venuesRunning.Dec()
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type inflightSet struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{running: make(map[string]struct{})}
}

func (t *inflightSet) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *inflightSet) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
