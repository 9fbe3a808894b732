// Package metrics aggregates tick reports into run-level figures.
package metrics

import (
	"sort"

	"github.com/san-kum/mindstone/internal/loop"
)

// Metric folds tick reports into a single number.
type Metric interface {
	Name() string
	Observe(r loop.TickReport)
	Value() float64
	Reset()
}

const (
	TickCount            = "tick_count"
	FaultCount           = "fault_count"
	AdaptationEventCount = "adaptation_event_count"
	MeanError            = "mean_error"
	DivergenceCount      = "divergence_count"
	FallbackCount        = "fallback_count"
	ControlEffort        = "control_effort"
	DeferredAdaptations  = "deferred_adaptations"
)

// Set is an ordered collection of metrics. It is not safe for concurrent use.
type Set struct {
	metrics []Metric
}

func NewSet(ms ...Metric) *Set {
	return &Set{metrics: ms}
}

// Standard returns the metrics every session reports.
func Standard() *Set {
	return NewSet(
		NewCounter(TickCount, func(r loop.TickReport) int { return b2i(r.HasOutput) }),
		NewCounter(FaultCount, func(r loop.TickReport) int { return len(r.Faults) }),
		NewCounter(AdaptationEventCount, func(r loop.TickReport) int { return b2i(r.Adaptation != nil) }),
		NewCounter(DivergenceCount, func(r loop.TickReport) int {
			return len(r.FaultsOf(loop.FaultAdaptationDivergence))
		}),
		NewCounter(FallbackCount, func(r loop.TickReport) int { return b2i(r.Fallback) }),
		NewCounter(DeferredAdaptations, func(r loop.TickReport) int { return b2i(r.AdaptationDeferred) }),
		NewMeanError(),
		NewControlEffort(),
	)
}

func (s *Set) Add(m Metric) { s.metrics = append(s.metrics, m) }

func (s *Set) Observe(r loop.TickReport) {
	for _, m := range s.metrics {
		m.Observe(r)
	}
}

func (s *Set) Reset() {
	for _, m := range s.metrics {
		m.Reset()
	}
}

func (s *Set) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s *Set) Names() []string {
	names := make([]string, 0, len(s.metrics))
	for _, m := range s.metrics {
		names = append(names, m.Name())
	}
	sort.Strings(names)
	return names
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
