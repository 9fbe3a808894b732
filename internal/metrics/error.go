package metrics

import (
	"math"

	"github.com/san-kum/mindstone/internal/loop"
)

// MeanErrorMetric averages the norm of every attributed residual.
type MeanErrorMetric struct {
	sum     float64
	samples int
}

func NewMeanError() *MeanErrorMetric { return &MeanErrorMetric{} }

func (m *MeanErrorMetric) Name() string { return MeanError }

func (m *MeanErrorMetric) Observe(r loop.TickReport) {
	if r.Residual == nil {
		return
	}
	m.sum += r.Residual.Norm()
	m.samples++
}

func (m *MeanErrorMetric) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanErrorMetric) Reset() {
	m.sum = 0
	m.samples = 0
}

// Stability is the fraction of attributed residuals whose norm stays within
// threshold. It reads 1 before any residual arrives.
type Stability struct {
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(r loop.TickReport) {
	if r.Residual == nil {
		return
	}
	s.samples++
	if n := r.Residual.Norm(); n > s.threshold || math.IsNaN(n) {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// EnergyDrift tracks the largest relative departure of a snapshot channel
// (typically a plant's derived "energy") from its first observed value.
type EnergyDrift struct {
	channel  string
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift(channel string) *EnergyDrift {
	if channel == "" {
		channel = "energy"
	}
	return &EnergyDrift{channel: channel}
}

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(r loop.TickReport) {
	energy, ok := r.Snapshot.Lookup(e.channel)
	if !ok {
		return
	}
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++
	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
