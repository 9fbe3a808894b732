package metrics

import (
	"github.com/san-kum/mindstone/internal/loop"
)

// ControlEffortMetric is the mean per-tick sum of absolute output values.
type ControlEffortMetric struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffortMetric {
	return &ControlEffortMetric{}
}

func (c *ControlEffortMetric) Name() string { return ControlEffort }

func (c *ControlEffortMetric) Observe(r loop.TickReport) {
	if !r.HasOutput {
		return
	}
	c.sum += r.Output.Effort()
	c.samples++
}

func (c *ControlEffortMetric) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffortMetric) Reset() {
	c.sum = 0
	c.samples = 0
}
