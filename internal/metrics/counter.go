package metrics

import "github.com/san-kum/mindstone/internal/loop"

// Counter sums an integer extracted from every report.
type Counter struct {
	name  string
	count func(loop.TickReport) int
	total int
}

func NewCounter(name string, count func(loop.TickReport) int) *Counter {
	return &Counter{name: name, count: count}
}

func (c *Counter) Name() string              { return c.name }
func (c *Counter) Observe(r loop.TickReport) { c.total += c.count(r) }
func (c *Counter) Value() float64            { return float64(c.total) }
func (c *Counter) Reset()                    { c.total = 0 }

// FaultsOfKind counts faults of one kind.
func FaultsOfKind(k loop.FaultKind) *Counter {
	return NewCounter(string(k)+"_count", func(r loop.TickReport) int { return len(r.FaultsOf(k)) })
}
