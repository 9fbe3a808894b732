package session

import (
	"time"

	"github.com/san-kum/mindstone/internal/loop"
)

// Until decides after each tick whether the run is complete.
type Until func(r loop.TickReport, elapsed time.Duration) bool

// MaxTicks completes the run after n ticks.
func MaxTicks(n uint64) Until {
	return func(r loop.TickReport, _ time.Duration) bool { return r.Tick >= n }
}

// Elapsed completes the run once d of wall time has passed.
func Elapsed(d time.Duration) Until {
	return func(_ loop.TickReport, elapsed time.Duration) bool { return elapsed >= d }
}

func StopWhen(pred func(loop.TickReport) bool) Until {
	return func(r loop.TickReport, _ time.Duration) bool { return pred(r) }
}
