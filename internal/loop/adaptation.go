package loop

import (
	"context"

	"github.com/san-kum/mindstone/internal/model"
	"github.com/san-kum/mindstone/internal/state"
)

type proposal struct {
	delta model.Delta
	err   error
}

// adaptWorker runs at most one Propose call at a time off the tick path.
// inFlight and deferred are touched only by the Run goroutine.
type adaptWorker struct {
	model    model.Tunable
	requests chan []state.Entry
	results  chan proposal
	inFlight bool
	deferred int
}

func newAdaptWorker(m model.Tunable) *adaptWorker {
	return &adaptWorker{
		model:    m,
		requests: make(chan []state.Entry, 1),
		results:  make(chan proposal, 1),
	}
}

func (w *adaptWorker) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case window := <-w.requests:
			d, err := w.model.Propose(ctx, window)
			select {
			case w.results <- proposal{delta: d, err: err}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// submit hands window to the worker unless a proposal is already in flight.
func (w *adaptWorker) submit(window []state.Entry) bool {
	if w.inFlight {
		w.deferred++
		return false
	}
	w.inFlight = true
	w.requests <- window
	return true
}

// poll returns a finished proposal without blocking.
func (w *adaptWorker) poll() (proposal, bool) {
	if !w.inFlight {
		return proposal{}, false
	}
	select {
	case p := <-w.results:
		w.inFlight = false
		return p, true
	default:
		return proposal{}, false
	}
}
