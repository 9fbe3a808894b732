package state

// Sequencer enforces strictly increasing snapshot time. The zero value
// accepts any first snapshot.
type Sequencer struct {
	last    float64
	started bool
}

// Accept records s as the latest snapshot if its time advances.
func (q *Sequencer) Accept(s Snapshot) error {
	if q.started && !(s.Time() > q.last) {
		return &OrderError{Time: s.Time(), Last: q.last}
	}
	q.last = s.Time()
	q.started = true
	return nil
}

// Last returns the last accepted time and whether any snapshot was accepted.
func (q *Sequencer) Last() (float64, bool) { return q.last, q.started }
