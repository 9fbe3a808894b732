package state

// Entry is one (snapshot, output, residual) record. Residual is nil until the
// entry is finalized.
type Entry struct {
	Seq       uint64
	Snapshot  Snapshot
	Output    Output
	Residual  Residual
	Finalized bool
}

// Window is a fixed-capacity FIFO of entries. It is owned by a single
// goroutine; Entries hands out detached copies for other readers.
type Window struct {
	buf     []Entry
	head    int
	size    int
	nextSeq uint64
	evicted int
}

func NewWindow(capacity int) (*Window, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &Window{buf: make([]Entry, capacity), nextSeq: 1}, nil
}

func (w *Window) Cap() int     { return len(w.buf) }
func (w *Window) Len() int     { return w.size }
func (w *Window) Evicted() int { return w.evicted }

// Record appends a pending entry, evicting the oldest when full, and returns
// the entry's sequence number.
func (w *Window) Record(snap Snapshot, out Output) uint64 {
	seq := w.nextSeq
	w.nextSeq++

	idx := (w.head + w.size) % len(w.buf)
	if w.size == len(w.buf) {
		idx = w.head
		w.head = (w.head + 1) % len(w.buf)
		w.evicted++
	} else {
		w.size++
	}
	w.buf[idx] = Entry{Seq: seq, Snapshot: snap, Output: out}
	return seq
}

// Finalize attaches the residual to entry seq. It returns false if the entry
// was evicted or is already finalized.
func (w *Window) Finalize(seq uint64, r Residual) bool {
	for i := 0; i < w.size; i++ {
		e := &w.buf[(w.head+i)%len(w.buf)]
		if e.Seq != seq {
			continue
		}
		if e.Finalized {
			return false
		}
		e.Residual = r.Clone()
		e.Finalized = true
		return true
	}
	return false
}

// Entries returns a copy of the window, oldest first.
func (w *Window) Entries() []Entry {
	out := make([]Entry, w.size)
	for i := 0; i < w.size; i++ {
		e := w.buf[(w.head+i)%len(w.buf)]
		e.Residual = e.Residual.Clone()
		out[i] = e
	}
	return out
}

// Last returns the newest entry.
func (w *Window) Last() (Entry, bool) {
	if w.size == 0 {
		return Entry{}, false
	}
	return w.buf[(w.head+w.size-1)%len(w.buf)], true
}

// Finalized returns only entries whose residual is known, oldest first.
func Finalized(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Finalized {
			out = append(out, e)
		}
	}
	return out
}
