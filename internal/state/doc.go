// Package state provides the immutable values that flow through a control loop.
//
//   - [Snapshot]: sensor readings (and derived features) captured at one instant
//   - [Output]: actuator commands derived from one snapshot
//   - [Residual]: observed error attached to an output once its effect is measured
//   - [Window]: bounded FIFO history of (snapshot, output, residual) entries
//   - [Sequencer]: enforces strictly increasing snapshot time within a session
//
// Snapshots and outputs copy their inputs at construction and only hand out
// copies, so they can be shared between the tick path and adaptation workers
// without further synchronization.
//
// # Window entries
//
// The error for tick N is only known once the snapshot of tick N+1 arrives.
// Entries are therefore recorded pending and finalized exactly once:
//
//	seq := w.Record(snap, out)
//	// next tick
//	w.Finalize(seq, errFn(out, nextSnap))
package state
