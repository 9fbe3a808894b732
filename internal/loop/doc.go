// Package loop implements the control-loop scheduler.
//
// A [Loop] ticks a [model.Model] against snapshots pulled from a [Sensor] and
// emits each output to an [Actuator]. Ticks run strictly one after another on
// the goroutine that called [Loop.Run]:
//
//  1. acquire a snapshot (bounded by Config.SnapshotTimeout)
//  2. apply a finished adaptation result, if any
//  3. attach the observed error to the previous tick's history entry
//  4. evaluate the model (falling back per Config.Fallback on failure)
//  5. emit the output and record it in the history window
//  6. hand the window to the model's adapter (inline or on a worker)
//
// Pause and Stop requests are honored only between ticks, so every tick
// completes atomically. Anomalies are recorded as [Fault] values on the
// [TickReport]; only terminal faults end the run.
//
// # Thread Safety
//
// State, Pause, Resume, Stop and History are safe to call concurrently with
// Run. Everything else belongs to the Run goroutine.
package loop
