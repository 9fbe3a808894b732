// Package model defines the pluggable control model contract.
//
// A [Model] maps a [state.Snapshot] plus the memory it returned on the previous
// tick to a [state.Output] and new memory. Two variants are provided:
//
//   - [Static]: a [Law] evaluated with a frozen parameter vector
//   - [Adaptive]: a [Law] whose parameters are revised by an [Adapter]
//
// Laws are pure: identical snapshot, memory and parameters always produce the
// same output. Available laws are [Passthrough], [Zero], [Gain], [PID] and
// [Linear]. A [Network] composes laws into a graph of gates with conditional
// edges and is itself a law, so it can be static or adaptive like any other.
//
// # Adaptation
//
// An [Adaptive] model never changes its parameters during Evaluate. The control
// loop calls [Adaptive.Propose] (possibly on another goroutine) and later
// [Adaptive.Commit] at a tick boundary, on the same goroutine that evaluates
// the model:
//
//	delta, _ := m.Propose(ctx, window.Entries())
//	commit, err := m.Commit(delta) // clamped into Bounds; err wraps ErrAdaptationDivergence
package model
