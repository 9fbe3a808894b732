// Package analysis characterizes recorded runs.
//
//   - [PowerSpectrum] and [DominantFrequency]: oscillation in an error or
//     reading trace
//   - [DecayRate]: exponential convergence rate of a trace; negative means
//     the loop is settling
//   - [NewPortrait]: 2D phase portrait of two channels, rendered as text
//
// A typical check on a stored run:
//
//	rate, _ := analysis.DecayRate(errs, dt)
//	if rate > 0 {
//	    // error is growing
//	}
package analysis
