// Package viz renders runs for the terminal: lipgloss styles, asciigraph
// plots of recorded channels, run summaries, and a character scene that
// draws the plant from a snapshot.
package viz
