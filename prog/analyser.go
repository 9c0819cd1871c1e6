// Package prog provides the Analyser interface for whole programs.
package prog

// Analyser is a driver running over a whole program.
type Analyser interface {
	// Analyse is the entry point of the driver.
	Analyse()
}
