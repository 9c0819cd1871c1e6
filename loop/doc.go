// Package loop provides the loop tree analysis of an ir.Graph and the
// recognition of countable loops.
//
// Loop detection works on the dominator tree: an edge whose target dominates
// its source is a back-edge, and the blocks reaching the source without
// passing the target form the natural loop of the target. A retreating edge
// to a block which does not dominate the source marks the loop irreducible.
// Each reducible loop gets a single pre-header, created when the header has
// several predecessors outside the loop.
//
// A countable loop is a loop of the form
//
//	for (i = init; update(i) cc test; i = update(i)) { ... }
//
// with the exit test at the back-edge, a constant step and a loop-invariant
// test. ParseCountable extracts these parameters.
package loop
