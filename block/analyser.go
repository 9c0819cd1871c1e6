// Package block provides the Analyser interface for blocks and the analyses
// computed over the blocks of an ir.Graph: traversals, the dominator tree, the
// linear order and the graph checker.
package block

import "github.com/nickng/loopopt/ir"

// Analyser is an interface for block-by-block execution of a graph,
// handling block transitions within a function.
type Analyser interface {
	// EnterBlk analyses a block where there is no predecessor, i.e. the start
	// block of a Graph.
	EnterBlk(blk *ir.Block)

	// JumpBlk analyses a block entered from curr, where phis of next select
	// the input flowing from curr.
	JumpBlk(curr, next *ir.Block)

	// ExitBlk analyses a terminating block where there are no successors.
	ExitBlk(blk *ir.Block)

	// CurrBlk returns the current block (last block entered).
	CurrBlk() *ir.Block

	// PrevBlk() returns the previous block (last block exited).
	PrevBlk() *ir.Block
}
