// Package ssa builds Go SSA and lowers its functions to ir.Graph.
//
// The SSA IR is from golang.org/x/tools/go/ssa; the build subpackage loads
// and type checks the sources. Lower converts a single function into the
// graph form the optimizer works on, and the callgraph helpers select the
// functions worth lowering.
package ssa

import (
	"go/token"
	"io"

	"golang.org/x/tools/go/loader"
	"golang.org/x/tools/go/ssa"
)

// Info holds the results of a SSA build for analysis.
// To populate this structure, the 'build' subpackage should be used.
type Info struct {
	IgnoredPkgs []string // Record of ignored package during the build process.

	FSet  *token.FileSet  // FileSet for parsed source files.
	Prog  *ssa.Program    // SSA IR for whole program.
	LProg *loader.Program // Loaded program from go/loader.

	BldLog io.Writer // Build log.
	PtaLog io.Writer // Pointer analysis log.
}
