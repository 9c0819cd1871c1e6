package block

import (
	"bufio"
	"fmt"
	"io"

	"github.com/nickng/loopopt/ir"
)

// WriteDot writes the CFG of g reachable from its start block to w in
// graphviz dot format. Conditional edges are labelled with T/F and their
// profile count when the branch has one.
func WriteDot(g *ir.Graph, w io.Writer) error {
	bufw := bufio.NewWriter(w)
	fmt.Fprintf(bufw, "digraph %q {\n", g.Name())
	TraverseEdges(g, func(from, to *ir.Block) {
		if from == nil {
			fmt.Fprintf(bufw, "  %q [shape=box]\n", to)
			return
		}
		term := from.Terminator()
		if term == nil || term.Opcode() != ir.OpIfImm {
			fmt.Fprintf(bufw, "  %q -> %q\n", from, to)
			return
		}
		taken, notTaken := term.Profile()
		label, count := "T", taken
		if from.FalseSucc() == to {
			label, count = "F", notTaken
		}
		if taken+notTaken > 0 {
			label = fmt.Sprintf("%s %d", label, count)
		}
		fmt.Fprintf(bufw, "  %q -> %q [label=%q]\n", from, to, label)
	})
	bufw.WriteString("}\n")
	return bufw.Flush()
}
