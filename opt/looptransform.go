package opt

import "github.com/nickng/loopopt/ir"

// ExitPoint restricts the loops a LoopTransform hands to its pass.
type ExitPoint int

const (
	// LoopExitHeader accepts innermost loops left only from the header.
	LoopExitHeader ExitPoint = iota
	// LoopExitBackEdge accepts innermost loops left only from the back-edge.
	LoopExitBackEdge
	// AllLoop accepts any reducible loop, inner loops included.
	AllLoop
)

func (e ExitPoint) String() string {
	switch e {
	case LoopExitHeader:
		return "header"
	case LoopExitBackEdge:
		return "back-edge"
	case AllLoop:
		return "all"
	}
	return "unknown"
}

// LoopTransform visits the loop tree of a graph innermost first and calls
// transform for every loop matching its ExitPoint.
type LoopTransform struct {
	g         *ir.Graph
	exit      ExitPoint
	transform func(*ir.Loop) bool

	// exitMarker tags blocks with a successor outside their loop.
	exitMarker ir.Marker
}

// NewLoopTransform returns a visitor calling transform on the loops of g.
func NewLoopTransform(g *ir.Graph, exit ExitPoint, transform func(*ir.Loop) bool) *LoopTransform {
	return &LoopTransform{g: g, exit: exit, transform: transform}
}

// Run visits every loop and returns true if any was transformed.
func (t *LoopTransform) Run() bool {
	t.g.RunAnalysis(ir.LoopAnalysis)
	holder := ir.NewMarkerHolder(t.g)
	defer holder.Release()
	t.exitMarker = holder.Marker()
	for _, b := range t.g.Blocks() {
		l := b.Loop()
		if l == nil || l.IsRoot() {
			continue
		}
		for _, s := range b.Succs() {
			if !l.Contains(s) {
				b.SetMarker(t.exitMarker)
				break
			}
		}
	}
	return t.visit(t.g.RootLoop())
}

func (t *LoopTransform) visit(l *ir.Loop) bool {
	changed := false
	inner := append([]*ir.Loop(nil), l.InnerLoops()...)
	for _, in := range inner {
		if t.visit(in) {
			changed = true
		}
	}
	if l.IsRoot() || !t.eligible(l) {
		return changed
	}
	return t.transform(l) || changed
}

// eligible applies the filters shared by every loop pass.
func (t *LoopTransform) eligible(l *ir.Loop) bool {
	if l.IsIrreducible() || l.IsOsrLoop() || l.IsTryCatchLoop() {
		return false
	}
	if len(l.BackEdges()) != 1 || l.PreHeader() == nil {
		return false
	}
	if t.exit == AllLoop {
		return true
	}
	if len(l.InnerLoops()) > 0 {
		return false
	}
	want := l.Header()
	if t.exit == LoopExitBackEdge {
		want = l.BackEdges()[0]
	}
	for _, b := range l.Blocks() {
		if b != want && b.IsMarked(t.exitMarker) {
			return false
		}
	}
	return true
}
