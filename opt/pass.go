package opt

import "github.com/nickng/loopopt/ir"

// Pass is an optimization bound to a graph at construction.
type Pass interface {
	// RunImpl applies the pass and returns true if the graph changed.
	RunImpl() bool
	IsEnable() bool
	PassName() string
	// InvalidateAnalyses marks the analyses listed by Invalidates stale.
	InvalidateAnalyses()
	// Invalidates lists the analyses a successful run makes stale.
	Invalidates() []ir.AnalysisKind
}

// RunPass runs p if it is enabled. The analyses of p are invalidated when
// the graph changed.
func RunPass(p Pass) bool {
	if !p.IsEnable() {
		return false
	}
	if !p.RunImpl() {
		return false
	}
	p.InvalidateAnalyses()
	return true
}

// cfgPass holds what every CFG transforming pass shares.
type cfgPass struct {
	g    *ir.Graph
	opts *Options
	*Logger
}

func (p *cfgPass) Invalidates() []ir.AnalysisKind { return ir.CFGAnalyses }

func (p *cfgPass) InvalidateAnalyses() {
	for _, k := range ir.CFGAnalyses {
		p.g.InvalidateAnalysis(k)
	}
}

func (p *cfgPass) emit(pass string, l *ir.Loop, pc uint32, args ...interface{}) {
	id := 0
	if l != nil {
		id = l.ID()
	}
	p.g.EventWriter().Emit(ir.Event{Pass: pass, LoopID: id, PC: pc, Args: args})
}
