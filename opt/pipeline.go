package opt

import (
	"github.com/fatih/color"
	"github.com/nickng/loopopt/ir"
)

// Pipeline runs the loop passes over a graph:
//
//	Cleanup, LoopPeeling, Cleanup, LoopUnroll, Cleanup,
//	RedundantLoopElimination, BalanceExpressions, Cleanup
type Pipeline struct {
	g    *ir.Graph
	opts *Options
	*Logger
}

// NewPipeline returns the pipeline optimizing g. A nil opts means
// DefaultOptions.
func NewPipeline(g *ir.Graph, opts *Options) *Pipeline {
	if opts == nil {
		opts = DefaultOptions()
	}
	p := &Pipeline{g: g, opts: opts}
	p.SetLogger(NopLogger())
	return p
}

// SetLogger sets the logger handed to every pass.
func (p *Pipeline) SetLogger(l *Logger) {
	p.Logger = l.forModule(color.GreenString("pipeline"))
}

// Passes returns the passes in execution order.
func (p *Pipeline) Passes() []Pass {
	return []Pass{
		NewCleanup(p.g, p.opts),
		NewLoopPeeling(p.g, p.opts),
		NewCleanup(p.g, p.opts),
		NewLoopUnroll(p.g, p.opts),
		NewCleanup(p.g, p.opts),
		NewRedundantLoopElimination(p.g, p.opts),
		NewBalanceExpressions(p.g, p.opts),
		NewCleanup(p.g, p.opts),
	}
}

// Run runs every enabled pass and returns true if the graph changed.
func (p *Pipeline) Run() bool {
	// Sync error ignored. See https://github.com/uber-go/zap/issues/328
	defer p.Sync()
	changed := false
	for _, pass := range p.Passes() {
		if ls, ok := pass.(LogSetter); ok {
			ls.SetLogger(p.Logger)
		}
		if RunPass(pass) {
			p.Debugf("%s %s changed %s", p.Module(), pass.PassName(), p.g.Name())
			changed = true
		}
	}
	return changed
}
