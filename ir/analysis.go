package ir

import "fmt"

// AnalysisKind names a cached analysis of a Graph.
type AnalysisKind int

const (
	DomTreeAnalysis AnalysisKind = iota
	LoopAnalysis
	LinearOrderAnalysis
	numAnalyses
)

var analysisNames = [numAnalyses]string{
	DomTreeAnalysis:     "DomTree",
	LoopAnalysis:        "LoopAnalysis",
	LinearOrderAnalysis: "LinearOrder",
}

func (k AnalysisKind) String() string {
	if k >= 0 && k < numAnalyses {
		return analysisNames[k]
	}
	return fmt.Sprintf("Analysis(%d)", int(k))
}

// CFGAnalyses lists the analyses computed from the shape of the CFG.
var CFGAnalyses = []AnalysisKind{DomTreeAnalysis, LoopAnalysis, LinearOrderAnalysis}

var analyzers [numAnalyses]func(*Graph)

// RegisterAnalyzer installs the builder of an analysis. Packages providing
// analyses call it from init.
func RegisterAnalyzer(k AnalysisKind, run func(*Graph)) {
	analyzers[k] = run
}

// RunAnalysis computes analysis k unless it is still valid.
func (g *Graph) RunAnalysis(k AnalysisKind) {
	if g.valid[k] {
		return
	}
	run := analyzers[k]
	if run == nil {
		panic(fmt.Sprintf("ir: no analyzer registered for %v", k))
	}
	run(g)
	g.valid[k] = true
}

// IsAnalysisValid returns true if the cached result of k can be used.
func (g *Graph) IsAnalysisValid(k AnalysisKind) bool { return g.valid[k] }

// InvalidateAnalysis marks k stale.
func (g *Graph) InvalidateAnalysis(k AnalysisKind) { g.valid[k] = false }
