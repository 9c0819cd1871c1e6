package ssa

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/callgraph/rta"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
)

// Call graph algorithms of BuildCallGraph.
const (
	StaticCallGraph = "static" // Static calls only (unsound).
	CHACallGraph    = "cha"    // Class Hierarchy Analysis.
	RTACallGraph    = "rta"    // Rapid Type Analysis.
	PTACallGraph    = "pta"    // Inclusion-based Points-To Analysis.
)

// CallGraph tells which functions of a program are worth lowering: the
// ones reachable from the main packages.
type CallGraph struct {
	graph *callgraph.Graph
	roots []*ssa.Function // init and main of the main packages.

	used []*ssa.Function
	all  []*ssa.Function
}

// BuildCallGraph builds the call graph of the program with algo. rta and
// pta need main packages, static and cha only need them for UsedFunctions.
func (info *Info) BuildCallGraph(algo string, tests bool) (*CallGraph, error) {
	mains, mainsErr := MainPkgs(info.Prog, tests)
	var roots []*ssa.Function
	for _, pkg := range mains {
		for _, name := range []string{"init", "main"} {
			if f := pkg.Func(name); f != nil {
				roots = append(roots, f)
			}
		}
	}

	var graph *callgraph.Graph
	switch algo {
	case StaticCallGraph:
		graph = static.CallGraph(info.Prog)
	case CHACallGraph:
		graph = cha.CallGraph(info.Prog)
	case RTACallGraph:
		if mainsErr != nil {
			return nil, mainsErr
		}
		graph = rta.Analyze(roots, true).CallGraph
	case PTACallGraph:
		if mainsErr != nil {
			return nil, mainsErr
		}
		res, err := pointer.Analyze(&pointer.Config{Mains: mains, Log: info.PtaLog, BuildCallGraph: true})
		if err != nil {
			return nil, errors.Wrap(err, "pointer analysis failed")
		}
		graph = res.CallGraph
	default:
		return nil, errors.Wrapf(ErrUnknownCallGraph, "%q", algo)
	}
	graph.DeleteSyntheticNodes()
	return &CallGraph{graph: graph, roots: roots}, nil
}

// UsedFunctions returns the non-synthetic functions reachable from the
// init and main functions of the main packages, in source order.
func (g *CallGraph) UsedFunctions() ([]*ssa.Function, error) {
	if g.used != nil {
		return g.used, nil
	}
	if len(g.roots) == 0 {
		return nil, ErrNoMainPkgs
	}
	seen := make(map[*ssa.Function]bool)
	work := append([]*ssa.Function(nil), g.roots...)
	for len(work) > 0 {
		f := work[len(work)-1]
		work = work[:len(work)-1]
		if seen[f] {
			continue
		}
		seen[f] = true
		node := g.graph.Nodes[f]
		if node == nil {
			continue // Synthetic, e.g. package initialisers.
		}
		for _, e := range node.Out {
			if callee := e.Callee.Func; !seen[callee] {
				work = append(work, callee)
			}
		}
	}
	for f := range seen {
		if f.Synthetic != "" {
			delete(seen, f)
		}
	}
	g.used = sortFuncs(seen)
	return g.used, nil
}

// AllFunctions returns every function of the call graph, in source order.
func (g *CallGraph) AllFunctions() []*ssa.Function {
	if g.all == nil {
		set := make(map[*ssa.Function]bool, len(g.graph.Nodes))
		for f := range g.graph.Nodes {
			if f != nil {
				set[f] = true
			}
		}
		g.all = sortFuncs(set)
	}
	return g.all
}

// WriteGraphviz writes the call graph to w in graphviz dot format, edges
// labelled static or dynamic.
func (g *CallGraph) WriteGraphviz(w io.Writer) error {
	bufw := bufio.NewWriter(w)
	bufw.WriteString("digraph callgraph {\n")
	for _, f := range g.AllFunctions() {
		for _, e := range g.graph.Nodes[f].Out {
			fmt.Fprintf(bufw, "  %q -> %q [label=%q]\n", f, e.Callee.Func, callKind(e))
		}
	}
	bufw.WriteString("}\n")
	return bufw.Flush()
}

func callKind(e *callgraph.Edge) string {
	if e.Site != nil && e.Site.Common().StaticCallee() == nil {
		return "dynamic"
	}
	return "static"
}

// sortFuncs orders a set of functions by package, then position.
func sortFuncs(set map[*ssa.Function]bool) []*ssa.Function {
	funcs := make([]*ssa.Function, 0, len(set))
	for f := range set {
		funcs = append(funcs, f)
	}
	sort.Slice(funcs, func(i, j int) bool {
		fi, fj := funcs[i], funcs[j]
		if pi, pj := pkgPath(fi), pkgPath(fj); pi != pj {
			return pi < pj
		}
		if fi.Pos() != fj.Pos() {
			return fi.Pos() < fj.Pos()
		}
		return fi.String() < fj.String()
	})
	return funcs
}
