package ssa

import (
	"io"

	"golang.org/x/tools/go/ssa"
)

// WriteTo writes the Functions reachable from main in human readable SSA
// format, grouped by package.
func (info *Info) WriteTo(w io.Writer) (int64, error) {
	graph, err := info.BuildCallGraph(RTACallGraph, false)
	if err != nil {
		return 0, err
	}
	funcs, err := graph.UsedFunctions()
	if err != nil {
		return 0, err
	}
	return writeFuncs(w, funcs)
}

// WriteAll writes all Functions found in the call graph.
func (info *Info) WriteAll(w io.Writer) (int64, error) {
	graph, err := info.BuildCallGraph(CHACallGraph, false)
	if err != nil {
		return 0, err
	}
	return writeFuncs(w, graph.AllFunctions())
}

// writeFuncs writes funcs, already in the order of sortFuncs.
func writeFuncs(w io.Writer, funcs []*ssa.Function) (int64, error) {
	var n int64
	for _, f := range funcs {
		written, err := f.WriteTo(w)
		n += written
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func pkgPath(f *ssa.Function) string {
	if f.Pkg == nil {
		return ""
	}
	return f.Pkg.Pkg.Path()
}
