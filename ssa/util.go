package ssa

import (
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// MainPkgs returns the main packages of prog, or the synthesized test main
// packages if tests is set.
func MainPkgs(prog *ssa.Program, tests bool) ([]*ssa.Package, error) {
	pkgs := prog.AllPackages()
	if !tests {
		if mains := ssautil.MainPackages(pkgs); len(mains) > 0 {
			return mains, nil
		}
		return nil, ErrNoMainPkgs
	}
	var mains []*ssa.Package
	for _, pkg := range pkgs {
		if main := prog.CreateTestMainPackage(pkg); main != nil {
			mains = append(mains, main)
		}
	}
	if len(mains) == 0 {
		return nil, ErrNoTestMainPkgs
	}
	return mains, nil
}
