package ssa

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

var (
	parenPath = regexp.MustCompile(`^\((?P<pkg>[^)]+)\)\.(?P<fn>.+)$`)
	quotePath = regexp.MustCompile(`^"(?P<pkg>[^"]+)"\.(?P<fn>.+)$`)
)

// FindFunc parses path (e.g. "github.com/nickng/loopopt/ssa".Lower or
// main.sum) and returns the package-level Function it names.
func (info *Info) FindFunc(path string) (*ssa.Function, error) {
	pkgPath, fnName := parseFuncPath(path)
	for _, pkg := range info.Prog.AllPackages() {
		if pkgPath != "" && pkg.Pkg.Path() != pkgPath && pkg.Pkg.Name() != pkgPath {
			continue
		}
		if f := pkg.Func(fnName); f != nil {
			return f, nil
		}
	}
	return nil, errors.Wrap(ErrFuncNotFound, path)
}

// parseFuncPath splits path to package and function segments.
// Does not handle methods.
func parseFuncPath(path string) (pkgPath, fnName string) {
	if len(path) < 1 {
		return "", ""
	}
	switch path[0] {
	case '(':
		if m := parenPath.FindStringSubmatch(path); len(m) >= 3 {
			return m[1], m[2]
		}
	case '"':
		if m := quotePath.FindStringSubmatch(path); len(m) >= 3 {
			return m[1], m[2]
		}
	default:
		if n := strings.LastIndex(path, "."); n > 0 {
			return path[:n], path[n+1:]
		}
	}
	return "", path
}

// PkgFuncs returns the package-level functions with a body declared in the
// main packages of the program, sorted by position.
func (info *Info) PkgFuncs() ([]*ssa.Function, error) {
	mains, err := MainPkgs(info.Prog, false)
	if err != nil {
		return nil, err
	}
	var funcs []*ssa.Function
	for _, pkg := range mains {
		for _, m := range pkg.Members {
			if f, ok := m.(*ssa.Function); ok && f.Blocks != nil && f.Synthetic == "" {
				funcs = append(funcs, f)
			}
		}
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Pos() < funcs[j].Pos() })
	return funcs, nil
}
