// Package build loads Go source and builds the SSA IR described by ssa.Info.
//
// Sources are either a list of files forming one package (usually command
// line arguments), package patterns resolved with go/packages, or a Reader
// holding a single file, which is mostly used for tests and examples.
//
//	info, err := build.FromFiles(files).Default().Build()
package build
