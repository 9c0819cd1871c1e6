package ssa

import "github.com/pkg/errors"

var (
	ErrNoMainPkgs     = errors.New("no main packages found")
	ErrNoTestMainPkgs = errors.New("no test main packages found")
	ErrFuncNotFound   = errors.New("function not found")

	ErrUnknownCallGraph = errors.New("unknown call graph algorithm")

	// ErrUnsupported is the cause of every Lower failure.
	ErrUnsupported = errors.New("unsupported construct")
)
