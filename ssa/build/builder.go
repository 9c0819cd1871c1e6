package build

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/nickng/loopopt/ssa"
	"github.com/pkg/errors"
)

// Builder builds SSA IR and metainfo.
type Builder interface {
	Build() (*ssa.Info, error)
}

// FileSrc is a set of filenames.
type FileSrc struct {
	Files []string
}

// FromFiles returns a Configurer building the package made of files.
func FromFiles(files []string) Configurer {
	return newConfig(&FileSrc{Files: files})
}

// PkgSrc is a set of package patterns resolved by go/packages.
type PkgSrc struct {
	Patterns []string
}

// FromPackages returns a Configurer building the packages matched by
// patterns (e.g. ./...), with their dependencies.
func FromPackages(patterns ...string) Configurer {
	return newConfig(&PkgSrc{Patterns: patterns})
}

// CachedSrc is source code read from a reader.
type CachedSrc struct {
	cached []byte
	err    error
}

// FromReader returns a Configurer building the single file read from r.
// Read errors are reported by Build.
func FromReader(r io.Reader) Configurer {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		err = errors.Wrap(err, "failed to read from reader")
	}
	return newConfig(&CachedSrc{cached: b, err: err})
}

// NewReader returns a reader for reading the cached content.
func (s *CachedSrc) NewReader() io.Reader {
	return bytes.NewReader(s.cached)
}
