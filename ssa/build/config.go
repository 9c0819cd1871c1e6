package build

import (
	"go/build"
	"io"
	"io/ioutil"
	"log"

	"github.com/nickng/loopopt/ssa"
	"github.com/pkg/errors"
	"golang.org/x/tools/go/loader"
	"golang.org/x/tools/go/packages"
	gossa "golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Configurer is a Builder with chained configuration.
type Configurer interface {
	Builder
	Default() Configurer
	AddBadPkg(pkg, reason string) Configurer
	WithBuildLog(l io.Writer, flags int) Configurer
	WithPtaLog(l io.Writer, flags int) Configurer
}

// Config represents a build configuration.
type Config struct {
	badPkgs map[string]string

	bldLog    io.Writer // Build log.
	bldLFlags int       // Build log flags.
	ptaLog    io.Writer // Pointer analysis log.

	src interface{} // *FileSrc, *PkgSrc or *CachedSrc.
}

func newConfig(src interface{}) *Config {
	return &Config{
		badPkgs:   make(map[string]string),
		bldLog:    ioutil.Discard,
		bldLFlags: log.LstdFlags,
		ptaLog:    ioutil.Discard,
		src:       src,
	}
}

// WithBuildLog adds build log to config.
func (c *Config) WithBuildLog(l io.Writer, flags int) Configurer {
	c.bldLog = l
	c.bldLFlags = flags
	return c
}

// WithPtaLog sets the log of pointer analysis runs on the built program.
func (c *Config) WithPtaLog(l io.Writer, flags int) Configurer {
	c.ptaLog = l
	return c
}

// AddBadPkg marks a package 'bad' to avoid building its function bodies.
func (c *Config) AddBadPkg(pkg, reason string) Configurer {
	c.badPkgs[pkg] = reason
	return c
}

// Build loads, type checks and builds the SSA of the configured source.
func (c *Config) Build() (*ssa.Info, error) {
	bldLog := log.New(c.bldLog, "ssabuild: ", c.bldLFlags)
	if src, ok := c.src.(*PkgSrc); ok {
		return c.buildPackages(src, bldLog)
	}

	lconf := loader.Config{Build: &build.Default}

	switch src := c.src.(type) {
	case *FileSrc:
		rest, err := lconf.FromArgs(src.Files, false)
		if err != nil {
			return nil, errors.Wrap(err, "cannot load files")
		}
		if len(rest) > 0 {
			return nil, errors.Errorf("surplus arguments: %q", rest)
		}
	case *CachedSrc:
		if src.err != nil {
			return nil, src.err
		}
		parsed, err := lconf.ParseFile("tmp", src.NewReader())
		if err != nil {
			return nil, errors.Wrap(err, "cannot parse source")
		}
		lconf.CreateFromFiles("", parsed)
	}

	lprog, err := lconf.Load()
	if err != nil {
		return nil, errors.Wrap(err, "cannot type check program")
	}
	bldLog.Print("Program loaded and type checked")

	prog := ssautil.CreateProgram(lprog, gossa.BareInits)
	return &ssa.Info{
		IgnoredPkgs: c.buildAll(prog, bldLog),
		FSet:        lprog.Fset,
		Prog:        prog,
		LProg:       lprog,
		BldLog:      c.bldLog,
		PtaLog:      c.ptaLog,
	}, nil
}

func (c *Config) buildPackages(src *PkgSrc, bldLog *log.Logger) (*ssa.Info, error) {
	initial, err := packages.Load(&packages.Config{Mode: packages.LoadAllSyntax}, src.Patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load packages")
	}
	for _, pkg := range initial {
		if len(pkg.Errors) > 0 {
			return nil, errors.Wrapf(pkg.Errors[0], "cannot load package %s", pkg.PkgPath)
		}
	}
	bldLog.Printf("Packages loaded and type checked: %v", src.Patterns)

	prog, _ := ssautil.AllPackages(initial, gossa.BareInits)
	return &ssa.Info{
		IgnoredPkgs: c.buildAll(prog, bldLog),
		FSet:        prog.Fset,
		Prog:        prog,
		BldLog:      c.bldLog,
		PtaLog:      c.ptaLog,
	}, nil
}

// buildAll builds the function bodies of every package not marked bad and
// returns the names of the skipped ones.
func (c *Config) buildAll(prog *gossa.Program, bldLog *log.Logger) []string {
	var ignored []string
	for _, pkg := range prog.AllPackages() {
		if reason, bad := c.badPkgs[pkg.Pkg.Name()]; bad {
			bldLog.Printf("Skip package: %s (%s)", pkg.Pkg.Name(), reason)
			ignored = append(ignored, pkg.Pkg.Name())
			continue
		}
		pkg.Build()
	}
	return ignored
}

// Default returns the configuration used by the optimizer: runtime and
// reflection bodies are never lowered, so they are not built.
func (c *Config) Default() Configurer {
	return c.
		AddBadPkg("reflect", "Reflection is not supported").
		AddBadPkg("runtime", "Runtime is not optimized")
}
