// Command ssaview prints the SSA IR of Go source code, or the graph it is
// lowered to for the optimizer.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/nickng/loopopt/ssa"
	"github.com/nickng/loopopt/ssa/build"
)

const (
	Usage = `ssaview is a tool for printing SSA IR of Go source code.

Usage:

  ssaview [options] file.go [files.go...]

Options:

`
)

var (
	buildlogPath string
	defaultArgs  bool
	outPath      string
	viewFunc     string
	lowered      bool
	cgAlgo       string

	out io.Writer
)

func init() {
	flag.BoolVar(&defaultArgs, "default", true, "Use default SSA build arguments")
	flag.StringVar(&buildlogPath, "log", "", "Specify build log file (use '-' for stdout)")
	flag.StringVar(&outPath, "out", "", "Specify output file (default: stdout)")
	flag.StringVar(&viewFunc, "func", "", `Specify the function to view (format: (import/path).FuncName)`)
	flag.BoolVar(&lowered, "ir", false, "Print the lowered graph of -func instead of its SSA")
	flag.StringVar(&cgAlgo, "callgraph", "", "Print the callgraph (static, cha, rta or pta) in graphviz format")
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, Usage)
		flag.PrintDefaults()
		os.Exit(0)
	}

	conf := build.FromFiles(flag.Args())
	if defaultArgs {
		conf = conf.Default()
	}
	switch buildlogPath {
	case "":
	case "-":
		conf = conf.WithBuildLog(os.Stdout, log.LstdFlags)
	default:
		f, err := os.Create(buildlogPath)
		if err != nil {
			log.Fatalf("Cannot create log %s: %v", buildlogPath, err)
		}
		defer f.Close()
		conf = conf.WithBuildLog(f, log.LstdFlags)
	}

	switch outPath {
	case "":
		out = os.Stdout
	default:
		f, err := os.Create(outPath)
		if err != nil {
			log.Fatalf("Cannot create output file %s: %v", outPath, err)
		}
		defer f.Close()
		out = f
	}

	info, err := conf.Build()
	if err != nil {
		log.Fatal("Cannot build SSA from files: ", err)
	}
	switch {
	case cgAlgo != "":
		cg, err := info.BuildCallGraph(cgAlgo, false)
		if err != nil {
			log.Fatal("Cannot build callgraph: ", err)
		}
		if err := cg.WriteGraphviz(out); err != nil {
			log.Fatal("Cannot write callgraph: ", err)
		}
	case viewFunc != "":
		fn, err := info.FindFunc(viewFunc)
		if err != nil {
			log.Fatal(err)
		}
		if !lowered {
			fn.WriteTo(out)
			return
		}
		g, err := ssa.Lower(fn)
		if err != nil {
			log.Fatal("Cannot lower: ", err)
		}
		g.WriteTo(out)
	default:
		if _, err := info.WriteTo(out); err != nil {
			log.Fatal("Cannot write SSA: ", err)
		}
	}
}
