// Command loopopt is the command line entry point to the loop optimizer.
package main

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/nickng/loopopt/opt"
	"github.com/nickng/loopopt/optimizer"
	"github.com/nickng/loopopt/ssa"
	"github.com/nickng/loopopt/ssa/build"
)

const (
	Usage = `loopopt is a tool for optimizing the loops of Go functions.

Usage:

  loopopt [options] file.go [files.go...]
  loopopt [options] -pkg pattern [patterns...]

Options:

`
)

var (
	logPath   string
	outPath   string
	entryFunc string
	runArgs   string
	pkgMode   bool
	dotOut    bool
	allFuncs  bool
	cgAlgo    string
	logWriter = ioutil.Discard

	opts = opt.DefaultOptions()
)

func init() {
	flag.StringVar(&logPath, "log", "", "Specify analysis log file (use '-' for stderr)")
	flag.StringVar(&outPath, "out", "", "Specify output file (default: stdout)")
	flag.StringVar(&entryFunc, "func", "", `Only print (and run) this function (format: (import/path).FuncName)`)
	flag.BoolVar(&dotOut, "dot", false, "Write the optimized graphs in graphviz format")
	flag.BoolVar(&pkgMode, "pkg", false, "Treat arguments as package patterns (e.g. ./...)")
	flag.BoolVar(&allFuncs, "all", false, "Optimize every function of the main packages, not only those reachable from main")
	flag.StringVar(&cgAlgo, "callgraph", ssa.RTACallGraph, "Call graph algorithm finding the functions reachable from main (static, cha, rta, pta)")
	flag.StringVar(&runArgs, "run", "", "Run -func before and after optimization with these comma separated integer args")
	flag.BoolVar(&opts.Peeling, "peel", opts.Peeling, "Enable loop peeling")
	flag.BoolVar(&opts.Unroll, "unroll", opts.Unroll, "Enable loop unrolling")
	flag.IntVar(&opts.UnrollFactor, "unroll-factor", opts.UnrollFactor, "Maximum number of body copies of an unrolled loop")
	flag.IntVar(&opts.InstLimit, "inst-limit", opts.InstLimit, "Maximum instruction count of an unrolled loop")
	flag.BoolVar(&opts.UnrollWithCalls, "unroll-calls", opts.UnrollWithCalls, "Unroll loops containing calls")
	flag.BoolVar(&opts.UnrollWithSideExits, "side-exits", opts.UnrollWithSideExits, "Unroll loops which are not countable")
	flag.BoolVar(&opts.RedundantLoopElimination, "rle", opts.RedundantLoopElimination, "Enable redundant loop elimination")
	flag.BoolVar(&opts.Balance, "balance", opts.Balance, "Enable expression balancing")
}

func parseArgs(s string) ([]int64, error) {
	args := []int64{}
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		n, err := strconv.ParseInt(f, 0, 64)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	return args, nil
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, Usage)
		flag.PrintDefaults()
		os.Exit(0)
	}

	conf := build.FromFiles(flag.Args()).Default()
	if pkgMode {
		conf = build.FromPackages(flag.Args()...).Default()
	}
	logFile := ""
	switch logPath {
	case "":
	case "-":
		logWriter = os.Stderr
		conf = conf.WithBuildLog(logWriter, log.LstdFlags)
	default:
		f, err := os.Create(logPath)
		if err != nil {
			log.Fatalf("Cannot create log %s: %v", logPath, err)
		}
		defer f.Close()
		conf = conf.WithBuildLog(f, log.LstdFlags)
		logWriter = f
		logFile = f.Name()
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			log.Fatalf("Cannot create output file %s: %v", outPath, err)
		}
		defer f.Close()
		out = f
	}

	info, err := conf.Build()
	if err != nil {
		log.Fatal("Build failed: ", err)
	}
	o := optimizer.New(info, logWriter)
	if logFile != "" {
		o.AddLogFiles(logFile)
	}
	o.Options = opts
	o.SetOutput(out)
	o.Dot = dotOut
	o.All = allFuncs
	o.CallGraph = cgAlgo
	o.SetEntryFunc(entryFunc)
	if runArgs != "" {
		if o.RunArgs, err = parseArgs(runArgs); err != nil {
			log.Fatalf("Bad -run arguments %q: %v", runArgs, err)
		}
	}
	o.Analyse()
	if err := o.Err(); err != nil {
		log.Fatal(err)
	}
}
