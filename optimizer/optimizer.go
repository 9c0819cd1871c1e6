// Package optimizer is the entry point of the loop optimizer. It lowers the
// functions of a program to ir.Graph, runs the loop pipeline over them and
// optionally checks the result by interpreting the graphs.
package optimizer

import (
	"fmt"
	"io"
	"io/ioutil"
	"reflect"

	"github.com/fatih/color"
	"github.com/nickng/loopopt/block"
	"github.com/nickng/loopopt/interp"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/opt"
	"github.com/nickng/loopopt/prog"
	"github.com/nickng/loopopt/ssa"
	"github.com/pkg/errors"
	gossa "golang.org/x/tools/go/ssa"
)

var (
	ErrNoEntry  = errors.New("running requires an entry function")
	ErrMismatch = errors.New("optimized function behaves differently")
)

// Optimizer optimizes the functions of a program.
type Optimizer struct {
	Info      *ssa.Info    // SSA IR.
	Options   *opt.Options // Pass configuration.
	EntryFunc string       // Function to print and run, all functions if empty.
	RunArgs   []int64      // Arguments to run EntryFunc with, nil to skip.
	Dot       bool         // Write graphs in graphviz format.
	All       bool         // Lower every package function, not only those reachable from main.
	CallGraph string       // Call graph algorithm finding the functions reachable from main.
	Graphs    []*ir.Graph  // Optimized graphs in source order.
	Skipped   map[string]error

	original  map[string]*ir.Graph
	optimized map[string]*ir.Graph
	err       error

	outWriter io.Writer // Output stream.
	errWriter io.Writer // Error stream.
	*opt.Logger
}

var _ prog.Analyser = (*Optimizer)(nil)

// New returns a new Optimizer, and uses w for logging messages.
func New(info *ssa.Info, w io.Writer) *Optimizer {
	o := Optimizer{
		Info:      info,
		Options:   opt.DefaultOptions(),
		CallGraph: ssa.RTACallGraph,
		Skipped:   make(map[string]error),
		original:  make(map[string]*ir.Graph),
		optimized: make(map[string]*ir.Graph),
		outWriter: ioutil.Discard,
		errWriter: ioutil.Discard,
		Logger:    newLogger(),
	}
	if w != nil {
		o.errWriter = w
	}
	return &o
}

func (o *Optimizer) SetEntryFunc(path string) {
	o.EntryFunc = path
}

// AddLogFiles extends current Logger and writes additional log to files.
func (o *Optimizer) AddLogFiles(file ...string) {
	o.Logger = newFileLogger(file...)
}

func (o *Optimizer) SetOutput(w io.Writer) {
	if w != nil {
		o.outWriter = w
	}
}

// Err returns the error which stopped the last Analyse.
func (o *Optimizer) Err() error {
	return o.err
}

// Analyse lowers and optimizes the functions, writes the optimized graphs to
// the output and runs the entry function if RunArgs is set.
func (o *Optimizer) Analyse() {
	// Sync error ignored. See https://github.com/uber-go/zap/issues/328
	defer o.Logger.Sync()
	o.err = nil

	funcs, entry, err := o.funcs()
	if err != nil {
		o.err = err
		return
	}
	for _, f := range funcs {
		if err := o.optimize(f); err != nil {
			o.err = err
			return
		}
	}
	for _, g := range o.Graphs {
		if entry != "" && g.Name() != entry {
			continue
		}
		if !o.Dot {
			fmt.Fprintln(o.outWriter, g)
			continue
		}
		if err := block.WriteDot(g, o.outWriter); err != nil {
			o.err = errors.Wrap(err, "cannot write graph")
			return
		}
	}
	if o.RunArgs != nil {
		if entry == "" {
			o.err = ErrNoEntry
			return
		}
		o.err = o.verify(entry)
	}
}

// funcs returns the functions to lower and the name of the entry function.
func (o *Optimizer) funcs() ([]*gossa.Function, string, error) {
	funcs, err := o.Info.PkgFuncs()
	if err != nil {
		return nil, "", err
	}
	if !o.All {
		if funcs, err = o.usedFuncs(funcs); err != nil {
			return nil, "", err
		}
	}
	if o.EntryFunc == "" {
		return funcs, "", nil
	}
	f, ferr := o.Info.FindFunc(o.EntryFunc)
	if ferr != nil {
		return nil, "", ferr
	}
	for _, g := range funcs {
		if g == f {
			return funcs, f.String(), nil
		}
	}
	return append(funcs, f), f.String(), nil
}

// usedFuncs keeps the functions of funcs reachable from main.
func (o *Optimizer) usedFuncs(funcs []*gossa.Function) ([]*gossa.Function, error) {
	graph, err := o.Info.BuildCallGraph(o.CallGraph, false)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build call graph")
	}
	used, err := graph.UsedFunctions()
	if err != nil {
		return nil, err
	}
	reachable := make(map[*gossa.Function]bool, len(used))
	for _, f := range used {
		reachable[f] = true
	}
	var kept []*gossa.Function
	for _, f := range funcs {
		if !reachable[f] {
			o.Debugf("%s %s is not reachable from main", o.Module(), f)
			continue
		}
		kept = append(kept, f)
	}
	return kept, nil
}

func (o *Optimizer) optimize(f *gossa.Function) error {
	g, err := ssa.Lower(f)
	if err != nil {
		o.Warnf("%s skip %s: %v", o.Module(), f, err)
		o.Skipped[f.String()] = err
		return nil
	}
	orig, _ := ssa.Lower(f)
	o.original[g.Name()] = orig

	g.SetEventWriter(opt.NewEventLogger(o.Logger))
	p := opt.NewPipeline(g, o.Options)
	p.SetLogger(o.Logger)
	changed := p.Run()
	if err := block.Check(g); err != nil {
		return errors.Wrapf(err, "optimized %s is malformed", g.Name())
	}
	o.Infof("%s %s: %d blocks, %d insts, changed=%v", o.Module(), g.Name(), len(g.Blocks()), g.NumInsts(), changed)
	o.optimized[g.Name()] = g
	o.Graphs = append(o.Graphs, g)
	return nil
}

// verify runs entry before and after optimization, with the lowered
// functions as callees, and reports the outcome on the output.
func (o *Optimizer) verify(entry string) error {
	if _, ok := o.optimized[entry]; !ok {
		return errors.Wrapf(o.Skipped[entry], "cannot run %s", entry)
	}
	before, err := interp.New(o.original[entry], interp.Config{Funcs: o.original}).Run(o.RunArgs...)
	if err != nil {
		return errors.Wrapf(err, "cannot run %s", entry)
	}
	after, err := interp.New(o.optimized[entry], interp.Config{Funcs: o.optimized}).Run(o.RunArgs...)
	if err != nil {
		return errors.Wrapf(err, "cannot run optimized %s", entry)
	}
	fmt.Fprintf(o.outWriter, "%s %s%v = %s (%d steps)\n", color.HiBlackString("-"), entry, o.RunArgs, result(before), before.Steps)
	same := before.Value == after.Value && before.HasValue == after.HasValue &&
		reflect.DeepEqual(before.Memory, after.Memory) && reflect.DeepEqual(before.Calls, after.Calls)
	if !same {
		fmt.Fprintf(o.outWriter, "%s %s%v = %s (%d steps)\n", color.RedString("!"), entry, o.RunArgs, result(after), after.Steps)
		return errors.Wrap(ErrMismatch, entry)
	}
	fmt.Fprintf(o.outWriter, "%s %s%v = %s (%d steps)\n", color.GreenString("+"), entry, o.RunArgs, result(after), after.Steps)
	return nil
}

func result(r *interp.Result) string {
	if !r.HasValue {
		return "void"
	}
	return fmt.Sprint(r.Value)
}
