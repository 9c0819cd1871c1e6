package build_test

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/nickng/loopopt/ssa"
	"github.com/nickng/loopopt/ssa/build"
	"github.com/pkg/errors"
	gossa "golang.org/x/tools/go/ssa"
)

var (
	helloProg = `
	package main
	import "fmt"
	func main() {
		fmt.Println("hello")
	}`

	testdir string
)

func init() {
	testdir, _ = os.Getwd() // Save the dir where the test files are, for the runnable examples.
}

func TestBuildFromFiles(t *testing.T) {
	files := []string{"testdata/main.go", "testdata/foo.go", "testdata/bar.go"}
	info, err := build.FromFiles(files).Default().Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	mains, err := ssa.MainPkgs(info.Prog, false)
	if err != nil {
		t.Fatalf("cannot find main package: %v", err)
	}
	for _, main := range mains {
		for _, name := range []string{"main", "foo", "bar"} {
			if main.Func(name) == nil {
				t.Errorf("cannot find main.%s()", name)
			}
		}
	}
}

func TestBuildFromPackages(t *testing.T) {
	info, err := build.FromPackages("./testdata").Default().Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	if info.LProg != nil {
		t.Errorf("packages are not loaded by go/loader")
	}
	f, err := info.FindFunc("main.foo")
	if err != nil {
		t.Fatal(err)
	}
	if f.Blocks == nil {
		t.Errorf("main.foo has no body")
	}
}

func TestBuildFromReader(t *testing.T) {
	info, err := build.FromReader(strings.NewReader(helloProg)).Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	mains, err := ssa.MainPkgs(info.Prog, false)
	if err != nil {
		t.Fatalf("cannot find main package: %v", err)
	}
	for _, main := range mains {
		if main.Func("main") == nil {
			t.Errorf("cannot find main.main()")
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("broken") }

func TestBuildErrors(t *testing.T) {
	if _, err := build.FromReader(failingReader{}).Build(); err == nil {
		t.Errorf("read error should be reported by Build")
	}
	if _, err := build.FromReader(strings.NewReader("package main; func main() { x }")).Build(); err == nil {
		t.Errorf("type error should fail the build")
	}
	if _, err := build.FromReader(strings.NewReader("package main; func main(")).Build(); err == nil {
		t.Errorf("syntax error should fail the build")
	}
}

func TestWithBuildLog(t *testing.T) {
	buf := new(bytes.Buffer)
	info, err := build.FromReader(strings.NewReader(helloProg)).WithBuildLog(buf, log.LstdFlags).Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	if info.BldLog != buf {
		t.Errorf("Expects build log to propagate to built SSA, but got: %v", info.BldLog)
	}
	if !strings.Contains(buf.String(), "Program loaded and type checked") {
		t.Errorf("Build log was set but not written to\nlog contains:\n%s", buf.String())
	}
}

func TestWithPtaLog(t *testing.T) {
	info, err := build.FromReader(strings.NewReader(helloProg)).WithPtaLog(os.Stdout, log.LstdFlags).Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	if info.PtaLog != os.Stdout {
		t.Errorf("Expects pta log to propagate to built SSA, but got: %v", info.PtaLog)
	}
}

func TestAddBadPkg(t *testing.T) {
	info, err := build.FromReader(strings.NewReader(helloProg)).Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	for _, pkg := range info.Prog.AllPackages() {
		if pkg.Pkg.Name() == "fmt" && pkg.Members["Printf"].(*gossa.Function).Blocks == nil {
			t.Errorf("fmt package is built but fmt.Printf funcbody is not in SSA")
		}
	}

	infoNoFmt, err := build.FromReader(strings.NewReader(helloProg)).AddBadPkg("fmt", "Fmt adds many pkg dependencies").Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	foundFmt := false
	for _, pkg := range infoNoFmt.IgnoredPkgs {
		if pkg == "fmt" {
			foundFmt = true
		}
	}
	if !foundFmt {
		t.Errorf("Expects fmt to be ignored during build")
	}
	for _, pkg := range infoNoFmt.Prog.AllPackages() {
		if pkg.Pkg.Name() == "fmt" && pkg.Members["Printf"].(*gossa.Function).Blocks != nil {
			t.Errorf("fmt package is not built but fmt.Printf funcbody is in SSA")
		}
	}
}

func ExampleFromFiles() {
	os.Chdir(testdir)
	files := []string{"testdata/main.go", "testdata/foo.go", "testdata/bar.go"}
	info, err := build.FromFiles(files).Default().Build()
	if err != nil {
		log.Fatalf("SSA build failed: %v", err)
	}
	_ = info // Use info here
	// output:
}

func ExampleFromReader() {
	info, err := build.FromReader(strings.NewReader("package main; func main() {}")).Build()
	if err != nil {
		log.Fatalf("SSA build failed: %v", err)
	}
	_ = info // Use info here
	// output:
}
