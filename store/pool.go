package store

import (
	"fmt"
	"sync"

	"github.com/nickng/loopopt/ir"
)

// ObjUndefError is the error returned if reading an instruction which has
// not been evaluated.
type ObjUndefError struct {
	Inst *ir.Inst
}

func (e ObjUndefError) Error() string {
	return fmt.Sprintf("value undefined (inst: %v)", e.Inst)
}

// Pool is the memory of the interpreter. Cells never written read as 0.
type Pool struct {
	cells map[int64]int64

	mu sync.Mutex
}

func newPool() *Pool {
	return &Pool{cells: make(map[int64]int64)}
}

func (p *Pool) Read(addr int64) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cells[addr]
}

func (p *Pool) Write(addr, v int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cells[addr] = v
}

// Snapshot returns a copy of the written cells.
func (p *Pool) Snapshot() map[int64]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int64]int64, len(p.cells))
	for k, v := range p.cells {
		out[k] = v
	}
	return out
}
