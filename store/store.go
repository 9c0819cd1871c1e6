// Package store provides the key-value storage of the interpreter.
// Keys are instructions, whose results live in a per-call register file, and
// addresses, whose contents live in a memory Pool shared between calls.
package store

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"sort"

	"github.com/nickng/loopopt/ir"
)

// Store is a two-layer storage: a register file mapping instructions to
// their values, backed by a memory Pool.
type Store struct {
	logger *log.Logger
	names  map[*ir.Inst]int64
	mem    *Pool // Memory shared with extended stores.
}

func New() *Store {
	return &Store{
		logger: log.New(ioutil.Discard, "store: ", 0),
		names:  make(map[*ir.Inst]int64),
		mem:    newPool(),
	}
}

// Extend returns a storage with an empty register file, using the same
// backing memory.
func Extend(s *Store) *Store {
	return &Store{
		logger: s.logger,
		names:  make(map[*ir.Inst]int64),
		mem:    s.mem,
	}
}

// Get retrieves the value of k. Constants are always defined.
func (s *Store) Get(k *ir.Inst) (int64, error) {
	if k.IsConst() {
		return k.Int64(), nil
	}
	if v, ok := s.names[k]; ok {
		return v, nil
	}
	s.logger.Printf("Get: %v ↦ (not found)\t%s", k, k.Type())
	return 0, ObjUndefError{Inst: k}
}

// Put sets the value of k.
func (s *Store) Put(k *ir.Inst, v int64) {
	s.names[k] = v
	s.logger.Printf("Put: %v ↦ %d\t%s", k, v, k.Type())
}

// Load reads the memory cell at addr.
func (s *Store) Load(addr int64) int64 {
	v := s.mem.Read(addr)
	s.logger.Printf("Load: [%d] ↦ %d", addr, v)
	return v
}

// Store writes v to the memory cell at addr.
func (s *Store) Store(addr, v int64) {
	s.mem.Write(addr, v)
	s.logger.Printf("Store: [%d] ↦ %d", addr, v)
}

// Memory returns a copy of the written memory cells.
func (s *Store) Memory() map[int64]int64 { return s.mem.Snapshot() }

func (s *Store) String() string {
	var buf bytes.Buffer
	keys := make([]*ir.Inst, 0, len(s.names))
	for k := range s.names {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID() < keys[j].ID() })
	buf.WriteString("┌─────┄ name: val type ┄──────\n")
	for _, k := range keys {
		buf.WriteString(fmt.Sprintf("│ %v:\t%d\t%s\n", k, s.names[k], k.Type()))
	}
	buf.WriteString("└─────────────────────────────\n")
	return buf.String()
}

// Logger is the logging interface for a storage.
type Logger interface {
	SetLog(io.Writer)
}

// SetLog sets debug output stream to w.
func (s *Store) SetLog(w io.Writer) {
	if w != nil {
		s.logger.SetOutput(w)
	}
}
