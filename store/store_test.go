package store

import (
	"testing"

	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/ir/irtest"
)

func TestGetPut(t *testing.T) {
	b := irtest.New("f")
	p := b.Param(ir.Int32)
	c := b.Const(7, ir.Int32)
	s := New()
	if _, err := s.Get(p); err == nil {
		t.Errorf("Get of an unset parameter should fail")
	}
	if v, err := s.Get(c); err != nil || v != 7 {
		t.Errorf("constants are always defined, want: 7\ngot: %d (%v)\n", v, err)
	}
	s.Put(p, 3)
	if v, err := s.Get(p); err != nil || v != 3 {
		t.Errorf("Get after Put, want: 3\ngot: %d (%v)\n", v, err)
	}
}

// Tests that extended stores share memory but not registers.
func TestExtend(t *testing.T) {
	b := irtest.New("f")
	p := b.Param(ir.Int64)
	s := New()
	s.Put(p, 1)
	s.Store(16, 42)
	callee := Extend(s)
	if _, err := callee.Get(p); err == nil {
		t.Errorf("extended store should not see the registers of its parent")
	}
	if want, got := int64(42), callee.Load(16); want != got {
		t.Errorf("extended store should share memory, want: %d\ngot: %d\n", want, got)
	}
	callee.Store(8, 5)
	if want, got := int64(5), s.Memory()[8]; want != got {
		t.Errorf("write through extended store, want: %d\ngot: %d\n", want, got)
	}
	if want, got := int64(0), s.Load(1024); want != got {
		t.Errorf("unwritten cell, want: %d\ngot: %d\n", want, got)
	}
}
