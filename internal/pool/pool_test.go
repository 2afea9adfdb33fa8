package pool

import (
	"errors"
	"fmt"
	"testing"
)

type thing struct {
	name string
}

func newThingPool() *Pool[thing] {
	return New[thing](func(t *thing) string { return t.name })
}

func TestAllocateThenFindReturnsSameEntry(t *testing.T) {
	p := newThingPool()
	a, err := p.Allocate("temp", func(t *thing) { t.name = "temp" })
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	b, err := p.Find("temp")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if a != b {
		t.Fatal("Find must return the same pointer Allocate returned")
	}
}

func TestAllocateIsIdempotentForSameName(t *testing.T) {
	p := newThingPool()
	a, _ := p.Allocate("x", func(t *thing) { t.name = "x" })
	b, _ := p.Allocate("x", func(t *thing) { t.name = "x-should-not-overwrite" })
	if a != b {
		t.Fatal("second Allocate with same name must return the existing entry")
	}
	if p.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 (no duplicate pool entry)", p.Count())
	}
}

func TestRejectsBadName(t *testing.T) {
	p := newThingPool()
	if _, err := p.Allocate("a|b", func(t *thing) { t.name = "a|b" }); !errors.Is(err, ErrBadName) {
		t.Fatalf("got %v, want ErrBadName", err)
	}
}

func TestStackThenHeapBoundary(t *testing.T) {
	p := newThingPool()
	for i := 0; i < StackMax+1; i++ {
		name := fmt.Sprintf("item%d", i)
		if _, err := p.Allocate(name, func(t *thing) { t.name = name }); err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
	}
	stats := p.Stats()
	if stats.StackUsed != StackMax {
		t.Fatalf("StackUsed = %d, want %d", stats.StackUsed, StackMax)
	}
	if stats.HeapUsed != 1 {
		t.Fatalf("HeapUsed = %d, want 1 (the StackMax+1'th item is heap-backed)", stats.HeapUsed)
	}
}

func TestFullAtMax(t *testing.T) {
	p := newThingPool()
	for i := 0; i < Max; i++ {
		name := fmt.Sprintf("item%d", i)
		if _, err := p.Allocate(name, func(t *thing) { t.name = name }); err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
	}
	if _, err := p.Allocate("overflow", func(t *thing) { t.name = "overflow" }); !errors.Is(err, ErrFull) {
		t.Fatalf("got %v, want ErrFull", err)
	}
}

func TestFreeCompactsDensely(t *testing.T) {
	p := newThingPool()
	for _, name := range []string{"a", "b", "c"} {
		n := name
		_, _ = p.Allocate(n, func(t *thing) { t.name = n })
	}
	if err := p.Free("a"); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if p.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", p.Count())
	}
	if _, err := p.Find("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Find(a) after Free: got %v, want ErrNotFound", err)
	}
	if _, err := p.Find("b"); err != nil {
		t.Fatalf("Find(b) after compaction: %v", err)
	}
	if _, err := p.Find("c"); err != nil {
		t.Fatalf("Find(c) after compaction: %v", err)
	}
}

func TestFreeNotFound(t *testing.T) {
	p := newThingPool()
	if err := p.Free("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestNamesExcludesFreedItemAfterCompaction(t *testing.T) {
	p := newThingPool()
	for _, name := range []string{"a", "b", "c", "d"} {
		n := name
		_, _ = p.Allocate(n, func(t *thing) { t.name = n })
	}
	_ = p.Free("b")
	names := p.Names()
	if len(names) != 3 {
		t.Fatalf("len(Names()) = %d, want 3", len(names))
	}
	for _, n := range names {
		if n == "b" {
			t.Fatal("Names() must not include a freed item")
		}
	}
}
