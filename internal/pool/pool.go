// Package pool implements the fixed-capacity, named-lookup container
// shared by the telemetry, action, and alarm registries.
//
// # Stack/heap partition
//
// The first StackMax allocations reuse a preallocated inline array
// (Pool.stack); allocations beyond that, up to Max, are heap elements
// appended to Pool.heap. This mirrors an arena with a high-water mark:
// once an allocation has been served from the heap tier, a later Free
// of an earlier stack-tier entry does not reclaim stack capacity for
// a subsequent Allocate — allocation tier is a function of allocation
// order, not of current occupancy.
//
// # Pointer array and compaction
//
// Pool.pointers is the dense array whose first count entries are the
// live items, in insertion order as long as nothing has been freed.
// Free swaps the last live pointer into the freed slot
// (pool_acquisition.go, Free), keeping the array dense after removals
// without shifting the tail; the item that was last therefore takes
// the freed item's position.
//
// # Concurrency
//
// Pool[T] guards all fields with its own sync.RWMutex, one lock per
// pool instance: reads (Find, Names, Count) take the read lock; writes
// (Allocate, Free) take the write lock.
package pool

import (
	"fmt"
	"sync"

	iotagent "github.com/oriys/iotagent"
)

// StackMax is the number of inline slots reserved before a pool
// overflows to heap-allocated elements.
const StackMax = 16

// Max is the hard capacity ceiling per pool instance.
const Max = 256

var (
	// ErrFull is returned by Allocate when the pool already holds Max
	// live items and name does not match an existing one.
	ErrFull = iotagent.New(iotagent.Full, "pool: full")
	// ErrNotFound is returned by Find/Free for an absent name.
	ErrNotFound = iotagent.New(iotagent.NotFound, "pool: not found")
	// ErrBadName is returned for a name violating the shared item-name
	// constraint.
	ErrBadName = iotagent.New(iotagent.BadRequest, "pool: invalid name")
)

// ValidName reports whether name satisfies the shared item-name
// constraint: nonempty and free of \ | & ; = .
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch r {
		case '\\', '|', '&', ';', '=':
			return false
		}
	}
	return true
}

// Pool is a fixed-capacity named container of *T. The zero value is
// not usable; construct with New.
type Pool[T any] struct {
	mu sync.RWMutex

	nameOf func(*T) string

	stack     []T // len == StackMax, backing storage for the inline tier
	stackUsed int
	heap      []*T // appended beyond the inline tier, up to Max total

	pointers []*T           // dense array: pointers[0:count] are the live items
	index    map[string]int // name -> position in pointers
}

// New returns an empty Pool. nameOf extracts the item name used for
// lookup and the uniqueness check in Allocate.
func New[T any](nameOf func(*T) string) *Pool[T] {
	return &Pool[T]{
		nameOf: nameOf,
		stack:  make([]T, StackMax),
		index:  make(map[string]int),
	}
}

// Count reports the number of live items.
func (p *Pool[T]) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pointers)
}

// Find looks up an item by name.
func (p *Pool[T]) Find(name string) (*T, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, ok := p.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p.pointers[i], nil
}

// Names returns the live item names in pointer-array order (insertion
// order, except that each Free moves the last item into the freed
// position). The returned slice is a copy.
func (p *Pool[T]) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.pointers))
	for i, e := range p.pointers {
		out[i] = p.nameOf(e)
	}
	return out
}

// Each calls fn for every live item in the same order as Names, stopping early
// if fn returns false. fn is called with the pool's read lock held, so
// it must not call back into the pool.
func (p *Pool[T]) Each(fn func(*T) bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.pointers {
		if !fn(e) {
			return
		}
	}
}
