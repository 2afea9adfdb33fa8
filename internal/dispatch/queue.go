// Package dispatch implements the bounded request queue and worker
// dispatcher: a fixed set of Max preallocated slots, a stack of
// free slot indices, a FIFO set of waiting slot indices, and the
// worker loop that drains them.
//
// # Arena semantics
//
// Enqueue deep-copies the incoming *action.Request (via Request.Clone,
// a typed allocator standing in for a fixed arena whose release
// happens in one step) so the caller's Request can be reused or freed
// immediately after Enqueue returns, independent of when a worker
// eventually processes it.
//
// # Concurrency
//
// Queue serializes push/pop with a single mutex plus a sync.Cond;
// workers wait on the Cond for a waiting slot to appear.
package dispatch

import (
	"sync"

	iotagent "github.com/oriys/iotagent"
	"github.com/oriys/iotagent/internal/action"
)

// Max is the number of preallocated queue slots (QUEUE_MAX).
const Max = 64

// SlotState is one of Free, Waiting, Active.
type SlotState int

const (
	SlotFree SlotState = iota
	SlotWaiting
	SlotActive
)

type slot struct {
	state SlotState
	req   *action.Request
}

// Queue is the fixed set of Max preallocated slots. The zero value is
// not usable; construct with NewQueue.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	slots   []slot
	free    []int // stack (LIFO) of free slot indices
	waiting []int // FIFO of slot indices awaiting a worker

	active int // count of slots currently held Active by some worker
	toQuit bool
}

// ErrFull is returned by Enqueue when no slot is free.
var ErrFull = iotagent.New(iotagent.Full, "dispatch: queue full")

// NewQueue returns an empty Queue with Max preallocated, all-Free slots.
func NewQueue() *Queue {
	q := &Queue{
		slots: make([]slot, Max),
		free:  make([]int, Max),
	}
	for i := range q.free {
		q.free[i] = Max - 1 - i
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue deep-copies req into a free slot and marks it Waiting,
// signaling one blocked worker. Returns ErrFull if no slot is free.
// free_count + waiting_count + active_count <= Max always holds;
// Enqueue simply refuses to grow waiting_count past free_count==0.
func (q *Queue) Enqueue(req *action.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.free) == 0 {
		return ErrFull
	}
	idx := q.free[len(q.free)-1]
	q.free = q.free[:len(q.free)-1]

	q.slots[idx] = slot{state: SlotWaiting, req: req.Clone()}
	q.waiting = append(q.waiting, idx)
	q.cond.Signal()
	return nil
}

// popWaiting blocks until a Waiting slot is available or the queue is
// told to quit, returning ok=false in the latter case once the waiting
// set is fully drained.
func (q *Queue) popWaiting() (idx int, req *action.Request, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.waiting) == 0 {
		if q.toQuit {
			return 0, nil, false
		}
		q.cond.Wait()
	}
	idx = q.waiting[0]
	q.waiting = q.waiting[1:]
	q.slots[idx].state = SlotActive
	q.active++
	return idx, q.slots[idx].req, true
}

// release returns slot idx to the free stack, whether or not it was
// ever marked Active, clearing its request so the backing Request is
// eligible for garbage collection.
func (q *Queue) release(idx int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.slots[idx].state == SlotActive {
		q.active--
	}
	q.slots[idx] = slot{state: SlotFree}
	q.free = append(q.free, idx)
	// A waiting worker might be blocked only on waiting-set emptiness,
	// not on free-slot availability, so no signal is needed here; Stop
	// broadcasts separately to unblock drain.
}

// Stats is a point-in-time occupancy snapshot.
type Stats struct {
	Free    int
	Waiting int
	Active  int
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Free: len(q.free), Waiting: len(q.waiting), Active: q.active}
}

// Quit sets to_quit and wakes every blocked worker so they can observe
// it and begin draining down.
func (q *Queue) Quit() {
	q.mu.Lock()
	q.toQuit = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// drainOne pops one Waiting slot without blocking, for use by
// single-thread Iterate. Returns ok=false
// when the waiting set is empty.
func (q *Queue) drainOne() (idx int, req *action.Request, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) == 0 {
		return 0, nil, false
	}
	idx = q.waiting[0]
	q.waiting = q.waiting[1:]
	q.slots[idx].state = SlotActive
	q.active++
	return idx, q.slots[idx].req, true
}
