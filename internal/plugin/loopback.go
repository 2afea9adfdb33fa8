package plugin

import (
	"context"
	"sync"
	"time"
)

// Loopback is an in-memory Plugin used by tests and by single-process
// samples that have no real cloud connection. It records every call it
// receives so tests can assert on call counts and payloads.
type Loopback struct {
	mu sync.Mutex

	RegisterFunc   func(ctx context.Context, item Item) error
	DeregisterFunc func(ctx context.Context, item Item) error

	Registers   []Item
	Deregisters []Item
	Samples     []Sample
	Results     []RequestResult
	Iterations  int
	Connects    int
	Disconnects int
}

// NewLoopback returns a Loopback that succeeds on every call unless
// overridden via RegisterFunc/DeregisterFunc.
func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Connects++
	return nil
}

func (l *Loopback) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Disconnects++
	return nil
}

func (l *Loopback) Register(ctx context.Context, item Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Registers = append(l.Registers, item)
	if l.RegisterFunc != nil {
		return l.RegisterFunc(ctx, item)
	}
	return nil
}

func (l *Loopback) Deregister(ctx context.Context, item Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Deregisters = append(l.Deregisters, item)
	if l.DeregisterFunc != nil {
		return l.DeregisterFunc(ctx, item)
	}
	return nil
}

func (l *Loopback) Publish(ctx context.Context, s Sample) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Samples = append(l.Samples, s)
	return nil
}

func (l *Loopback) Transmit(ctx context.Context, r RequestResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Results = append(l.Results, r)
	return nil
}

func (l *Loopback) Iterate(ctx context.Context, timeout time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Iterations++
	return nil
}

// SampleCount reports how many Publish calls were observed, safe for
// concurrent use alongside the plugin's own goroutine-unsafe callers.
func (l *Loopback) SampleCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Samples)
}

// ResultCount reports how many Transmit calls were observed.
func (l *Loopback) ResultCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Results)
}
