// Package option implements OptionStore, the ordered name->Value map
// used both as per-item metadata (telemetry/action/alarm options) and
// as the library's process-wide configuration store addressable by
// dotted path (see internal/config).
//
// Keys are unique and insertion order is preserved, mirroring the
// slice-plus-index-map technique the pool package uses to keep a
// dense, order-stable view alongside O(1) lookup.
package option

import (
	"fmt"
	"sync"

	iotagent "github.com/oriys/iotagent"
	"github.com/oriys/iotagent/internal/value"
)

// NameMax is the maximum byte length of an option name.
const NameMax = 256

// Max is the maximum number of options a single store may hold.
const Max = 256

var (
	// ErrFull is returned by Set when the store is already at Max capacity
	// and name does not match an existing entry.
	ErrFull = iotagent.New(iotagent.Full, "option: store full")
	// ErrNotFound is returned by Get/Delete for an absent name.
	ErrNotFound = iotagent.New(iotagent.NotFound, "option: not found")
	// ErrBadName is returned for a name violating the shared item-name
	// constraint (nonempty, no \ | & ; = characters).
	ErrBadName = iotagent.New(iotagent.BadRequest, "option: invalid name")
)

// ValidName reports whether name satisfies the shared naming
// constraint: nonempty and free of \ | & ; = .
func ValidName(name string) bool {
	if name == "" || len(name) > NameMax {
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

// Store is an ordered name->Value map, safe for concurrent use: it
// sits behind its own mutex so handler code running on worker
// goroutines can read options while the owning thread mutates them.
type Store struct {
	mu    sync.RWMutex
	order []string
	vals  map[string]value.Value
}

// New returns an empty Store.
func New() *Store {
	return &Store{vals: make(map[string]value.Value)}
}

// Len reports the number of entries currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Set creates or overwrites the named entry. A type change from the
// prior entry simply replaces the stored Value; any owned buffer the
// prior Value held is released by virtue of Go's garbage collector
// once the map entry is overwritten.
func (s *Store) Set(name string, v value.Value) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vals[name]; !exists {
		if len(s.order) >= Max {
			return ErrFull
		}
		s.order = append(s.order, name)
	}
	s.vals[name] = v
	return nil
}

// Get retrieves the named Value as stored. Get performs no type check
// or conversion; the caller picks exact-match or converting reads
// through the returned Value's typed accessors.
func (s *Store) Get(name string) (value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vals[name]
	if !ok {
		return value.Value{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return v, nil
}

// GetString is a typed convenience accessor.
func (s *Store) GetString(name string, allowConvert bool) (string, error) {
	v, err := s.Get(name)
	if err != nil {
		return "", err
	}
	return v.String()
}

// GetRaw returns the raw byte payload for name plus its length,
// matching a (*len, *ptr) out-parameter shape for callers bridging to
// a C API.
func (s *Store) GetRaw(name string, allowConvert bool) ([]byte, int, error) {
	v, err := s.Get(name)
	if err != nil {
		return nil, 0, err
	}
	b, err := v.Raw()
	if err != nil {
		return nil, 0, err
	}
	return b, len(b), nil
}

// Delete removes the named entry. Deleting an absent name is a no-op
// returning ErrNotFound, mirroring the other finders in this package.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vals[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(s.vals, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Names returns option names in insertion order. The returned slice is
// a copy; callers may not mutate the store's internal order through it.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Each calls fn for every entry in insertion order, stopping early if
// fn returns false.
func (s *Store) Each(fn func(name string, v value.Value) bool) {
	s.mu.RLock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	s.mu.RUnlock()
	for _, name := range names {
		s.mu.RLock()
		v, ok := s.vals[name]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		if !fn(name, v) {
			return
		}
	}
}
