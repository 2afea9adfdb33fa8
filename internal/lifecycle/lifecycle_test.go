package lifecycle

import (
	"errors"
	"testing"
)

type fakeRegistrar struct {
	registerErr     error
	deregisterErr   error
	registerCalls   int
	deregisterCalls int
}

func (f *fakeRegistrar) Register() error {
	f.registerCalls++
	return f.registerErr
}

func (f *fakeRegistrar) Deregister() error {
	f.deregisterCalls++
	return f.deregisterErr
}

func TestRegisterSuccessTransitionsToRegistered(t *testing.T) {
	m := NewMachine()
	r := &fakeRegistrar{}
	if err := m.Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if m.State() != Registered {
		t.Fatalf("State() = %v, want Registered", m.State())
	}
}

func TestRegisterFailureLeavesRegisterPending(t *testing.T) {
	m := NewMachine()
	r := &fakeRegistrar{registerErr: errors.New("plugin down")}
	if err := m.Register(r); err == nil {
		t.Fatal("expected error from failing plugin")
	}
	if m.State() != RegisterPending {
		t.Fatalf("State() = %v, want RegisterPending", m.State())
	}
}

func TestRegisterIsIdempotentWhenAlreadyRegistered(t *testing.T) {
	m := NewMachine()
	r := &fakeRegistrar{}
	_ = m.Register(r)
	if err := m.Register(r); err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if r.registerCalls != 1 {
		t.Fatalf("plugin Register called %d times, want 1 (no duplicate call)", r.registerCalls)
	}
}

func TestDeregisterTwiceYieldsSuccessThenNotInitialized(t *testing.T) {
	m := NewMachine()
	r := &fakeRegistrar{}
	_ = m.Register(r)
	if err := m.Deregister(r); err != nil {
		t.Fatalf("first Deregister: %v", err)
	}
	if err := m.Deregister(r); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("second Deregister: got %v, want ErrNotRegistered", err)
	}
}

func TestDeregisterFailureLeavesDeregisterPending(t *testing.T) {
	m := NewMachine()
	r := &fakeRegistrar{deregisterErr: errors.New("plugin down")}
	_ = m.Register(r)
	if err := m.Deregister(r); err == nil {
		t.Fatal("expected error from failing plugin")
	}
	if m.State() != DeregisterPending {
		t.Fatalf("State() = %v, want DeregisterPending", m.State())
	}
}

func TestFreeDeregistersFirstWhenRegistered(t *testing.T) {
	m := NewMachine()
	r := &fakeRegistrar{}
	_ = m.Register(r)
	if err := m.Free(r); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if r.deregisterCalls != 1 {
		t.Fatalf("deregisterCalls = %d, want 1", r.deregisterCalls)
	}
	if m.State() != Unregistered {
		t.Fatalf("State() = %v, want Unregistered", m.State())
	}
}
