// Package lifecycle implements the register/deregister state machine
// shared by every pooled item (telemetry, action, alarm): a small
// closed string-backed enum plus transition functions gated on
// confirmation from the transport plugin's Register/Deregister hooks.
package lifecycle

import (
	"fmt"

	iotagent "github.com/oriys/iotagent"
)

// State is one of the four lifecycle states.
type State string

const (
	Unregistered      State = "unregistered"
	RegisterPending   State = "register_pending"
	Registered        State = "registered"
	DeregisterPending State = "deregister_pending"
)

// Registrar is the subset of the plugin contract the state machine
// needs to drive a transition. register/deregister report success by
// a nil error; any non-nil error leaves the item in the corresponding
// *Pending terminal.
type Registrar interface {
	Register() error
	Deregister() error
}

// Machine holds the current State for one pooled item and applies its
// transition rules. It is not safe for concurrent use by multiple
// goroutines; the owning item's registry serializes access under its
// own mutex.
type Machine struct {
	state State
}

// NewMachine returns a Machine starting in Unregistered.
func NewMachine() *Machine {
	return &Machine{state: Unregistered}
}

// State reports the current state.
func (m *Machine) State() State { return m.state }

// Register drives Unregistered -> Registered on success, or
// Unregistered -> RegisterPending on plugin failure. Calling Register
// again while already Registered is idempotent: it is treated as
// success with no further plugin call.
//
// Calling Register while RegisterPending re-attempts the plugin call
// and stays in RegisterPending on repeated failure; no retry counter
// is kept by the state machine itself.
func (m *Machine) Register(r Registrar) error {
	switch m.state {
	case Registered:
		return nil
	case Unregistered, RegisterPending:
		if err := r.Register(); err != nil {
			m.state = RegisterPending
			return err
		}
		m.state = Registered
		return nil
	case DeregisterPending:
		return fmt.Errorf("lifecycle: cannot register from state %s", m.state)
	default:
		return fmt.Errorf("lifecycle: unknown state %s", m.state)
	}
}

// ErrNotRegistered is returned by Deregister when the item is already
// Unregistered, giving a "Success then NotInitialized" sequence for
// repeated deregister calls.
var ErrNotRegistered = iotagent.New(iotagent.NotInitialized, "lifecycle: item is not registered")

// Deregister drives Registered -> Unregistered on success, or
// Registered -> DeregisterPending on plugin failure.
func (m *Machine) Deregister(r Registrar) error {
	switch m.state {
	case Unregistered:
		return ErrNotRegistered
	case Registered, DeregisterPending:
		if err := r.Deregister(); err != nil {
			m.state = DeregisterPending
			return err
		}
		m.state = Unregistered
		return nil
	case RegisterPending:
		// Local intent was to register but the plugin never confirmed;
		// there is nothing remote to tear down.
		m.state = Unregistered
		return nil
	default:
		return fmt.Errorf("lifecycle: unknown state %s", m.state)
	}
}

// Free releases local resources. If the item is Registered, it
// attempts Deregister first so the remote view stays consistent; the
// caller is expected to drop the pool slot regardless of the outcome.
func (m *Machine) Free(r Registrar) error {
	if m.state == Registered {
		return m.Deregister(r)
	}
	m.state = Unregistered
	return nil
}
