// Package action implements the action and parameter model: a named,
// remotely invokable operation with an ordered parameter list and a
// handler that is either an in-process callback or an external
// command.
package action

import (
	"context"
	"fmt"

	iotagent "github.com/oriys/iotagent"
	"github.com/oriys/iotagent/internal/lifecycle"
	"github.com/oriys/iotagent/internal/option"
	"github.com/oriys/iotagent/internal/plugin"
	"github.com/oriys/iotagent/internal/value"
)

// ParameterMax is the maximum number of parameters a single Action may declare.
const ParameterMax = 64

// Direction controls how a parameter is validated against a Request.
type Direction int

const (
	In Direction = iota
	InRequired
	Out
	InOut
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case InRequired:
		return "in_required"
	case Out:
		return "out"
	case InOut:
		return "inout"
	default:
		return "unknown"
	}
}

// Parameter declares one named, typed, directional slot of an Action.
type Parameter struct {
	Name      string
	Direction Direction
	Type      value.Kind
}

// Flag is one bit of an Action's behavior flags bitset.
type Flag uint32

const (
	// FlagExclusive serializes concurrent invocations of the same action
	// behind a per-action mutex.
	FlagExclusive Flag = 1 << iota
	// FlagNoReturn tells the external-command adapter not to wait for
	// the subprocess to exit.
	FlagNoReturn
)

// Has reports whether flag is set in the bitset.
func (f Flag) Has(flag Flag) bool { return f&flag != 0 }

// Callback is an in-process handler. req carries the bound parameters;
// the callback may append additional Out parameters to it before
// returning. The returned error, if non-nil, becomes the request's
// failure status.
type Callback func(ctx context.Context, req *Request) error

// HandlerKind distinguishes which union member Action.Handler holds.
type HandlerKind int

const (
	HandlerNone HandlerKind = iota
	HandlerCallback
	HandlerExternalCommand
)

// Handler is the sum type over {Callback, ExternalCommand, None},
// modeled as a tagged struct rather than an interface since only the
// dispatcher needs to distinguish members.
type Handler struct {
	Kind            HandlerKind
	Callback        Callback
	ExternalCommand string // absolute path to the external command
}

// ErrTooManyParameters reports the ParameterMax capacity ceiling,
// classified Full the same way pool.Max and dispatch.Max overflows are.
var ErrTooManyParameters = iotagent.New(iotagent.Full, "action: too many parameters")

// Action is a registered, remotely invokable operation.
type Action struct {
	Name         string
	Parameters   []Parameter
	Flags        Flag
	Options      *option.Store
	Handler      Handler
	MaxTimeLimit int // milliseconds; 0 means use the dispatcher default

	Lifecycle *lifecycle.Machine
}

// New constructs an unregistered Action with an empty OptionStore.
func New(name string) *Action {
	return &Action{
		Name:      name,
		Options:   option.New(),
		Lifecycle: lifecycle.NewMachine(),
	}
}

// AddParameter appends a Parameter declaration. Declaration order is
// stable and is what external commands see as argument order.
// Parameters may be added after registration; the caller is
// responsible for notifying the plugin of the update.
func (a *Action) AddParameter(p Parameter) error {
	if len(a.Parameters) >= ParameterMax {
		return fmt.Errorf("%w: action %q already has %d parameters", ErrTooManyParameters, a.Name, len(a.Parameters))
	}
	a.Parameters = append(a.Parameters, p)
	return nil
}

// ItemName and ItemKind satisfy plugin.Item so an *Action can be
// registered/deregistered through the plugin interface without the
// plugin package needing to know about the action package.
func (a *Action) ItemName() string          { return a.Name }
func (a *Action) ItemKind() plugin.ItemKind { return plugin.KindAction }

// Register/Deregister satisfy lifecycle.Registrar, delegating to the
// plugin so the Action's lifecycle.Machine can drive its own state.
type registrar struct {
	action *Action
	plugin plugin.Plugin
	ctx    context.Context
}

func (r registrar) Register() error   { return r.plugin.Register(r.ctx, r.action) }
func (r registrar) Deregister() error { return r.plugin.Deregister(r.ctx, r.action) }

// Register transitions the Action out of Unregistered via p.
func (a *Action) Register(ctx context.Context, p plugin.Plugin) error {
	return a.Lifecycle.Register(registrar{action: a, plugin: p, ctx: ctx})
}

// Deregister transitions the Action out of Registered via p.
func (a *Action) Deregister(ctx context.Context, p plugin.Plugin) error {
	return a.Lifecycle.Deregister(registrar{action: a, plugin: p, ctx: ctx})
}
