package agentlib

import (
	"context"
	"fmt"

	"github.com/oriys/iotagent/internal/action"
	"github.com/oriys/iotagent/internal/metrics"
)

// RegisterAction allocates (or finds an existing) Action named
// decl.Name and registers it through the plugin. decl's Parameters,
// Flags, and Handler are copied onto the pooled entry so the caller's
// *action.Action may be discarded after this call.
func (l *Library) RegisterAction(ctx context.Context, decl *action.Action) (*action.Action, error) {
	a, err := l.actions.Allocate(decl.Name, func(e *action.Action) {
		*e = *action.New(decl.Name)
		e.Parameters = append([]action.Parameter(nil), decl.Parameters...)
		e.Flags = decl.Flags
		e.Handler = decl.Handler
		e.MaxTimeLimit = decl.MaxTimeLimit
	})
	if err != nil {
		return nil, fmt.Errorf("agentlib: register action %q: %w", decl.Name, err)
	}
	l.exportPoolStats()
	if err := a.Register(ctx, l.plug); err != nil {
		metrics.Global().RecordRegisterFailure("action")
		return a, err
	}
	return a, nil
}

// DeregisterAction deregisters and frees the named Action.
func (l *Library) DeregisterAction(ctx context.Context, name string) error {
	a, err := l.actions.Find(name)
	if err != nil {
		return fmt.Errorf("agentlib: deregister action %q: %w", name, err)
	}
	if err := a.Deregister(ctx, l.plug); err != nil {
		metrics.Global().RecordRegisterFailure("action")
		return err
	}
	err = l.actions.Free(name)
	l.exportPoolStats()
	return err
}

// Execute enqueues req for dispatch. It never blocks longer than the
// time required to acquire the queue lock; a full queue returns
// dispatch.ErrFull.
func (l *Library) Execute(req *action.Request) error {
	return l.dispatcher.Execute(req)
}

// QueueStats exposes the dispatcher's queue occupancy snapshot.
func (l *Library) QueueStats() (free, waiting, active int) {
	s := l.dispatcher.Stats()
	return s.Free, s.Waiting, s.Active
}
