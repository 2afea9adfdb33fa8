package agentlib

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/iotagent/internal/lifecycle"
	"github.com/oriys/iotagent/internal/metrics"
	"github.com/oriys/iotagent/internal/option"
	"github.com/oriys/iotagent/internal/plugin"
)

// Severity is the closed set of alarm severities.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Alarm is a named condition the caller raises with a severity and a
// message. It follows the same register/deregister lifecycle as
// Telemetry and Action.
type Alarm struct {
	Name      string
	Options   *option.Store
	Lifecycle *lifecycle.Machine
}

func (a *Alarm) ItemName() string          { return a.Name }
func (a *Alarm) ItemKind() plugin.ItemKind { return plugin.KindAlarm }

type alarmRegistrar struct {
	alarm  *Alarm
	plugin plugin.Plugin
	ctx    context.Context
}

func (r alarmRegistrar) Register() error   { return r.plugin.Register(r.ctx, r.alarm) }
func (r alarmRegistrar) Deregister() error { return r.plugin.Deregister(r.ctx, r.alarm) }

func (a *Alarm) Register(ctx context.Context, p plugin.Plugin) error {
	return a.Lifecycle.Register(alarmRegistrar{alarm: a, plugin: p, ctx: ctx})
}

func (a *Alarm) Deregister(ctx context.Context, p plugin.Plugin) error {
	return a.Lifecycle.Deregister(alarmRegistrar{alarm: a, plugin: p, ctx: ctx})
}

// RegisterAlarm allocates (or finds an existing) Alarm named name and
// registers it through the plugin.
func (l *Library) RegisterAlarm(ctx context.Context, name string) (*Alarm, error) {
	a, err := l.alarms.Allocate(name, func(e *Alarm) {
		e.Name = name
		e.Options = option.New()
		e.Lifecycle = lifecycle.NewMachine()
	})
	if err != nil {
		return nil, fmt.Errorf("agentlib: register alarm %q: %w", name, err)
	}
	l.exportPoolStats()
	if err := a.Register(ctx, l.plug); err != nil {
		metrics.Global().RecordRegisterFailure("alarm")
		return a, err
	}
	return a, nil
}

// DeregisterAlarm deregisters and frees the named Alarm.
func (l *Library) DeregisterAlarm(ctx context.Context, name string) error {
	a, err := l.alarms.Find(name)
	if err != nil {
		return fmt.Errorf("agentlib: deregister alarm %q: %w", name, err)
	}
	if err := a.Deregister(ctx, l.plug); err != nil {
		metrics.Global().RecordRegisterFailure("alarm")
		return err
	}
	err = l.alarms.Free(name)
	l.exportPoolStats()
	return err
}

// RaiseAlarm publishes one alarm occurrence through the plugin's
// Publish hook, reusing the telemetry sample channel with the alarm's
// name and a string-valued message carrying the severity prefix, since
// the plugin trait defines no separate alarm-transmission hook.
func (l *Library) RaiseAlarm(ctx context.Context, name string, severity Severity, message string) error {
	a, err := l.alarms.Find(name)
	if err != nil {
		return fmt.Errorf("agentlib: raise alarm %q: %w", name, err)
	}
	if a.Lifecycle.State() != lifecycle.Registered {
		return fmt.Errorf("agentlib: raise alarm %q: %w", name, lifecycle.ErrNotRegistered)
	}
	return l.plug.Publish(ctx, plugin.Sample{
		Name:      name,
		Value:     fmt.Sprintf("[%s] %s", severity, message),
		Timestamp: time.Now(),
	})
}
